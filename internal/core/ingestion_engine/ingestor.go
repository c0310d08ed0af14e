package ingestion_engine

import "context"

type Ingestor interface {
	Start(ctx context.Context)
	Enqueue(ctx context.Context, examID string) error
}
