package ingestion_engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/core/extraction_engine"
)

// IngestConfig tunes the background exam workers.
//
// Workers:    goroutines pulling jobs off the queue.
// QueueSize:  buffered jobs before Enqueue starts blocking.
// JobTimeout: upper bound for one exam, from download to persist.
type IngestConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{Workers: 2, QueueSize: 64, JobTimeout: 30 * time.Minute}
}

// QuestionExtractor is the part of the extraction pipeline the workers use.
type QuestionExtractor interface {
	Extract(ctx context.Context, doc extraction_engine.Document) (*extraction_engine.Result, error)
}

// ExamIngestor orchestrates the background exam pipeline:
//
// db:        persistence for documents, exams and questions.
// obj:       object storage holding the uploaded files.
// extractor: document bytes to text.
// questions: text to questions.
// notifier:  tells the owner the exam is ready; may be nil.
// jobs:      in-memory queue of exam IDs to process.
type ExamIngestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	extractor core.DocumentExtractor
	questions QuestionExtractor
	notifier  core.Notifier
	cfg       IngestConfig
	jobs      chan string
	log       *zap.Logger
}
