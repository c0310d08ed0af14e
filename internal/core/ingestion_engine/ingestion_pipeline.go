package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/core/extraction_engine"
	objectclient "github.com/markdave123-py/Examina/internal/core/object-client"
	"github.com/markdave123-py/Examina/internal/logging"
	"github.com/markdave123-py/Examina/internal/models"
)

var _ Ingestor = (*ExamIngestor)(nil)

// NewExamIngestor constructs the ingestor with a bounded job queue.
func NewExamIngestor(db core.DbClient, obj core.ObjectClient, extractor core.DocumentExtractor, questions QuestionExtractor, notifier core.Notifier, cfg IngestConfig, log *zap.Logger) *ExamIngestor {
	def := DefaultIngestConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	return &ExamIngestor{
		db: db, obj: obj, extractor: extractor, questions: questions, notifier: notifier,
		cfg:  cfg,
		jobs: make(chan string, cfg.QueueSize),
		log:  logging.OrNop(log),
	}
}

// Start launches the workers. They stop when ctx is done; jobs still queued
// at that point stay in their processing state.
func (i *ExamIngestor) Start(ctx context.Context) {
	for w := 1; w <= i.cfg.Workers; w++ {
		go i.work(ctx, w)
	}
}

func (i *ExamIngestor) work(ctx context.Context, w int) {
	for {
		select {
		case <-ctx.Done():
			i.log.Debug("job.worker.stopped", zap.Int("worker", w))
			return
		case examID := <-i.jobs:
			i.log.Info("job.start", zap.String("exam_id", examID), zap.Int("worker", w))
			if err := i.ProcessOne(ctx, examID); err != nil {
				i.log.Error("job.failed", zap.String("exam_id", examID), zap.Int("worker", w), zap.Error(err))
			}
		}
	}
}

// Enqueue schedules an exam for processing, blocking while the queue is full.
func (i *ExamIngestor) Enqueue(ctx context.Context, examID string) error {
	select {
	case i.jobs <- examID:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue exam %s: %w", examID, ctx.Err())
	}
}

// ProcessOne downloads the exam's document, extracts questions and persists
// them. Any failure marks both the exam and the document failed.
func (i *ExamIngestor) ProcessOne(ctx context.Context, examID string) error {
	jobCtx, cancel := context.WithTimeout(ctx, i.cfg.JobTimeout)
	defer cancel()
	start := time.Now()

	exam, err := i.db.GetExamByID(jobCtx, examID)
	if err != nil {
		return fmt.Errorf("load exam: %w", err)
	}

	doc, err := i.process(jobCtx, exam)
	if err != nil {
		i.markFailed(ctx, exam, doc)
		return err
	}

	i.log.Info("job.done",
		zap.String("exam_id", exam.ID),
		zap.Int("questions", exam.QuestionCount),
		zap.Bool("used_template", exam.UsedTemplate),
		zap.Duration("elapsed", time.Since(start)))

	i.notify(ctx, exam)
	return nil
}

func (i *ExamIngestor) process(ctx context.Context, exam *models.Exam) (*models.Document, error) {
	if exam.DocumentID == "" {
		return nil, errors.New("exam has no source document")
	}
	doc, err := i.db.GetDocumentByID(ctx, exam.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	if err := i.db.UpdateExamStatus(ctx, exam.ID, models.StatusProcessing); err != nil {
		return doc, fmt.Errorf("mark exam processing: %w", err)
	}
	if err := i.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusProcessing); err != nil {
		return doc, fmt.Errorf("mark document processing: %w", err)
	}

	bucket, key, err := objectclient.ParseObjectURL(doc.StorageURL)
	if err != nil {
		return doc, err
	}
	data, err := i.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return doc, fmt.Errorf("get object: %w", err)
	}

	text, err := i.extractor.ExtractText(ctx, data, doc.ContentType)
	if err != nil {
		return doc, fmt.Errorf("extract text: %w", err)
	}

	res, err := i.questions.Extract(ctx, extraction_engine.Document{
		Text:     text,
		ExamType: exam.ExamType,
		FileName: doc.FileName,
		Title:    exam.Title,
	})
	if err != nil {
		return doc, fmt.Errorf("extract questions: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// the pipeline degrades to templates on cancellation; do not persist those
		return doc, err
	}

	exam.Title = res.Title
	exam.UsedTemplate = res.UsedTemplate
	if err := i.db.CompleteExam(ctx, exam, res.Questions); err != nil {
		return doc, fmt.Errorf("persist exam: %w", err)
	}
	exam.Questions = res.Questions
	if err := i.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusReady); err != nil {
		i.log.Warn("job.document_status", zap.String("document_id", doc.ID), zap.Error(err))
	}
	return doc, nil
}

// markFailed uses a fresh context so a timed-out job can still record failure.
func (i *ExamIngestor) markFailed(parent context.Context, exam *models.Exam, doc *models.Document) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 10*time.Second)
	defer cancel()

	if err := i.db.UpdateExamStatus(ctx, exam.ID, models.StatusFailed); err != nil {
		i.log.Warn("job.exam_status", zap.String("exam_id", exam.ID), zap.Error(err))
	}
	if doc != nil {
		if err := i.db.UpdateDocumentStatus(ctx, doc.ID, models.StatusFailed); err != nil {
			i.log.Warn("job.document_status", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
}

func (i *ExamIngestor) notify(ctx context.Context, exam *models.Exam) {
	if i.notifier == nil || exam.NotifyEmail == "" {
		return
	}
	if err := i.notifier.ExamReady(ctx, exam.NotifyEmail, exam); err != nil {
		i.log.Warn("job.notify_failed", zap.String("exam_id", exam.ID), zap.Error(err))
	}
}
