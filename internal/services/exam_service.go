package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/core/extraction_engine"
	"github.com/markdave123-py/Examina/internal/core/llm"
	objectclient "github.com/markdave123-py/Examina/internal/core/object-client"
	"github.com/markdave123-py/Examina/internal/logging"
	"github.com/markdave123-py/Examina/internal/models"
)

var (
	ErrInvalidExamType = errors.New("examType must be one of quiz, pastpaper, final")
	ErrEmptyText       = errors.New("text is required")
)

// QuestionExtractor runs the extraction pipeline.
type QuestionExtractor interface {
	Extract(ctx context.Context, doc extraction_engine.Document) (*extraction_engine.Result, error)
}

// ModelManager reports and refreshes the completion model in use.
type ModelManager interface {
	Configured() bool
	Status() llm.ModelStatus
	ForceRefresh(ctx context.Context) (string, error)
}

// JobQueue hands exams to the background workers.
type JobQueue interface {
	Enqueue(ctx context.Context, examID string) error
}

type ExamService struct {
	db        core.DbClient
	storage   core.ObjectClient
	jobs      JobQueue
	extractor QuestionExtractor
	selector  ModelManager
	bucket    string
	now       func() time.Time
	log       *zap.Logger
}

func NewExamService(db core.DbClient, storage core.ObjectClient, jobs JobQueue, extractor QuestionExtractor, selector ModelManager, bucket string, log *zap.Logger) *ExamService {
	return &ExamService{
		db: db, storage: storage, jobs: jobs, extractor: extractor, selector: selector,
		bucket: bucket,
		now:    time.Now,
		log:    logging.OrNop(log),
	}
}

// Upload is a document submitted for question extraction.
type Upload struct {
	UserID      string
	Email       string
	FileName    string
	ContentType string
	Body        io.Reader
	ExamType    string
	Title       string
}

// ExtractRequest is raw text submitted for synchronous extraction.
type ExtractRequest struct {
	Text     string `json:"text"`
	ExamType string `json:"examType"`
	FileName string `json:"fileName"`
	Title    string `json:"title"`
}

// NormalizeExamType validates t and defaults it to quiz.
func NormalizeExamType(t string) (string, error) {
	switch t = strings.ToLower(strings.TrimSpace(t)); t {
	case "":
		return models.ExamQuiz, nil
	case models.ExamQuiz, models.ExamPastPaper, models.ExamFinal:
		return t, nil
	}
	return "", ErrInvalidExamType
}

// CreateFromUpload stores the file, records the document and a processing
// exam, and queues the exam for extraction.
func (s *ExamService) CreateFromUpload(ctx context.Context, up Upload) (*models.Exam, error) {
	if !s.AIConfigured() {
		return nil, core.ErrNotConfigured
	}
	examType, err := NormalizeExamType(up.ExamType)
	if err != nil {
		return nil, err
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	docID := uuid.NewString()
	key := objectclient.DocumentKey(up.UserID, docID, up.FileName)
	url, err := s.storage.UploadFile(ctx, s.bucket, key, up.Body, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	now := s.now()
	doc := &models.Document{
		ID:          docID,
		UserID:      up.UserID,
		FileName:    up.FileName,
		StorageURL:  url,
		SourceType:  "upload",
		ContentType: contentType,
		Status:      models.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	exam := &models.Exam{
		ID:          uuid.NewString(),
		UserID:      up.UserID,
		DocumentID:  docID,
		Title:       strings.TrimSpace(up.Title),
		ExamType:    examType,
		Status:      models.StatusProcessing,
		NotifyEmail: up.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateExam(ctx, exam); err != nil {
		return nil, fmt.Errorf("store exam: %w", err)
	}

	if err := s.jobs.Enqueue(ctx, exam.ID); err != nil {
		_ = s.db.UpdateExamStatus(context.WithoutCancel(ctx), exam.ID, models.StatusFailed)
		return nil, err
	}
	s.log.Info("exam.queued", zap.String("exam_id", exam.ID), zap.String("document_id", docID), zap.String("exam_type", examType))
	return exam, nil
}

// ExtractText runs the pipeline inline without persisting anything.
func (s *ExamService) ExtractText(ctx context.Context, req ExtractRequest) (*extraction_engine.Result, error) {
	if !s.AIConfigured() {
		return nil, core.ErrNotConfigured
	}
	examType, err := NormalizeExamType(req.ExamType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	return s.extractor.Extract(ctx, extraction_engine.Document{
		Text:     req.Text,
		ExamType: examType,
		FileName: req.FileName,
		Title:    req.Title,
	})
}

// Get returns the caller's exam with its questions. Exams owned by someone
// else are reported as not found.
func (s *ExamService) Get(ctx context.Context, userID, examID string) (*models.Exam, error) {
	if _, err := uuid.Parse(examID); err != nil {
		return nil, fmt.Errorf("exam %s: %w", examID, core.ErrNotFound)
	}
	exam, err := s.db.GetExamByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.UserID != userID {
		return nil, fmt.Errorf("exam %s: %w", examID, core.ErrNotFound)
	}
	if exam.Status == models.StatusReady {
		if exam.Questions, err = s.db.GetQuestionsByExam(ctx, examID); err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
	}
	return exam, nil
}

func (s *ExamService) List(ctx context.Context, userID string) ([]models.Exam, error) {
	exams, err := s.db.ListExamsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []models.Exam{}
	}
	return exams, nil
}

func (s *ExamService) AIConfigured() bool {
	return s.selector != nil && s.selector.Configured()
}

func (s *ExamService) AIStatus() (llm.ModelStatus, error) {
	if !s.AIConfigured() {
		return llm.ModelStatus{}, core.ErrNotConfigured
	}
	return s.selector.Status(), nil
}

// RefreshModels discards cached availability and re-selects the model.
func (s *ExamService) RefreshModels(ctx context.Context) (llm.ModelStatus, error) {
	if !s.AIConfigured() {
		return llm.ModelStatus{}, core.ErrNotConfigured
	}
	model, err := s.selector.ForceRefresh(ctx)
	if err != nil {
		return s.selector.Status(), err
	}
	s.log.Info("model.refreshed", zap.String("model", model))
	return s.selector.Status(), nil
}
