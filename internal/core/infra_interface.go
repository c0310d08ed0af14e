package core

import (
	"context"
	"io"

	"github.com/markdave123-py/Examina/internal/models"
)

// DbClient defines all persistence operations your services will need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error

	CreateExam(ctx context.Context, exam *models.Exam) error
	GetExamByID(ctx context.Context, id string) (*models.Exam, error)
	ListExamsByUser(ctx context.Context, userID string) ([]models.Exam, error)
	CompleteExam(ctx context.Context, exam *models.Exam, questions []models.Question) error
	UpdateExamStatus(ctx context.Context, id string, status string) error
	GetQuestionsByExam(ctx context.Context, examID string) ([]models.Question, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// Notifier tells an exam owner that extraction finished.
type Notifier interface {
	ExamReady(ctx context.Context, to string, exam *models.Exam) error
}
