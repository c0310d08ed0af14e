package models

import (
	"time"
)

// QuestionType is the canonical question kind.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "true_false"
	QuestionFillBlank QuestionType = "fill_blank"
	QuestionOpen      QuestionType = "open"
)

// IsChoice reports whether answers are picked from options.
func (t QuestionType) IsChoice() bool { return t == QuestionMCQ }

// IsBoolean reports whether the question is a true/false item.
func (t QuestionType) IsBoolean() bool { return t == QuestionTrueFalse }

// Exam types accepted by the API.
const (
	ExamQuiz      = "quiz"
	ExamPastPaper = "pastpaper"
	ExamFinal     = "final"
)

// Status values shared by documents and exams.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Document represents a user-uploaded source file.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	StorageURL  string    `db:"storage_url" json:"storage_url"` // S3 URL
	SourceType  string    `db:"source_type" json:"source_type"` // "upload"
	ContentType string    `db:"content_type" json:"content_type"`
	Status      string    `db:"status" json:"status"` // uploaded | processing | ready | failed
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Exam is the record questions are extracted into.
type Exam struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"user_id"`
	DocumentID    string     `db:"document_id" json:"document_id,omitempty"`
	Title         string     `db:"title" json:"title"`
	ExamType      string     `db:"exam_type" json:"exam_type"`
	Status        string     `db:"status" json:"status"`
	QuestionCount int        `db:"question_count" json:"question_count"`
	UsedTemplate  bool       `db:"used_template" json:"used_template"`
	NotifyEmail   string     `db:"notify_email" json:"-"`
	Questions     []Question `db:"-" json:"questions,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Question is a normalized exam question.
type Question struct {
	ID            string       `db:"id" json:"id"`
	ExamID        string       `db:"exam_id" json:"exam_id,omitempty"`
	Position      int          `db:"position" json:"position"`
	Question      string       `db:"question" json:"question"`
	Type          QuestionType `db:"type" json:"type"`
	Options       []string     `db:"options" json:"options"`
	CorrectAnswer string       `db:"correct_answer" json:"correctAnswer"`
	CorrectIndex  int          `db:"correct_index" json:"correctIndex"` // -1 when the answer is not one of the options
	Points        int          `db:"points" json:"points"`
	Section       string       `db:"section" json:"section,omitempty"`
	Chunk         int          `db:"chunk" json:"chunk"`
}
