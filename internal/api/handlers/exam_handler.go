package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	middleware "github.com/markdave123-py/Examina/internal/api/middlewares"
	"github.com/markdave123-py/Examina/internal/core/extraction_engine"
	"github.com/markdave123-py/Examina/internal/logging"
	"github.com/markdave123-py/Examina/internal/models"
	"github.com/markdave123-py/Examina/internal/services"
)

const (
	maxUploadBytes  = 100 << 20
	maxExtractBytes = 5 << 20
)

// ExamService is what the exam endpoints need from the service layer.
type ExamService interface {
	CreateFromUpload(ctx context.Context, up services.Upload) (*models.Exam, error)
	ExtractText(ctx context.Context, req services.ExtractRequest) (*extraction_engine.Result, error)
	Get(ctx context.Context, userID, examID string) (*models.Exam, error)
	List(ctx context.Context, userID string) ([]models.Exam, error)
}

type ExamHandler struct {
	exams ExamService
	log   *zap.Logger
}

func NewExamHandler(exams ExamService, log *zap.Logger) *ExamHandler {
	return &ExamHandler{exams: exams, log: logging.OrNop(log)}
}

// CreateFromDocument accepts a multipart upload (file, examType, title) and
// answers 202 with the processing exam.
func (h *ExamHandler) CreateFromDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	uploadCtx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	exam, err := h.exams.CreateFromUpload(uploadCtx, services.Upload{
		UserID:      userID,
		Email:       middleware.EmailFromContext(r.Context()),
		FileName:    filepath.Base(header.Filename),
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
		ExamType:    r.FormValue("examType"),
		Title:       r.FormValue("title"),
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, exam)
}

type extractResponse struct {
	Questions    []models.Question `json:"questions"`
	Title        string            `json:"title"`
	UsedTemplate bool              `json:"usedTemplate"`
}

// Extract runs extraction on JSON {text, examType, fileName, title} and
// answers with the questions and title.
func (h *ExamHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req services.ExtractRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExtractBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.exams.ExtractText(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{Questions: res.Questions, Title: res.Title, UsedTemplate: res.UsedTemplate})
}

func (h *ExamHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	exam, err := h.exams.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (h *ExamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	exams, err := h.exams.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

