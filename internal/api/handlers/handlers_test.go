package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	middleware "github.com/markdave123-py/Examina/internal/api/middlewares"
	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/core/extraction_engine"
	"github.com/markdave123-py/Examina/internal/core/llm"
	"github.com/markdave123-py/Examina/internal/models"
	"github.com/markdave123-py/Examina/internal/services"
)

type fakeExams struct {
	upload  services.Upload
	body    []byte
	extract services.ExtractRequest
	err     error
}

func (f *fakeExams) CreateFromUpload(_ context.Context, up services.Upload) (*models.Exam, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upload = up
	f.body, _ = io.ReadAll(up.Body)
	return &models.Exam{ID: "e1", UserID: up.UserID, ExamType: "quiz", Status: models.StatusProcessing}, nil
}

func (f *fakeExams) ExtractText(_ context.Context, req services.ExtractRequest) (*extraction_engine.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.extract = req
	return &extraction_engine.Result{
		Title:     "Cells",
		Questions: []models.Question{{ID: "q1", Question: "What is a cell?", Type: models.QuestionMCQ, Options: []string{"a", "b"}, CorrectAnswer: "a", Points: 1}},
	}, nil
}

func (f *fakeExams) Get(_ context.Context, userID, examID string) (*models.Exam, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Exam{ID: examID, UserID: userID}, nil
}

func (f *fakeExams) List(context.Context, string) ([]models.Exam, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Exam{{ID: "e1"}, {ID: "e2"}}, nil
}

type fakeModels struct {
	status llm.ModelStatus
	err    error
}

func (f *fakeModels) AIStatus() (llm.ModelStatus, error) { return f.status, f.err }

func (f *fakeModels) RefreshModels(context.Context) (llm.ModelStatus, error) { return f.status, f.err }

func router(exams ExamService, ms ModelService) http.Handler {
	eh := NewExamHandler(exams, nil)
	ah := NewAIHandler(ms, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), "u1", "ada@example.com")))
		})
	})
	r.Post("/api/exams/from-document", eh.CreateFromDocument)
	r.Post("/api/exams/extract", eh.Extract)
	r.Get("/api/exams", eh.List)
	r.Get("/api/exams/{id}", eh.Get)
	r.Get("/api/ai/status", ah.Status)
	r.Post("/api/ai/models/refresh", ah.Refresh)
	return r
}

func multipartUpload(t *testing.T, fields map[string]string, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withFile {
		fw, err := mw.CreateFormFile("file", "notes.txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte("Photosynthesis converts light."))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateFromDocument(t *testing.T) {
	exams := &fakeExams{}
	body, ct := multipartUpload(t, map[string]string{"examType": "final", "title": "Bio"}, true)
	req := httptest.NewRequest(http.MethodPost, "/api/exams/from-document", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	router(exams, &fakeModels{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "u1", exams.upload.UserID)
	assert.Equal(t, "ada@example.com", exams.upload.Email)
	assert.Equal(t, "notes.txt", exams.upload.FileName)
	assert.Equal(t, "final", exams.upload.ExamType)
	assert.Equal(t, "Bio", exams.upload.Title)
	assert.Equal(t, "Photosynthesis converts light.", string(exams.body))

	var got models.Exam
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, models.StatusProcessing, got.Status)
}

func TestCreateFromDocumentErrors(t *testing.T) {
	tests := []struct {
		name       string
		withFile   bool
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "missing file", wantStatus: http.StatusBadRequest, wantBody: `{"error":"file is required"}`},
		{name: "not configured", withFile: true, err: core.ErrNotConfigured, wantStatus: http.StatusServiceUnavailable, wantBody: `{"error":"AI service not configured"}`},
		{name: "bad exam type", withFile: true, err: services.ErrInvalidExamType, wantStatus: http.StatusBadRequest},
		{name: "storage down", withFile: true, err: errors.New("s3 upload failed"), wantStatus: http.StatusInternalServerError, wantBody: `{"error":"internal error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartUpload(t, nil, tt.withFile)
			req := httptest.NewRequest(http.MethodPost, "/api/exams/from-document", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()

			router(&fakeExams{err: tt.err}, &fakeModels{}).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestExtract(t *testing.T) {
	exams := &fakeExams{}
	req := httptest.NewRequest(http.MethodPost, "/api/exams/extract",
		strings.NewReader(`{"text":"Cells are the unit of life.","examType":"quiz","fileName":"bio.txt"}`))
	rec := httptest.NewRecorder()

	router(exams, &fakeModels{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bio.txt", exams.extract.FileName)

	var got struct {
		Title     string `json:"title"`
		Questions []struct {
			Question      string `json:"question"`
			CorrectAnswer string `json:"correctAnswer"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Cells", got.Title)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "a", got.Questions[0].CorrectAnswer)
}

func TestExtractBadBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/exams/extract", strings.NewReader(`{"text":`))
	rec := httptest.NewRecorder()
	router(&fakeExams{}, &fakeModels{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndList(t *testing.T) {
	rec := httptest.NewRecorder()
	router(&fakeExams{}, &fakeModels{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exams/abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"abc"`)

	rec = httptest.NewRecorder()
	router(&fakeExams{err: core.ErrNotFound}, &fakeModels{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exams/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router(&fakeExams{}, &fakeModels{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exams", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Exam
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)
}

func TestAIEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		models     *fakeModels
		wantStatus int
	}{
		{"status ok", http.MethodGet, "/api/ai/status", &fakeModels{status: llm.ModelStatus{CurrentModel: "m1"}}, http.StatusOK},
		{"status unconfigured", http.MethodGet, "/api/ai/status", &fakeModels{err: core.ErrNotConfigured}, http.StatusServiceUnavailable},
		{"refresh ok", http.MethodPost, "/api/ai/models/refresh", &fakeModels{status: llm.ModelStatus{CurrentModel: "m2"}}, http.StatusOK},
		{"refresh unconfigured", http.MethodPost, "/api/ai/models/refresh", &fakeModels{err: core.ErrNotConfigured}, http.StatusServiceUnavailable},
		{"refresh failed", http.MethodPost, "/api/ai/models/refresh", &fakeModels{status: llm.ModelStatus{CurrentModel: "m1"}, err: context.DeadlineExceeded}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router(&fakeExams{}, tt.models).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.JSONEq(t, `{"error":"AI service not configured"}`, rec.Body.String())
			}
		})
	}
}
