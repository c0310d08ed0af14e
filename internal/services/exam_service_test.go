package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/core/extraction_engine"
	"github.com/markdave123-py/Examina/internal/core/llm"
	"github.com/markdave123-py/Examina/internal/models"
)

type memDB struct {
	docs      map[string]models.Document
	exams     map[string]models.Exam
	questions map[string][]models.Question
}

func newMemDB() *memDB {
	return &memDB{docs: map[string]models.Document{}, exams: map[string]models.Exam{}, questions: map[string][]models.Question{}}
}

func (m *memDB) CreateDocument(_ context.Context, d *models.Document) error {
	m.docs[d.ID] = *d
	return nil
}

func (m *memDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &d, nil
}

func (m *memDB) UpdateDocumentStatus(_ context.Context, id, status string) error {
	d := m.docs[id]
	d.Status = status
	m.docs[id] = d
	return nil
}

func (m *memDB) CreateExam(_ context.Context, e *models.Exam) error {
	m.exams[e.ID] = *e
	return nil
}

func (m *memDB) GetExamByID(_ context.Context, id string) (*models.Exam, error) {
	e, ok := m.exams[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &e, nil
}

func (m *memDB) ListExamsByUser(_ context.Context, userID string) ([]models.Exam, error) {
	var out []models.Exam
	for _, e := range m.exams {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memDB) CompleteExam(_ context.Context, e *models.Exam, qs []models.Question) error {
	e.Status = models.StatusReady
	m.exams[e.ID] = *e
	m.questions[e.ID] = qs
	return nil
}

func (m *memDB) UpdateExamStatus(_ context.Context, id, status string) error {
	e := m.exams[id]
	e.Status = status
	m.exams[id] = e
	return nil
}

func (m *memDB) GetQuestionsByExam(_ context.Context, examID string) ([]models.Question, error) {
	return m.questions[examID], nil
}

func (m *memDB) Close() error { return nil }

type memStorage struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (s *memStorage) UploadFile(_ context.Context, bucket, key string, data io.Reader, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.bucket, s.key, s.contentType, s.body = bucket, key, contentType, b
	return "https://" + bucket + ".s3.us-east-2.amazonaws.com/" + key, nil
}

func (s *memStorage) DeleteFile(context.Context, string, string) error { return nil }

func (s *memStorage) GetFile(context.Context, string, string) ([]byte, error) { return s.body, nil }

type queue struct {
	ids []string
	err error
}

func (q *queue) Enqueue(_ context.Context, id string) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

type fixedExtractor struct {
	got extraction_engine.Document
}

func (f *fixedExtractor) Extract(_ context.Context, doc extraction_engine.Document) (*extraction_engine.Result, error) {
	f.got = doc
	return &extraction_engine.Result{Title: "T", TitleSource: "ai", Questions: []models.Question{{ID: "q1", Question: "Q?"}}}, nil
}

type fakeModels struct {
	configured bool
	refreshErr error
	refreshes  int
}

func (f *fakeModels) Configured() bool { return f.configured }

func (f *fakeModels) Status() llm.ModelStatus { return llm.ModelStatus{CurrentModel: "m1"} }

func (f *fakeModels) ForceRefresh(context.Context) (string, error) {
	f.refreshes++
	return "m1", f.refreshErr
}

func newTestService(db *memDB, st *memStorage, q *queue, ex *fixedExtractor, mm *fakeModels) *ExamService {
	return NewExamService(db, st, q, ex, mm, "examina-docs", nil)
}

func TestNormalizeExamType(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "quiz", false},
		{"Quiz", "quiz", false},
		{" pastpaper ", "pastpaper", false},
		{"final", "final", false},
		{"midterm", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeExamType(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidExamType, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestCreateFromUpload(t *testing.T) {
	db, st, q := newMemDB(), &memStorage{}, &queue{}
	svc := newTestService(db, st, q, &fixedExtractor{}, &fakeModels{configured: true})

	exam, err := svc.CreateFromUpload(context.Background(), Upload{
		UserID:   "u1",
		Email:    "ada@example.com",
		FileName: "biology.pdf",
		Body:     strings.NewReader("%PDF"),
		ExamType: "final",
		Title:    " Midterm prep ",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusProcessing, exam.Status)
	assert.Equal(t, "final", exam.ExamType)
	assert.Equal(t, "Midterm prep", exam.Title)
	assert.Equal(t, "ada@example.com", exam.NotifyEmail)
	assert.Equal(t, []string{exam.ID}, q.ids)

	doc, err := db.GetDocumentByID(context.Background(), exam.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, doc.Status)
	assert.Equal(t, "application/octet-stream", doc.ContentType)
	assert.Equal(t, "examina-docs", st.bucket)
	assert.Equal(t, "users/u1/documents/"+doc.ID+"/biology.pdf", st.key)
	assert.Equal(t, []byte("%PDF"), st.body)
	assert.True(t, strings.HasSuffix(doc.StorageURL, st.key))
}

func TestCreateFromUploadRejects(t *testing.T) {
	tests := []struct {
		name    string
		models  *fakeModels
		storage *memStorage
		up      Upload
		wantErr error
	}{
		{
			name:    "ai not configured",
			models:  &fakeModels{},
			storage: &memStorage{},
			up:      Upload{UserID: "u1", FileName: "a.pdf", Body: bytes.NewReader(nil)},
			wantErr: core.ErrNotConfigured,
		},
		{
			name:    "bad exam type",
			models:  &fakeModels{configured: true},
			storage: &memStorage{},
			up:      Upload{UserID: "u1", FileName: "a.pdf", Body: bytes.NewReader(nil), ExamType: "oral"},
			wantErr: ErrInvalidExamType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, q := newMemDB(), &queue{}
			svc := newTestService(db, tt.storage, q, &fixedExtractor{}, tt.models)
			_, err := svc.CreateFromUpload(context.Background(), tt.up)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, db.docs)
			assert.Empty(t, q.ids)
		})
	}
}

func TestCreateFromUploadQueueFailureMarksExamFailed(t *testing.T) {
	db := newMemDB()
	q := &queue{err: context.DeadlineExceeded}
	svc := newTestService(db, &memStorage{}, q, &fixedExtractor{}, &fakeModels{configured: true})

	_, err := svc.CreateFromUpload(context.Background(), Upload{UserID: "u1", FileName: "a.pdf", Body: strings.NewReader("x")})
	require.Error(t, err)
	require.Len(t, db.exams, 1)
	for _, e := range db.exams {
		assert.Equal(t, models.StatusFailed, e.Status)
	}
}

func TestExtractText(t *testing.T) {
	ex := &fixedExtractor{}
	svc := newTestService(newMemDB(), &memStorage{}, &queue{}, ex, &fakeModels{configured: true})

	res, err := svc.ExtractText(context.Background(), ExtractRequest{Text: "Cells are small.", FileName: "bio.txt", Title: "Bio"})
	require.NoError(t, err)
	assert.Equal(t, "T", res.Title)
	assert.Equal(t, "quiz", ex.got.ExamType)
	assert.Equal(t, "Bio", ex.got.Title)

	_, err = svc.ExtractText(context.Background(), ExtractRequest{Text: "  "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestGetChecksOwner(t *testing.T) {
	db := newMemDB()
	id := uuid.NewString()
	require.NoError(t, db.CreateExam(context.Background(), &models.Exam{ID: id, UserID: "u1", Status: models.StatusReady}))
	db.questions[id] = []models.Question{{ID: "q1"}, {ID: "q2"}}
	svc := newTestService(db, &memStorage{}, &queue{}, &fixedExtractor{}, &fakeModels{configured: true})

	exam, err := svc.Get(context.Background(), "u1", id)
	require.NoError(t, err)
	assert.Len(t, exam.Questions, 2)

	_, err = svc.Get(context.Background(), "u2", id)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Get(context.Background(), "u1", "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListNeverNil(t *testing.T) {
	svc := newTestService(newMemDB(), &memStorage{}, &queue{}, &fixedExtractor{}, &fakeModels{configured: true})
	exams, err := svc.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, exams)
	assert.Empty(t, exams)
}

func TestModelEndpoints(t *testing.T) {
	mm := &fakeModels{}
	svc := newTestService(newMemDB(), &memStorage{}, &queue{}, &fixedExtractor{}, mm)
	_, err := svc.AIStatus()
	assert.ErrorIs(t, err, core.ErrNotConfigured)
	_, err = svc.RefreshModels(context.Background())
	assert.ErrorIs(t, err, core.ErrNotConfigured)
	assert.Zero(t, mm.refreshes)

	mm.configured = true
	st, err := svc.RefreshModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m1", st.CurrentModel)
	assert.Equal(t, 1, mm.refreshes)

	mm.refreshErr = errors.New("no model available")
	_, err = svc.RefreshModels(context.Background())
	assert.Error(t, err)
}
