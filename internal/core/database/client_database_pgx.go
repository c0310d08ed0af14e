package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/config"
	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/logging"
	"github.com/markdave123-py/Examina/internal/models"
)

type DatabaseClient struct {
	db  *sql.DB
	log *zap.Logger
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config, log *zap.Logger) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	log = logging.OrNop(log)

	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	log.Info("db.connected", zap.Bool("tls_verify", cfg.SslCertPath != ""))
	return &DatabaseClient{db: db, log: log}, nil
}

// buildDSN appends CA verification to the URL when a root cert is configured.
func buildDSN(databaseURL, sslCertPath string) (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is empty")
	}
	if sslCertPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(sslCertPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", sslCertPath, err)
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", sslCertPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, file_name, storage_url, source_type, content_type, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), COALESCE($9, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.UserID, doc.FileName, doc.StorageURL, doc.SourceType, doc.ContentType, doc.Status, nullTime(doc.CreatedAt), nullTime(doc.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, user_id, file_name, storage_url, source_type, content_type, status, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.UserID, &d.FileName, &d.StorageURL, &d.SourceType, &d.ContentType, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	return c.execOne(ctx, "document", id, q, id, status)
}

// Exams

const examColumns = `id, user_id, COALESCE(document_id::text, ''), title, exam_type, status, question_count, used_template, notify_email, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (models.Exam, error) {
	var e models.Exam
	err := row.Scan(&e.ID, &e.UserID, &e.DocumentID, &e.Title, &e.ExamType, &e.Status,
		&e.QuestionCount, &e.UsedTemplate, &e.NotifyEmail, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (c *DatabaseClient) CreateExam(ctx context.Context, exam *models.Exam) error {
	if exam == nil {
		return errors.New("nil exam")
	}
	const q = `
		INSERT INTO exams
			(id, user_id, document_id, title, exam_type, status, question_count, used_template, notify_email, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()), COALESCE($11, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		exam.ID, exam.UserID, nullString(exam.DocumentID), exam.Title, exam.ExamType, exam.Status,
		exam.QuestionCount, exam.UsedTemplate, exam.NotifyEmail, nullTime(exam.CreatedAt), nullTime(exam.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetExamByID(ctx context.Context, id string) (*models.Exam, error) {
	q := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`
	e, err := scanExam(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exam %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *DatabaseClient) ListExamsByUser(ctx context.Context, userID string) ([]models.Exam, error) {
	q := `SELECT ` + examColumns + ` FROM exams WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateExamStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE exams
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	return c.execOne(ctx, "exam", id, q, id, status)
}

// CompleteExam stores the extracted questions and marks the exam ready in one
// transaction. Questions from an earlier run are replaced.
func (c *DatabaseClient) CompleteExam(ctx context.Context, exam *models.Exam, questions []models.Question) error {
	if exam == nil {
		return errors.New("nil exam")
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const upd = `
		UPDATE exams
		SET title = $2, status = $3, question_count = $4, used_template = $5, updated_at = now()
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, upd, exam.ID, exam.Title, models.StatusReady, len(questions), exam.UsedTemplate)
	if err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("exam %s: %w", exam.ID, core.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM exam_questions WHERE exam_id = $1`, exam.ID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	const ins = `
		INSERT INTO exam_questions
			(id, exam_id, position, question, type, options, correct_answer, correct_index, points, section, chunk)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	stmt, err := tx.PrepareContext(ctx, ins)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range questions {
		q := &questions[i]
		opts, err := optionsJSON(q.Options)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			q.ID, exam.ID, q.Position, q.Question, string(q.Type), opts, q.CorrectAnswer, q.CorrectIndex, q.Points, q.Section, q.Chunk,
		); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
		q.ExamID = exam.ID
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	exam.Status = models.StatusReady
	exam.QuestionCount = len(questions)
	c.log.Debug("db.exam.completed", zap.String("exam_id", exam.ID), zap.Int("questions", len(questions)))
	return nil
}

func (c *DatabaseClient) GetQuestionsByExam(ctx context.Context, examID string) ([]models.Question, error) {
	const q = `
		SELECT id, exam_id, position, question, type, options, correct_answer, correct_index, points, section, chunk
		FROM exam_questions
		WHERE exam_id = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var (
			qu   models.Question
			typ  string
			opts []byte
		)
		if err := rows.Scan(
			&qu.ID, &qu.ExamID, &qu.Position, &qu.Question, &typ, &opts, &qu.CorrectAnswer, &qu.CorrectIndex, &qu.Points, &qu.Section, &qu.Chunk,
		); err != nil {
			return nil, err
		}
		qu.Type = models.QuestionType(typ)
		if qu.Options, err = parseOptions(opts); err != nil {
			return nil, fmt.Errorf("question %s options: %w", qu.ID, err)
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) execOne(ctx context.Context, kind, id, q string, args ...any) error {
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

func optionsJSON(opts []string) (string, error) {
	if opts == nil {
		opts = []string{}
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}

func parseOptions(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, err
	}
	if len(opts) == 0 {
		return nil, nil
	}
	return opts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
