package notify

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/logging"
	"github.com/markdave123-py/Examina/internal/models"
)

func examReadyContent(exam *models.Exam) (subject, text, htmlBody string) {
	title := exam.Title
	if title == "" {
		title = "Your exam"
	}
	subject = fmt.Sprintf("%q is ready", title)

	note := ""
	if exam.UsedTemplate {
		note = " We could not read enough from your document, so these are general practice questions."
	}
	text = fmt.Sprintf("Your %s %q is ready with %d questions.%s", exam.ExamType, title, exam.QuestionCount, note)
	htmlBody = fmt.Sprintf("<p>Your %s <strong>%s</strong> is ready with %d questions.%s</p>",
		html.EscapeString(exam.ExamType), html.EscapeString(title), exam.QuestionCount, html.EscapeString(note))
	return subject, text, htmlBody
}

// LogNotifier writes notifications to the log. It stands in for email when no
// SendGrid key is configured.
type LogNotifier struct {
	log *zap.Logger
}

var _ core.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: logging.OrNop(log)}
}

func (n *LogNotifier) ExamReady(_ context.Context, to string, exam *models.Exam) error {
	subject, _, _ := examReadyContent(exam)
	n.log.Info("notify.exam_ready",
		zap.String("to", to),
		zap.String("exam_id", exam.ID),
		zap.String("subject", subject))
	return nil
}
