package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core"
	"github.com/markdave123-py/Examina/internal/logging"
	"github.com/markdave123-py/Examina/internal/models"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

const appName = "Examina"

type SendgridNotifier struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	send       func(rest.Request) (*rest.Response, error)
	log        *zap.Logger
}

var _ core.Notifier = (*SendgridNotifier)(nil)

func NewSendgridNotifier(key, fromEmail string, log *zap.Logger) *SendgridNotifier {
	return &SendgridNotifier{
		key:        key,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
		send:       sendgrid.API,
		log:        logging.OrNop(log),
	}
}

func (n *SendgridNotifier) ExamReady(ctx context.Context, to string, exam *models.Exam) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(n.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(n.prepare(to, exam))

	res, err := n.send(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
	}
	n.log.Info("notify.sent", zap.String("exam_id", exam.ID), zap.Int("status", res.StatusCode))
	return nil
}

func (n *SendgridNotifier) prepare(to string, exam *models.Exam) *sgmail.SGMailV3 {
	subject, text, html := examReadyContent(exam)

	p := sgmail.NewPersonalization()
	p.Subject = n.subjPrefix + subject
	p.AddTos(sgmail.NewEmail("", to))

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", text),
		sgmail.NewContent("text/html", html),
	)
	return m
}
