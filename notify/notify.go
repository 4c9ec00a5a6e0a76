// Package notify delivers alert emails to the city administrator.
package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/antomihe/SustainableCity/config"
	"github.com/antomihe/SustainableCity/logging"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var log = logging.For("notify")

type Notifier interface {
	Notify(to, subject, body string) error
}

// New picks SendGrid when an API key is configured and logs messages otherwise.
func New(cfg config.MailConfig) Notifier {
	if cfg.SendGridAPIKey == "" {
		log.Info("no sendgrid api key configured, alerts will only be logged")
		return LogNotifier{}
	}
	return NewSendGrid(cfg, sendgrid.NewSendClient(cfg.SendGridAPIKey))
}

type sender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type SendGrid struct {
	client    sender
	fromEmail string
	fromName  string
	sandbox   bool
}

func NewSendGrid(cfg config.MailConfig, client sender) *SendGrid {
	return &SendGrid{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		sandbox:   cfg.Sandbox,
	}
}

func (s *SendGrid) Notify(to, subject, body string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail("", to)
	msg := mail.NewSingleEmail(from, subject, recipient, body, htmlBody(subject, body))
	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}

	resp, err := s.client.Send(msg)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	log.WithField("to", to).Debugf("sent %q", subject)
	return nil
}

func htmlBody(subject, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><body><h2>")
	b.WriteString(html.EscapeString(subject))
	b.WriteString("</h2>")
	for _, line := range strings.Split(body, "\n") {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// LogNotifier writes alerts to the log instead of sending them.
type LogNotifier struct{}

func (LogNotifier) Notify(to, subject, body string) error {
	log.WithField("to", to).Infof("%s: %s", subject, body)
	return nil
}
