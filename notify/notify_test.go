package notify

import (
	"errors"
	"testing"

	"github.com/antomihe/SustainableCity/config"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) Send(email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func mailConfig() config.MailConfig {
	return config.MailConfig{FromEmail: "alerts@city.test", FromName: "City", Sandbox: true}
}

func TestSendGridNotify(t *testing.T) {
	fs := &fakeSender{status: 202}
	n := NewSendGrid(mailConfig(), fs)

	require.NoError(t, n.Notify("admin@city.test", "Container full", "Calle <Sol> is at 90%\nplease empty"))
	require.Len(t, fs.sent, 1)
	msg := fs.sent[0]
	assert.Equal(t, "Container full", msg.Subject)
	assert.Equal(t, "alerts@city.test", msg.From.Address)
	require.Len(t, msg.Personalizations, 1)
	assert.Equal(t, "admin@city.test", msg.Personalizations[0].To[0].Address)
	require.NotNil(t, msg.MailSettings)
	assert.True(t, *msg.MailSettings.SandboxMode.Enable)

	require.Len(t, msg.Content, 2)
	assert.Equal(t, "Calle <Sol> is at 90%\nplease empty", msg.Content[0].Value)
	assert.Contains(t, msg.Content[1].Value, "Calle &lt;Sol&gt; is at 90%")
}

func TestSendGridNotifyFailures(t *testing.T) {
	n := NewSendGrid(mailConfig(), &fakeSender{status: 401})
	assert.ErrorContains(t, n.Notify("a@b.c", "s", "b"), "status 401")

	n = NewSendGrid(mailConfig(), &fakeSender{err: errors.New("dial tcp")})
	assert.ErrorContains(t, n.Notify("a@b.c", "s", "b"), "dial tcp")
}

func TestNewWithoutKeyLogs(t *testing.T) {
	n := New(config.MailConfig{})
	_, ok := n.(LogNotifier)
	assert.True(t, ok)
	assert.NoError(t, n.Notify("a@b.c", "s", "b"))

	_, ok = New(config.MailConfig{SendGridAPIKey: "SG.test"}).(*SendGrid)
	assert.True(t, ok)
}
