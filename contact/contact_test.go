package contact

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/jrsteele09/go-portal/internal/config"
	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sent []Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, email Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func validSubmission() Submission {
	return Submission{
		Name:    "Ada Lovelace",
		Email:   "Ada@Example.com ",
		Phone:   "(650) 253-0000",
		Company: "Analytical Engines",
		Service: "Web Development",
		Budget:  "$5k-$10k",
		Message: "We need a new marketing site <b>soon</b>.",
	}
}

func fixedNow(t *testing.T) {
	t.Helper()
	NowTimeFunc = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { NowTimeFunc = time.Now })
}

func TestSubmitDelivers(t *testing.T) {
	fixedNow(t)
	mailer := &fakeMailer{}
	m := metrics.NewNoop()
	svc, err := NewService(mailer, "site@example.com", "sales@example.com", WithMetrics(m))
	require.NoError(t, err)

	require.NoError(t, svc.Submit(context.Background(), validSubmission()))
	require.Len(t, mailer.sent, 1)

	email := mailer.sent[0]
	require.Equal(t, []string{"sales@example.com"}, email.To)
	require.Equal(t, "site@example.com", email.From)
	require.Equal(t, "ada@example.com", email.ReplyTo)
	require.Equal(t, "New contact request from Ada Lovelace (Web Development)", email.Subject)
	require.Contains(t, email.Text, "Phone:   +16502530000")
	require.Contains(t, email.HTML, "&lt;b&gt;soon&lt;/b&gt;")
	require.Contains(t, email.HTML, "Sun, 01 Jun 2025 09:30:00 UTC")
	require.Equal(t, float64(1), testutil.ToFloat64(m.ContactSubmissions.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestSubmitInvalid(t *testing.T) {
	mailer := &fakeMailer{}
	svc, err := NewService(mailer, "", "sales@example.com")
	require.NoError(t, err)

	s := validSubmission()
	s.Email = "not-an-email"
	s.Message = "short"
	s.Phone = "12"

	err = svc.Submit(context.Background(), s)
	require.ErrorIs(t, err, ErrInvalidSubmission)
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	require.Contains(t, verrs, "email")
	require.Contains(t, verrs, "message")
	require.Contains(t, verrs, "phone")
	require.Empty(t, mailer.sent)
}

func TestSubmitDeliveryFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("relay refused")}
	svc, err := NewService(mailer, "", "sales@example.com")
	require.NoError(t, err)

	err = svc.Submit(context.Background(), validSubmission())
	require.ErrorIs(t, err, ErrDelivery)
	require.Contains(t, err.Error(), "relay refused")
}

func TestNewServiceRequiresArguments(t *testing.T) {
	_, err := NewService(nil, "", "sales@example.com")
	require.Error(t, err)
	_, err = NewService(&fakeMailer{}, "", "")
	require.Error(t, err)
}

func TestSMTPMailer(t *testing.T) {
	fixedNow(t)
	mailer, err := NewSMTPMailer("smtp.example.com", "587", "bot@example.com", "secret")
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	mailer.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err = mailer.Send(context.Background(), Email{
		To:      []string{"sales@example.com"},
		ReplyTo: "ada@example.com",
		Subject: "Hello\r\nBcc: victim@example.com",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)
	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.Equal(t, "bot@example.com", gotFrom)
	require.Equal(t, []string{"sales@example.com"}, gotTo)

	msg := string(gotMsg)
	require.Contains(t, msg, "Subject: Hello Bcc: victim@example.com\r\n")
	require.NotContains(t, msg, "\r\nBcc:")
	require.Contains(t, msg, "Reply-To: ada@example.com\r\n")
	require.Contains(t, msg, "multipart/alternative")
	require.Contains(t, msg, "plain body")
	require.Contains(t, msg, "<p>html body</p>")
	require.Less(t, strings.Index(msg, "plain body"), strings.Index(msg, "<p>html body</p>"))
}

func TestSMTPMailerHonoursContext(t *testing.T) {
	mailer, err := NewSMTPMailer("smtp.example.com", "587", "bot@example.com", "secret")
	require.NoError(t, err)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	mailer.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = mailer.Send(ctx, Email{To: []string{"a@example.com"}, Text: "x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type mailEnv struct {
	provider string
}

func (e mailEnv) GetMailProvider() string { return e.provider }
func (mailEnv) GetMailFrom() string       { return "site@example.com" }
func (mailEnv) GetSmtpHost() string       { return "smtp.example.com" }
func (mailEnv) GetSmtpPort() string       { return "587" }
func (mailEnv) GetSmtpPassword() string   { return "secret" }
func (mailEnv) GetSmtpAccount() string    { return "bot@example.com" }
func (mailEnv) GetSmtpRecipient() string  { return "sales@example.com" }
func (mailEnv) GetMailgunDomain() string  { return "mg.example.com" }
func (mailEnv) GetMailgunKey() string     { return "key-123" }

var _ config.MailConfig = mailEnv{}

func TestNewMailer(t *testing.T) {
	m, err := NewMailer(mailEnv{provider: config.MailProviderSMTP})
	require.NoError(t, err)
	require.IsType(t, &SMTPMailer{}, m)

	m, err = NewMailer(mailEnv{provider: config.MailProviderMailgun})
	require.NoError(t, err)
	require.IsType(t, &MailgunMailer{}, m)

	_, err = NewMailer(mailEnv{provider: "pigeon"})
	require.Error(t, err)

	_, err = NewMailgunMailer("", "key")
	require.Error(t, err)
}
