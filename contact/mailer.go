package contact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-portal/internal/config"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog/log"
)

// Mailer delivers a composed email
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// NewMailer picks the Mailer named by the mail provider setting
func NewMailer(cfg config.MailConfig) (Mailer, error) {
	switch cfg.GetMailProvider() {
	case config.MailProviderMailgun:
		return NewMailgunMailer(cfg.GetMailgunDomain(), cfg.GetMailgunKey())
	case config.MailProviderSMTP:
		return NewSMTPMailer(cfg.GetSmtpHost(), cfg.GetSmtpPort(), cfg.GetSmtpAccount(), cfg.GetSmtpPassword())
	default:
		return nil, fmt.Errorf("[NewMailer] unknown mail provider %q", cfg.GetMailProvider())
	}
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends through an authenticated SMTP relay
type SMTPMailer struct {
	host     string
	port     string
	account  string
	password string
	sendMail sendMailFunc
}

var _ Mailer = (*SMTPMailer)(nil)

func NewSMTPMailer(host, port, account, password string) (*SMTPMailer, error) {
	if host == "" || port == "" {
		return nil, errors.New("[NewSMTPMailer] host and port are required")
	}
	if account == "" || password == "" {
		return nil, errors.New("[NewSMTPMailer] account and password are required")
	}
	return &SMTPMailer{host: host, port: port, account: account, password: password, sendMail: smtp.SendMail}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	from := email.From
	if from == "" {
		from = m.account
	}
	msg, err := buildMIME(from, email)
	if err != nil {
		return err
	}

	auth := smtp.PlainAuth("", m.account, m.password, m.host)
	done := make(chan error, 1)
	go func() {
		done <- m.sendMail(net.JoinHostPort(m.host, m.port), auth, from, email.To, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		log.Info().Strs("to", email.To).Msg("contact email sent via smtp")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// buildMIME writes a multipart/alternative message with text and html parts
func buildMIME(from string, email Email) ([]byte, error) {
	var buf bytes.Buffer
	body := multipart.NewWriter(&buf)

	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, stripNewlines(v))
	}
	header("From", from)
	header("To", strings.Join(email.To, ", "))
	if email.ReplyTo != "" {
		header("Reply-To", email.ReplyTo)
	}
	header("Subject", mime.QEncoding.Encode("utf-8", stripNewlines(email.Subject)))
	header("Date", NowTimeFunc().Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.NewString()+"@portal>")
	header("MIME-Version", "1.0")
	header("Content-Type", "multipart/alternative; boundary="+body.Boundary())
	buf.WriteString("\r\n")

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", email.Text},
		{"text/html; charset=utf-8", email.HTML},
	} {
		if part.content == "" {
			continue
		}
		w, err := body.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := body.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", " ").Replace(s)
}

// MailgunMailer sends through the Mailgun HTTP API
type MailgunMailer struct {
	mg *mailgun.MailgunImpl
}

var _ Mailer = (*MailgunMailer)(nil)

func NewMailgunMailer(domain, key string) (*MailgunMailer, error) {
	if domain == "" || key == "" {
		return nil, errors.New("[NewMailgunMailer] domain and api key are required")
	}
	return &MailgunMailer{mg: mailgun.NewMailgun(domain, key)}, nil
}

func (m *MailgunMailer) Send(ctx context.Context, email Email) error {
	message := m.mg.NewMessage(email.From, email.Subject, email.Text)
	for _, to := range email.To {
		if err := message.AddRecipient(to); err != nil {
			return fmt.Errorf("mailgun recipient: %w", err)
		}
	}
	if email.HTML != "" {
		message.SetHtml(email.HTML)
	}
	if email.ReplyTo != "" {
		message.SetReplyTo(email.ReplyTo)
	}

	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	log.Info().Str("id", id).Msg("contact email queued via mailgun")
	return nil
}
