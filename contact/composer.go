package contact

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

// NowTimeFunc stamps composed emails and can be replaced in tests
var NowTimeFunc = time.Now

// Email is a composed message ready for a Mailer
type Email struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Composer renders submissions into emails
type Composer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewComposer() (*Composer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/email.html")
	if err != nil {
		return nil, fmt.Errorf("parse html email template: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/email.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text email template: %w", err)
	}
	return &Composer{html: html, text: text}, nil
}

type emailData struct {
	Submission
	ReceivedAt string
}

// Compose builds the notification email for s. Replies go to the submitter.
func (c *Composer) Compose(s Submission, from string, to ...string) (Email, error) {
	data := emailData{Submission: s, ReceivedAt: NowTimeFunc().UTC().Format(time.RFC1123)}

	var html, text bytes.Buffer
	if err := c.html.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("render html email: %w", err)
	}
	if err := c.text.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("render text email: %w", err)
	}

	subject := "New contact request from " + s.Name
	if s.Service != "" {
		subject += " (" + s.Service + ")"
	}
	return Email{
		From:    from,
		To:      to,
		ReplyTo: s.Email,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
