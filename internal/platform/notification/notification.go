// Package notification delivers analysis completion notices to patients by
// email. Production dispatch rides a Redis queue drained by a background
// worker; an in-process dispatcher backs development and tests.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "analysis-completed",
			Subject: "Your {{analysis_name}} results are ready",
			Body:    "Dear {{patient_name}}, your {{analysis_name}} analysis has been completed on {{completed_at}}. Please log in to view the results.",
		},
		{
			ID:      "account-created",
			Subject: "Your laboratory portal account",
			Body:    "Dear {{patient_name}}, a portal account has been created for you. Sign in with {{email}} and the password provided by the laboratory staff.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Mailer renders templates and hands the result to an EmailSender.
type Mailer struct {
	sender    EmailSender
	templates *TemplateEngine
	from      string
}

// NewMailer constructs a Mailer.
func NewMailer(sender EmailSender, templates *TemplateEngine, from string) *Mailer {
	return &Mailer{
		sender:    sender,
		templates: templates,
		from:      from,
	}
}

// SendFromTemplate renders a template and sends the resulting email.
func (m *Mailer) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) error {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	if err := m.sender.SendEmail(ctx, recipient, subject, body); err != nil {
		return fmt.Errorf("send %s to %s: %w", templateID, recipient, err)
	}
	return nil
}

// LogSender writes outgoing mail to the log instead of a transport. It is
// the default sender when no mail relay is configured.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendEmail logs the message and reports success.
func (s *LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.logger.Info().Str("to", to).Str("subject", subject).Msg("email delivered to log")
	return nil
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
