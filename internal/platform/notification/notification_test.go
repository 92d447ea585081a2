package notification

import (
	"context"
	"strings"
	"testing"
)

func TestTemplateEngine_RenderAnalysisCompleted(t *testing.T) {
	engine := NewTemplateEngine()

	subject, body, err := engine.Render("analysis-completed", map[string]string{
		"patient_name":  "Anna Petrova",
		"analysis_name": "Complete Blood Count",
		"completed_at":  "2026-08-29",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	if !strings.Contains(subject, "Complete Blood Count") {
		t.Errorf("subject missing analysis name: %q", subject)
	}
	if !strings.Contains(body, "Anna Petrova") {
		t.Errorf("body missing patient name: %q", body)
	}
	if !strings.Contains(body, "2026-08-29") {
		t.Errorf("body missing completion date: %q", body)
	}
	if strings.Contains(body, "{{") {
		t.Errorf("body has unrendered placeholders: %q", body)
	}
}

func TestTemplateEngine_MissingDataLeftAsIs(t *testing.T) {
	engine := NewTemplateEngine()

	_, body, err := engine.Render("analysis-completed", map[string]string{
		"patient_name": "Anna",
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(body, "{{analysis_name}}") {
		t.Errorf("expected unknown placeholder left as-is, got %q", body)
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	engine := NewTemplateEngine()
	if _, _, err := engine.Render("no-such-template", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestTemplateEngine_RegisterTemplate(t *testing.T) {
	engine := NewTemplateEngine()
	engine.RegisterTemplate(Template{
		ID:      "custom",
		Subject: "Hello {{name}}",
		Body:    "Body for {{name}}",
	})

	subject, _, err := engine.Render("custom", map[string]string{"name": "Ivan"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if subject != "Hello Ivan" {
		t.Errorf("unexpected subject: %q", subject)
	}
}

func TestMailer_SendFromTemplate(t *testing.T) {
	sender := &MockEmailSender{}
	mailer := NewMailer(sender, NewTemplateEngine(), "no-reply@medlab.local")

	err := mailer.SendFromTemplate(context.Background(), "analysis-completed", map[string]string{
		"patient_name":  "Anna",
		"analysis_name": "Lipid Panel",
		"completed_at":  "2026-08-29",
	}, "anna@example.com")
	if err != nil {
		t.Fatalf("SendFromTemplate() error: %v", err)
	}

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email, got %d", len(calls))
	}
	if calls[0].To != "anna@example.com" {
		t.Errorf("unexpected recipient: %s", calls[0].To)
	}
	if !strings.Contains(calls[0].Body, "Lipid Panel") {
		t.Errorf("body missing analysis name: %q", calls[0].Body)
	}
}

func TestMailer_SenderFailure(t *testing.T) {
	sender := &MockEmailSender{ShouldFail: true, FailError: "smtp down"}
	mailer := NewMailer(sender, NewTemplateEngine(), "no-reply@medlab.local")

	err := mailer.SendFromTemplate(context.Background(), "analysis-completed", nil, "a@b.test")
	if err == nil {
		t.Error("expected error from failing sender")
	}
}
