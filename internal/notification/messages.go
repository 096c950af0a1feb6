package notification

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
)

const (
	testText = `Tower Notification Test {{ .Template.ID }} {{ link .URL }}`
	jobText  = `{{ .FriendlyName }} #{{ .Job.ID }} '{{ .Job.Name }}' {{ .Verb }}: ` +
		`{{ printf "%s/#/jobs/%s/%d" .URL (ternary "system" "playbook" (eq .Job.Type "system_job")) .Job.ID | link }}`
)

// MessageData is what message templates are rendered with.
type MessageData struct {
	Template     models.NotificationTemplate
	Job          models.UnifiedJob
	URL          string
	FriendlyName string
	Verb         string
}

// RenderMessage renders text with the sprig functions and link, which wraps
// a url in angle brackets the way slack shows it.
func RenderMessage(text string, data MessageData) (string, error) {
	link := func(u string) string { return u }
	if data.Template.Type == models.NotificationTypeSlack {
		link = func(u string) string { return "<" + u + ">" }
	}

	t, err := template.New("message").
		Funcs(sprig.TxtFuncMap()).
		Funcs(template.FuncMap{"link": link}).
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing message template: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering message template: %w", err)
	}
	return b.String(), nil
}

// DefaultTestMessage is what the service receives when the template is tested.
func DefaultTestMessage(tmpl models.NotificationTemplate, towerURL string) (Message, error) {
	if tmpl.Type == models.NotificationTypeWebhook {
		return Message{
			Headers: headersOf(tmpl),
			Body:    map[string]any{"body": fmt.Sprintf("Tower Notification Test %d", tmpl.ID)},
		}, nil
	}
	text, err := RenderMessage(testText, MessageData{Template: tmpl, URL: towerURL})
	return Message{Text: text}, err
}

// DefaultJobMessage is what the service receives when job finishes.
func DefaultJobMessage(tmpl models.NotificationTemplate, towerURL string, job models.UnifiedJob) (Message, error) {
	if tmpl.Type == models.NotificationTypeWebhook {
		return Message{Headers: headersOf(tmpl), Body: v2.NewJobNotification(job)}, nil
	}

	verb := string(job.Status)
	if job.Status == models.JobStatusSuccessful {
		verb = "succeeded"
	}
	text, err := RenderMessage(jobText, MessageData{
		Template:     tmpl,
		Job:          job,
		URL:          strings.TrimSuffix(towerURL, "/"),
		FriendlyName: v2.FriendlyName(job.Type),
		Verb:         verb,
	})
	return Message{Text: text}, err
}

func headersOf(tmpl models.NotificationTemplate) map[string]any {
	h, _ := tmpl.Configuration["headers"].(map[string]any)
	return h
}
