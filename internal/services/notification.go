package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// NotificationService delivers notifications for the fake controller and
// records every attempt. Only webhook delivery is simulated; the other
// types are recorded as failed.
type NotificationService struct {
	controller    *ControllerService
	httpClient    *http.Client
	mu            sync.Mutex
	nextID        int
	notifications []models.Notification
}

func NewNotificationService(controller *ControllerService) *NotificationService {
	return &NotificationService{
		controller: controller,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Test sends the template's test message.
func (s *NotificationService) Test(ctx context.Context, templateID int) (*models.Notification, error) {
	tmpl, err := s.template(ctx, templateID)
	if err != nil {
		return nil, err
	}
	subject := fmt.Sprintf("Tower Notification Test %d", templateID)
	return s.send(ctx, tmpl, subject, map[string]any{"body": subject}), nil
}

// JobFinished notifies the success or error templates associated with the
// job's template. It is registered with TaskManager.OnJobFinished.
func (s *NotificationService) JobFinished(job models.UnifiedJob, template *models.Resource) {
	if template == nil {
		return
	}

	event := "success"
	if job.Status != models.JobStatusSuccessful {
		event = "error"
	}

	ctx := context.Background()
	current, err := s.controller.Get(ctx, endpointOf(template.Type), template.ID)
	if err != nil {
		return
	}

	body := v2.NewJobNotification(job)
	subject := fmt.Sprintf("%s #%d '%s' %s", v2.FriendlyName(job.Type), job.ID, job.Name, statusVerb(job.Status))
	for _, id := range IntList(current.Fields["notification_templates_"+event]) {
		tmpl, err := s.template(ctx, id)
		if err != nil {
			zap.S().Named("notification_service").Warnw("notification template vanished", "id", id)
			continue
		}
		s.send(ctx, tmpl, subject, body)
	}
}

// List returns the notifications of one template, oldest first.
func (s *NotificationService) List(ctx context.Context, templateID int) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Notification{}
	for _, n := range s.notifications {
		if n.NotificationTemplate == templateID {
			out = append(out, n)
		}
	}
	return out
}

func (s *NotificationService) template(ctx context.Context, id int) (models.NotificationTemplate, error) {
	r, err := s.controller.Get(ctx, "notification_templates", id)
	if err != nil {
		return models.NotificationTemplate{}, err
	}
	typ, _ := r.Fields["notification_type"].(string)
	cfg, _ := r.Fields["notification_configuration"].(map[string]any)
	org, _ := r.Fields["organization"].(float64)
	return models.NotificationTemplate{
		ID:            r.ID,
		Name:          r.Name,
		Organization:  int(org),
		Type:          models.NotificationType(typ),
		Configuration: cfg,
	}, nil
}

func (s *NotificationService) send(ctx context.Context, tmpl models.NotificationTemplate, subject string, body map[string]any) *models.Notification {
	n := models.Notification{
		NotificationTemplate: tmpl.ID,
		Type:                 tmpl.Type,
		Subject:              subject,
		Status:               "successful",
		NotificationsSent:    1,
	}

	var err error
	switch tmpl.Type {
	case models.NotificationTypeWebhook:
		err = s.postWebhook(ctx, tmpl, body)
	default:
		err = srvErrors.NewUnsupportedNotificationError(string(tmpl.Type))
	}
	if err != nil {
		n.Status = "failed"
		n.Error = err.Error()
		n.NotificationsSent = 0
	}

	s.mu.Lock()
	s.nextID++
	n.ID = s.nextID
	s.notifications = append(s.notifications, n)
	s.mu.Unlock()

	zap.S().Named("notification_service").Infow("notification sent", "template", tmpl.ID, "type", tmpl.Type, "status", n.Status)

	return &n
}

func (s *NotificationService) postWebhook(ctx context.Context, tmpl models.NotificationTemplate, body map[string]any) error {
	url, _ := tmpl.Configuration["url"].(string)
	if url == "" {
		return fmt.Errorf("webhook template %d has no url", tmpl.ID)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := tmpl.Configuration["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprint(v))
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func statusVerb(s models.JobStatus) string {
	if s == models.JobStatusSuccessful {
		return "succeeded"
	}
	return string(s)
}

func endpointOf(resourceType string) string {
	for endpoint, typ := range resourceTypes {
		if typ == resourceType {
			return endpoint
		}
	}
	return ""
}
