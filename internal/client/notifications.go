package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
)

// CreateNotificationTemplate creates a template of type t in organization.
func (c *Client) CreateNotificationTemplate(ctx context.Context, name string, organization int, t models.NotificationType, configuration map[string]any) (*models.NotificationTemplate, error) {
	body := v2.NotificationTemplate{
		Name:                      name,
		Organization:              organization,
		NotificationType:          string(t),
		NotificationConfiguration: configuration,
	}
	var out v2.NotificationTemplate
	if err := c.do(ctx, http.MethodPost, "/notification_templates/", nil, body, &out); err != nil {
		return nil, err
	}
	m := out.ToModel()
	return &m, nil
}

func (c *Client) NotificationTemplate(ctx context.Context, id int) (*models.NotificationTemplate, error) {
	var out v2.NotificationTemplate
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/notification_templates/%d/", id), nil, nil, &out); err != nil {
		return nil, err
	}
	m := out.ToModel()
	return &m, nil
}

// TestNotification sends the template's test message and returns the id of the notification.
func (c *Client) TestNotification(ctx context.Context, id int) (int, error) {
	var resp struct {
		Notification int `json:"notification"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/notification_templates/%d/test/", id), nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Notification, nil
}

// Notifications lists the delivery attempts of a template.
func (c *Client) Notifications(ctx context.Context, id int) ([]models.Notification, error) {
	out := []models.Notification{}
	err := eachPage(ctx, c, fmt.Sprintf("/notification_templates/%d/notifications/", id), nil, func(raw json.RawMessage) error {
		var n v2.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return err
		}
		out = append(out, n.ToModel())
		return nil
	})
	return out, err
}
