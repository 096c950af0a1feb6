package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tower-qa/tower-qa/internal/models"
)

// Create posts fields to a collection such as "projects" or "job_templates".
func (c *Client) Create(ctx context.Context, endpoint string, fields map[string]any) (*models.Resource, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodPost, "/"+endpoint+"/", nil, fields, &raw); err != nil {
		return nil, err
	}
	return toResource(raw), nil
}

func (c *Client) Get(ctx context.Context, endpoint string, id int) (*models.Resource, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/%d/", endpoint, id), nil, nil, &raw); err != nil {
		return nil, err
	}
	return toResource(raw), nil
}

// Update patches an object.
func (c *Client) Update(ctx context.Context, endpoint string, id int, fields map[string]any) (*models.Resource, error) {
	var raw map[string]any
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/%s/%d/", endpoint, id), nil, fields, &raw); err != nil {
		return nil, err
	}
	return toResource(raw), nil
}

func (c *Client) Delete(ctx context.Context, endpoint string, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/%s/%d/", endpoint, id), nil, nil, nil)
}

// List returns every object of a collection matching query.
func (c *Client) List(ctx context.Context, endpoint string, query url.Values) ([]models.Resource, error) {
	out := []models.Resource{}
	err := eachPage(ctx, c, "/"+endpoint+"/", query, func(raw json.RawMessage) error {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return err
		}
		out = append(out, *toResource(fields))
		return nil
	})
	return out, err
}

// Associate attaches a notification template to one of a template's
// notification events: started, success or error.
func (c *Client) Associate(ctx context.Context, endpoint string, id int, event string, notificationTemplate int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/%d/notification_templates_%s/", endpoint, id, event), nil,
		map[string]any{"id": notificationTemplate}, nil)
}

func (c *Client) Disassociate(ctx context.Context, endpoint string, id int, event string, notificationTemplate int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/%d/notification_templates_%s/", endpoint, id, event), nil,
		map[string]any{"id": notificationTemplate, "disassociate": true}, nil)
}

func toResource(raw map[string]any) *models.Resource {
	r := &models.Resource{Fields: map[string]any{}, Related: map[string]string{}}
	for k, v := range raw {
		switch k {
		case "id":
			if f, ok := v.(float64); ok {
				r.ID = int(f)
			}
		case "type":
			r.Type, _ = v.(string)
		case "url":
			r.URL, _ = v.(string)
		case "name", "username":
			r.Name, _ = v.(string)
		case "related":
			if m, ok := v.(map[string]any); ok {
				for rk, rv := range m {
					if s, ok := rv.(string); ok {
						r.Related[rk] = s
					}
				}
			}
		default:
			r.Fields[k] = v
		}
	}
	return r
}
