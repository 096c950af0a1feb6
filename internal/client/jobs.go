package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/oapi-codegen/runtime"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
)

// JobHandle is a reference to a job on the controller. Get refreshes it,
// which makes it usable with the waiter package.
type JobHandle struct {
	client *Client
	Ref    models.JobRef
}

// Job returns a handle without contacting the controller.
func (c *Client) Job(ref models.JobRef) *JobHandle {
	return &JobHandle{client: c, Ref: ref}
}

func (h *JobHandle) Get(ctx context.Context) (*models.UnifiedJob, error) {
	return h.client.GetJob(ctx, h.Ref)
}

func (h *JobHandle) Cancel(ctx context.Context) error {
	return h.client.CancelJob(ctx, h.Ref)
}

func (h *JobHandle) String() string {
	return h.Ref.String()
}

// GetJob fetches one job by type and id.
func (c *Client) GetJob(ctx context.Context, ref models.JobRef) (*models.UnifiedJob, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/%d/", ref.Type.Endpoint(), ref.ID), nil, nil, &raw); err != nil {
		return nil, err
	}
	return c.decodeJob(raw)
}

func (c *Client) decodeJob(raw json.RawMessage) (*models.UnifiedJob, error) {
	if err := c.validate(raw); err != nil {
		return nil, err
	}
	var wire v2.UnifiedJob
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding unified job: %w", err)
	}
	j, err := wire.ToModel()
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CancelJob requests cancellation of a job.
func (c *Client) CancelJob(ctx context.Context, ref models.JobRef) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/%d/cancel/", ref.Type.Endpoint(), ref.ID), nil, nil, nil)
}

// JobQuery filters ListJobs. Zero fields are not sent.
type JobQuery struct {
	Type     models.JobType
	IDs      []int
	Statuses []models.JobStatus
	Template int
	// Descending orders by -id.
	Descending bool
}

func (q JobQuery) values() (url.Values, error) {
	values := url.Values{}
	add := func(name string, v any) error {
		frag, err := runtime.StyleParamWithLocation("form", false, name, runtime.ParamLocationQuery, v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		parsed, err := url.ParseQuery(frag)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		for k, vs := range parsed {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
		return nil
	}

	if len(q.IDs) > 0 {
		if err := add("id__in", q.IDs); err != nil {
			return nil, err
		}
	}
	if len(q.Statuses) > 0 {
		if err := add("status__in", models.StatusSet(q.Statuses).Strings()); err != nil {
			return nil, err
		}
	}
	if q.Template != 0 {
		if err := add("unified_job_template", q.Template); err != nil {
			return nil, err
		}
	}
	if q.Descending {
		values.Set("order_by", "-id")
	}
	return values, nil
}

// ListJobs lists jobs across every page. An empty query Type lists /unified_jobs/.
func (c *Client) ListJobs(ctx context.Context, q JobQuery) ([]models.UnifiedJob, error) {
	values, err := q.values()
	if err != nil {
		return nil, err
	}
	endpoint := "/unified_jobs/"
	if q.Type != "" {
		endpoint = "/" + q.Type.Endpoint() + "/"
	}

	out := []models.UnifiedJob{}
	err = eachPage(ctx, c, endpoint, values, func(raw json.RawMessage) error {
		j, err := c.decodeJob(raw)
		if err != nil {
			return err
		}
		out = append(out, *j)
		return nil
	})
	return out, err
}

// eachPage walks a paginated collection following the next links.
func eachPage(ctx context.Context, c *Client, path string, query url.Values, fn func(json.RawMessage) error) error {
	page := 1
	for {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))

		var p v2.Page[json.RawMessage]
		if err := c.do(ctx, http.MethodGet, path, q, nil, &p); err != nil {
			return err
		}
		for _, raw := range p.Results {
			if err := fn(raw); err != nil {
				return err
			}
		}
		if p.Next == nil {
			return nil
		}
		page++
	}
}

func (c *Client) launch(ctx context.Context, path string, body any) (*JobHandle, error) {
	var resp v2.LaunchResponse
	if err := c.do(ctx, http.MethodPost, path, nil, body, &resp); err != nil {
		return nil, err
	}
	t, err := models.ParseJobType(resp.Type)
	if err != nil {
		return nil, fmt.Errorf("launch of %s: %w", path, err)
	}
	return c.Job(models.JobRef{Type: t, ID: resp.JobID()}), nil
}

// LaunchJobTemplate launches a job template.
func (c *Client) LaunchJobTemplate(ctx context.Context, id int) (*JobHandle, error) {
	return c.launch(ctx, fmt.Sprintf("/job_templates/%d/launch/", id), nil)
}

func (c *Client) LaunchWorkflowJobTemplate(ctx context.Context, id int) (*JobHandle, error) {
	return c.launch(ctx, fmt.Sprintf("/workflow_job_templates/%d/launch/", id), nil)
}

func (c *Client) LaunchSystemJobTemplate(ctx context.Context, id int) (*JobHandle, error) {
	return c.launch(ctx, fmt.Sprintf("/system_job_templates/%d/launch/", id), nil)
}

// UpdateProject starts a project update.
func (c *Client) UpdateProject(ctx context.Context, id int) (*JobHandle, error) {
	return c.launch(ctx, fmt.Sprintf("/projects/%d/update/", id), nil)
}

// UpdateInventorySource starts an inventory update.
func (c *Client) UpdateInventorySource(ctx context.Context, id int) (*JobHandle, error) {
	return c.launch(ctx, fmt.Sprintf("/inventory_sources/%d/update/", id), nil)
}

// RunAdHocCommand runs module against every host of inventory.
func (c *Client) RunAdHocCommand(ctx context.Context, inventory int, module, args string) (*JobHandle, error) {
	return c.launch(ctx, "/ad_hoc_commands/", map[string]any{
		"inventory":   inventory,
		"module_name": module,
		"module_args": args,
	})
}
