package handlers

import (
	"fmt"
	"maps"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// renderResource flattens a resource into the controller's JSON shape.
// Passwords are never echoed.
func renderResource(r models.Resource) gin.H {
	out := gin.H{}
	maps.Copy(out, r.Fields)
	delete(out, "password")
	out["id"] = r.ID
	out["type"] = r.Type
	out["url"] = r.URL
	out["related"] = r.Related
	if r.Type == "user" {
		out["username"] = r.Name
	} else {
		out["name"] = r.Name
	}
	return out
}

// paginate slices items by the page and page_size query parameters.
func paginate[T any](c *gin.Context, items []T) (v2.Page[T], bool) {
	page, pageSize := 1, defaultPageSize
	if v := c.Query("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			c.JSON(http.StatusNotFound, v2.Error{Detail: "Invalid page."})
			return v2.Page[T]{}, false
		}
		page = p
	}
	if v := c.Query("page_size"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil || s < 1 {
			badRequest(c, "invalid page_size")
			return v2.Page[T]{}, false
		}
		pageSize = min(s, maxPageSize)
	}

	start := min((page-1)*pageSize, len(items))
	end := min(start+pageSize, len(items))
	if page > 1 && start >= len(items) {
		c.JSON(http.StatusNotFound, v2.Error{Detail: "Invalid page."})
		return v2.Page[T]{}, false
	}

	out := v2.Page[T]{Count: len(items), Results: items[start:end]}
	if end < len(items) {
		next := fmt.Sprintf("%s?page=%d&page_size=%d", c.Request.URL.Path, page+1, pageSize)
		out.Next = &next
	}
	if page > 1 {
		prev := fmt.Sprintf("%s?page=%d&page_size=%d", c.Request.URL.Path, page-1, pageSize)
		out.Previous = &prev
	}
	return out, true
}

// ListResources lists a generic collection, optionally filtered by exact name.
// (GET /{collection}/)
func (h *Handler) ListResources(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.resources.List(c.Request.Context(), endpoint)
		if err != nil {
			abort(c, err)
			return
		}

		name := c.Query("name")
		if endpoint == "users" {
			name = c.Query("username")
		}
		out := make([]gin.H, 0, len(items))
		for _, r := range items {
			if name != "" && r.Name != name {
				continue
			}
			out = append(out, renderResource(r))
		}

		page, ok := paginate(c, out)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// CreateResource stores the posted object.
// (POST /{collection}/)
func (h *Handler) CreateResource(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		r, err := h.resources.Create(c.Request.Context(), endpoint, fields)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, renderResource(*r))
	}
}

// GetResource returns one object.
// (GET /{collection}/{id}/)
func (h *Handler) GetResource(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		r, err := h.resources.Get(c.Request.Context(), endpoint, id)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, renderResource(*r))
	}
}

// UpdateResource merges the posted fields into an object.
// (PATCH /{collection}/{id}/)
func (h *Handler) UpdateResource(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		r, err := h.resources.Update(c.Request.Context(), endpoint, id, fields)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, renderResource(*r))
	}
}

// DeleteResource removes an object.
// (DELETE /{collection}/{id}/)
func (h *Handler) DeleteResource(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := h.resources.Delete(c.Request.Context(), endpoint, id); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type associateRequest struct {
	ID           int  `json:"id" binding:"required"`
	Disassociate bool `json:"disassociate"`
}

// Associate links a notification template to a template event.
// (POST /job_templates/{id}/notification_templates_{event}/)
func (h *Handler) Associate(endpoint, field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req associateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		if _, err := h.resources.Get(c.Request.Context(), "notification_templates", req.ID); err != nil {
			abort(c, err)
			return
		}
		if err := h.resources.Associate(c.Request.Context(), endpoint, id, field, req.ID, req.Disassociate); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Launch starts a job from a template, project or inventory source.
// (POST /job_templates/{id}/launch/, POST /projects/{id}/update/, ...)
func (h *Handler) Launch(endpoint string, jobType models.JobType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		tmpl, err := h.resources.Get(c.Request.Context(), endpoint, id)
		if err != nil {
			abort(c, err)
			return
		}
		h.launch(c, jobType, tmpl)
	}
}

// CreateAdHocCommand launches an ad hoc command against an inventory.
// (POST /ad_hoc_commands/)
func (h *Handler) CreateAdHocCommand(c *gin.Context) {
	var req struct {
		Inventory  int    `json:"inventory" binding:"required"`
		ModuleName string `json:"module_name"`
		ModuleArgs string `json:"module_args"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"inventory": []string{"This field is required."}})
		return
	}
	inv, err := h.resources.Get(c.Request.Context(), "inventories", req.Inventory)
	if err != nil {
		abort(c, err)
		return
	}
	module := req.ModuleName
	if module == "" {
		module = "command"
	}
	inv.Name = module
	h.launch(c, models.JobTypeAdHocCommand, inv)
}

func (h *Handler) launch(c *gin.Context, jobType models.JobType, tmpl *models.Resource) {
	job, err := h.jobs.Launch(c.Request.Context(), jobType, tmpl)
	if err != nil {
		abort(c, err)
		return
	}

	resp := v2.LaunchResponse{ID: job.ID, Type: string(job.Type)}
	switch job.Type {
	case models.JobTypeJob:
		resp.Job = job.ID
	case models.JobTypeProjectUpdate:
		resp.ProjectUpdate = job.ID
	case models.JobTypeInventoryUpdate:
		resp.InventoryUpdate = job.ID
	case models.JobTypeSystemJob:
		resp.SystemJob = job.ID
	case models.JobTypeWorkflowJob:
		resp.WorkflowJob = job.ID
	case models.JobTypeAdHocCommand:
		resp.AdHocCommand = job.ID
	}
	c.JSON(http.StatusCreated, resp)
}
