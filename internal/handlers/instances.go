package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// ListInstances (GET /instances/)
func (h *Handler) ListInstances(c *gin.Context) {
	items := h.jobs.Instances()
	out := make([]v2.Instance, 0, len(items))
	for _, i := range items {
		out = append(out, v2.NewInstance(i))
	}
	page, ok := paginate(c, out)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetInstance (GET /instances/{id}/)
func (h *Handler) GetInstance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	for _, i := range h.jobs.Instances() {
		if i.ID == id {
			c.JSON(http.StatusOK, v2.NewInstance(i))
			return
		}
	}
	abort(c, srvErrors.NewResourceNotFoundError("instance", strconv.Itoa(id)))
}

// UpdateInstance toggles enabled and sets the capacity adjustment.
// (PATCH /instances/{id}/)
func (h *Handler) UpdateInstance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Enabled            *bool   `json:"enabled"`
		CapacityAdjustment *string `json:"capacity_adjustment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	var adjustment *float64
	if req.CapacityAdjustment != nil {
		v, err := strconv.ParseFloat(*req.CapacityAdjustment, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"capacity_adjustment": []string{"A valid number is required."}})
			return
		}
		adjustment = &v
	}

	i, err := h.jobs.UpdateInstance(c.Request.Context(), id, req.Enabled, adjustment)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, v2.NewInstance(*i))
}

// ListInstanceGroups (GET /instance_groups/)
func (h *Handler) ListInstanceGroups(c *gin.Context) {
	items := h.jobs.InstanceGroups()
	out := make([]v2.InstanceGroup, 0, len(items))
	for _, g := range items {
		out = append(out, v2.NewInstanceGroup(g))
	}
	page, ok := paginate(c, out)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetInstanceGroup (GET /instance_groups/{id}/)
func (h *Handler) GetInstanceGroup(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	g, err := h.jobs.InstanceGroup(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, v2.NewInstanceGroup(*g))
}

// CreateInstanceGroup creates a container group. Only container groups can
// be created; the simulated node belongs to the default group.
// (POST /instance_groups/)
func (h *Handler) CreateInstanceGroup(c *gin.Context) {
	var req v2.InstanceGroup
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"name": []string{"This field is required."}})
		return
	}
	if !req.IsContainerGroup {
		c.JSON(http.StatusBadRequest, gin.H{"is_container_group": []string{"only container groups can be created"}})
		return
	}
	g, err := h.jobs.CreateContainerGroup(c.Request.Context(), req.Name, req.Credential, req.PodSpecOverride)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, v2.NewInstanceGroup(*g))
}

// DeleteInstanceGroup (DELETE /instance_groups/{id}/)
func (h *Handler) DeleteInstanceGroup(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.jobs.DeleteInstanceGroup(c.Request.Context(), id); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
