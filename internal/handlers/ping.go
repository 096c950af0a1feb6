package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/server/middlewares"
)

// GetPing reports version and the single simulated node. It needs no authentication.
// (GET /ping/)
func (h *Handler) GetPing(c *gin.Context) {
	resp := v2.Ping{
		Version:    h.version,
		ActiveNode: "towerqa-fake",
		Instances:  []v2.PingInstance{},
	}
	for _, i := range h.jobs.Instances() {
		resp.Instances = append(resp.Instances, v2.PingInstance{
			Node:      i.Hostname,
			NodeType:  i.NodeType,
			Capacity:  i.Capacity,
			Heartbeat: v2.FormatTimestamp(time.Now()),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GetMe returns the authenticated user as a one element page.
// (GET /me/)
func (h *Handler) GetMe(c *gin.Context) {
	u, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, v2.Error{Detail: "Authentication credentials were not provided."})
		return
	}
	c.JSON(http.StatusOK, v2.Page[v2.User]{
		Count:   1,
		Results: []v2.User{{ID: u.ID, Username: u.Username, IsSuperuser: u.Username == "admin"}},
	})
}

type tokenRequest struct {
	Scope       string `json:"scope"`
	Description string `json:"description"`
}

// CreateToken issues a personal access token for the authenticated user.
// (POST /tokens/, POST /users/{id}/personal_tokens/)
func (h *Handler) CreateToken(c *gin.Context) {
	u, ok := middlewares.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, v2.Error{Detail: "Authentication credentials were not provided."})
		return
	}

	var req tokenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	if req.Scope != "" && req.Scope != "read" && req.Scope != "write" {
		c.JSON(http.StatusBadRequest, gin.H{"scope": []string{"must be read or write"}})
		return
	}

	token, expires, err := h.tokens.Issue(u.Username, req.Scope)
	if err != nil {
		abort(c, err)
		return
	}
	scope := req.Scope
	if scope == "" {
		scope = "write"
	}
	c.JSON(http.StatusCreated, v2.Token{Token: token, Scope: scope, Expires: v2.FormatTimestamp(expires)})
}
