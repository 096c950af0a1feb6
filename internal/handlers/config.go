package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
)

// GetConfig returns the version and the installed license, if any.
// (GET /config/)
func (h *Handler) GetConfig(c *gin.Context) {
	resp := v2.Config{Version: h.version}
	if info := h.licenses.Info(); info != nil {
		l := v2.NewLicenseInfo(*info)
		resp.LicenseInfo = &l
	}
	c.JSON(http.StatusOK, resp)
}

// PostConfig installs a license.
// (POST /config/)
func (h *Handler) PostConfig(c *gin.Context) {
	var l models.License
	if err := c.ShouldBindJSON(&l); err != nil {
		badRequest(c, "invalid license data")
		return
	}
	if err := h.licenses.Install(l); err != nil {
		abort(c, err)
		return
	}
	h.GetConfig(c)
}

// DeleteConfig removes the license.
// (DELETE /config/)
func (h *Handler) DeleteConfig(c *gin.Context) {
	h.licenses.Remove()
	c.Status(http.StatusNoContent)
}
