package handlers

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/services"
)

// jobFilter reads the query parameters the harness filters jobs by:
// id, id__in, status, status__in, type, unified_job_template and order_by.
func jobFilter(c *gin.Context, jobType models.JobType) (services.JobFilter, bool, bool) {
	f := services.JobFilter{Type: jobType}

	if t := c.Query("type"); t != "" && jobType == "" {
		parsed, err := models.ParseJobType(t)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"type": []string{err.Error()}})
			return f, false, false
		}
		f.Type = parsed
	}

	ids := splitList(c.Query("id__in"))
	if v := c.Query("id"); v != "" {
		ids = append(ids, v)
	}
	for _, v := range ids {
		id, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"id": []string{"invalid id " + strconv.Quote(v)}})
			return f, false, false
		}
		f.IDs = append(f.IDs, id)
	}

	statuses := splitList(c.Query("status__in"))
	if v := c.Query("status"); v != "" {
		statuses = append(statuses, v)
	}
	for _, v := range statuses {
		s, err := models.ParseJobStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": []string{err.Error()}})
			return f, false, false
		}
		f.Statuses = append(f.Statuses, s)
	}

	if v := c.Query("unified_job_template"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"unified_job_template": []string{"invalid id"}})
			return f, false, false
		}
		f.Template = id
	}

	desc := false
	switch c.DefaultQuery("order_by", "id") {
	case "id":
	case "-id":
		desc = true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"order_by": []string{"only id and -id are supported"}})
		return f, false, false
	}

	return f, desc, true
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// ListJobs lists jobs of one type, or of every type for /unified_jobs/.
// (GET /unified_jobs/, GET /{job_type}s/)
func (h *Handler) ListJobs(jobType models.JobType) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, desc, ok := jobFilter(c, jobType)
		if !ok {
			return
		}

		jobs := h.jobs.List(c.Request.Context(), f)
		if desc {
			slices.Reverse(jobs)
		}

		out := make([]v2.UnifiedJob, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, v2.NewUnifiedJob(j))
		}
		page, ok := paginate(c, out)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// GetJob returns one job.
// (GET /{job_type}s/{id}/)
func (h *Handler) GetJob(jobType models.JobType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		job, err := h.jobs.Get(c.Request.Context(), models.JobRef{Type: jobType, ID: id})
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, v2.NewUnifiedJob(*job))
	}
}

// CancelJob requests cancellation. Finished jobs answer 405 like the real controller.
// (POST /{job_type}s/{id}/cancel/)
func (h *Handler) CancelJob(jobType models.JobType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := h.jobs.Cancel(c.Request.Context(), models.JobRef{Type: jobType, ID: id}); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}
