package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/services"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

type ResourceService interface {
	Create(ctx context.Context, endpoint string, fields map[string]any) (*models.Resource, error)
	Get(ctx context.Context, endpoint string, id int) (*models.Resource, error)
	List(ctx context.Context, endpoint string) ([]models.Resource, error)
	Update(ctx context.Context, endpoint string, id int, fields map[string]any) (*models.Resource, error)
	Delete(ctx context.Context, endpoint string, id int) error
	Associate(ctx context.Context, endpoint string, id int, field string, other int, disassociate bool) error
	FindUser(username string) (*models.User, bool)
}

type JobService interface {
	Launch(ctx context.Context, jobType models.JobType, template *models.Resource) (*models.UnifiedJob, error)
	Get(ctx context.Context, ref models.JobRef) (*models.UnifiedJob, error)
	List(ctx context.Context, filter services.JobFilter) []models.UnifiedJob
	Cancel(ctx context.Context, ref models.JobRef) error
	Instances() []models.Instance
	UpdateInstance(ctx context.Context, id int, enabled *bool, adjustment *float64) (*models.Instance, error)
	InstanceGroups() []models.InstanceGroup
	InstanceGroup(ctx context.Context, id int) (*models.InstanceGroup, error)
	CreateContainerGroup(ctx context.Context, name string, credential *int, podSpec string) (*models.InstanceGroup, error)
	DeleteInstanceGroup(ctx context.Context, id int) error
}

type LicenseService interface {
	Install(l models.License) error
	Remove()
	Info() *models.LicenseInfo
}

type NotificationService interface {
	Test(ctx context.Context, templateID int) (*models.Notification, error)
	List(ctx context.Context, templateID int) []models.Notification
}

type TokenService interface {
	Issue(username, scope string) (string, time.Time, error)
}

// Handler serves the subset of the controller API the harness talks to.
type Handler struct {
	version       string
	resources     ResourceService
	jobs          JobService
	licenses      LicenseService
	notifications NotificationService
	tokens        TokenService
}

func New(version string, resources ResourceService, jobs JobService, licenses LicenseService, notifications NotificationService, tokens TokenService) *Handler {
	return &Handler{
		version:       version,
		resources:     resources,
		jobs:          jobs,
		licenses:      licenses,
		notifications: notifications,
		tokens:        tokens,
	}
}

// RegisterHandlers mounts every route on router, which is expected to be the /api/v2 group.
func RegisterHandlers(router gin.IRouter, h *Handler) {
	router.GET("/ping/", h.GetPing)
	router.GET("/me/", h.GetMe)
	router.GET("/config/", h.GetConfig)
	router.POST("/config/", h.PostConfig)
	router.DELETE("/config/", h.DeleteConfig)
	router.POST("/tokens/", h.CreateToken)
	router.POST("/users/:id/personal_tokens/", h.CreateToken)

	for _, endpoint := range services.ResourceEndpoints() {
		g := router.Group("/" + endpoint)
		g.GET("/", h.ListResources(endpoint))
		g.POST("/", h.CreateResource(endpoint))
		g.GET("/:id/", h.GetResource(endpoint))
		g.PATCH("/:id/", h.UpdateResource(endpoint))
		g.DELETE("/:id/", h.DeleteResource(endpoint))
	}

	router.POST("/job_templates/:id/launch/", h.Launch("job_templates", models.JobTypeJob))
	router.POST("/workflow_job_templates/:id/launch/", h.Launch("workflow_job_templates", models.JobTypeWorkflowJob))
	router.POST("/system_job_templates/:id/launch/", h.Launch("system_job_templates", models.JobTypeSystemJob))
	router.POST("/projects/:id/update/", h.Launch("projects", models.JobTypeProjectUpdate))
	router.POST("/inventory_sources/:id/update/", h.Launch("inventory_sources", models.JobTypeInventoryUpdate))
	for _, event := range []string{"started", "success", "error"} {
		field := "notification_templates_" + event
		router.POST("/job_templates/:id/"+field+"/", h.Associate("job_templates", field))
		router.POST("/workflow_job_templates/:id/"+field+"/", h.Associate("workflow_job_templates", field))
	}

	router.GET("/unified_jobs/", h.ListJobs(""))
	for _, t := range []models.JobType{
		models.JobTypeJob, models.JobTypeProjectUpdate, models.JobTypeInventoryUpdate,
		models.JobTypeAdHocCommand, models.JobTypeSystemJob, models.JobTypeWorkflowJob,
	} {
		g := router.Group("/" + t.Endpoint())
		g.GET("/", h.ListJobs(t))
		g.GET("/:id/", h.GetJob(t))
		g.POST("/:id/cancel/", h.CancelJob(t))
	}
	router.POST("/ad_hoc_commands/", h.CreateAdHocCommand)

	router.GET("/instances/", h.ListInstances)
	router.GET("/instances/:id/", h.GetInstance)
	router.PATCH("/instances/:id/", h.UpdateInstance)
	router.GET("/instance_groups/", h.ListInstanceGroups)
	router.POST("/instance_groups/", h.CreateInstanceGroup)
	router.GET("/instance_groups/:id/", h.GetInstanceGroup)
	router.DELETE("/instance_groups/:id/", h.DeleteInstanceGroup)

	router.POST("/notification_templates/:id/test/", h.TestNotification)
	router.GET("/notification_templates/:id/notifications/", h.ListNotifications)
}

// abort maps service errors onto the controller's status codes and body shapes.
func abort(c *gin.Context, err error) {
	switch {
	case srvErrors.IsResourceNotFoundError(err), srvErrors.IsUnknownKindError(err):
		c.JSON(http.StatusNotFound, v2.Error{Detail: "Not found."})
	case srvErrors.IsInvalidArgumentError(err):
		var e *srvErrors.InvalidArgumentError
		errors.As(err, &e)
		c.JSON(http.StatusBadRequest, gin.H{e.Name: []string{e.Reason}})
	case srvErrors.IsInvalidStateError(err):
		c.JSON(http.StatusMethodNotAllowed, v2.Error{Detail: err.Error()})
	default:
		zap.S().Named("handlers").Errorw("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, v2.Error{Detail: "A server error has occurred."})
	}
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, v2.Error{Detail: detail})
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, v2.Error{Detail: "Not found."})
		return 0, false
	}
	return id, true
}
