// Package towertest assembles the in-process fake controller: the services,
// the gin handlers and the authentication middleware. `towerqa serve` runs it
// on a real listener; package tests start it behind httptest.
package towertest

import (
	"context"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/handlers"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/server"
	"github.com/tower-qa/tower-qa/internal/server/middlewares"
	"github.com/tower-qa/tower-qa/internal/services"
)

const Version = "3.8.0-towerqa"

// Controller is a running fake controller.
type Controller struct {
	Resources     *services.ControllerService
	Jobs          *services.TaskManager
	Licenses      *services.LicenseService
	Notifications *services.NotificationService
	Auth          *services.AuthService
	Server        *server.Server

	cancel context.CancelFunc
}

// New wires the services together and builds the HTTP server. A configured
// license file is installed and watched for changes.
func New(cfg config.Server) (*Controller, error) {
	resources := services.NewControllerService(cfg.AdminPassword)
	jobs := services.NewTaskManager(cfg)
	notifications := services.NewNotificationService(resources)
	jobs.OnJobFinished(notifications.JobFinished)

	licenses := services.NewLicenseService(func() int {
		hosts, err := resources.List(context.Background(), "hosts")
		if err != nil {
			return 0
		}
		return len(hosts)
	})

	auth, err := services.NewAuthService(resources, cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		jobs.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if cfg.LicenseFile != "" {
		if err := licenses.Watch(ctx, cfg.LicenseFile); err != nil {
			cancel()
			jobs.Close()
			return nil, err
		}
	}

	h := handlers.New(Version, resources, jobs, licenses, notifications, auth)
	srv, err := server.NewServer(cfg, func(router *gin.RouterGroup) {
		handlers.RegisterHandlers(router, h)
	}, middlewares.Authenticate(auth, "/ping/"))
	if err != nil {
		cancel()
		jobs.Close()
		return nil, err
	}

	zap.S().Named("towertest").Infow("fake controller ready", "job_duration", cfg.JobDuration, "cpu_capacity", cfg.CPUCapacity, "mem_capacity", cfg.MemCapacity)

	return &Controller{
		Resources:     resources,
		Jobs:          jobs,
		Licenses:      licenses,
		Notifications: notifications,
		Auth:          auth,
		Server:        srv,
		cancel:        cancel,
	}, nil
}

// Close stops the job engine and the license watcher. It does not stop the HTTP server.
func (c *Controller) Close() {
	c.cancel()
	c.Jobs.Close()
}

// TestServer is a fake controller behind an httptest server.
type TestServer struct {
	*Controller
	URL   string
	Admin models.User

	ts *httptest.Server
}

// Option tweaks the server configuration used by Start.
type Option func(*config.Server)

func WithJobDuration(d time.Duration) Option {
	return func(c *config.Server) { c.JobDuration = d }
}

// WithCapacity sets the simulated node's cpu and memory capacity.
func WithCapacity(cpu, mem int) Option {
	return func(c *config.Server) {
		c.CPUCapacity = cpu
		c.MemCapacity = mem
	}
}

func WithLicenseFile(path string) Option {
	return func(c *config.Server) { c.LicenseFile = path }
}

// Start runs a fake controller on a random local port. Jobs last 50ms and
// the node runs two jobs at once unless overridden.
func Start(opts ...Option) (*TestServer, error) {
	cfg := config.Server{
		ServerMode:    server.DevServer,
		AdminPassword: "password",
		TokenTTL:      time.Hour,
		JobDuration:   50 * time.Millisecond,
		CPUCapacity:   2,
		MemCapacity:   2,
	}
	for _, o := range opts {
		o(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	ts := httptest.NewServer(c.Server.Handler())

	return &TestServer{
		Controller: c,
		URL:        ts.URL,
		Admin:      models.User{Username: "admin", Password: cfg.AdminPassword},
		ts:         ts,
	}, nil
}

func (s *TestServer) Close() {
	s.ts.Close()
	s.Controller.Close()
}
