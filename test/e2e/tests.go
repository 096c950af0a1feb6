package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/capacity"
	"github.com/tower-qa/tower-qa/internal/cli"
	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/license"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/notification"
	"github.com/tower-qa/tower-qa/internal/registry"
	"github.com/tower-qa/tower-qa/internal/safestop"
	"github.com/tower-qa/tower-qa/internal/timeline"
	"github.com/tower-qa/tower-qa/internal/waiter"
)

const (
	testPlaybooksRepo = "https://github.com/ansible/test-playbooks.git"
	pollInterval      = 2 * time.Second
)

var _ = Describe("Controller e2e tests", Ordered, func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		c        *client.Client
		fixtures *registry.Fixtures
		stack    *Stack
		actioner *Actioner
		db       *DbReadWriter

		proxy       *Proxy
		requests    chan Request
		proxyServer *http.Server
		obs         *Observer

		datastoreURL string
		org          *models.Resource
		project      *models.Resource
	)

	waitOpts := func() []waiter.Option {
		return []waiter.Option{waiter.WithInterval(pollInterval), waiter.WithTimeout(cfg.WaitTimeout)}
	}

	BeforeAll(func() {
		ctx, cancel = context.WithCancel(context.Background())

		var err error
		c, err = client.New(cfg.TowerURL, models.User{Username: cfg.Username, Password: cfg.Password},
			client.WithInsecure(cfg.Insecure), client.WithSchemaValidation(true))
		Expect(err).ToNot(HaveOccurred(), "failed to create client")

		_, err = c.Ping(ctx)
		Expect(err).ToNot(HaveOccurred(), "controller does not answer")

		fixtures = registry.NewFixtures(registry.Default(), c)

		stack, err = NewStack(cfg)
		Expect(err).ToNot(HaveOccurred(), "failed to create stack")

		GinkgoWriter.Println("Starting datastore...")
		datastoreURL, err = stack.StartDatastore(ctx)
		Expect(err).ToNot(HaveOccurred(), "failed to start datastore")

		target, err := url.Parse(cfg.TowerURL)
		Expect(err).ToNot(HaveOccurred())
		proxy, requests = NewProxy(target, cfg.Insecure)
		listener, err := net.Listen("tcp", cfg.ProxyAddr)
		Expect(err).ToNot(HaveOccurred(), "failed to listen for the proxy")
		proxyServer = &http.Server{Handler: proxy.Handler()}
		go func() {
			if err := proxyServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				GinkgoWriter.Printf("proxy stopped: %v\n", err)
			}
		}()
		GinkgoWriter.Printf("Proxy started on %s\n", cfg.ProxyAddr)

		actioner = NewActioner(c, fixtures, cfg, "http://"+cfg.ProxyAddr, GinkgoT().TempDir())

		if cfg.DBConnString != "" {
			db, err = NewDbReadWriter(cfg.DBConnString)
			Expect(err).ToNot(HaveOccurred(), "failed to connect to the controller database")
		}

		org, err = fixtures.Create(ctx, registry.KindOrganization, nil)
		Expect(err).ToNot(HaveOccurred())
		project, err = fixtures.Create(ctx, registry.KindProject, map[string]any{
			"organization": org.ID,
			"scm_type":     "git",
			"scm_url":      testPlaybooksRepo,
		})
		Expect(err).ToNot(HaveOccurred())

		// the project syncs on creation; later specs need its playbooks
		h, err := c.UpdateProject(ctx, project.ID)
		Expect(err).ToNot(HaveOccurred())
		job, err := waiter.WaitUntilCompleted(ctx, h, waitOpts()...)
		Expect(err).ToNot(HaveOccurred())
		Expect(job.IsSuccessful()).To(BeTrue(), "initial project sync failed: %s", job.JobExplanation)
	})

	AfterAll(func() {
		if err := actioner.Cleanup(ctx); err != nil {
			GinkgoWriter.Printf("cleanup failed: %v\n", err)
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = proxyServer.Shutdown(shutdownCtx)
		proxy.Close()
		if db != nil {
			_ = db.Close()
		}
		_ = stack.StopDatastore()
		cancel()
	})

	BeforeEach(func() {
		obs = NewObserver(requests)
	})

	AfterEach(func() {
		obs.Close()
	})

	launchProjectUpdates := func(n int) []*client.JobHandle {
		var handles []*client.JobHandle
		for range n {
			h, err := c.UpdateProject(ctx, project.ID)
			Expect(err).ToNot(HaveOccurred())
			handles = append(handles, h)
		}
		return handles
	}

	waitAll := func(handles []*client.JobHandle) []*models.UnifiedJob {
		var jobs []*models.UnifiedJob
		for _, h := range handles {
			job, err := waiter.WaitUntilCompleted(ctx, h, waitOpts()...)
			Expect(err).ToNot(HaveOccurred())
			jobs = append(jobs, job)
		}
		return jobs
	}

	refsOf := func(handles []*client.JobHandle) []string {
		var refs []string
		for _, h := range handles {
			refs = append(refs, h.Ref.String())
		}
		return refs
	}

	Context("scheduling", func() {
		It("runs updates of one project one at a time", func() {
			// Arrange
			handles := launchProjectUpdates(3)

			// Act
			jobs := waitAll(handles)

			// Assert
			Expect(timeline.CheckSequentialJobs(timeline.Jobs(jobs...)...)).To(Succeed())
			Expect(timeline.CheckJobOrder(timeline.Jobs(jobs...)...)).To(Succeed())
		})

		It("starts a job template after the project update it depends on", func() {
			// Arrange
			jt, err := fixtures.Create(ctx, registry.KindJobTemplate, map[string]any{
				"project":  project.ID,
				"playbook": "debug.yml",
			})
			Expect(err).ToNot(HaveOccurred())
			_, err = c.Update(ctx, "projects", project.ID, map[string]any{"scm_update_on_launch": true})
			Expect(err).ToNot(HaveOccurred())
			DeferCleanup(func() {
				_, _ = c.Update(ctx, "projects", project.ID, map[string]any{"scm_update_on_launch": false})
			})

			// Act
			jobHandle, err := c.LaunchJobTemplate(ctx, jt.ID)
			Expect(err).ToNot(HaveOccurred())
			job, err := waiter.WaitUntilCompleted(ctx, jobHandle, waitOpts()...)
			Expect(err).ToNot(HaveOccurred())

			updates, err := c.ListJobs(ctx, client.JobQuery{
				Type:       models.JobTypeProjectUpdate,
				Template:   project.ID,
				Descending: true,
			})
			Expect(err).ToNot(HaveOccurred())
			var update *models.UnifiedJob
			for i := range updates {
				if updates[i].LaunchType == "dependency" && !updates[i].Created.After(job.Created) {
					update = &updates[i]
					break
				}
			}
			Expect(update).ToNot(BeNil(), "no dependency project update for %s", job.Ref())

			// Assert
			Expect(timeline.CheckJobOrder(timeline.Job(update), timeline.Job(job))).To(Succeed())
			Expect(timeline.CheckSequentialJobs(timeline.Job(update), timeline.Job(job))).To(Succeed())
		})

		It("runs updates of two inventory sources concurrently", func() {
			// Arrange
			inventory, err := fixtures.Create(ctx, registry.KindInventory, map[string]any{"organization": org.ID})
			Expect(err).ToNot(HaveOccurred())
			var handles []*client.JobHandle
			for range 2 {
				src, err := fixtures.Create(ctx, registry.KindInventorySource, map[string]any{
					"inventory":      inventory.ID,
					"source":         "scm",
					"source_project": project.ID,
					"source_path":    "inventories/inventory.ini",
				})
				Expect(err).ToNot(HaveOccurred())
				h, err := c.UpdateInventorySource(ctx, src.ID)
				Expect(err).ToNot(HaveOccurred())
				handles = append(handles, h)
			}

			// Act
			jobs := waitAll(handles)

			// Assert
			Expect(timeline.CheckOverlappingJobs(jobs[0], jobs[1])).To(Succeed())
		})

		It("keeps a finished job's status", func() {
			// Arrange
			handles := launchProjectUpdates(1)
			jobs := waitAll(handles)

			// Act
			err := waiter.EnsureStatusHeld(ctx, handles[0], models.StatusSet{jobs[0].Status}, time.Second, 5*time.Second)

			// Assert
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Context("towerqa", func() {
		It("waits through the proxy at the configured interval", func() {
			// Arrange
			handles := launchProjectUpdates(1)

			// Act
			res, err := actioner.Towerqa(ctx, map[string]string{"TOWERQA_WAIT_INTERVAL": "1s"}, "wait", handles[0].Ref.String())
			Expect(err).ToNot(HaveOccurred())

			// Assert
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
			polls := obs.Gets(fmt.Sprintf("/api/v2/project_updates/%d/", handles[0].Ref.ID))
			Expect(polls).ToNot(BeEmpty())
			for i := 1; i < len(polls); i++ {
				Expect(polls[i].At.Sub(polls[i-1].At)).To(BeNumerically(">=", 900*time.Millisecond))
			}
		})

		It("passes check sequential on project updates", func() {
			// Arrange
			handles := launchProjectUpdates(2)

			// Act
			res, err := actioner.Towerqa(ctx, nil, append([]string{"check", "sequential"}, refsOf(handles)...)...)
			Expect(err).ToNot(HaveOccurred())

			// Assert
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
			Expect(string(res.Stdout)).To(ContainSubstring("sequential passed"))
		})

		It("fails check overlap on project updates", func() {
			// Arrange
			handles := launchProjectUpdates(2)

			// Act
			res, err := actioner.Towerqa(ctx, nil, append([]string{"check", "overlap"}, refsOf(handles)...)...)
			Expect(err).ToNot(HaveOccurred())

			// Assert
			Expect(res.ReturnCode).To(Equal(cli.ExitError), cli.FormatError(res))
		})

		It("exits 1 when a job is missing", func() {
			res, err := actioner.Towerqa(ctx, nil, "wait", "job/999999999")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.ReturnCode).To(Equal(cli.ExitError), cli.FormatError(res))
		})

		It("exits 2 on a malformed job reference", func() {
			res, err := actioner.Towerqa(ctx, nil, "wait", "not-a-job")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.ReturnCode).To(Equal(cli.ExitUsage), cli.FormatError(res))
		})

		It("logs in and reuses the saved token", func() {
			// Arrange
			res, err := actioner.Towerqa(ctx, nil, "login", "--scope", "read")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
			handles := launchProjectUpdates(1)

			// Act
			res, err = actioner.Towerqa(ctx, map[string]string{"TOWERQA_TOWER_PASSWORD": ""}, "wait", handles[0].Ref.String())
			Expect(err).ToNot(HaveOccurred())

			// Assert
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
			for _, r := range obs.Gets("/api/v2/project_updates/") {
				if r.Request.Header.Get("Authorization") != "" && r.Response.StatusCode == http.StatusOK {
					Expect(r.Request.Header.Get("Authorization")).To(HavePrefix("Bearer "))
				}
			}

			res, err = actioner.Towerqa(ctx, nil, "login", "--logout")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
		})
	})

	Context("awx client", func() {
		It("creates an object and tears it down", func() {
			// Arrange
			name := registry.RandomName("awx-org")

			// Act
			res, err := actioner.AwxCreate(ctx, "organizations", "create", "--name", name)
			Expect(err).ToNot(HaveOccurred())

			// Assert
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
			out, err := res.JSON()
			Expect(err).ToNot(HaveOccurred())
			Expect(out["name"]).To(Equal(name))
		})

		It("exits 1 on a missing object", func() {
			res, err := actioner.Awx(ctx, "organizations", "get", "999999999")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.ReturnCode).To(Equal(cli.ExitError), cli.FormatError(res))
		})

		It("exits 2 on a usage error", func() {
			res, err := actioner.AwxBare(ctx, "organizations", "create", "--no-such-flag")
			Expect(err).ToNot(HaveOccurred())
			Expect(res.ReturnCode).To(Equal(cli.ExitUsage), cli.FormatError(res))
		})
	})

	Context("users", func() {
		It("acts as another user and switches back", func() {
			// Arrange
			password := uuid.NewString()
			user, err := fixtures.Create(ctx, registry.KindUser, map[string]any{"password": password})
			Expect(err).ToNot(HaveOccurred())
			username, _ := user.Fields["username"].(string)

			// Act
			var seen string
			err = c.AsUser(models.User{Username: username, Password: password}, func() error {
				me, err := c.Me(ctx)
				if err != nil {
					return err
				}
				seen = me.Username
				return nil
			})

			// Assert
			Expect(err).ToNot(HaveOccurred())
			Expect(seen).To(Equal(username))
			me, err := c.Me(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(me.Username).To(Equal(cfg.Username))
		})
	})

	Context("capacity", func() {
		It("reports capacity consistent with the node resources", func() {
			instances, err := c.Instances(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(instances).ToNot(BeEmpty())
			for _, i := range instances {
				Expect(capacity.CheckInstanceCapacity(i)).To(Succeed())
				Expect(capacity.CheckInstancePercentRemaining(i)).To(Succeed())
			}

			groups, err := c.InstanceGroups(ctx)
			Expect(err).ToNot(HaveOccurred())
			for _, ig := range groups {
				Expect(capacity.CheckPercentCapacityRemaining(ig)).To(Succeed())
			}
		})

		It("reports the persisted capacity", func() {
			if db == nil {
				Skip("no controller database given")
			}
			instances, err := c.Instances(ctx)
			Expect(err).ToNot(HaveOccurred())
			rows, err := db.ListInstances(ctx)
			Expect(err).ToNot(HaveOccurred())

			persisted := map[string]InstanceRow{}
			for _, r := range rows {
				persisted[r.Hostname] = r
			}
			for _, i := range instances {
				row, ok := persisted[i.Hostname]
				Expect(ok).To(BeTrue(), "instance %s not in main_instance", i.Hostname)
				Expect(row.Capacity).To(Equal(i.Capacity))
				Expect(row.CPUCapacity).To(Equal(i.CPUCapacity))
				Expect(row.MemCapacity).To(Equal(i.MemCapacity))
			}
		})
	})

	Context("persistence", func() {
		It("reports the persisted job timestamps", func() {
			if db == nil {
				Skip("no controller database given")
			}
			jobs := waitAll(launchProjectUpdates(1))

			row, err := db.GetUnifiedJob(ctx, jobs[0].ID)
			Expect(err).ToNot(HaveOccurred())

			Expect(row.Status).To(Equal(string(jobs[0].Status)))
			Expect(row.Started).ToNot(BeNil())
			Expect(row.Finished).ToNot(BeNil())
			Expect(*row.Started).To(BeTemporally("~", *jobs[0].Started, time.Millisecond))
			Expect(*row.Finished).To(BeTemporally("~", *jobs[0].Finished, time.Millisecond))
		})
	})

	Context("notifications", func() {
		var tmpl *models.NotificationTemplate

		BeforeEach(func() {
			res, err := fixtures.Create(ctx, registry.KindNotificationTemplate, map[string]any{
				"organization":      org.ID,
				"notification_type": string(models.NotificationTypeWebhook),
				"notification_configuration": map[string]any{
					"url":                      stack.BinURL(uuid.NewString()),
					"http_method":              "POST",
					"headers":                  map[string]any{},
					"disable_ssl_verification": true,
				},
			})
			Expect(err).ToNot(HaveOccurred())
			tmpl, err = c.NotificationTemplate(ctx, res.ID)
			Expect(err).ToNot(HaveOccurred())
		})

		It("delivers the test notification", func() {
			// Arrange
			checker := notification.NewChecker().Register(models.NotificationTypeWebhook, notification.NewWebhook(datastoreURL))
			msg, err := notification.DefaultTestMessage(*tmpl, cfg.TowerURL)
			Expect(err).ToNot(HaveOccurred())

			// Act
			_, err = c.TestNotification(ctx, tmpl.ID)
			Expect(err).ToNot(HaveOccurred())
			delivered, err := checker.Confirm(ctx, *tmpl, msg, notification.WithInterval(pollInterval))

			// Assert
			Expect(err).ToNot(HaveOccurred())
			Expect(delivered).To(BeTrue())
		})

		It("confirms a job notification with towerqa", func() {
			// Arrange
			jt, err := fixtures.Create(ctx, registry.KindJobTemplate, map[string]any{
				"project":  project.ID,
				"playbook": "debug.yml",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Associate(ctx, "job_templates", jt.ID, "success", tmpl.ID)).To(Succeed())
			h, err := c.LaunchJobTemplate(ctx, jt.ID)
			Expect(err).ToNot(HaveOccurred())
			_, err = waiter.WaitUntilCompleted(ctx, h, waitOpts()...)
			Expect(err).ToNot(HaveOccurred())

			// Act
			res, err := actioner.Towerqa(ctx, map[string]string{"TOWERQA_DATASTORE": datastoreURL},
				"notify", "confirm", strconv.Itoa(tmpl.ID), "--job", h.Ref.String())
			Expect(err).ToNot(HaveOccurred())

			// Assert
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
		})

		It("sends nothing for an event the template is not attached to", func() {
			// Arrange
			jt, err := fixtures.Create(ctx, registry.KindJobTemplate, map[string]any{
				"project":  project.ID,
				"playbook": "debug.yml",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Associate(ctx, "job_templates", jt.ID, "error", tmpl.ID)).To(Succeed())
			h, err := c.LaunchJobTemplate(ctx, jt.ID)
			Expect(err).ToNot(HaveOccurred())
			_, err = waiter.WaitUntilCompleted(ctx, h, waitOpts()...)
			Expect(err).ToNot(HaveOccurred())

			// Act
			res, err := actioner.Towerqa(ctx, map[string]string{"TOWERQA_DATASTORE": datastoreURL},
				"notify", "confirm", strconv.Itoa(tmpl.ID), "--job", h.Ref.String(), "--absent")
			Expect(err).ToNot(HaveOccurred())

			// Assert
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
		})
	})

	Context("license", func() {
		It("installs a generated license", func() {
			// Arrange
			path := filepath.Join(GinkgoT().TempDir(), "license.json")
			res, err := actioner.Towerqa(ctx, nil, "license", "generate", "--instance-count", "100", "--days", "30", "-o", path)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.ReturnCode).To(Equal(cli.ExitSuccess), cli.FormatError(res))
			l, err := license.ReadFile(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(license.Verify(l)).To(BeTrue())

			// Act
			info, err := c.InstallLicense(ctx, l)

			// Assert
			Expect(err).ToNot(HaveOccurred())
			Expect(info.Valid).To(BeTrue())
			Expect(info.InstanceCount).To(Equal(100))
		})
	})

	Context("nodes", func() {
		var nodes []safestop.Node

		BeforeEach(func() {
			if len(cfg.Nodes()) == 0 {
				Skip("no node containers given")
			}
			var err error
			nodes, err = stack.Nodes(ctx, c)
			Expect(err).ToNot(HaveOccurred())
		})

		AfterEach(func() {
			if CurrentSpecReport().Failed() {
				for name, logs := range stack.NodeLogs() {
					GinkgoWriter.Printf("=== %s ===\n%s\n", name, logs)
				}
			}
		})

		It("holds jobs pending while the execution nodes are down", func() {
			// Arrange
			var h *client.JobHandle
			ss := safestop.ForNodes(nodes...)

			// Act
			err := ss.Run(ctx, func(ctx context.Context) error {
				var err error
				if h, err = c.UpdateProject(ctx, project.ID); err != nil {
					return err
				}
				return waiter.EnsureStatusHeld(ctx, h, models.QueuedStatuses, pollInterval, 30*time.Second)
			})

			// Assert
			Expect(err).ToNot(HaveOccurred())
			job, err := waiter.WaitUntilCompleted(ctx, h, waitOpts()...)
			Expect(err).ToNot(HaveOccurred())
			Expect(job.IsSuccessful()).To(BeTrue(), "job did not run once the nodes came back: %s", job.JobExplanation)
		})
	})
})
