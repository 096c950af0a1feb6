package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/services"
)

var _ = Describe("NotificationService", func() {
	var (
		ctx        context.Context
		controller *services.ControllerService
		svc        *services.NotificationService
		hook       *httptest.Server
		mu         sync.Mutex
		received   []map[string]any
	)

	BeforeEach(func() {
		ctx = context.Background()
		received = nil
		hook = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			received = append(received, body)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		controller = services.NewControllerService("password")
		svc = services.NewNotificationService(controller)
	})

	AfterEach(func() {
		hook.Close()
	})

	bodies := func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return append([]map[string]any(nil), received...)
	}

	webhook := func(url string) *models.Resource {
		nt, err := controller.Create(ctx, "notification_templates", map[string]any{
			"name":                       "hook",
			"notification_type":          "webhook",
			"notification_configuration": map[string]any{"url": url},
		})
		Expect(err).NotTo(HaveOccurred())
		return nt
	}

	It("should deliver a test notification to a webhook", func() {
		nt := webhook(hook.URL)

		n, err := svc.Test(ctx, nt.ID)

		Expect(err).NotTo(HaveOccurred())
		Expect(n.Status).To(Equal("successful"))
		Expect(bodies()).To(ConsistOf(HaveKeyWithValue("body", "Tower Notification Test 1")))
		Expect(svc.List(ctx, nt.ID)).To(HaveLen(1))
	})

	It("should record a failed delivery", func() {
		nt := webhook("http://127.0.0.1:1/unreachable")

		n, err := svc.Test(ctx, nt.ID)

		Expect(err).NotTo(HaveOccurred())
		Expect(n.Status).To(Equal("failed"))
		Expect(n.Error).NotTo(BeEmpty())
	})

	It("should record unsupported types as failed", func() {
		nt, err := controller.Create(ctx, "notification_templates", map[string]any{"name": "irc", "notification_type": "irc"})
		Expect(err).NotTo(HaveOccurred())

		n, err := svc.Test(ctx, nt.ID)

		Expect(err).NotTo(HaveOccurred())
		Expect(n.Status).To(Equal("failed"))
	})

	// Given a job template with a success notification
	// When a job of it finishes successfully
	// Then the webhook receives the job summary
	It("should notify the success templates of a finished job", func() {
		// Arrange
		nt := webhook(hook.URL)
		jt, err := controller.Create(ctx, "job_templates", map[string]any{"name": "jt"})
		Expect(err).NotTo(HaveOccurred())
		Expect(controller.Associate(ctx, "job_templates", jt.ID, "notification_templates_success", nt.ID, false)).To(Succeed())
		now := time.Now()
		job := models.UnifiedJob{ID: 3, Type: models.JobTypeJob, Name: "jt", Status: models.JobStatusSuccessful, Started: &now, Finished: &now}

		// Act
		svc.JobFinished(job, jt)

		// Assert
		Expect(bodies()).To(ConsistOf(And(
			HaveKeyWithValue("id", BeNumerically("==", 3)),
			HaveKeyWithValue("status", "successful"),
			HaveKeyWithValue("friendly_name", "Job"),
		)))
	})

	It("should not notify success templates of a failed job", func() {
		nt := webhook(hook.URL)
		jt, err := controller.Create(ctx, "job_templates", map[string]any{"name": "jt"})
		Expect(err).NotTo(HaveOccurred())
		Expect(controller.Associate(ctx, "job_templates", jt.ID, "notification_templates_success", nt.ID, false)).To(Succeed())

		svc.JobFinished(models.UnifiedJob{ID: 4, Type: models.JobTypeJob, Status: models.JobStatusFailed}, jt)

		Expect(bodies()).To(BeEmpty())
	})
})
