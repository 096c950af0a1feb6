package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/models"
)

var _ = Describe("Notifications", func() {
	var (
		ctx  context.Context
		c    *client.Client
		hook *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		_, c = startController()
		hook = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		DeferCleanup(hook.Close)
	})

	It("should test a webhook template and list the attempt", func() {
		nt, err := c.CreateNotificationTemplate(ctx, "hook", 1, models.NotificationTypeWebhook, map[string]any{"url": hook.URL})
		Expect(err).NotTo(HaveOccurred())
		Expect(nt.Type).To(Equal(models.NotificationTypeWebhook))

		id, err := c.TestNotification(ctx, nt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(BeNumerically(">", 0))

		ns, err := c.Notifications(ctx, nt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(ns).To(HaveLen(1))
		Expect(ns[0].Status).To(Equal("successful"))
	})

	It("should associate a template with job events", func() {
		nt, err := c.CreateNotificationTemplate(ctx, "hook", 1, models.NotificationTypeWebhook, map[string]any{"url": hook.URL})
		Expect(err).NotTo(HaveOccurred())
		jt, err := c.Create(ctx, "job_templates", map[string]any{"name": "jt"})
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Associate(ctx, "job_templates", jt.ID, "error", nt.ID)).To(Succeed())
		got, err := c.Get(ctx, "job_templates", jt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Fields["notification_templates_error"]).To(ConsistOf(BeEquivalentTo(nt.ID)))

		Expect(c.Disassociate(ctx, "job_templates", jt.ID, "error", nt.ID)).To(Succeed())
		got, err = c.Get(ctx, "job_templates", jt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Fields["notification_templates_error"]).To(BeEmpty())
	})
})
