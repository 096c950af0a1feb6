package services_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/services"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

var _ = Describe("ControllerService", func() {
	var (
		ctx context.Context
		c   *services.ControllerService
	)

	BeforeEach(func() {
		ctx = context.Background()
		c = services.NewControllerService("password")
	})

	It("should seed the admin user and the system job templates", func() {
		_, ok := c.Authenticate("admin", "password")
		Expect(ok).To(BeTrue())

		sjts, err := c.List(ctx, "system_job_templates")
		Expect(err).NotTo(HaveOccurred())
		Expect(sjts).To(HaveLen(2))
	})

	// Given a new project
	// When it is created
	// Then it gets an id, an url and an update link
	It("should create resources with related links", func() {
		// Act
		p, err := c.Create(ctx, "projects", map[string]any{"name": "demo", "scm_type": "git"})

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Type).To(Equal("project"))
		Expect(p.URL).To(Equal("/api/v2/projects/1/"))
		Expect(p.Related).To(HaveKeyWithValue("update", "/api/v2/projects/1/update/"))
		Expect(p.Fields).To(HaveKeyWithValue("scm_type", "git"))
	})

	It("should reject duplicate names", func() {
		_, err := c.Create(ctx, "teams", map[string]any{"name": "qa"})
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Create(ctx, "teams", map[string]any{"name": "qa"})
		Expect(srvErrors.IsInvalidArgumentError(err)).To(BeTrue())
	})

	It("should reject unknown collections", func() {
		_, err := c.Create(ctx, "widgets", map[string]any{"name": "x"})
		Expect(srvErrors.IsUnknownKindError(err)).To(BeTrue())
	})

	It("should delete resources", func() {
		t, err := c.Create(ctx, "credentials", map[string]any{"name": "machine"})
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Delete(ctx, "credentials", t.ID)).To(Succeed())

		_, err = c.Get(ctx, "credentials", t.ID)
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})

	It("should associate and disassociate ids", func() {
		jt, err := c.Create(ctx, "job_templates", map[string]any{"name": "jt"})
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Associate(ctx, "job_templates", jt.ID, "notification_templates_success", 4, false)).To(Succeed())
		Expect(c.Associate(ctx, "job_templates", jt.ID, "notification_templates_success", 5, false)).To(Succeed())
		Expect(c.Associate(ctx, "job_templates", jt.ID, "notification_templates_success", 4, true)).To(Succeed())

		got, err := c.Get(ctx, "job_templates", jt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(services.IntList(got.Fields["notification_templates_success"])).To(Equal([]int{5}))
	})
})
