package client_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/timeline"
	"github.com/tower-qa/tower-qa/internal/waiter"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

var _ = Describe("Jobs", func() {
	var (
		ctx context.Context
		c   *client.Client
	)

	wait := func(h *client.JobHandle) *models.UnifiedJob {
		j, err := waiter.WaitUntilCompleted(ctx, h, waiter.WithInterval(10*time.Millisecond), waiter.WithTimeout(5*time.Second))
		Expect(err).NotTo(HaveOccurred())
		return j
	}

	BeforeEach(func() {
		ctx = context.Background()
		_, c = startController()
	})

	It("should launch a job template and wait for it", func() {
		jt, err := c.Create(ctx, "job_templates", map[string]any{"name": "jt"})
		Expect(err).NotTo(HaveOccurred())

		h, err := c.LaunchJobTemplate(ctx, jt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Ref.Type).To(Equal(models.JobTypeJob))

		j := wait(h)
		Expect(j.Status).To(Equal(models.JobStatusSuccessful))
		Expect(j.Started).NotTo(BeNil())
		Expect(j.Finished).NotTo(BeNil())
		Expect(j.Finished.Before(*j.Started)).To(BeFalse())
	})

	// Given three updates of the same project
	// When they are launched back to back
	// Then they run one at a time in launch order
	It("should observe serialized project updates", func() {
		// Arrange
		p, err := c.Create(ctx, "projects", map[string]any{"name": "p"})
		Expect(err).NotTo(HaveOccurred())

		// Act
		var handles []*client.JobHandle
		for range 3 {
			h, err := c.UpdateProject(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			handles = append(handles, h)
		}
		var jobs []*models.UnifiedJob
		for _, h := range handles {
			jobs = append(jobs, wait(h))
		}

		// Assert
		Expect(timeline.CheckSequentialJobs(timeline.Jobs(jobs...)...)).To(Succeed())
		Expect(timeline.CheckJobOrder(timeline.Jobs(jobs...)...)).To(Succeed())
	})

	It("should run updates of different inventory sources concurrently", func() {
		a, err := c.Create(ctx, "inventory_sources", map[string]any{"name": "a", "simulated_duration": "300ms"})
		Expect(err).NotTo(HaveOccurred())
		b, err := c.Create(ctx, "inventory_sources", map[string]any{"name": "b", "simulated_duration": "300ms"})
		Expect(err).NotTo(HaveOccurred())

		ha, err := c.UpdateInventorySource(ctx, a.ID)
		Expect(err).NotTo(HaveOccurred())
		hb, err := c.UpdateInventorySource(ctx, b.ID)
		Expect(err).NotTo(HaveOccurred())

		Expect(timeline.CheckOverlappingJobs(wait(ha), wait(hb))).To(Succeed())
	})

	It("should list jobs with filters", func() {
		jt, err := c.Create(ctx, "job_templates", map[string]any{"name": "jt", "allow_simultaneous": true})
		Expect(err).NotTo(HaveOccurred())
		var last *client.JobHandle
		for range 3 {
			last, err = c.LaunchJobTemplate(ctx, jt.ID)
			Expect(err).NotTo(HaveOccurred())
		}
		wait(last)

		all, err := c.ListJobs(ctx, client.JobQuery{Type: models.JobTypeJob, Descending: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
		Expect(all[0].ID).To(BeNumerically(">", all[2].ID))

		some, err := c.ListJobs(ctx, client.JobQuery{IDs: []int{all[0].ID, all[2].ID}})
		Expect(err).NotTo(HaveOccurred())
		Expect(some).To(HaveLen(2))

		byTemplate, err := c.ListJobs(ctx, client.JobQuery{Template: jt.ID, Statuses: models.TerminalStatuses})
		Expect(err).NotTo(HaveOccurred())
		Expect(len(byTemplate)).To(BeNumerically(">=", 1))
	})

	It("should cancel a running job", func() {
		jt, err := c.Create(ctx, "job_templates", map[string]any{"name": "slow", "simulated_duration": "10s"})
		Expect(err).NotTo(HaveOccurred())
		h, err := c.LaunchJobTemplate(ctx, jt.ID)
		Expect(err).NotTo(HaveOccurred())

		_, err = waiter.WaitUntilStarted(ctx, h, waiter.WithInterval(10*time.Millisecond), waiter.WithTimeout(5*time.Second))
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Cancel(ctx)).To(Succeed())

		j := wait(h)
		Expect(j.Status).To(Equal(models.JobStatusCanceled))

		err = h.Cancel(ctx)
		Expect(srvErrors.StatusCode(err)).To(Equal(405))
	})

	It("should run system jobs and ad hoc commands", func() {
		h, err := c.LaunchSystemJobTemplate(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Ref.Type).To(Equal(models.JobTypeSystemJob))
		Expect(wait(h).IsSuccessful()).To(BeTrue())

		inv, err := c.Create(ctx, "inventories", map[string]any{"name": "inv"})
		Expect(err).NotTo(HaveOccurred())
		h, err = c.RunAdHocCommand(ctx, inv.ID, "ping", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Ref.Type).To(Equal(models.JobTypeAdHocCommand))
		Expect(wait(h).Name).To(Equal("ping"))
	})

	It("should not find a job under the wrong type", func() {
		_, err := c.GetJob(ctx, models.JobRef{Type: models.JobTypeSystemJob, ID: 1})
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})
})
