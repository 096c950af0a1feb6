package services_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/capacity"
	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/services"
	"github.com/tower-qa/tower-qa/internal/timeline"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

var _ = Describe("TaskManager", func() {
	var (
		ctx context.Context
		tm  *services.TaskManager
		cfg config.Server
	)

	template := func(typ string, id int, fields map[string]any) *models.Resource {
		if fields == nil {
			fields = map[string]any{}
		}
		return &models.Resource{ID: id, Type: typ, Name: typ, Fields: fields}
	}

	launch := func(t models.JobType, tmpl *models.Resource) *models.UnifiedJob {
		j, err := tm.Launch(ctx, t, tmpl)
		Expect(err).NotTo(HaveOccurred())
		return j
	}

	completed := func(j *models.UnifiedJob) *models.UnifiedJob {
		var out *models.UnifiedJob
		Eventually(func() bool {
			var err error
			out, err = tm.Get(ctx, j.Ref())
			Expect(err).NotTo(HaveOccurred())
			return out.IsCompleted()
		}).WithTimeout(5 * time.Second).WithPolling(10 * time.Millisecond).Should(BeTrue())
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.Server{JobDuration: 100 * time.Millisecond, CPUCapacity: 2, MemCapacity: 2}
	})

	JustBeforeEach(func() {
		tm = services.NewTaskManager(cfg)
	})

	AfterEach(func() {
		tm.Close()
	})

	// Given a project
	// When an update is launched
	// Then it moves through pending to successful with both timestamps set
	It("should run a job to completion", func() {
		// Act
		j := launch(models.JobTypeProjectUpdate, template("project", 1, nil))

		// Assert
		Expect(j.Status).To(BeElementOf(models.JobStatusPending, models.JobStatusWaiting))
		Expect(j.Started).To(BeNil())
		done := completed(j)
		Expect(done.Status).To(Equal(models.JobStatusSuccessful))
		Expect(done.Failed).To(BeFalse())
		Expect(done.Started).NotTo(BeNil())
		Expect(done.Finished).NotTo(BeNil())
		Expect(done.Elapsed).To(BeNumerically(">", 0))
		Expect(done.ExecutionNode).NotTo(BeEmpty())
	})

	// Given three updates of the same project launched back to back
	// When they complete
	// Then they ran one after the other in launch order
	It("should serialize updates of the same project", func() {
		// Arrange
		project := template("project", 1, nil)

		// Act
		jobs := []*models.UnifiedJob{
			launch(models.JobTypeProjectUpdate, project),
			launch(models.JobTypeProjectUpdate, project),
			launch(models.JobTypeProjectUpdate, project),
		}
		for i := range jobs {
			jobs[i] = completed(jobs[i])
		}

		// Assert
		Expect(timeline.CheckSequentialJobs(timeline.Jobs(jobs...)...)).To(Succeed())
		Expect(timeline.CheckJobOrder(timeline.Jobs(jobs...)...)).To(Succeed())
	})

	// Given updates of two different inventory sources
	// When both are launched
	// Then they run concurrently
	It("should run unrelated updates concurrently", func() {
		// Act
		a := launch(models.JobTypeInventoryUpdate, template("inventory_source", 1, nil))
		b := launch(models.JobTypeInventoryUpdate, template("inventory_source", 2, nil))

		// Assert
		Expect(timeline.CheckOverlappingJobs(completed(a), completed(b))).To(Succeed())
	})

	It("should serialize system jobs across templates", func() {
		a := launch(models.JobTypeSystemJob, template("system_job_template", 1, nil))
		b := launch(models.JobTypeSystemJob, template("system_job_template", 2, nil))

		Expect(timeline.CheckSequentialJobs(timeline.Job(completed(a)), timeline.Job(completed(b)))).To(Succeed())
	})

	It("should let templates that allow simultaneous runs overlap", func() {
		jt := template("job_template", 1, map[string]any{"allow_simultaneous": true})

		a := launch(models.JobTypeJob, jt)
		b := launch(models.JobTypeJob, jt)

		Expect(timeline.CheckOverlappingJobs(completed(a), completed(b))).To(Succeed())
	})

	Context("with a single worker", func() {
		BeforeEach(func() {
			cfg.CPUCapacity = 1
			cfg.MemCapacity = 1
		})

		// Given capacity for one job
		// When two unrelated jobs are launched
		// Then the second waits for the first
		It("should not exceed capacity", func() {
			// Act
			a := launch(models.JobTypeInventoryUpdate, template("inventory_source", 1, nil))
			b := launch(models.JobTypeInventoryUpdate, template("inventory_source", 2, nil))

			// Assert
			Expect(timeline.CheckSequentialJobs(timeline.Job(completed(a)), timeline.Job(completed(b)))).To(Succeed())
		})

		It("should report consistent capacity while a job runs", func() {
			// Arrange
			launch(models.JobTypeJob, template("job_template", 1, map[string]any{services.DurationField: "1s"}))

			// Act
			var groups []models.InstanceGroup
			Eventually(func() float64 {
				groups = tm.InstanceGroups()
				return groups[0].ConsumedCapacity
			}).WithTimeout(2 * time.Second).Should(Equal(1.0))

			// Assert
			Expect(groups[0].PercentCapacityRemaining).To(Equal(0.0))
			Expect(capacity.CheckPercentCapacityRemaining(groups[0])).To(Succeed())
			Expect(capacity.CheckInstanceCapacity(tm.Instances()[0])).To(Succeed())
		})
	})

	It("should fail jobs whose template asks for it", func() {
		j := launch(models.JobTypeJob, template("job_template", 1, map[string]any{services.ResultField: "failed"}))

		done := completed(j)
		Expect(done.Status).To(Equal(models.JobStatusFailed))
		Expect(done.Failed).To(BeTrue())
		Expect(done.JobExplanation).NotTo(BeEmpty())
	})

	It("should reject a non-terminal simulated status", func() {
		_, err := tm.Launch(ctx, models.JobTypeJob, template("job_template", 1, map[string]any{services.ResultField: "running"}))
		Expect(srvErrors.IsInvalidArgumentError(err)).To(BeTrue())
	})

	Context("Cancel", func() {
		// Given a running update and a second one blocked behind it
		// When the blocked one is canceled
		// Then it never starts and the running one is unaffected
		It("should cancel a blocked job without starting it", func() {
			// Arrange
			project := template("project", 1, map[string]any{services.DurationField: "300ms"})
			first := launch(models.JobTypeProjectUpdate, project)
			second := launch(models.JobTypeProjectUpdate, project)

			// Act
			Expect(tm.Cancel(ctx, second.Ref())).To(Succeed())

			// Assert
			canceled := completed(second)
			Expect(canceled.Status).To(Equal(models.JobStatusCanceled))
			Expect(canceled.Started).To(BeNil())
			Expect(completed(first).Status).To(Equal(models.JobStatusSuccessful))
		})

		It("should cancel a running job", func() {
			j := launch(models.JobTypeJob, template("job_template", 1, map[string]any{services.DurationField: "10s"}))
			Eventually(func() models.JobStatus {
				got, _ := tm.Get(ctx, j.Ref())
				return got.Status
			}).WithTimeout(2 * time.Second).Should(Equal(models.JobStatusRunning))

			Expect(tm.Cancel(ctx, j.Ref())).To(Succeed())

			done := completed(j)
			Expect(done.Status).To(Equal(models.JobStatusCanceled))
			Expect(done.Started).NotTo(BeNil())
		})

		It("should refuse to cancel a finished job", func() {
			j := completed(launch(models.JobTypeJob, template("job_template", 1, nil)))
			Expect(srvErrors.IsInvalidStateError(tm.Cancel(ctx, j.Ref()))).To(BeTrue())
		})
	})

	It("should report unknown jobs as not found", func() {
		_, err := tm.Get(ctx, models.JobRef{Type: models.JobTypeJob, ID: 999})
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})

	It("should notify listeners once per finished job", func() {
		finished := make(chan models.UnifiedJob, 1)
		tm.OnJobFinished(func(job models.UnifiedJob, _ *models.Resource) { finished <- job })

		j := launch(models.JobTypeAdHocCommand, template("inventory", 1, nil))

		Eventually(finished).WithTimeout(2 * time.Second).Should(Receive(HaveField("ID", j.ID)))
	})

	It("should create and list container groups", func() {
		g, err := tm.CreateContainerGroup(ctx, "openshift", nil, "apiVersion: v1\nkind: Pod\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(g.IsContainerGroup).To(BeTrue())
		Expect(tm.InstanceGroups()).To(HaveLen(2))
		Expect(tm.DeleteInstanceGroup(ctx, g.ID)).To(Succeed())
	})
})
