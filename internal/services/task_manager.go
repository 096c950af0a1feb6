package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/capacity"
	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
	"github.com/tower-qa/tower-qa/pkg/scheduler"
)

const (
	// DurationField and ResultField on a template control the simulated jobs it launches.
	DurationField = "simulated_duration"
	ResultField   = "simulated_status"

	defaultGroupID = 1
	nodeName       = "towerqa-fake"
)

// JobFinishedFunc is called once per job after it reaches a terminal status.
type JobFinishedFunc func(job models.UnifiedJob, template *models.Resource)

type simulatedJob struct {
	job      models.UnifiedJob
	template *models.Resource
	key      string
	duration time.Duration
	result   models.JobStatus
	future   *models.Future[models.Result[any]]
}

// TaskManager launches simulated jobs on a scheduler. Jobs sharing a
// serialization key run one at a time in launch order; the scheduler's
// worker count bounds how many unrelated jobs run at once.
type TaskManager struct {
	sched       *scheduler.Scheduler
	mu          sync.Mutex
	nextID      int
	jobs        map[int]*simulatedJob
	blocked     map[string]*models.Queue[*simulatedJob]
	active      map[string]int
	instance    models.Instance
	groups      map[int]*models.InstanceGroup
	nextGroupID int
	duration    time.Duration
	onFinished  []JobFinishedFunc
	now         func() time.Time
}

func NewTaskManager(cfg config.Server) *TaskManager {
	instance := models.Instance{
		ID:                 1,
		Hostname:           nodeName,
		NodeType:           "hybrid",
		Enabled:            true,
		CPUCapacity:        cfg.CPUCapacity,
		MemCapacity:        cfg.MemCapacity,
		CapacityAdjustment: cfg.CapacityAdjustment,
		ManagedByPolicy:    true,
	}
	instance.Capacity = capacity.ExpectedInstanceCapacity(instance)

	tm := &TaskManager{
		sched:       scheduler.NewScheduler(instance.Capacity),
		jobs:        make(map[int]*simulatedJob),
		blocked:     make(map[string]*models.Queue[*simulatedJob]),
		active:      make(map[string]int),
		instance:    instance,
		groups:      map[int]*models.InstanceGroup{defaultGroupID: {ID: defaultGroupID, Name: "tower", Instances: 1}},
		nextGroupID: defaultGroupID,
		duration:    cfg.JobDuration,
		now:         time.Now,
	}

	zap.S().Named("task_manager").Infow("task manager started", "capacity", instance.Capacity)

	return tm
}

// OnJobFinished registers fn to run after each job completes.
func (tm *TaskManager) OnJobFinished(fn JobFinishedFunc) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.onFinished = append(tm.onFinished, fn)
}

func (tm *TaskManager) Close() {
	tm.sched.Close()
}

// Launch creates a job of jobType from template and queues it.
func (tm *TaskManager) Launch(ctx context.Context, jobType models.JobType, template *models.Resource) (*models.UnifiedJob, error) {
	duration, err := tm.simulatedDuration(template)
	if err != nil {
		return nil, err
	}
	result := models.JobStatusSuccessful
	if s, ok := template.Fields[ResultField].(string); ok && s != "" {
		if result, err = models.ParseJobStatus(s); err != nil || !models.TerminalStatuses.Contains(result) {
			return nil, srvErrors.NewInvalidArgumentError(ResultField, fmt.Sprintf("%q is not a terminal status", s))
		}
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.nextID++
	group := defaultGroupID
	sj := &simulatedJob{
		job: models.UnifiedJob{
			ID:                 tm.nextID,
			Type:               jobType,
			Name:               template.Name,
			Status:             models.JobStatusPending,
			LaunchType:         "manual",
			UnifiedJobTemplate: template.ID,
			InstanceGroup:      &group,
			ControllerNode:     nodeName,
			Created:            tm.now(),
		},
		template: template,
		key:      serializationKey(jobType, template),
		duration: duration,
		result:   result,
	}
	tm.jobs[sj.job.ID] = sj

	log := zap.S().Named("task_manager")
	if sj.key != "" {
		if blocker, busy := tm.active[sj.key]; busy {
			q, ok := tm.blocked[sj.key]
			if !ok {
				q = &models.Queue[*simulatedJob]{}
				tm.blocked[sj.key] = q
			}
			q.Push(sj)
			log.Debugw("job blocked", "job", sj.job.Ref(), "key", sj.key, "blocked_by", blocker)
			j := sj.job
			return &j, nil
		}
	}

	tm.submit(sj)
	j := sj.job
	return &j, nil
}

// Get returns a snapshot of the job. A type mismatch is reported as not found.
func (tm *TaskManager) Get(ctx context.Context, ref models.JobRef) (*models.UnifiedJob, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	sj, ok := tm.jobs[ref.ID]
	if !ok || (ref.Type != "" && sj.job.Type != ref.Type) {
		return nil, srvErrors.NewResourceNotFoundError(string(ref.Type), strconv.Itoa(ref.ID))
	}
	j := sj.job
	return &j, nil
}

// JobFilter selects jobs in List. Zero fields match everything.
type JobFilter struct {
	Type     models.JobType
	Statuses []models.JobStatus
	IDs      []int
	Template int
}

func (f JobFilter) match(j models.UnifiedJob) bool {
	if f.Type != "" && j.Type != f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, j.Status) {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, j.ID) {
		return false
	}
	if f.Template != 0 && j.UnifiedJobTemplate != f.Template {
		return false
	}
	return true
}

// List returns matching jobs ordered by id.
func (tm *TaskManager) List(ctx context.Context, filter JobFilter) []models.UnifiedJob {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	out := []models.UnifiedJob{}
	for _, id := range slices.Sorted(maps.Keys(tm.jobs)) {
		if j := tm.jobs[id].job; filter.match(j) {
			out = append(out, j)
		}
	}
	return out
}

// Cancel stops a queued or running job. Finished jobs cannot be canceled.
func (tm *TaskManager) Cancel(ctx context.Context, ref models.JobRef) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	sj, ok := tm.jobs[ref.ID]
	if !ok || (ref.Type != "" && sj.job.Type != ref.Type) {
		return srvErrors.NewResourceNotFoundError(string(ref.Type), strconv.Itoa(ref.ID))
	}
	if sj.job.IsCompleted() {
		return srvErrors.NewInvalidStateError(fmt.Sprintf("%s is %s and cannot be canceled", sj.job.Ref(), sj.job.Status))
	}

	if sj.future != nil {
		sj.future.Stop()
		return nil
	}

	if q, ok := tm.blocked[sj.key]; ok {
		q.Remove(func(o *simulatedJob) bool { return o == sj })
	}
	tm.finish(sj, models.JobStatusCanceled, "")
	return nil
}

// Instances returns the single simulated node.
func (tm *TaskManager) Instances() []models.Instance {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return []models.Instance{tm.instanceLocked()}
}

// UpdateInstance applies enabled and capacity_adjustment changes.
func (tm *TaskManager) UpdateInstance(ctx context.Context, id int, enabled *bool, adjustment *float64) (*models.Instance, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if id != tm.instance.ID {
		return nil, srvErrors.NewResourceNotFoundError("instance", strconv.Itoa(id))
	}
	if enabled != nil {
		tm.instance.Enabled = *enabled
	}
	if adjustment != nil {
		if *adjustment < 0 || *adjustment > 1 {
			return nil, srvErrors.NewInvalidArgumentError("capacity_adjustment", "must be between 0 and 1")
		}
		tm.instance.CapacityAdjustment = *adjustment
	}
	i := tm.instanceLocked()
	return &i, nil
}

// InstanceGroups returns every group with its capacity accounting filled in.
func (tm *TaskManager) InstanceGroups() []models.InstanceGroup {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	out := make([]models.InstanceGroup, 0, len(tm.groups))
	for _, id := range slices.Sorted(maps.Keys(tm.groups)) {
		out = append(out, tm.groupLocked(id))
	}
	return out
}

func (tm *TaskManager) InstanceGroup(ctx context.Context, id int) (*models.InstanceGroup, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, ok := tm.groups[id]; !ok {
		return nil, srvErrors.NewResourceNotFoundError("instance_group", strconv.Itoa(id))
	}
	g := tm.groupLocked(id)
	return &g, nil
}

// CreateContainerGroup registers a container group. It has no instances and no capacity.
func (tm *TaskManager) CreateContainerGroup(ctx context.Context, name string, credential *int, podSpec string) (*models.InstanceGroup, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for _, g := range tm.groups {
		if g.Name == name {
			return nil, srvErrors.NewInvalidArgumentError("name", "instance group with this name already exists")
		}
	}
	tm.nextGroupID++
	g := &models.InstanceGroup{
		ID:               tm.nextGroupID,
		Name:             name,
		IsContainerGroup: true,
		Credential:       credential,
		PodSpecOverride:  podSpec,
	}
	tm.groups[g.ID] = g
	out := tm.groupLocked(g.ID)
	return &out, nil
}

func (tm *TaskManager) DeleteInstanceGroup(ctx context.Context, id int) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if id == defaultGroupID {
		return srvErrors.NewInvalidStateError("the tower instance group cannot be deleted")
	}
	if _, ok := tm.groups[id]; !ok {
		return srvErrors.NewResourceNotFoundError("instance_group", strconv.Itoa(id))
	}
	delete(tm.groups, id)
	return nil
}

func (tm *TaskManager) instanceLocked() models.Instance {
	i := tm.instance
	i.Capacity = 0
	if i.Enabled {
		i.Capacity = capacity.ExpectedInstanceCapacity(i)
	}
	i.JobsRunning = tm.consumedLocked()
	i.ConsumedCapacity = float64(i.JobsRunning)
	i.PercentCapacityRemaining = capacity.ExpectedPercentRemaining(i.Capacity, i.ConsumedCapacity)
	return i
}

func (tm *TaskManager) groupLocked(id int) models.InstanceGroup {
	g := *tm.groups[id]
	if g.IsContainerGroup {
		return g
	}
	i := tm.instanceLocked()
	g.Capacity = i.Capacity
	g.ConsumedCapacity = i.ConsumedCapacity
	g.JobsRunning = i.JobsRunning
	g.JobsTotal = len(tm.jobs)
	g.PercentCapacityRemaining = capacity.ExpectedPercentRemaining(g.Capacity, g.ConsumedCapacity)
	return g
}

// consumedLocked counts jobs holding a worker. Every simulated job has an impact of 1.
func (tm *TaskManager) consumedLocked() int {
	n := 0
	for _, sj := range tm.jobs {
		if sj.job.Status == models.JobStatusWaiting || sj.job.Status == models.JobStatusRunning {
			n++
		}
	}
	return n
}

func (tm *TaskManager) submit(sj *simulatedJob) {
	sj.job.Status = models.JobStatusWaiting
	if sj.key != "" {
		tm.active[sj.key] = sj.job.ID
	}
	sj.future = tm.sched.AddWork(func(ctx context.Context) (any, error) {
		return nil, tm.execute(ctx, sj)
	})
	zap.S().Named("task_manager").Debugw("job submitted", "job", sj.job.Ref(), "key", sj.key)
}

func (tm *TaskManager) execute(ctx context.Context, sj *simulatedJob) error {
	tm.mu.Lock()
	if ctx.Err() != nil {
		tm.finish(sj, models.JobStatusCanceled, "")
		tm.mu.Unlock()
		return ctx.Err()
	}
	started := tm.now()
	sj.job.Status = models.JobStatusRunning
	sj.job.Started = &started
	sj.job.ExecutionNode = nodeName
	tm.mu.Unlock()

	zap.S().Named("task_manager").Debugw("job running", "job", sj.job.Ref(), "duration", sj.duration)

	timer := time.NewTimer(sj.duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		explanation := ""
		if models.FailureStatuses.Contains(sj.result) {
			explanation = "simulated failure"
		}
		tm.mu.Lock()
		tm.finish(sj, sj.result, explanation)
		tm.mu.Unlock()
		return nil
	case <-ctx.Done():
		tm.mu.Lock()
		tm.finish(sj, models.JobStatusCanceled, "")
		tm.mu.Unlock()
		return ctx.Err()
	}
}

// finish records the terminal status, releases the job's key and starts the
// next job blocked on it. Callers hold tm.mu.
func (tm *TaskManager) finish(sj *simulatedJob, status models.JobStatus, explanation string) {
	now := tm.now()
	sj.job.Status = status
	sj.job.Failed = status != models.JobStatusSuccessful
	sj.job.JobExplanation = explanation
	sj.job.Finished = &now
	if sj.job.Started != nil {
		sj.job.Elapsed = now.Sub(*sj.job.Started).Seconds()
	}

	zap.S().Named("task_manager").Infow("job finished", "job", sj.job.Ref(), "status", status)

	if sj.key != "" && tm.active[sj.key] == sj.job.ID {
		delete(tm.active, sj.key)
		if q, ok := tm.blocked[sj.key]; ok && q.Len() > 0 {
			tm.submit(q.Pop())
		}
	}

	job := sj.job
	for _, fn := range tm.onFinished {
		go fn(job, sj.template)
	}
}

func (tm *TaskManager) simulatedDuration(template *models.Resource) (time.Duration, error) {
	switch v := template.Fields[DurationField].(type) {
	case nil:
		return tm.duration, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case int:
		return time.Duration(v) * time.Second, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, srvErrors.NewInvalidArgumentError(DurationField, err.Error())
		}
		return d, nil
	default:
		return 0, srvErrors.NewInvalidArgumentError(DurationField, fmt.Sprintf("unsupported value %v", v))
	}
}

// serializationKey names the lock a job must hold to run. Updates of the same
// project or inventory source, system jobs, and launches of a template that
// does not allow simultaneous runs are serialized.
func serializationKey(jobType models.JobType, template *models.Resource) string {
	switch jobType {
	case models.JobTypeProjectUpdate:
		return fmt.Sprintf("project:%d", template.ID)
	case models.JobTypeInventoryUpdate:
		return fmt.Sprintf("inventory_source:%d", template.ID)
	case models.JobTypeSystemJob:
		return "system"
	case models.JobTypeJob, models.JobTypeWorkflowJob:
		if simultaneous, _ := template.Fields["allow_simultaneous"].(bool); simultaneous {
			return ""
		}
		return fmt.Sprintf("%s:%d", template.Type, template.ID)
	default:
		return ""
	}
}
