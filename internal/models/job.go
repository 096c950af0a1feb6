package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// JobStatus is the lifecycle status of a unified job.
type JobStatus string

const (
	JobStatusNew        JobStatus = "new"
	JobStatusPending    JobStatus = "pending"
	JobStatusWaiting    JobStatus = "waiting"
	JobStatusRunning    JobStatus = "running"
	JobStatusSuccessful JobStatus = "successful"
	JobStatusFailed     JobStatus = "failed"
	JobStatusError      JobStatus = "error"
	JobStatusCanceled   JobStatus = "canceled"
)

func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(strings.ToLower(s))
	if !slices.Contains(AllStatuses, status) {
		return "", fmt.Errorf("invalid job status: %s", s)
	}
	return status, nil
}

// StatusSet is an unordered set of statuses used as a wait predicate.
type StatusSet []JobStatus

var (
	AllStatuses = StatusSet{
		JobStatusNew, JobStatusPending, JobStatusWaiting, JobStatusRunning,
		JobStatusSuccessful, JobStatusFailed, JobStatusError, JobStatusCanceled,
	}
	// TerminalStatuses are final: started and finished are set once a job reaches one.
	TerminalStatuses = StatusSet{JobStatusSuccessful, JobStatusFailed, JobStatusError, JobStatusCanceled}
	QueuedStatuses   = StatusSet{JobStatusNew, JobStatusPending, JobStatusWaiting}
	StartedStatuses  = StatusSet{JobStatusRunning, JobStatusSuccessful, JobStatusFailed, JobStatusError, JobStatusCanceled}
	FailureStatuses  = StatusSet{JobStatusFailed, JobStatusError}
)

func (s StatusSet) Contains(status JobStatus) bool {
	return slices.Contains(s, status)
}

func (s StatusSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, st := range s {
		out = append(out, string(st))
	}
	return out
}

// JobType is the concrete kind behind a unified job.
type JobType string

const (
	JobTypeJob             JobType = "job"
	JobTypeProjectUpdate   JobType = "project_update"
	JobTypeInventoryUpdate JobType = "inventory_update"
	JobTypeAdHocCommand    JobType = "ad_hoc_command"
	JobTypeSystemJob       JobType = "system_job"
	JobTypeWorkflowJob     JobType = "workflow_job"
)

var jobEndpoints = map[JobType]string{
	JobTypeJob:             "jobs",
	JobTypeProjectUpdate:   "project_updates",
	JobTypeInventoryUpdate: "inventory_updates",
	JobTypeAdHocCommand:    "ad_hoc_commands",
	JobTypeSystemJob:       "system_jobs",
	JobTypeWorkflowJob:     "workflow_jobs",
}

func ParseJobType(s string) (JobType, error) {
	t := JobType(strings.ToLower(s))
	if _, ok := jobEndpoints[t]; !ok {
		return "", fmt.Errorf("invalid job type: %s", s)
	}
	return t, nil
}

// Endpoint is the collection name of the job type under /api/v2/.
func (t JobType) Endpoint() string {
	return jobEndpoints[t]
}

// JobRef identifies a job by type and id, written as "type/id".
type JobRef struct {
	Type JobType
	ID   int
}

func ParseJobRef(s string) (JobRef, error) {
	kind, id, ok := strings.Cut(s, "/")
	if !ok {
		return JobRef{}, fmt.Errorf("invalid job reference %q: expected type/id", s)
	}
	t, err := ParseJobType(kind)
	if err != nil {
		return JobRef{}, err
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return JobRef{}, fmt.Errorf("invalid job reference %q: bad id", s)
	}
	return JobRef{Type: t, ID: n}, nil
}

func (r JobRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// UnifiedJob is the polymorphic job record shared by all job types.
type UnifiedJob struct {
	ID                 int
	Type               JobType
	Name               string
	Status             JobStatus
	Failed             bool
	LaunchType         string
	UnifiedJobTemplate int
	InstanceGroup      *int
	ExecutionNode      string
	ControllerNode     string
	JobExplanation     string
	ResultTraceback    string
	Elapsed            float64
	Created            time.Time
	Started            *time.Time
	Finished           *time.Time
}

func (j *UnifiedJob) Ref() JobRef {
	return JobRef{Type: j.Type, ID: j.ID}
}

func (j *UnifiedJob) IsCompleted() bool {
	return TerminalStatuses.Contains(j.Status)
}

func (j *UnifiedJob) IsSuccessful() bool {
	return j.Status == JobStatusSuccessful && !j.Failed
}

// Interval returns [started, finished]. Jobs that never started or never
// finished have no interval, and neither does a job that finished before it
// started.
func (j *UnifiedJob) Interval() (Interval, error) {
	if j.Started == nil {
		return Interval{}, fmt.Errorf("%s (status %s) has no started timestamp", j.Ref(), j.Status)
	}
	if j.Finished == nil {
		return Interval{}, fmt.Errorf("%s (status %s) has no finished timestamp", j.Ref(), j.Status)
	}
	if j.Finished.Before(*j.Started) {
		return Interval{}, fmt.Errorf("%s (status %s) finished at %s before it started at %s",
			j.Ref(), j.Status, j.Finished.Format(time.RFC3339Nano), j.Started.Format(time.RFC3339Nano))
	}
	return Interval{Label: j.Ref().String(), Start: *j.Started, End: *j.Finished}, nil
}
