package v2

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tower-qa/tower-qa/internal/models"
)

// TimestampLayout is how the controller renders timestamps: UTC with microseconds.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// ParseTimestamp accepts any RFC 3339 timestamp, with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func parseOptional(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatTimestamp(*t)
	return &s
}

func (j UnifiedJob) ToModel() (models.UnifiedJob, error) {
	jobType, err := models.ParseJobType(j.Type)
	if err != nil {
		return models.UnifiedJob{}, err
	}
	status, err := models.ParseJobStatus(j.Status)
	if err != nil {
		return models.UnifiedJob{}, err
	}

	m := models.UnifiedJob{
		ID:                 j.ID,
		Type:               jobType,
		Name:               j.Name,
		Status:             status,
		Failed:             j.Failed,
		LaunchType:         j.LaunchType,
		UnifiedJobTemplate: j.UnifiedJobTemplate,
		InstanceGroup:      j.InstanceGroup,
		ExecutionNode:      j.ExecutionNode,
		ControllerNode:     j.ControllerNode,
		JobExplanation:     j.JobExplanation,
		ResultTraceback:    j.ResultTraceback,
		Elapsed:            j.Elapsed,
	}

	if j.Created != "" {
		if m.Created, err = ParseTimestamp(j.Created); err != nil {
			return models.UnifiedJob{}, fmt.Errorf("%s created: %w", m.Ref(), err)
		}
	}
	if m.Started, err = parseOptional(j.Started); err != nil {
		return models.UnifiedJob{}, fmt.Errorf("%s started: %w", m.Ref(), err)
	}
	if m.Finished, err = parseOptional(j.Finished); err != nil {
		return models.UnifiedJob{}, fmt.Errorf("%s finished: %w", m.Ref(), err)
	}

	return m, nil
}

func NewUnifiedJob(m models.UnifiedJob) UnifiedJob {
	return UnifiedJob{
		ID:                 m.ID,
		Type:               string(m.Type),
		URL:                fmt.Sprintf("/api/v2/%s/%d/", m.Type.Endpoint(), m.ID),
		Name:               m.Name,
		Status:             string(m.Status),
		Failed:             m.Failed,
		LaunchType:         m.LaunchType,
		UnifiedJobTemplate: m.UnifiedJobTemplate,
		InstanceGroup:      m.InstanceGroup,
		ExecutionNode:      m.ExecutionNode,
		ControllerNode:     m.ControllerNode,
		JobExplanation:     m.JobExplanation,
		ResultTraceback:    m.ResultTraceback,
		Elapsed:            m.Elapsed,
		Created:            FormatTimestamp(m.Created),
		Started:            formatOptional(m.Started),
		Finished:           formatOptional(m.Finished),
	}
}

// JobID picks the typed id of the launched job, falling back to ID.
func (r LaunchResponse) JobID() int {
	for _, id := range []int{r.Job, r.ProjectUpdate, r.InventoryUpdate, r.SystemJob, r.WorkflowJob, r.AdHocCommand} {
		if id != 0 {
			return id
		}
	}
	return r.ID
}

func (g InstanceGroup) ToModel() models.InstanceGroup {
	return models.InstanceGroup{
		ID:                       g.ID,
		Name:                     g.Name,
		Capacity:                 g.Capacity,
		ConsumedCapacity:         g.ConsumedCapacity,
		PercentCapacityRemaining: g.PercentCapacityRemaining,
		JobsRunning:              g.JobsRunning,
		JobsTotal:                g.JobsTotal,
		Instances:                g.Instances,
		IsContainerGroup:         g.IsContainerGroup,
		Credential:               g.Credential,
		PodSpecOverride:          g.PodSpecOverride,
	}
}

func NewInstanceGroup(m models.InstanceGroup) InstanceGroup {
	return InstanceGroup{
		ID:                       m.ID,
		Name:                     m.Name,
		Capacity:                 m.Capacity,
		ConsumedCapacity:         m.ConsumedCapacity,
		PercentCapacityRemaining: m.PercentCapacityRemaining,
		JobsRunning:              m.JobsRunning,
		JobsTotal:                m.JobsTotal,
		Instances:                m.Instances,
		IsContainerGroup:         m.IsContainerGroup,
		Credential:               m.Credential,
		PodSpecOverride:          m.PodSpecOverride,
	}
}

func (i Instance) ToModel() (models.Instance, error) {
	var adjustment float64
	if i.CapacityAdjustment != "" {
		v, err := strconv.ParseFloat(i.CapacityAdjustment, 64)
		if err != nil {
			return models.Instance{}, fmt.Errorf("instance %q capacity_adjustment: %w", i.Hostname, err)
		}
		adjustment = v
	}
	return models.Instance{
		ID:                       i.ID,
		Hostname:                 i.Hostname,
		NodeType:                 i.NodeType,
		Enabled:                  i.Enabled,
		Capacity:                 i.Capacity,
		CapacityAdjustment:       adjustment,
		CPUCapacity:              i.CPUCapacity,
		MemCapacity:              i.MemCapacity,
		ConsumedCapacity:         i.ConsumedCapacity,
		PercentCapacityRemaining: i.PercentCapacityRemaining,
		JobsRunning:              i.JobsRunning,
		ManagedByPolicy:          i.ManagedByPolicy,
	}, nil
}

func NewInstance(m models.Instance) Instance {
	return Instance{
		ID:                       m.ID,
		Hostname:                 m.Hostname,
		NodeType:                 m.NodeType,
		Enabled:                  m.Enabled,
		Capacity:                 m.Capacity,
		CapacityAdjustment:       strconv.FormatFloat(m.CapacityAdjustment, 'f', 2, 64),
		CPUCapacity:              m.CPUCapacity,
		MemCapacity:              m.MemCapacity,
		ConsumedCapacity:         m.ConsumedCapacity,
		PercentCapacityRemaining: m.PercentCapacityRemaining,
		JobsRunning:              m.JobsRunning,
		ManagedByPolicy:          m.ManagedByPolicy,
	}
}

func (t NotificationTemplate) ToModel() models.NotificationTemplate {
	return models.NotificationTemplate{
		ID:            t.ID,
		Name:          t.Name,
		Organization:  t.Organization,
		Type:          models.NotificationType(t.NotificationType),
		Configuration: t.NotificationConfiguration,
	}
}

func NewNotificationTemplate(m models.NotificationTemplate) NotificationTemplate {
	return NotificationTemplate{
		ID:                        m.ID,
		Name:                      m.Name,
		Organization:              m.Organization,
		NotificationType:          string(m.Type),
		NotificationConfiguration: m.Configuration,
	}
}

func (n Notification) ToModel() models.Notification {
	return models.Notification{
		ID:                   n.ID,
		NotificationTemplate: n.NotificationTemplate,
		Type:                 models.NotificationType(n.NotificationType),
		Status:               n.Status,
		Error:                n.Error,
		Subject:              n.Subject,
		NotificationsSent:    n.NotificationsSent,
	}
}

func NewNotification(m models.Notification) Notification {
	return Notification{
		ID:                   m.ID,
		NotificationTemplate: m.NotificationTemplate,
		NotificationType:     string(m.Type),
		Status:               m.Status,
		Error:                m.Error,
		Subject:              m.Subject,
		NotificationsSent:    m.NotificationsSent,
	}
}

func (l LicenseInfo) ToModel() models.LicenseInfo {
	return models.LicenseInfo{
		License: models.License{
			InstanceCount: l.InstanceCount,
			ContactEmail:  l.ContactEmail,
			CompanyName:   l.CompanyName,
			ContactName:   l.ContactName,
			LicenseType:   models.LicenseType(l.LicenseType),
			Features:      l.Features,
			EulaAccepted:  l.EulaAccepted,
			Trial:         l.Trial,
			LicenseDate:   l.LicenseDate,
			LicenseKey:    l.LicenseKey,
		},
		Valid:                l.Valid,
		Compliant:            l.Compliant,
		CurrentInstances:     l.CurrentInstances,
		AvailableInstances:   l.AvailableInstances,
		TimeRemaining:        l.TimeRemaining,
		GracePeriodRemaining: l.GracePeriodRemaining,
	}
}

func NewLicenseInfo(m models.LicenseInfo) LicenseInfo {
	return LicenseInfo{
		InstanceCount:        m.InstanceCount,
		ContactEmail:         m.ContactEmail,
		CompanyName:          m.CompanyName,
		ContactName:          m.ContactName,
		LicenseType:          string(m.LicenseType),
		Features:             m.Features,
		EulaAccepted:         m.EulaAccepted,
		Trial:                m.Trial,
		LicenseDate:          m.LicenseDate,
		LicenseKey:           m.LicenseKey,
		Valid:                m.Valid,
		Compliant:            m.Compliant,
		CurrentInstances:     m.CurrentInstances,
		AvailableInstances:   m.AvailableInstances,
		TimeRemaining:        m.TimeRemaining,
		GracePeriodRemaining: m.GracePeriodRemaining,
	}
}

// NewJobNotification is the webhook payload delivered for a finished job.
func NewJobNotification(job models.UnifiedJob) map[string]any {
	wire := NewUnifiedJob(job)
	body := map[string]any{
		"id":            job.ID,
		"name":          job.Name,
		"url":           wire.URL,
		"status":        string(job.Status),
		"friendly_name": FriendlyName(job.Type),
		"traceback":     job.ResultTraceback,
	}
	if wire.Started != nil {
		body["started"] = *wire.Started
	}
	if wire.Finished != nil {
		body["finished"] = *wire.Finished
	}
	return body
}

// FriendlyName is the human name of a job type used in notification messages.
func FriendlyName(t models.JobType) string {
	switch t {
	case models.JobTypeJob:
		return "Job"
	case models.JobTypeProjectUpdate:
		return "Project Update"
	case models.JobTypeInventoryUpdate:
		return "Inventory Update"
	case models.JobTypeAdHocCommand:
		return "AdHoc Command"
	case models.JobTypeSystemJob:
		return "System Job"
	case models.JobTypeWorkflowJob:
		return "Workflow Job"
	default:
		return string(t)
	}
}
