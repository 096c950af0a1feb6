// Package v2 holds the wire types of the controller REST API under /api/v2/.
// Field names follow the controller's JSON exactly. Conversions to the
// harness models live in extension.go.
package v2

// Page is the envelope of every list endpoint.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// UnifiedJob is the common shape of jobs, project updates, inventory updates,
// ad hoc commands, system jobs and workflow jobs. Timestamps are ISO-8601
// strings; started and finished are null until the job reaches that point.
type UnifiedJob struct {
	ID                 int     `json:"id"`
	Type               string  `json:"type"`
	URL                string  `json:"url"`
	Name               string  `json:"name"`
	Status             string  `json:"status"`
	Failed             bool    `json:"failed"`
	LaunchType         string  `json:"launch_type"`
	UnifiedJobTemplate int     `json:"unified_job_template"`
	InstanceGroup      *int    `json:"instance_group"`
	ExecutionNode      string  `json:"execution_node"`
	ControllerNode     string  `json:"controller_node"`
	JobExplanation     string  `json:"job_explanation"`
	ResultTraceback    string  `json:"result_traceback"`
	Elapsed            float64 `json:"elapsed"`
	Created            string  `json:"created"`
	Started            *string `json:"started"`
	Finished           *string `json:"finished"`
}

// LaunchResponse is returned by launch and update endpoints. Depending on the
// template kind exactly one of the typed id fields is set alongside ID.
type LaunchResponse struct {
	ID              int    `json:"id"`
	Type            string `json:"type"`
	Job             int    `json:"job,omitempty"`
	ProjectUpdate   int    `json:"project_update,omitempty"`
	InventoryUpdate int    `json:"inventory_update,omitempty"`
	SystemJob       int    `json:"system_job,omitempty"`
	WorkflowJob     int    `json:"workflow_job,omitempty"`
	AdHocCommand    int    `json:"ad_hoc_command,omitempty"`
}

type InstanceGroup struct {
	ID                       int     `json:"id"`
	Name                     string  `json:"name"`
	Capacity                 int     `json:"capacity"`
	ConsumedCapacity         float64 `json:"consumed_capacity"`
	PercentCapacityRemaining float64 `json:"percent_capacity_remaining"`
	JobsRunning              int     `json:"jobs_running"`
	JobsTotal                int     `json:"jobs_total"`
	Instances                int     `json:"instances"`
	IsContainerGroup         bool    `json:"is_container_group"`
	Credential               *int    `json:"credential"`
	PodSpecOverride          string  `json:"pod_spec_override"`
}

type Instance struct {
	ID                       int     `json:"id"`
	Hostname                 string  `json:"hostname"`
	NodeType                 string  `json:"node_type"`
	Enabled                  bool    `json:"enabled"`
	Capacity                 int     `json:"capacity"`
	CapacityAdjustment       string  `json:"capacity_adjustment"`
	CPUCapacity              int     `json:"cpu_capacity"`
	MemCapacity              int     `json:"mem_capacity"`
	ConsumedCapacity         float64 `json:"consumed_capacity"`
	PercentCapacityRemaining float64 `json:"percent_capacity_remaining"`
	JobsRunning              int     `json:"jobs_running"`
	ManagedByPolicy          bool    `json:"managed_by_policy"`
}

type NotificationTemplate struct {
	ID                        int            `json:"id"`
	Name                      string         `json:"name"`
	Organization              int            `json:"organization"`
	NotificationType          string         `json:"notification_type"`
	NotificationConfiguration map[string]any `json:"notification_configuration"`
}

type Notification struct {
	ID                   int    `json:"id"`
	NotificationTemplate int    `json:"notification_template"`
	NotificationType     string `json:"notification_type"`
	Status               string `json:"status"`
	Error                string `json:"error"`
	Subject              string `json:"subject"`
	NotificationsSent    int    `json:"notifications_sent"`
}

// Config is the subset of /api/v2/config/ the harness reads.
type Config struct {
	Version     string       `json:"version"`
	LicenseInfo *LicenseInfo `json:"license_info"`
}

type LicenseInfo struct {
	InstanceCount        int             `json:"instance_count"`
	ContactEmail         string          `json:"contact_email"`
	CompanyName          string          `json:"company_name"`
	ContactName          string          `json:"contact_name"`
	LicenseType          string          `json:"license_type"`
	Features             map[string]bool `json:"features"`
	EulaAccepted         bool            `json:"eula_accepted"`
	Trial                *bool           `json:"trial,omitempty"`
	LicenseDate          int64           `json:"license_date"`
	LicenseKey           string          `json:"license_key"`
	Valid                bool            `json:"valid_key"`
	Compliant            bool            `json:"compliant"`
	CurrentInstances     int             `json:"current_instances"`
	AvailableInstances   int             `json:"available_instances"`
	TimeRemaining        int64           `json:"time_remaining"`
	GracePeriodRemaining int64           `json:"grace_period_remaining"`
}

type Ping struct {
	Version     string         `json:"version"`
	HA          bool           `json:"ha"`
	ActiveNode  string         `json:"active_node"`
	InstallUUID string         `json:"install_uuid"`
	Instances   []PingInstance `json:"instances"`
}

type PingInstance struct {
	Node      string `json:"node"`
	NodeType  string `json:"node_type"`
	Capacity  int    `json:"capacity"`
	Heartbeat string `json:"heartbeat"`
}

type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	IsSuperuser bool   `json:"is_superuser"`
}

type Token struct {
	ID      int    `json:"id"`
	Token   string `json:"token"`
	Scope   string `json:"scope"`
	Expires string `json:"expires"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Detail string `json:"detail"`
}
