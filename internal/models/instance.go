package models

// InstanceGroup is a pool of execution capacity.
type InstanceGroup struct {
	ID                       int
	Name                     string
	Capacity                 int
	ConsumedCapacity         float64
	PercentCapacityRemaining float64
	JobsRunning              int
	JobsTotal                int
	Instances                int
	IsContainerGroup         bool
	Credential               *int
	PodSpecOverride          string
}

// Instance is one node contributing capacity to instance groups.
type Instance struct {
	ID                       int
	Hostname                 string
	NodeType                 string
	Enabled                  bool
	Capacity                 int
	CapacityAdjustment       float64
	CPUCapacity              int
	MemCapacity              int
	ConsumedCapacity         float64
	PercentCapacityRemaining float64
	JobsRunning              int
	ManagedByPolicy          bool
}
