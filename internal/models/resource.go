package models

import "time"

// Resource is a generic controller object as returned by a create or get.
type Resource struct {
	ID      int
	Type    string
	Name    string
	URL     string
	Related map[string]string
	Fields  map[string]any
}

// Observation is a job snapshot taken by a waiter at ObservedAt.
type Observation struct {
	RunID      string
	Job        UnifiedJob
	ObservedAt time.Time
}

// Run groups the observations recorded by one harness invocation.
type Run struct {
	ID         string
	Command    string
	Controller string
	StartedAt  time.Time
}
