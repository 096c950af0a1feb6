package models

import (
	"fmt"
	"time"
)

// Interval is the closed time range a job (or a group of jobs) occupied.
type Interval struct {
	Label string
	Start time.Time
	End   time.Time
}

// Overlaps reports whether both intervals share a non-empty span.
// Touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) String() string {
	return fmt.Sprintf("%s [%s, %s]", i.Label, i.Start.UTC().Format(time.RFC3339Nano), i.End.UTC().Format(time.RFC3339Nano))
}
