// Package timeline checks how finished jobs were laid out in time.
//
// The controller guarantees some jobs never overlap (two updates of the same
// project, two syncs of the same inventory source, any two system jobs) and
// that unrelated work can run side by side. These invariants are only
// observable after the fact, from the started and finished timestamps of
// each job, so the checks here take job snapshots that already reached a
// terminal status.
//
// Entries are single jobs or groups. A group stands for jobs launched
// together that must have run concurrently; it collapses to the span from its
// earliest start to its latest finish. Every pair of members has to overlap,
// which for intervals is the same as all members sharing a common instant.
//
//	series, err := timeline.ConstructTimeSeries(
//	    timeline.Job(projectUpdate),
//	    timeline.Group(inventoryUpdateA, inventoryUpdateB),
//	    timeline.Job(jobRun),
//	)
//
// Comparisons are strict. Two intervals that touch at a single instant are
// sequential, not overlapping.
package timeline
