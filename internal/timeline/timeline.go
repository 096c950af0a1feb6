package timeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// Entry is either a single job or a group of jobs that ran as one concurrent unit.
type Entry struct {
	jobs  []*models.UnifiedJob
	group bool
}

// Job wraps a single job.
func Job(j *models.UnifiedJob) Entry {
	return Entry{jobs: []*models.UnifiedJob{j}}
}

// Jobs wraps each job as its own entry.
func Jobs(jobs ...*models.UnifiedJob) []Entry {
	entries := make([]Entry, 0, len(jobs))
	for _, j := range jobs {
		entries = append(entries, Job(j))
	}
	return entries
}

// Group wraps jobs expected to have run concurrently.
func Group(jobs ...*models.UnifiedJob) Entry {
	return Entry{jobs: jobs, group: true}
}

func (e Entry) IsGroup() bool {
	return e.group
}

func (e Entry) Members() []*models.UnifiedJob {
	return e.jobs
}

func (e Entry) label() string {
	if !e.group {
		return e.jobs[0].Ref().String()
	}
	refs := make([]string, 0, len(e.jobs))
	for _, j := range e.jobs {
		refs = append(refs, j.Ref().String())
	}
	return "group(" + strings.Join(refs, "+") + ")"
}

// ConstructTimeSeries turns entries into intervals, preserving input order.
// A group becomes [earliest start, latest finish] after checking that its
// members really overlapped.
func ConstructTimeSeries(entries ...Entry) ([]models.Interval, error) {
	series := make([]models.Interval, 0, len(entries))
	for i, e := range entries {
		iv, err := e.interval()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		series = append(series, iv)
	}
	return series, nil
}

func (e Entry) interval() (models.Interval, error) {
	if len(e.jobs) == 0 {
		return models.Interval{}, srvErrors.NewInvalidArgumentError("group", "must contain at least one job")
	}
	for _, j := range e.jobs {
		if j == nil {
			return models.Interval{}, srvErrors.NewInvalidArgumentError("job", "must not be nil")
		}
	}
	if !e.group {
		return e.jobs[0].Interval()
	}

	members := make([]models.Interval, 0, len(e.jobs))
	for _, j := range e.jobs {
		iv, err := j.Interval()
		if err != nil {
			return models.Interval{}, err
		}
		members = append(members, iv)
	}
	for a := 0; a < len(e.jobs); a++ {
		for b := a + 1; b < len(e.jobs); b++ {
			if err := CheckOverlappingJobs(e.jobs[a], e.jobs[b]); err != nil {
				return models.Interval{}, err
			}
		}
	}

	out := models.Interval{Label: e.label(), Start: members[0].Start, End: members[0].End}
	for _, m := range members[1:] {
		if m.Start.Before(out.Start) {
			out.Start = m.Start
		}
		if m.End.After(out.End) {
			out.End = m.End
		}
	}
	return out, nil
}

// CheckSequentialJobs sorts the entries by start and requires each one to
// finish strictly before the next one starts.
func CheckSequentialJobs(entries ...Entry) error {
	series, err := ConstructTimeSeries(entries...)
	if err != nil {
		return err
	}
	sorted := slices.Clone(series)
	slices.SortStableFunc(sorted, func(a, b models.Interval) int {
		return a.Start.Compare(b.Start)
	})
	for i := 1; i < len(sorted); i++ {
		if !sorted[i-1].End.Before(sorted[i].Start) {
			return srvErrors.NewOrderingError("sequential",
				fmt.Sprintf("%s finished at %s, not before %s started at %s",
					sorted[i-1].Label, stamp(sorted[i-1].End), sorted[i].Label, stamp(sorted[i].Start)),
				render(sorted))
		}
	}
	return nil
}

// CheckJobOrder requires the entries, in the given order, to be sorted by
// start time and by finish time.
func CheckJobOrder(entries ...Entry) error {
	series, err := ConstructTimeSeries(entries...)
	if err != nil {
		return err
	}
	for i := 1; i < len(series); i++ {
		if series[i].Start.Before(series[i-1].Start) {
			return srvErrors.NewOrderingError("order",
				fmt.Sprintf("%s started before %s", series[i].Label, series[i-1].Label),
				render(series))
		}
		if series[i].End.Before(series[i-1].End) {
			return srvErrors.NewOrderingError("order",
				fmt.Sprintf("%s finished before %s", series[i].Label, series[i-1].Label),
				render(series))
		}
	}
	return nil
}

// CheckOverlappingJobs requires a and b to have run at the same time for a
// non-empty span.
func CheckOverlappingJobs(a, b *models.UnifiedJob) error {
	ia, err := a.Interval()
	if err != nil {
		return err
	}
	ib, err := b.Interval()
	if err != nil {
		return err
	}
	if !ia.Overlaps(ib) {
		return srvErrors.NewOrderingError("overlap",
			fmt.Sprintf("%s and %s did not run concurrently", ia.Label, ib.Label),
			render([]models.Interval{ia, ib}))
	}
	return nil
}

func render(series []models.Interval) []string {
	out := make([]string, 0, len(series))
	for _, iv := range series {
		out = append(out, iv.String())
	}
	return out
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
