// Package report renders the observation ledger as terminal tables or an
// XLSX workbook.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"

	"github.com/tower-qa/tower-qa/internal/models"
)

const (
	ObservationsSheet = "Observations"
	IntervalsSheet    = "Intervals"
)

var (
	observationHeader = []string{"observed", "run", "job", "name", "status", "node", "started", "finished", "elapsed"}
	intervalHeader    = []string{"job", "start", "end", "duration"}
)

type Option func(*options)

type options struct {
	color bool
	style table.Style
}

// WithColor colors headers and statuses.
func WithColor(enabled bool) Option {
	return func(o *options) { o.color = enabled }
}

func WithStyle(style table.Style) Option {
	return func(o *options) { o.style = style }
}

func newOptions(opts []Option) *options {
	o := &options{style: table.StyleRounded}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newTable(w io.Writer, o *options, header []string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(o.style)

	row := make(table.Row, len(header))
	for i, h := range header {
		if o.color {
			row[i] = text.FgHiCyan.Sprint(h)
		} else {
			row[i] = h
		}
	}
	t.AppendHeader(row)
	return t
}

// Observations renders one row per snapshot.
func Observations(w io.Writer, obs []models.Observation, opts ...Option) {
	o := newOptions(opts)
	t := newTable(w, o, observationHeader)
	for _, ob := range obs {
		row := observationRow(ob)
		if o.color {
			row[4] = colorStatus(ob.Job.Status)
		}
		cells := make(table.Row, len(row))
		for i, c := range row {
			cells[i] = c
		}
		t.AppendRow(cells)
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "total", len(obs)})
	t.Render()
}

// Intervals renders one row per job interval.
func Intervals(w io.Writer, intervals []models.Interval, opts ...Option) {
	o := newOptions(opts)
	t := newTable(w, o, intervalHeader)
	for _, in := range intervals {
		row := intervalRow(in)
		t.AppendRow(table.Row{row[0], row[1], row[2], row[3]})
	}
	t.Render()
}

// WriteXLSX writes both sheets as a workbook to w.
func WriteXLSX(w io.Writer, obs []models.Observation, intervals []models.Interval) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ObservationsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(IntervalsSheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	obsRows := make([][]string, len(obs))
	for i, ob := range obs {
		obsRows[i] = observationRow(ob)
	}
	if err := writeSheet(f, ObservationsSheet, bold, observationHeader, obsRows); err != nil {
		return err
	}

	intervalRows := make([][]string, len(intervals))
	for i, in := range intervals {
		intervalRows[i] = intervalRow(in)
	}
	if err := writeSheet(f, IntervalsSheet, bold, intervalHeader, intervalRows); err != nil {
		return err
	}

	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []string, rows [][]string) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheet, cell, &row)
}

func observationRow(ob models.Observation) []string {
	j := ob.Job
	return []string{
		formatTime(&ob.ObservedAt),
		ob.RunID,
		j.Ref().String(),
		j.Name,
		string(j.Status),
		j.ExecutionNode,
		formatTime(j.Started),
		formatTime(j.Finished),
		strconv.FormatFloat(j.Elapsed, 'f', 3, 64),
	}
}

func intervalRow(in models.Interval) []string {
	return []string{
		in.Label,
		formatTime(&in.Start),
		formatTime(&in.End),
		in.Duration().String(),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func colorStatus(s models.JobStatus) string {
	switch {
	case s == models.JobStatusSuccessful:
		return text.FgGreen.Sprint(s)
	case models.FailureStatuses.Contains(s):
		return text.FgRed.Sprint(s)
	case s == models.JobStatusCanceled:
		return text.FgYellow.Sprint(s)
	default:
		return fmt.Sprint(s)
	}
}
