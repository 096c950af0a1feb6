package filter

import (
	"maps"
	"slices"
	"strings"
)

// columnMap maps filter fields to columns of the job_observations table.
var columnMap = map[string]string{
	"id":        "job_id",
	"type":      "job_type",
	"name":      "name",
	"status":    "status",
	"failed":    "failed",
	"elapsed":   "elapsed",
	"created":   "created",
	"started":   "started",
	"finished":  "finished",
	"observed":  "observed_at",
	"node":      "execution_node",
	"run":       "run_id",
	"template":  "template_id",
	"explained": "job_explanation",
}

// Fields lists the field names a filter can use, sorted.
func Fields() []string {
	return slices.Sorted(maps.Keys(columnMap))
}

// IsField reports whether name maps to a column.
func IsField(name string) bool {
	_, ok := columnMap[strings.ToLower(name)]
	return ok
}

// Identifiers returns every field name referenced by expr, in order of
// appearance.
func Identifiers(expr Expression) []string {
	var out []string
	var walk func(Expression)
	walk = func(e Expression) {
		switch t := e.(type) {
		case *binaryExpression:
			walk(t.Left)
			walk(t.Right)
		case *notExpression:
			walk(t.Inner)
		case *inExpression:
			walk(t.Field)
		case *nullExpression:
			walk(t.Field)
		case *varExpression:
			out = append(out, t.Name)
		}
	}
	walk(expr)
	return out
}
