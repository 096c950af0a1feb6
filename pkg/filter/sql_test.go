package filter

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SQL Generation", func() {
	DescribeTable("rendering",
		func(input, output string) {
			expr, err := Parse([]byte(input))
			Expect(err).ToNot(HaveOccurred())
			Expect(expr.Sql()).To(Equal(output))
		},
		Entry(nil, "status = 'failed'", `(status = 'failed')`),
		Entry(nil, "id = 12", `(job_id = 12.00)`),
		Entry(nil, "type != 'system_job'", `(job_type != 'system_job')`),
		Entry(nil, "node = 'tower-1'", `(execution_node = 'tower-1')`),
		Entry(nil, "observed >= '2024-01-01'", `(observed_at >= '2024-01-01')`),
		Entry(nil, "name = 'it''s'", `(name = 'it''s')`),
		Entry(nil, `name = "it's"`, `(name = 'it''s')`),
		Entry(nil, "failed = true", `(failed = TRUE)`),
		Entry(nil, "failed = false", `(failed = FALSE)`),

		// unmapped fields are quoted verbatim
		Entry(nil, "extra_vars = 'x'", `("extra_vars" = 'x')`),

		// durations in seconds
		Entry(nil, "elapsed > 45", `(elapsed > 45.00)`),
		Entry(nil, "elapsed > 45s", `(elapsed > 45.00)`),
		Entry(nil, "elapsed > 2m", `(elapsed > 120.00)`),
		Entry(nil, "elapsed < 1.5h", `(elapsed < 5400.00)`),

		// regex
		Entry(nil, "name ~ /update/", `regexp_matches(name, 'update')`),
		Entry(nil, "name !~ /^Clean/", `NOT regexp_matches(name, '^Clean')`),
		Entry(nil, "name ~ /it's/", `regexp_matches(name, 'it''s')`),

		// sets and missing values
		Entry(nil, "status in ('failed', 'error')", `(status IN ('failed', 'error'))`),
		Entry(nil, "status not in ('successful')", `(status NOT IN ('successful'))`),
		Entry(nil, "finished is null", `(finished IS NULL)`),
		Entry(nil, "node is not null", `(execution_node IS NOT NULL)`),

		// logic
		Entry(nil, "not failed = true", `(NOT (failed = TRUE))`),
		Entry(nil, "status = 'failed' and elapsed > 2m", `((status = 'failed') AND (elapsed > 120.00))`),
		Entry(nil, "status = 'failed' or name ~ /update/", `((status = 'failed') OR regexp_matches(name, 'update'))`),
	)
})
