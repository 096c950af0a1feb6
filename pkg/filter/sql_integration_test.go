package filter

import (
	"database/sql"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Filter Integration with DuckDB", func() {
	var db *sql.DB

	BeforeEach(func() {
		connector, err := duckdb.NewConnector("", nil)
		Expect(err).ToNot(HaveOccurred())

		db = sql.OpenDB(connector)
		Expect(db.Ping()).To(Succeed())

		createSchema(db)
		insertTestData(db)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	queryJobs := func(filterExpr string) ([]int, error) {
		expr, err := Parse([]byte(filterExpr))
		if err != nil {
			return nil, err
		}

		query := `SELECT DISTINCT job_id FROM job_observations WHERE ` + expr.Sql() + ` ORDER BY job_id`
		rows, err := db.Query(query)
		if err != nil {
			return nil, fmt.Errorf("query failed: %w\nFilter SQL: %s", err, expr.Sql())
		}
		defer rows.Close()

		var ids []int
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, rows.Err()
	}

	DescribeTable("selecting jobs",
		func(filterExpr string, expected []int) {
			ids, err := queryJobs(filterExpr)
			Expect(err).ToNot(HaveOccurred())
			if expected == nil {
				Expect(ids).To(BeEmpty())
				return
			}
			Expect(ids).To(Equal(expected))
		},
		Entry("by status", "status = 'failed'", []int{3}),
		Entry("by status, any snapshot", "status = 'pending'", []int{1, 2, 3, 4}),
		Entry("by type", "type = 'system_job'", []int{4}),
		Entry("by negated type", "type != 'project_update'", []int{3, 4}),
		Entry("by id", "id = 2", []int{2}),
		Entry("by boolean", "failed = true", []int{3}),
		Entry("by elapsed in seconds", "elapsed > 100", []int{4}),
		Entry("by elapsed in minutes", "elapsed >= 1m", []int{2, 4}),
		Entry("by elapsed in hours", "elapsed < 0.01h", []int{1, 2, 3, 4}),
		Entry("by regex", "name ~ /update/", []int{1, 2}),
		Entry("by negated regex", "name !~ /^Demo/", []int{1, 2, 4}),
		Entry("by node", "node = 'tower-2'", []int{2}),
		Entry("by timestamp", "observed > '2024-05-01 10:00:30'", []int{4}),
		Entry("with and", "status = 'successful' and elapsed > 30s", []int{2}),
		Entry("with or", "status = 'failed' or type = 'system_job'", []int{3, 4}),
		Entry("with grouping", "(type = 'job' or type = 'system_job') and elapsed < 30", []int{3}),
		Entry("by status set", "status in ('failed', 'successful') and type != 'system_job'", []int{1, 2, 3}),
		Entry("by excluded status set", "status not in ('pending', 'successful')", []int{3}),
		Entry("by missing timestamp", "finished is null and type = 'job'", []int{3}),
		Entry("by present explanation", "explained is not null", []int{3}),
		Entry("with negation", "not (type = 'project_update') and failed = false", []int{3, 4}),
		Entry("matching nothing", "name = 'missing'", nil),
	)

	It("should reject a malformed filter before querying", func() {
		_, err := queryJobs("elapsed > ")
		Expect(err).To(HaveOccurred())
	})
})

func createSchema(db *sql.DB) {
	_, err := db.Exec(`CREATE TABLE job_observations (
		id              BIGINT,
		run_id          VARCHAR NOT NULL,
		job_id          INTEGER NOT NULL,
		job_type        VARCHAR NOT NULL,
		name            VARCHAR NOT NULL,
		status          VARCHAR NOT NULL,
		failed          BOOLEAN NOT NULL,
		template_id     INTEGER,
		execution_node  VARCHAR,
		job_explanation VARCHAR,
		elapsed         DOUBLE NOT NULL,
		created         TIMESTAMP NOT NULL,
		started         TIMESTAMP,
		finished        TIMESTAMP,
		observed_at     TIMESTAMP NOT NULL
	)`)
	ExpectWithOffset(1, err).ToNot(HaveOccurred())
}

func insertTestData(db *sql.DB) {
	exec := func(query string) {
		_, err := db.Exec(query)
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
	}

	exec(`INSERT INTO job_observations VALUES
		(1, 'r1', 1, 'project_update', 'Demo Project update', 'pending', false, 5, NULL, NULL, 0, '2024-05-01 10:00:00', NULL, NULL, '2024-05-01 10:00:01'),
		(2, 'r1', 1, 'project_update', 'Demo Project update', 'successful', false, 5, 'tower-1', NULL, 12.5, '2024-05-01 10:00:00', '2024-05-01 10:00:02', '2024-05-01 10:00:14', '2024-05-01 10:00:15'),
		(3, 'r1', 2, 'project_update', 'Other update', 'pending', false, 6, NULL, NULL, 0, '2024-05-01 10:00:00', NULL, NULL, '2024-05-01 10:00:01'),
		(4, 'r1', 2, 'project_update', 'Other update', 'successful', false, 6, 'tower-2', NULL, 75, '2024-05-01 10:00:00', '2024-05-01 10:00:03', '2024-05-01 10:01:18', '2024-05-01 10:00:20'),
		(5, 'r1', 3, 'job', 'Demo Job Template', 'pending', false, 7, NULL, NULL, 0, '2024-05-01 10:00:05', NULL, NULL, '2024-05-01 10:00:06'),
		(6, 'r1', 3, 'job', 'Demo Job Template', 'failed', true, 7, 'tower-1', 'Previous Task Failed', 3, '2024-05-01 10:00:05', '2024-05-01 10:00:07', '2024-05-01 10:00:10', '2024-05-01 10:00:11'),
		(7, 'r1', 4, 'system_job', 'Cleanup Job Details', 'pending', false, 1, NULL, NULL, 0, '2024-05-01 10:00:10', NULL, NULL, '2024-05-01 10:00:11'),
		(8, 'r1', 4, 'system_job', 'Cleanup Job Details', 'successful', false, 1, 'tower-1', NULL, 120, '2024-05-01 10:00:10', '2024-05-01 10:00:12', '2024-05-01 10:02:12', '2024-05-01 10:02:13')`)
}
