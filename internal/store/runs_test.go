package store_test

import (
	"context"
	"database/sql"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tower-qa/tower-qa/internal/store"
	"github.com/tower-qa/tower-qa/internal/store/migrations"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

var _ = Describe("RunStore", func() {
	var (
		ctx context.Context
		s   *store.Store
		db  *sql.DB
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = store.NewDB(":memory:")
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(ctx, db)).To(Succeed())

		s = store.NewStore(db)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	It("should start and fetch a run", func() {
		run, err := s.Runs().Start(ctx, "wait", "https://tower.example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(run.ID).NotTo(BeEmpty())

		got, err := s.Runs().Get(ctx, run.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Command).To(Equal("wait"))
		Expect(got.Controller).To(Equal("https://tower.example.com"))
	})

	It("should return ResourceNotFoundError for an unknown run", func() {
		_, err := s.Runs().Get(ctx, "missing")
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})

	It("should list runs", func() {
		_, err := s.Runs().Start(ctx, "wait", "a")
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Runs().Start(ctx, "check", "a")
		Expect(err).NotTo(HaveOccurred())

		runs, err := s.Runs().List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(2))
	})

	It("should keep runs in a ledger file across connections", func() {
		// Given a ledger file in a folder that does not exist yet
		path := filepath.Join(GinkgoT().TempDir(), "nested", "ledger.duckdb")
		fileDB, err := store.NewDB(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrations.Run(ctx, fileDB)).To(Succeed())

		// When a run is recorded and the ledger reopened
		run, err := store.NewStore(fileDB).Runs().Start(ctx, "wait", "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(fileDB.Close()).To(Succeed())

		reopened, err := store.NewDB(path)
		Expect(err).NotTo(HaveOccurred())
		defer reopened.Close()

		// Then the run is still there
		got, err := store.NewStore(reopened).Runs().Get(ctx, run.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Command).To(Equal("wait"))
	})
})
