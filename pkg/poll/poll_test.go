package poll_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
	"github.com/tower-qa/tower-qa/pkg/poll"
)

// countUntil returns a condition that holds from its n-th evaluation on.
func countUntil(n int, calls *int) poll.ConditionFunc {
	return func(context.Context) (bool, error) {
		*calls++
		return *calls >= n, nil
	}
}

var _ = Describe("Until", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("should return as soon as the condition holds", func() {
		calls := 0

		err := poll.Until(ctx, 10*time.Millisecond, time.Second, countUntil(3, &calls))

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	// Given a budget too small for a second evaluation
	// When polling
	// Then the condition still runs exactly once
	DescribeTable("should evaluate the condition at least once",
		func(interval, timeout time.Duration) {
			calls := 0

			err := poll.Until(ctx, interval, timeout, countUntil(1, &calls))

			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal(1))
		},
		Entry("with a zero timeout", time.Second, time.Duration(0)),
		Entry("with a timeout shorter than the interval", time.Second, 10*time.Millisecond),
	)

	// Given a condition that never holds
	// When the budget runs out
	// Then a timeout error names the subject and the attempts made
	It("should time out with the subject and attempt count", func() {
		// Arrange
		start := time.Now()

		// Act
		err := poll.UntilDescribed(ctx, "node offline", 10*time.Millisecond, 100*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})

		// Assert
		Expect(srvErrors.IsWaitTimeoutError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("node offline"))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))

		var timeout *srvErrors.WaitTimeoutError
		Expect(errors.As(err, &timeout)).To(BeTrue())
		Expect(timeout.Attempts).To(BeNumerically(">=", 2))
	})

	It("should return a condition error unchanged and stop polling", func() {
		boom := errors.New("boom")
		calls := 0

		err := poll.Until(ctx, 10*time.Millisecond, time.Second, func(context.Context) (bool, error) {
			calls++
			return false, boom
		})

		Expect(err).To(MatchError(boom))
		Expect(srvErrors.IsWaitTimeoutError(err)).To(BeFalse())
		Expect(calls).To(Equal(1))
	})

	// Given a parent context canceled while polling
	// When the poll notices
	// Then the cancellation is returned, not a timeout
	It("should return the parent's cancellation", func() {
		// Arrange
		parent, cancel := context.WithCancel(ctx)
		time.AfterFunc(30*time.Millisecond, cancel)

		// Act
		err := poll.Until(parent, 10*time.Millisecond, time.Minute, func(context.Context) (bool, error) {
			return false, nil
		})

		// Assert
		Expect(err).To(MatchError(context.Canceled))
		Expect(srvErrors.IsWaitTimeoutError(err)).To(BeFalse())
	})

	DescribeTable("should reject invalid budgets",
		func(interval, timeout time.Duration) {
			err := poll.Until(ctx, interval, timeout, func(context.Context) (bool, error) { return true, nil })
			Expect(srvErrors.IsInvalidArgumentError(err)).To(BeTrue())
		},
		Entry("zero interval", time.Duration(0), time.Second),
		Entry("negative timeout", time.Second, -time.Second),
	)
})

var _ = Describe("Attempts", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("should stop after the maximum number of attempts", func() {
		calls := 0

		err := poll.Attempts(ctx, time.Millisecond, 4, countUntil(100, &calls))

		Expect(srvErrors.IsWaitTimeoutError(err)).To(BeTrue())
		Expect(calls).To(Equal(4))
	})

	It("should stop as soon as the condition holds", func() {
		calls := 0

		err := poll.Attempts(ctx, time.Millisecond, 10, countUntil(2, &calls))

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(2))
	})

	It("should reject zero attempts", func() {
		err := poll.Attempts(ctx, time.Millisecond, 0, func(context.Context) (bool, error) { return true, nil })
		Expect(srvErrors.IsInvalidArgumentError(err)).To(BeTrue())
	})
})
