// Package waiter blocks until a controller job reaches a given set of statuses.
//
// Waiting is bounded. A job that never reaches the target statuses produces a
// *errors.WaitTimeoutError carrying the last status and job_explanation seen,
// which is usually the only clue about why the controller never scheduled it.
//
// By default the timeout budget is counted from the job's created timestamp,
// so a job that has already been queued for a while gets less time. The
// harness clock and the controller clock are compared directly; skew between
// them shifts the budget.
package waiter
