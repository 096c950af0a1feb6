// Package errors provides the typed errors raised by the tower-qa harness.
//
// Each error type includes a constructor, Error() method, and a type-checking
// helper using errors.As for proper error unwrapping.
//
// # Error Types Overview
//
//	┌──────────────────────────────┬──────────────────────────────────────────────┐
//	│ Error Type                   │ Raised when                                  │
//	├──────────────────────────────┼──────────────────────────────────────────────┤
//	│ WaitTimeoutError             │ a polled condition never became true         │
//	│ OrderingError                │ job intervals break an ordering expectation  │
//	│ MultiPhaseError              │ safe stop/start sequence had failures        │
//	│ UnexpectedStatusError        │ a job left the statuses it had to hold       │
//	│ APIError                     │ controller answered with a non-2xx status    │
//	│ ResourceNotFoundError        │ controller resource does not exist           │
//	│ UnknownKindError             │ no factory registered for a resource kind    │
//	│ UnsupportedNotificationError │ delivery of a notification type can't be     │
//	│                              │ confirmed                                    │
//	│ InvalidArgumentError         │ argument outside its domain                  │
//	│ InvalidStateError            │ operation not allowed in the current state   │
//	└──────────────────────────────┴──────────────────────────────────────────────┘
//
// # WaitTimeoutError
//
// Carries the subject, the budget and the number of attempts. Job waiters
// fill LastStatus and LastExplanation with the final snapshot they saw, so a
// timeout reads like "timed out after 1m0s waiting for job 12 to reach
// [successful] (60 attempts): last status "pending"".
//
// # OrderingError
//
// Carries the name of the check and every interval of the series, one per line.
//
// # MultiPhaseError
//
// Groups failures by phase. The message concatenates the sections
// "Exceptions raised stopping nodes", "Exceptions raised starting nodes" and
// "Exception raised during test" for the phases that failed. Unwrap returns
// all captured errors so errors.Is and errors.As reach them.
package errors
