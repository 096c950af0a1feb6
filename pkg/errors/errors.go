package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WaitTimeoutError indicates a polled condition never became true within its budget.
// When the poll was watching a job, the last observed state is carried along.
type WaitTimeoutError struct {
	Subject         string
	Timeout         time.Duration
	Attempts        int
	LastStatus      string
	LastExplanation string
}

func NewWaitTimeoutError(subject string, timeout time.Duration, attempts int) *WaitTimeoutError {
	return &WaitTimeoutError{Subject: subject, Timeout: timeout, Attempts: attempts}
}

func (e *WaitTimeoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "timed out after %s waiting for %s (%d attempts)", e.Timeout, e.Subject, e.Attempts)
	if e.LastStatus != "" {
		fmt.Fprintf(&b, ": last status %q", e.LastStatus)
	}
	if e.LastExplanation != "" {
		fmt.Fprintf(&b, ", job_explanation %q", e.LastExplanation)
	}
	return b.String()
}

// IsWaitTimeoutError checks if the error is a WaitTimeoutError.
func IsWaitTimeoutError(err error) bool {
	var e *WaitTimeoutError
	return errors.As(err, &e)
}

// OrderingError indicates that job intervals violate an ordering or overlap expectation.
// Intervals holds the full rendered series so the failure can be diagnosed from the message alone.
type OrderingError struct {
	Check     string
	Reason    string
	Intervals []string
}

func NewOrderingError(check, reason string, intervals []string) *OrderingError {
	return &OrderingError{Check: check, Reason: reason, Intervals: intervals}
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("%s check failed: %s\nintervals:\n  %s", e.Check, e.Reason, strings.Join(e.Intervals, "\n  "))
}

func IsOrderingError(err error) bool {
	var e *OrderingError
	return errors.As(err, &e)
}

// Failure is one captured error from a phase of a multi-phase operation.
type Failure struct {
	Name  string
	Err   error
	Stack string
}

func (f Failure) String() string {
	var b strings.Builder
	if f.Name != "" {
		fmt.Fprintf(&b, "%s: ", f.Name)
	}
	fmt.Fprintf(&b, "%v", f.Err)
	if f.Stack != "" {
		b.WriteString("\n")
		b.WriteString(f.Stack)
	}
	return b.String()
}

// MultiPhaseError aggregates the failures of a stop/body/start sequence into one error.
type MultiPhaseError struct {
	StopFailures  []Failure
	StartFailures []Failure
	BodyFailure   *Failure
}

func (e *MultiPhaseError) Error() string {
	var b strings.Builder
	if len(e.StopFailures) > 0 {
		b.WriteString("Exceptions raised stopping nodes:\n\n")
		for _, f := range e.StopFailures {
			b.WriteString(f.String())
			b.WriteString("\n\n")
		}
	}
	if len(e.StartFailures) > 0 {
		b.WriteString("Exceptions raised starting nodes:\n\n")
		for _, f := range e.StartFailures {
			b.WriteString(f.String())
			b.WriteString("\n\n")
		}
	}
	if e.BodyFailure != nil {
		b.WriteString("Exception raised during test:\n\n")
		b.WriteString(e.BodyFailure.String())
		b.WriteString("\n\n")
	}
	return b.String()
}

// Unwrap exposes every captured error to errors.Is and errors.As.
func (e *MultiPhaseError) Unwrap() []error {
	errs := make([]error, 0, len(e.StopFailures)+len(e.StartFailures)+1)
	for _, f := range e.StopFailures {
		errs = append(errs, f.Err)
	}
	for _, f := range e.StartFailures {
		errs = append(errs, f.Err)
	}
	if e.BodyFailure != nil {
		errs = append(errs, e.BodyFailure.Err)
	}
	return errs
}

// Empty reports whether no failure was captured.
func (e *MultiPhaseError) Empty() bool {
	return len(e.StopFailures) == 0 && len(e.StartFailures) == 0 && e.BodyFailure == nil
}

func IsMultiPhaseError(err error) bool {
	var e *MultiPhaseError
	return errors.As(err, &e)
}

// UnexpectedStatusError indicates a job left the set of statuses it was expected to hold.
type UnexpectedStatusError struct {
	JobID    int
	Status   string
	Expected []string
}

func NewUnexpectedStatusError(jobID int, status string, expected []string) *UnexpectedStatusError {
	return &UnexpectedStatusError{JobID: jobID, Status: status, Expected: expected}
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("job %d has status %q, expected one of %v", e.JobID, e.Status, e.Expected)
}

func IsUnexpectedStatusError(err error) bool {
	var e *UnexpectedStatusError
	return errors.As(err, &e)
}

// APIError indicates the controller answered with a non-2xx status code.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func NewAPIError(statusCode int, method, path, body string) *APIError {
	return &APIError{StatusCode: statusCode, Method: method, Path: path, Body: body}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

// StatusCode returns the HTTP status carried by an APIError in the chain, or 0.
func StatusCode(err error) int {
	var e *APIError
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// ResourceNotFoundError indicates a resource was not found.
type ResourceNotFoundError struct {
	Kind string
	ID   string
}

func NewResourceNotFoundError(kind, id string) *ResourceNotFoundError {
	return &ResourceNotFoundError{Kind: kind, ID: id}
}

func NewJobNotFoundError(id int) *ResourceNotFoundError {
	return NewResourceNotFoundError("job", fmt.Sprint(id))
}

func (e *ResourceNotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func IsResourceNotFoundError(err error) bool {
	var e *ResourceNotFoundError
	return errors.As(err, &e)
}

// UnknownKindError indicates a resource kind tag has no registered factory.
type UnknownKindError struct {
	Kind string
}

func NewUnknownKindError(kind string) *UnknownKindError {
	return &UnknownKindError{Kind: kind}
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown resource kind %q", e.Kind)
}

func IsUnknownKindError(err error) bool {
	var e *UnknownKindError
	return errors.As(err, &e)
}

// UnsupportedNotificationError indicates there is no way to confirm delivery for a notification type.
type UnsupportedNotificationError struct {
	Type string
}

func NewUnsupportedNotificationError(notificationType string) *UnsupportedNotificationError {
	return &UnsupportedNotificationError{Type: notificationType}
}

func (e *UnsupportedNotificationError) Error() string {
	return fmt.Sprintf("notification type %q is not supported by this harness", e.Type)
}

func IsUnsupportedNotificationError(err error) bool {
	var e *UnsupportedNotificationError
	return errors.As(err, &e)
}

// InvalidArgumentError indicates a caller passed an argument outside its domain.
type InvalidArgumentError struct {
	Name   string
	Reason string
}

func NewInvalidArgumentError(name, reason string) *InvalidArgumentError {
	return &InvalidArgumentError{Name: name, Reason: reason}
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Name, e.Reason)
}

func IsInvalidArgumentError(err error) bool {
	var e *InvalidArgumentError
	return errors.As(err, &e)
}

// InvalidStateError indicates an invalid state for the requested operation.
type InvalidStateError struct {
	msg string
}

func NewInvalidStateError(msg string) *InvalidStateError {
	return &InvalidStateError{msg: msg}
}

func (e *InvalidStateError) Error() string {
	if e.msg == "" {
		return "invalid state for this operation"
	}
	return e.msg
}

func IsInvalidStateError(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}
