// Package notification confirms that a notification sent by the controller
// reached its service, or that it did not.
//
// Delivery is eventually consistent, so Confirm polls the service: every
// Interval, at most MaxPolls times. When the message is expected to be
// present polling stops as soon as it is seen. When it is expected to be
// absent polling stops after MinPolls misses, since absence can never be
// proven by waiting longer.
package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/pkg/poll"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultMinPolls = 2
	DefaultMaxPolls = 12
)

// Message is what a service is expected to have received. Slack compares
// Text; webhooks compare Body.
type Message struct {
	Text    string
	Headers map[string]any
	Body    any
}

// Confirmer looks a message up in one notification service.
type Confirmer interface {
	Present(ctx context.Context, template models.NotificationTemplate, msg Message) (bool, error)
}

type confirmOptions struct {
	isPresent bool
	interval  time.Duration
	minPolls  int
	maxPolls  int
}

type ConfirmOption func(*confirmOptions)

// Absent confirms that the message was not delivered.
func Absent() ConfirmOption {
	return func(o *confirmOptions) { o.isPresent = false }
}

func WithInterval(d time.Duration) ConfirmOption {
	return func(o *confirmOptions) { o.interval = d }
}

func WithMinPolls(n int) ConfirmOption {
	return func(o *confirmOptions) { o.minPolls = n }
}

func WithMaxPolls(n int) ConfirmOption {
	return func(o *confirmOptions) { o.maxPolls = n }
}

// Checker dispatches to a Confirmer by notification type.
type Checker struct {
	confirmers map[models.NotificationType]Confirmer
}

func NewChecker() *Checker {
	return &Checker{confirmers: map[models.NotificationType]Confirmer{}}
}

// Register installs the confirmer for t, replacing any previous one.
func (c *Checker) Register(t models.NotificationType, confirmer Confirmer) *Checker {
	c.confirmers[t] = confirmer
	return c
}

// CanConfirm reports whether delivery for the template's type can be checked.
func (c *Checker) CanConfirm(template models.NotificationTemplate) bool {
	_, ok := c.confirmers[template.Type]
	return ok
}

// Confirm reports whether msg ended up in the expected state: present, or
// absent with the Absent option. A service error aborts polling.
func (c *Checker) Confirm(ctx context.Context, template models.NotificationTemplate, msg Message, opts ...ConfirmOption) (bool, error) {
	confirmer, ok := c.confirmers[template.Type]
	if !ok {
		return false, srvErrors.NewUnsupportedNotificationError(string(template.Type))
	}

	o := &confirmOptions{
		isPresent: true,
		interval:  DefaultInterval,
		minPolls:  DefaultMinPolls,
		maxPolls:  DefaultMaxPolls,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.minPolls < 0 {
		return false, srvErrors.NewInvalidArgumentError("min polls", "must not be negative")
	}

	log := zap.S().Named("notification")

	var (
		present bool
		misses  int
	)
	err := poll.Attempts(ctx, o.interval, o.maxPolls, func(ctx context.Context) (bool, error) {
		var err error
		present, err = confirmer.Present(ctx, template, msg)
		if err != nil || present {
			return present, err
		}
		misses++
		log.Debugw("message not found", "template", template.ID, "type", template.Type, "polls", misses)
		return !o.isPresent && misses > o.minPolls, nil
	})
	if err != nil && !srvErrors.IsWaitTimeoutError(err) {
		return false, err
	}

	return present == o.isPresent, nil
}
