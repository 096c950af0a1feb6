// Package cluster stops and starts the nodes of a controller cluster for
// fault injection. Every backend satisfies safestop.Node, so a set of nodes
// can be taken down around a test body with safestop.ForNodes.
package cluster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/safestop"
	"github.com/tower-qa/tower-qa/pkg/poll"
)

type Node = safestop.Node

// Probe checks that a node answers. Any error means it does not.
type Probe func(ctx context.Context) error

// Offline reports whether probe fails. The kind of failure does not matter:
// refused connections, timeouts and 5xx answers all count as offline. A done
// ctx is returned as an error instead, since every probe would fail on it.
func Offline(ctx context.Context, probe Probe) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	failed := probe(ctx) != nil
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return failed, nil
}

// PingProbe pings the node at baseURL through c.
func PingProbe(c *client.Client, baseURL string) Probe {
	return func(ctx context.Context) error {
		return c.AsInstance(baseURL, func() error {
			_, err := c.Ping(ctx)
			return err
		})
	}
}

type healthChecked struct {
	Node
	probe    Probe
	interval time.Duration
	timeout  time.Duration
}

// WithHealthCheck wraps node so that Stop returns once probe fails and
// Start returns once probe succeeds again.
func WithHealthCheck(node Node, probe Probe, interval, timeout time.Duration) Node {
	return &healthChecked{Node: node, probe: probe, interval: interval, timeout: timeout}
}

func (h *healthChecked) Stop(ctx context.Context) error {
	if err := h.Node.Stop(ctx); err != nil {
		return err
	}
	err := poll.UntilDescribed(ctx, fmt.Sprintf("%s to go offline", h.Name()), h.interval, h.timeout, func(ctx context.Context) (bool, error) {
		return Offline(ctx, h.probe)
	})
	if err == nil {
		zap.S().Named("cluster").Infow("node offline", "node", h.Name())
	}
	return err
}

func (h *healthChecked) Start(ctx context.Context) error {
	if err := h.Node.Start(ctx); err != nil {
		return err
	}
	err := poll.UntilDescribed(ctx, fmt.Sprintf("%s to come online", h.Name()), h.interval, h.timeout, func(ctx context.Context) (bool, error) {
		offline, err := Offline(ctx, h.probe)
		return !offline, err
	})
	if err == nil {
		zap.S().Named("cluster").Infow("node online", "node", h.Name())
	}
	return err
}

// Cycle stops node and starts it again.
func Cycle(ctx context.Context, node Node) error {
	if err := node.Stop(ctx); err != nil {
		return fmt.Errorf("stopping %s: %w", node.Name(), err)
	}
	if err := node.Start(ctx); err != nil {
		return fmt.Errorf("starting %s: %w", node.Name(), err)
	}
	return nil
}
