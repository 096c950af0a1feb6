package cluster

import (
	"context"
	"fmt"

	"github.com/containers/podman/v5/pkg/bindings"
	"github.com/containers/podman/v5/pkg/bindings/containers"
	"go.uber.org/zap"
)

// Podman is a controller node running as a container.
type Podman struct {
	conn      context.Context
	container string
}

// NewPodman connects to the podman socket, e.g. unix:///run/user/1000/podman/podman.sock.
func NewPodman(ctx context.Context, socket, container string) (*Podman, error) {
	conn, err := bindings.NewConnection(ctx, socket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to podman: %w", err)
	}
	return &Podman{conn: conn, container: container}, nil
}

func (p *Podman) Name() string {
	return "container/" + p.container
}

func (p *Podman) Stop(ctx context.Context) error {
	zap.S().Named("cluster").Infow("stopping container", "container", p.container)
	if err := containers.Stop(p.conn, p.container, nil); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

func (p *Podman) Start(ctx context.Context) error {
	zap.S().Named("cluster").Infow("starting container", "container", p.container)
	if err := containers.Start(p.conn, p.container, nil); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// Running reports the container state as podman sees it.
func (p *Podman) Running(ctx context.Context) (bool, error) {
	data, err := containers.Inspect(p.conn, p.container, nil)
	if err != nil {
		return false, fmt.Errorf("failed to inspect container: %w", err)
	}
	return data.State.Running, nil
}
