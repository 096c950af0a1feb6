package cluster

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
	"go.uber.org/zap"
)

// TowerUnits are the services that make up a traditional controller node.
var TowerUnits = []string{"supervisord.service", "nginx.service", "rabbitmq-server.service"}

// Systemd is a controller node whose services run as systemd units on the
// local host, driven over D-Bus.
type Systemd struct {
	name  string
	units []string
}

func NewSystemd(name string, units ...string) *Systemd {
	if len(units) == 0 {
		units = TowerUnits
	}
	return &Systemd{name: name, units: units}
}

func (s *Systemd) Name() string {
	return "systemd/" + s.name
}

// Stop stops the units in reverse order.
func (s *Systemd) Stop(ctx context.Context) error {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("connecting to systemd: %w", err)
	}
	defer conn.Close()

	for i := len(s.units) - 1; i >= 0; i-- {
		if err := s.run(ctx, s.units[i], conn.StopUnitContext); err != nil {
			return err
		}
	}
	return nil
}

func (s *Systemd) Start(ctx context.Context) error {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("connecting to systemd: %w", err)
	}
	defer conn.Close()

	for _, unit := range s.units {
		if err := s.run(ctx, unit, conn.StartUnitContext); err != nil {
			return err
		}
	}
	return nil
}

type unitJob func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

func (s *Systemd) run(ctx context.Context, unit string, job unitJob) error {
	done := make(chan string, 1)
	if _, err := job(ctx, unit, "replace", done); err != nil {
		return fmt.Errorf("%s: %w", unit, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("%s: job finished with %q", unit, result)
		}
		zap.S().Named("cluster").Infow("unit job done", "node", s.name, "unit", unit)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
