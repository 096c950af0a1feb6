package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/containers/podman/v5/pkg/bindings"
	"github.com/containers/podman/v5/pkg/bindings/containers"
	"github.com/containers/podman/v5/pkg/specgen"
	nettypes "go.podman.io/common/libnetwork/types"

	"github.com/tower-qa/tower-qa/pkg/poll"
)

// suiteLabel marks every container started by the suite.
const suiteLabel = "io.towerqa.e2e"

// ContainerOption shapes the spec of a helper container.
type ContainerOption func(*specgen.SpecGenerator)

// PublishPort maps a host tcp port to the same port inside the container.
func PublishPort(port uint16) ContainerOption {
	return func(s *specgen.SpecGenerator) {
		s.PortMappings = append(s.PortMappings, nettypes.PortMapping{
			HostPort:      port,
			ContainerPort: port,
			Protocol:      "tcp",
		})
	}
}

func Env(key, value string) ContainerOption {
	return func(s *specgen.SpecGenerator) {
		if s.Env == nil {
			s.Env = map[string]string{}
		}
		s.Env[key] = value
	}
}

func Command(args ...string) ContainerOption {
	return func(s *specgen.SpecGenerator) { s.Command = args }
}

// PodmanRunner starts helper containers and reads the node containers the
// suite stops and starts through cluster.Podman.
type PodmanRunner struct {
	conn context.Context
}

func NewPodmanRunner(socket string) (*PodmanRunner, error) {
	conn, err := bindings.NewConnection(context.Background(), socket)
	if err != nil {
		return nil, fmt.Errorf("connecting to podman at %s: %w", socket, err)
	}
	return &PodmanRunner{conn: conn}, nil
}

// Run creates and starts a labelled container, returning its id.
func (p *PodmanRunner) Run(name, image string, opts ...ContainerOption) (string, error) {
	s := specgen.NewSpecGenerator(image, false)
	s.Name = name
	s.Labels = map[string]string{suiteLabel: "true"}
	for _, opt := range opts {
		opt(s)
	}

	created, err := containers.CreateWithSpec(p.conn, s, nil)
	if err != nil {
		return "", fmt.Errorf("creating container %s: %w", name, err)
	}
	if err := containers.Start(p.conn, created.ID, nil); err != nil {
		return "", fmt.Errorf("starting container %s: %w", name, err)
	}
	return created.ID, nil
}

// Remove stops the container and deletes it.
func (p *PodmanRunner) Remove(id string) error {
	if err := containers.Stop(p.conn, id, nil); err != nil {
		return fmt.Errorf("stopping container %s: %w", id, err)
	}
	if _, err := containers.Remove(p.conn, id, nil); err != nil {
		return fmt.Errorf("removing container %s: %w", id, err)
	}
	return nil
}

func (p *PodmanRunner) WaitForRunning(ctx context.Context, id string, timeout time.Duration) error {
	return poll.UntilDescribed(ctx, "container "+id+" to run", 100*time.Millisecond, timeout, func(context.Context) (bool, error) {
		data, err := containers.Inspect(p.conn, id, nil)
		if err != nil {
			return false, err
		}
		return data.State.Running, nil
	})
}

// Logs returns both output streams of the container, for failed specs.
func (p *PodmanRunner) Logs(id string) (string, error) {
	stdout, stderr := make(chan string), make(chan string)
	var out, errOut []string

	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, stdout, &out)
	go drain(&wg, stderr, &errOut)

	err := containers.Logs(p.conn, id, new(containers.LogOptions).WithStdout(true).WithStderr(true), stdout, stderr)
	close(stdout)
	close(stderr)
	wg.Wait()
	if err != nil {
		return "", fmt.Errorf("reading logs of %s: %w", id, err)
	}

	var b strings.Builder
	b.WriteString("stdout:\n")
	b.WriteString(strings.Join(out, "\n"))
	b.WriteString("\nstderr:\n")
	b.WriteString(strings.Join(errOut, "\n"))
	return b.String(), nil
}

func drain(wg *sync.WaitGroup, lines <-chan string, into *[]string) {
	defer wg.Done()
	for l := range lines {
		*into = append(*into, l)
	}
}
