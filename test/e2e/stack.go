package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/cluster"
	"github.com/tower-qa/tower-qa/internal/towertest"
)

const (
	datastoreContainerName = "towerqa-e2e-datastore"
	datastorePort          = 8095

	nodeProbeInterval = 2 * time.Second
	nodeProbeTimeout  = 5 * time.Minute
)

// Stack owns what the suite runs next to the controller: the request bin
// webhooks are posted to, and handles on the node containers.
type Stack struct {
	Runner *PodmanRunner
	cfg    configuration

	datastore    *towertest.Datastore
	datastoreURL string
}

func NewStack(cfg configuration) (*Stack, error) {
	s := &Stack{cfg: cfg}
	if cfg.DatastoreImage == "" && len(cfg.Nodes()) == 0 {
		return s, nil
	}
	runner, err := NewPodmanRunner(cfg.PodmanSocket)
	if err != nil {
		return nil, err
	}
	s.Runner = runner
	return s, nil
}

// StartDatastore returns the base url of the request bin, starting one when
// none was configured.
func (s *Stack) StartDatastore(ctx context.Context) (string, error) {
	switch {
	case s.cfg.DatastoreURL != "":
		s.datastoreURL = s.cfg.DatastoreURL
	case s.cfg.DatastoreImage != "":
		id, err := s.Runner.Run(datastoreContainerName, s.cfg.DatastoreImage,
			PublishPort(datastorePort),
			Env("PORT", fmt.Sprint(datastorePort)),
		)
		if err != nil {
			return "", err
		}
		if err := s.Runner.WaitForRunning(ctx, id, time.Minute); err != nil {
			return "", err
		}
		s.datastoreURL = fmt.Sprintf("http://localhost:%d", datastorePort)
	default:
		s.datastore = towertest.StartDatastore()
		s.datastoreURL = s.datastore.URL
	}
	return s.datastoreURL, nil
}

func (s *Stack) StopDatastore() error {
	if s.datastore != nil {
		s.datastore.Close()
		return nil
	}
	if s.cfg.DatastoreImage == "" || s.cfg.KeepContainers {
		return nil
	}
	return s.Runner.Remove(datastoreContainerName)
}

// BinURL is where a webhook template posts to.
func (s *Stack) BinURL(bin string) string {
	return s.datastoreURL + "/b/" + bin
}

// Nodes returns the node containers. A node with a url returns from Stop
// only once its API stops answering and from Start once it answers again.
func (s *Stack) Nodes(ctx context.Context, c *client.Client) ([]cluster.Node, error) {
	var nodes []cluster.Node
	for _, n := range s.cfg.Nodes() {
		p, err := cluster.NewPodman(ctx, s.cfg.PodmanSocket, n.Name)
		if err != nil {
			return nil, err
		}
		if n.URL == "" {
			nodes = append(nodes, p)
			continue
		}
		nodes = append(nodes, cluster.WithHealthCheck(p, cluster.PingProbe(c, n.URL), nodeProbeInterval, nodeProbeTimeout))
	}
	return nodes, nil
}

// NodeLogs collects the logs of every node container.
func (s *Stack) NodeLogs() map[string]string {
	logs := map[string]string{}
	for _, n := range s.cfg.Nodes() {
		out, err := s.Runner.Logs(n.Name)
		if err != nil {
			out = err.Error()
		}
		logs[n.Name] = out
	}
	return logs
}
