package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tower-qa/tower-qa/internal/cluster"
	"github.com/tower-qa/tower-qa/internal/config"
)

const (
	backendPodman  = "podman"
	backendSystemd = "systemd"
	backendSSH     = "ssh"
	backendKube    = "kube"
)

type nodeFlags struct {
	backend    string
	nodeURL    string
	noHealth   bool
	interval   time.Duration
	timeout    time.Duration
	socket     string
	container  string
	units      []string
	ssh        cluster.SSHConfig
	kubeconfig string
	namespace  string
	deployment string
}

func NewNodeCommand(cfg *config.Configuration) *cobra.Command {
	flags := &nodeFlags{}

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Stop and start controller nodes for fault injection",
		Long: `Each subcommand acts on one node reached through --backend. Unless
--no-health-check is set, stop returns once the node stops answering ping
and start returns once it answers again.`,
	}

	action := func(name, short string, fn func(ctx context.Context, n cluster.Node) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: short,
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				node, err := flags.node(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				p := startProgress(cmd.ErrOrStderr(), fmt.Sprintf("%s %s...", name, node.Name()))
				err = fn(cmd.Context(), node)
				p.Stop()
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "%s %s", node.Name(), name)
				return nil
			},
		}
	}

	cmd.AddCommand(
		action("stop", "Stop a node", func(ctx context.Context, n cluster.Node) error { return n.Stop(ctx) }),
		action("start", "Start a node", func(ctx context.Context, n cluster.Node) error { return n.Start(ctx) }),
		action("cycle", "Stop a node and start it again", cluster.Cycle),
	)

	f := cmd.PersistentFlags()
	f.StringVar(&flags.backend, "backend", backendPodman, "How the node is managed: podman, systemd, ssh or kube")
	f.StringVar(&flags.nodeURL, "node-url", "", "URL the node answers ping on (default --tower-url)")
	f.BoolVar(&flags.noHealth, "no-health-check", false, "Return as soon as the backend is done")
	f.DurationVar(&flags.interval, "health-interval", 2*time.Second, "Delay between two health probes")
	f.DurationVar(&flags.timeout, "health-timeout", 5*time.Minute, "Give up probing after this long")

	f.StringVar(&flags.socket, "podman-socket", "unix:///run/podman/podman.sock", "Podman service socket")
	f.StringVar(&flags.container, "container", "", "Container running the node, with --backend podman")
	f.StringSliceVar(&flags.units, "units", cluster.TowerUnits, "Units to stop, with --backend systemd")

	f.StringVar(&flags.ssh.Host, "ssh-host", "", "Node host, with --backend ssh")
	f.IntVar(&flags.ssh.Port, "ssh-port", 22, "SSH port")
	f.StringVar(&flags.ssh.User, "ssh-user", "root", "SSH user")
	f.StringVar(&flags.ssh.KeyFile, "ssh-key", "", "Private key file")
	f.StringVar(&flags.ssh.KnownHostsFile, "ssh-known-hosts", "", "Known hosts file; host keys are not verified when empty")

	f.StringVar(&flags.kubeconfig, "kubeconfig", "", "Kubeconfig path, in-cluster config when empty")
	f.StringVar(&flags.namespace, "namespace", "default", "Namespace of the deployment, with --backend kube")
	f.StringVar(&flags.deployment, "deployment", "", "Deployment running the node, with --backend kube")

	return cmd
}

// node builds the backend and wraps it with the ping health check.
func (f *nodeFlags) node(ctx context.Context, cfg *config.Configuration) (cluster.Node, error) {
	var (
		node cluster.Node
		err  error
	)
	switch f.backend {
	case backendPodman:
		if f.container == "" {
			return nil, usageErrorf("--backend podman needs --container")
		}
		node, err = cluster.NewPodman(ctx, f.socket, f.container)
	case backendSystemd:
		if len(f.units) == 0 {
			return nil, usageErrorf("--backend systemd needs at least one unit")
		}
		node = cluster.NewSystemd("localhost", f.units...)
	case backendSSH:
		if f.ssh.Host == "" || f.ssh.KeyFile == "" {
			return nil, usageErrorf("--backend ssh needs --ssh-host and --ssh-key")
		}
		node, err = cluster.NewSSH(f.ssh)
	case backendKube:
		if f.deployment == "" {
			return nil, usageErrorf("--backend kube needs --deployment")
		}
		clientset, cerr := cluster.NewClientset(f.kubeconfig)
		if cerr != nil {
			return nil, cerr
		}
		node = cluster.NewDeployment(clientset, f.namespace, f.deployment)
	default:
		return nil, usageErrorf("invalid --backend %q: expected podman, systemd, ssh or kube", f.backend)
	}
	if err != nil {
		return nil, err
	}

	if f.noHealth {
		return node, nil
	}
	if f.interval <= 0 || f.timeout < f.interval {
		return nil, usageErrorf("--health-timeout must be at least --health-interval, which must be positive")
	}
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	url := f.nodeURL
	if url == "" {
		url = cfg.Tower.URL
	}
	return cluster.WithHealthCheck(node, cluster.PingProbe(c, url), f.interval, f.timeout), nil
}
