package cluster

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig is how to reach a node over ssh.
type SSHConfig struct {
	Host           string
	Port           int
	User           string
	KeyFile        string
	KnownHostsFile string
	Timeout        time.Duration
}

// SSH is a traditional controller node managed with ansible-tower-service.
type SSH struct {
	cfg    SSHConfig
	config *ssh.ClientConfig
}

// NewSSH reads the private key and, when set, the known hosts file. Without
// a known hosts file the host key is not verified.
func NewSSH(cfg SSHConfig) (*SSH, error) {
	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing ssh key %s: %w", cfg.KeyFile, err)
	}

	hostKeys := ssh.InsecureIgnoreHostKey() //nolint:gosec
	if cfg.KnownHostsFile != "" {
		if hostKeys, err = knownhosts.New(cfg.KnownHostsFile); err != nil {
			return nil, fmt.Errorf("reading known hosts: %w", err)
		}
	}

	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &SSH{
		cfg: cfg,
		config: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeys,
			Timeout:         cfg.Timeout,
		},
	}, nil
}

func (s *SSH) Name() string {
	return "ssh/" + s.cfg.Host
}

func (s *SSH) Stop(ctx context.Context) error {
	return s.service(ctx, "stop")
}

func (s *SSH) Start(ctx context.Context) error {
	return s.service(ctx, "start")
}

func (s *SSH) service(ctx context.Context, action string) error {
	_, err := s.Run(ctx, "sudo ansible-tower-service "+action)
	return err
}

// Run executes cmd on the node and returns its combined output.
func (s *SSH) Run(ctx context.Context, cmd string) ([]byte, error) {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, s.config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("opening session on %s: %w", addr, err)
	}
	defer session.Close()

	var out bytes.Buffer
	session.Stdout = &out
	session.Stderr = &out

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case err := <-done:
		zap.S().Named("cluster").Infow("ran remote command", "host", s.cfg.Host, "cmd", cmd, "error", err)
		if err != nil {
			return out.Bytes(), fmt.Errorf("%q on %s: %w: %s", cmd, s.cfg.Host, err, bytes.TrimSpace(out.Bytes()))
		}
		return out.Bytes(), nil
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		return out.Bytes(), ctx.Err()
	}
}
