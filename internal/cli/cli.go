// Package cli runs the controller's command line client (awx) as a
// subprocess and captures what it printed and how it exited.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/registry"
)

// Exit codes of the awx client.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// execCommandContext is swapped in tests.
var execCommandContext = exec.CommandContext

// Result is one finished invocation.
type Result struct {
	Args       []string
	ReturnCode int
	Stdout     []byte
	Stderr     []byte
}

// JSON decodes stdout as a JSON object.
func (r *Result) JSON() (map[string]any, error) {
	out := map[string]any{}
	if err := json.Unmarshal(r.Stdout, &out); err != nil {
		return nil, fmt.Errorf("stdout is not a JSON object: %w", err)
	}
	return out, nil
}

// YAML decodes stdout as a YAML mapping, for `-f yaml` output.
func (r *Result) YAML() (map[string]any, error) {
	out := map[string]any{}
	if err := yaml.Unmarshal(r.Stdout, &out); err != nil {
		return nil, fmt.Errorf("stdout is not a YAML mapping: %w", err)
	}
	return out, nil
}

// FormatError renders a result for an assertion message.
func FormatError(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`%s` exited %d\n", strings.Join(r.Args, " "), r.ReturnCode)
	fmt.Fprintf(&b, "stdout:\n%s\n", bytes.TrimSpace(r.Stdout))
	fmt.Fprintf(&b, "stderr:\n%s", bytes.TrimSpace(r.Stderr))
	return b.String()
}

type runOptions struct {
	auth     bool
	env      map[string]string
	teardown bool
}

type RunOption func(*runOptions)

// WithAuth passes the host and the credentials of the REST client as
// --conf.* arguments.
func WithAuth() RunOption {
	return func(o *runOptions) { o.auth = true }
}

// WithEnv replaces the environment of the subprocess.
func WithEnv(env map[string]string) RunOption {
	return func(o *runOptions) { o.env = env }
}

// WithTeardown deletes the object the command created on Cleanup.
func WithTeardown() RunOption {
	return func(o *runOptions) { o.teardown = true }
}

// Runner invokes the awx binary against the controller the REST client points at.
type Runner struct {
	client   *client.Client
	fixtures *registry.Fixtures
	insecure bool
}

// NewRunner creates a runner. Objects created with WithTeardown are tracked in fixtures.
func NewRunner(c *client.Client, fixtures *registry.Fixtures, insecure bool) *Runner {
	return &Runner{client: c, fixtures: fixtures, insecure: insecure}
}

// Run executes argv, whose first element is the binary. A non-zero exit
// is reported in the result; the error is set only when the process could
// not be run at all.
func (r *Runner) Run(ctx context.Context, argv []string, opts ...RunOption) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command line")
	}
	o := &runOptions{}
	for _, opt := range opts {
		opt(o)
	}

	args := slices.Clone(argv)
	if o.auth {
		args = slices.Insert(args, 1, r.authArgs()...)
	}

	cmd := execCommandContext(ctx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if o.env != nil {
		cmd.Env = make([]string, 0, len(o.env))
		for _, k := range slices.Sorted(maps.Keys(o.env)) {
			cmd.Env = append(cmd.Env, k+"="+o.env[k])
		}
	} else {
		cmd.Env = os.Environ()
	}

	result := &Result{Args: args}
	err := cmd.Run()
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ReturnCode = ExitSuccess
	case errors.As(err, &exitErr):
		result.ReturnCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("running %s: %w", args[0], err)
	}

	zap.S().Named("cli").Debugw("command finished", "args", redact(args), "rc", result.ReturnCode)

	if o.teardown && result.ReturnCode == ExitSuccess && len(argv) > 1 {
		if id, ok := createdID(result); ok {
			r.fixtures.Track(registry.KindOf(argv[1]), id)
		}
	}
	return result, nil
}

// RunWithPage runs argv and, on success, fetches the object the command
// printed from the REST API.
func (r *Runner) RunWithPage(ctx context.Context, argv []string, opts ...RunOption) (*Result, *models.Resource, error) {
	result, err := r.Run(ctx, argv, opts...)
	if err != nil {
		return nil, nil, err
	}
	if result.ReturnCode != ExitSuccess || len(argv) < 2 {
		return result, nil, nil
	}
	id, ok := createdID(result)
	if !ok {
		return result, nil, fmt.Errorf("no object id in output of %s", strings.Join(argv, " "))
	}
	page, err := r.client.Get(ctx, argv[1], id)
	if err != nil {
		return result, nil, err
	}
	return result, page, nil
}

// Cleanup deletes every object created with WithTeardown, newest first.
func (r *Runner) Cleanup(ctx context.Context) error {
	return r.fixtures.Cleanup(ctx)
}

func (r *Runner) authArgs() []string {
	args := []string{"--conf.host", r.client.BaseURL()}
	if r.insecure {
		args = append(args, "-k")
	}
	u := r.client.User()
	if u.Token != "" {
		return append(args, "--conf.token", u.Token)
	}
	return append(args, "--conf.username", u.Username, "--conf.password", u.Password)
}

func createdID(r *Result) (int, bool) {
	out, err := r.JSON()
	if err != nil {
		return 0, false
	}
	id, ok := out["id"].(float64)
	return int(id), ok
}

func redact(args []string) []string {
	out := slices.Clone(args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--conf.password" || out[i] == "--conf.token" {
			out[i+1] = "****"
		}
	}
	return out
}
