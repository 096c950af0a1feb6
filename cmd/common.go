package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/store"
	"github.com/tower-qa/tower-qa/internal/store/migrations"
	"github.com/tower-qa/tower-qa/internal/waiter"
	"github.com/tower-qa/tower-qa/pkg/credentials"
)

func credentialStore(cfg *config.Configuration) *credentials.DiskStore {
	folder := cfg.Tower.CredentialsFolder
	if folder == "" {
		folder = credentials.DefaultFolder()
	}
	return credentials.NewDiskStore(folder)
}

// newClient builds the REST client. Without a password or token on the
// command line, the token saved by login for this controller is used.
func newClient(cfg *config.Configuration) (*client.Client, error) {
	user := models.User{
		Username: cfg.Tower.Username,
		Password: cfg.Tower.Password,
		Token:    cfg.Tower.Token,
	}
	if user.Password == "" && user.Token == "" {
		creds, err := credentialStore(cfg).Load(cfg.Tower.URL)
		switch {
		case err == nil:
			user.Username = creds.Username
			user.Token = creds.Token
		case !errors.Is(err, credentials.ErrNotFound):
			return nil, fmt.Errorf("loading saved credentials: %w", err)
		}
	}

	return client.New(cfg.Tower.URL, user,
		client.WithInsecure(cfg.Tower.Insecure),
		client.WithSchemaValidation(cfg.Tower.ValidateSchema),
	)
}

// ledger records the snapshots polled by one command. A zero ledger records
// nothing.
type ledger struct {
	store *store.Store
	run   *models.Run
}

func openLedger(ctx context.Context, cfg *config.Configuration, command string) (*ledger, error) {
	if cfg.Ledger.Path == "" {
		return &ledger{}, nil
	}

	db, err := store.NewDB(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", cfg.Ledger.Path, err)
	}
	if err := migrations.Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := store.NewStore(db)
	run, err := s.Runs().Start(ctx, command, cfg.Tower.URL)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	zap.S().Named("ledger").Infow("recording observations", "path", cfg.Ledger.Path, "run", run.ID)
	return &ledger{store: s, run: run}, nil
}

// observer is a waiter option recording snapshots, or nothing.
func (l *ledger) observer(ctx context.Context) []waiter.Option {
	if l.store == nil {
		return nil
	}
	return []waiter.Option{waiter.WithObserver(l.store.Observations().Recorder(ctx, l.run.ID, func(err error) {
		zap.S().Named("ledger").Warnw("failed to record observation", "error", err)
	}))}
}

func (l *ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

func waitOptions(ctx context.Context, cfg *config.Configuration, l *ledger) []waiter.Option {
	opts := []waiter.Option{
		waiter.WithInterval(cfg.Wait.Interval),
		waiter.WithTimeout(cfg.Wait.Timeout),
		waiter.WithSinceJobCreated(cfg.Wait.SinceCreated),
	}
	return append(opts, l.observer(ctx)...)
}

// parseGroups parses job arguments. Each argument is TYPE/ID or several of
// them joined with "+", which form a group.
func parseGroups(args []string) ([][]models.JobRef, error) {
	groups := make([][]models.JobRef, 0, len(args))
	for _, arg := range args {
		var group []models.JobRef
		for _, part := range strings.Split(arg, "+") {
			ref, err := models.ParseJobRef(strings.TrimSpace(part))
			if err != nil {
				return nil, &usageError{err: err}
			}
			group = append(group, ref)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// progress shows a spinner on terminals and nothing elsewhere.
type progress struct {
	s *spinner.Spinner
}

func startProgress(w io.Writer, suffix string) *progress {
	f, ok := w.(*os.File)
	if !ok || color.NoColor || !isTerminal(f) {
		return &progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	return &progress{s: s}
}

func (p *progress) Stop() {
	if p.s != nil {
		p.s.Stop()
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
)

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", okMark("✔"), fmt.Sprintf(format, args...))
}

func printFail(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", failMark("✘"), fmt.Sprintf(format, args...))
}
