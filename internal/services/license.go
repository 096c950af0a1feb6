package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/tower-qa/tower-qa/internal/license"
	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

const gracePeriod = 30 * 24 * time.Hour

// LicenseService holds the installed license of the fake controller.
type LicenseService struct {
	mu        sync.Mutex
	installed *models.License
	instances func() int
	now       func() time.Time
}

// NewLicenseService creates the service. instances reports how many managed
// hosts count against the license.
func NewLicenseService(instances func() int) *LicenseService {
	return &LicenseService{instances: instances, now: time.Now}
}

// Install validates and installs l. The eula must be accepted and the key must match.
func (s *LicenseService) Install(l models.License) error {
	if !l.EulaAccepted {
		return srvErrors.NewInvalidArgumentError("eula_accepted", "the EULA must be accepted")
	}
	if !license.Verify(l) {
		return srvErrors.NewInvalidArgumentError("license_key", "invalid license key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed = &l

	zap.S().Named("license_service").Infow("license installed", "type", l.LicenseType, "instances", l.InstanceCount, "expires", time.Unix(l.LicenseDate, 0))
	return nil
}

func (s *LicenseService) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed = nil
}

// Info returns the license with its computed validity, or nil when none is installed.
func (s *LicenseService) Info() *models.LicenseInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.installed == nil {
		return nil
	}

	l := *s.installed
	remaining := l.LicenseDate - s.now().Unix()
	info := &models.LicenseInfo{
		License:            l,
		Valid:              license.Verify(l),
		CurrentInstances:   s.instances(),
		AvailableInstances: l.InstanceCount,
		TimeRemaining:      remaining,
	}
	info.Features = license.EffectiveFeatures(l)
	if l.Trial == nil || !*l.Trial {
		info.GracePeriodRemaining = remaining + int64(gracePeriod.Seconds())
	}
	info.Compliant = info.Valid && remaining > 0 && info.CurrentInstances <= l.InstanceCount
	return info
}

// LoadFile installs the license stored at path.
func (s *LicenseService) LoadFile(path string) error {
	l, err := license.ReadFile(path)
	if err != nil {
		return err
	}
	return s.Install(l)
}

// Watch installs the license at path and reinstalls it whenever the file is
// written or replaced, until ctx is done. Invalid contents are logged and
// leave the previous license in place.
func (s *LicenseService) Watch(ctx context.Context, path string) error {
	if err := s.LoadFile(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating license watcher: %w", err)
	}
	// watch the directory so editors that replace the file are seen too
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		log := zap.S().Named("license_service")
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := s.LoadFile(path); err != nil {
					log.Warnw("license reload failed", "path", path, "error", err)
					continue
				}
				log.Infow("license reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnw("license watcher error", "error", err)
			}
		}
	}()

	return nil
}
