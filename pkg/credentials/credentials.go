package credentials

import (
	"errors"

	"github.com/tower-qa/tower-qa/internal/models"
)

// ErrNotFound is returned when no credentials are stored for a controller.
var ErrNotFound = errors.New("credentials not found")

// Store keeps one set of credentials per controller host.
type Store interface {
	// Save persists creds under creds.Host, replacing any previous entry.
	Save(creds models.Credentials) error

	// Load returns ErrNotFound if nothing is stored for host.
	Load(host string) (*models.Credentials, error)

	// Delete returns nil if nothing is stored for host.
	Delete(host string) error

	Exists(host string) bool
}
