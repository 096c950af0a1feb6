package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

//go:generate go run github.com/ecordell/optgen -output zz_generated.options.go . Configuration Tower Wait Server Ledger Notification

// Configuration is the full runtime configuration of towerqa. Every field is
// bound to a flag and to a TOWERQA_ prefixed environment variable.
type Configuration struct {
	LogLevel     string       `debugmap:"visible" default:"info" validate:"oneof=debug info warn error"`
	LogFormat    string       `debugmap:"visible" default:"console" validate:"oneof=console json"`
	Tower        Tower        `debugmap:"visible"`
	Wait         Wait         `debugmap:"visible"`
	Server       Server       `debugmap:"visible"`
	Ledger       Ledger       `debugmap:"visible"`
	Notification Notification `debugmap:"visible"`
}

// Tower is how the harness reaches the controller under test.
type Tower struct {
	URL               string `debugmap:"visible" default:"https://127.0.0.1:8043" validate:"required,url"`
	Username          string `debugmap:"visible" default:"admin"`
	Password          string `debugmap:"sensitive"`
	Token             string `debugmap:"sensitive"`
	Insecure          bool   `debugmap:"visible" default:"true"`
	ValidateSchema    bool   `debugmap:"visible" default:"false"`
	CLIPath           string `debugmap:"visible" default:"awx"`
	CredentialsFolder string `debugmap:"visible"`
}

type Wait struct {
	Interval     time.Duration `debugmap:"visible" default:"5s"`
	Timeout      time.Duration `debugmap:"visible" default:"2m"`
	SinceCreated bool          `debugmap:"visible" default:"true"`
}

// Server configures the fake controller started by `towerqa serve`.
type Server struct {
	HTTPPort           int           `debugmap:"visible" default:"8043"`
	ServerMode         string        `debugmap:"visible" default:"dev"`
	AdminPassword      string        `debugmap:"sensitive" default:"password"`
	TokenSecret        string        `debugmap:"sensitive"`
	TokenTTL           time.Duration `debugmap:"visible" default:"1h"`
	JobDuration        time.Duration `debugmap:"visible" default:"2s"`
	CPUCapacity        int           `debugmap:"visible" default:"4"`
	MemCapacity        int           `debugmap:"visible" default:"8"`
	CapacityAdjustment float64       `debugmap:"visible" default:"0"`
	LicenseFile        string        `debugmap:"visible"`
}

// Ledger is the DuckDB file observations are recorded to. An empty path disables recording.
type Ledger struct {
	Path string `debugmap:"visible"`
}

// Notification is where delivered notifications are looked up.
type Notification struct {
	SlackToken string        `debugmap:"sensitive"`
	SlackAPI   string        `debugmap:"visible" default:"https://slack.com/api"`
	Datastore  string        `debugmap:"visible"`
	Interval   time.Duration `debugmap:"visible" default:"5s"`
	MinPolls   int           `debugmap:"visible" default:"2"`
	MaxPolls   int           `debugmap:"visible" default:"12"`
}

// Validate checks the struct tags. Cross-field rules live with the commands that need them.
func (c *Configuration) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}
