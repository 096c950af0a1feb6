// Package license builds signed license blobs that the controller accepts on /api/v2/config/.
package license

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/tower-qa/tower-qa/internal/models"
)

const keyPrefix = "ansibleworks.license.000"

var defaultFeatures = map[models.LicenseType]models.Features{
	models.LicenseTypeBasic: {
		"activity_streams":       false,
		"ha":                     false,
		"ldap":                   false,
		"multiple_organizations": false,
		"surveys":                false,
		"system_tracking":        false,
	},
	models.LicenseTypeEnterprise: {
		"activity_streams":       true,
		"ha":                     true,
		"ldap":                   true,
		"multiple_organizations": true,
		"surveys":                true,
		"system_tracking":        true,
	},
	models.LicenseTypeLegacy: {
		"activity_streams":       true,
		"ha":                     true,
		"ldap":                   true,
		"multiple_organizations": true,
		"surveys":                true,
		"system_tracking":        false,
	},
}

// DefaultFeatures returns a copy of the features a license type grants.
func DefaultFeatures(t models.LicenseType) models.Features {
	out := models.Features{}
	for k, v := range defaultFeatures[t] {
		out[k] = v
	}
	return out
}

// EffectiveFeatures overlays the license's explicit features on its type's defaults.
func EffectiveFeatures(l models.License) models.Features {
	out := DefaultFeatures(l.LicenseType)
	for k, v := range l.Features {
		out[k] = v
	}
	return out
}

type options struct {
	instanceCount int
	contactEmail  string
	companyName   string
	contactName   string
	licenseType   models.LicenseType
	features      models.Features
	eulaAccepted  bool
	trial         *bool
	days          *int
	licenseDate   *int64
	now           func() time.Time
}

type Option func(*options)

func WithInstanceCount(n int) Option { return func(o *options) { o.instanceCount = n } }

func WithContact(name, email string) Option {
	return func(o *options) {
		o.contactName = name
		o.contactEmail = email
	}
}

func WithCompanyName(name string) Option { return func(o *options) { o.companyName = name } }

func WithType(t models.LicenseType) Option { return func(o *options) { o.licenseType = t } }

// WithFeatures sets explicit feature flags. Only flags that differ from the
// type's defaults change the key.
func WithFeatures(f models.Features) Option { return func(o *options) { o.features = f } }

func WithEulaAccepted(accepted bool) Option { return func(o *options) { o.eulaAccepted = accepted } }

func WithTrial(trial bool) Option { return func(o *options) { o.trial = &trial } }

// WithDays sets the expiry relative to now. Negative values produce expired licenses.
func WithDays(days int) Option { return func(o *options) { o.days = &days } }

// WithLicenseDate sets the expiry as unix seconds. WithDays wins when both are given.
func WithLicenseDate(unix int64) Option { return func(o *options) { o.licenseDate = &unix } }

func withClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Generate returns a license with its key computed over the identifying fields.
func Generate(opts ...Option) (models.License, error) {
	o := &options{
		instanceCount: 20,
		contactEmail:  "art@vandelay.com",
		companyName:   "Vandelay Industries",
		contactName:   "Art Vandelay",
		licenseType:   models.LicenseTypeLegacy,
		features:      models.Features{},
		eulaAccepted:  true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if _, ok := defaultFeatures[o.licenseType]; !ok {
		return models.License{}, fmt.Errorf("unknown license type %q", o.licenseType)
	}

	l := models.License{
		InstanceCount: o.instanceCount,
		ContactEmail:  o.contactEmail,
		CompanyName:   o.companyName,
		ContactName:   o.contactName,
		LicenseType:   o.licenseType,
		Features:      o.features,
		EulaAccepted:  o.eulaAccepted,
		Trial:         o.trial,
	}

	switch {
	case o.days != nil:
		l.LicenseDate = o.now().AddDate(0, 0, *o.days).Unix()
	case o.licenseDate != nil:
		l.LicenseDate = *o.licenseDate
	default:
		return models.License{}, fmt.Errorf("license needs either days or a license date")
	}

	l.LicenseKey = Key(l)
	return l, nil
}

// Key computes the sha256 license key of l.
func Key(l models.License) string {
	h := sha256.New()
	h.Write([]byte(keyPrefix))
	h.Write([]byte(l.CompanyName))
	h.Write([]byte(strconv.Itoa(l.InstanceCount)))
	h.Write([]byte(strconv.FormatInt(l.LicenseDate, 10)))

	if l.LicenseType != models.LicenseTypeLegacy {
		fmt.Fprintf(h, "{license_type:%s}", l.LicenseType)
	}
	if l.Trial != nil && *l.Trial {
		h.Write([]byte("True"))
	}

	defaults := defaultFeatures[l.LicenseType]
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v, ok := l.Features[name]
		if !ok || v == defaults[name] {
			continue
		}
		fmt.Fprintf(h, "{%s:%s}", name, pyBool(v))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether l carries the key its fields produce.
func Verify(l models.License) bool {
	return l.LicenseKey == Key(l)
}

// ReadFile loads a license written by WriteFile.
func ReadFile(path string) (models.License, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.License{}, fmt.Errorf("reading license file: %w", err)
	}
	var l models.License
	if err := json.Unmarshal(data, &l); err != nil {
		return models.License{}, fmt.Errorf("decoding license file %s: %w", path, err)
	}
	return l, nil
}

// WriteFile stores l as JSON at path.
func WriteFile(path string, l models.License) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func pyBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
