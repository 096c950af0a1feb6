package models

import "fmt"

type LicenseType string

const (
	LicenseTypeBasic      LicenseType = "basic"
	LicenseTypeEnterprise LicenseType = "enterprise"
	LicenseTypeLegacy     LicenseType = "legacy"
)

func ParseLicenseType(s string) (LicenseType, error) {
	switch LicenseType(s) {
	case LicenseTypeBasic, LicenseTypeEnterprise, LicenseTypeLegacy:
		return LicenseType(s), nil
	default:
		return "", fmt.Errorf("invalid license type: %s", s)
	}
}

// Features maps a licensed feature name to whether it is enabled.
type Features map[string]bool

// License is the metadata blob installed into the controller. The json tags
// are the controller's field names and take part in the wire format.
type License struct {
	InstanceCount int         `json:"instance_count"`
	ContactEmail  string      `json:"contact_email"`
	CompanyName   string      `json:"company_name"`
	ContactName   string      `json:"contact_name"`
	LicenseType   LicenseType `json:"license_type"`
	Features      Features    `json:"features"`
	EulaAccepted  bool        `json:"eula_accepted"`
	Trial         *bool       `json:"trial,omitempty"`
	LicenseDate   int64       `json:"license_date"`
	LicenseKey    string      `json:"license_key"`
}

// LicenseInfo is the controller's view of the installed license.
type LicenseInfo struct {
	License
	Valid                bool
	Compliant            bool
	CurrentInstances     int
	AvailableInstances   int
	TimeRemaining        int64
	GracePeriodRemaining int64
}
