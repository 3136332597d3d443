package enums

import "fmt"

// ConfirmationSource identifies which trigger confirmed a sale.
type ConfirmationSource string

const (
	ConfirmationSourceGateway   ConfirmationSource = "gateway"
	ConfirmationSourceStaff     ConfirmationSource = "staff"
	ConfirmationSourceDashboard ConfirmationSource = "dashboard"
	ConfirmationSourceRetry     ConfirmationSource = "retry"
)

var validConfirmationSources = []ConfirmationSource{
	ConfirmationSourceGateway,
	ConfirmationSourceStaff,
	ConfirmationSourceDashboard,
	ConfirmationSourceRetry,
}

// String implements fmt.Stringer.
func (s ConfirmationSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ConfirmationSource.
func (s ConfirmationSource) IsValid() bool {
	for _, candidate := range validConfirmationSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseConfirmationSource converts raw input into a ConfirmationSource.
func ParseConfirmationSource(value string) (ConfirmationSource, error) {
	for _, candidate := range validConfirmationSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid confirmation source %q", value)
}
