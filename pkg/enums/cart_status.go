package enums

import "fmt"

// CartStatus tracks the lifecycle of a buyer's cart channel.
type CartStatus string

const (
	CartStatusOpen      CartStatus = "open"
	CartStatusPending   CartStatus = "pending"
	CartStatusPaid      CartStatus = "paid"
	CartStatusCancelled CartStatus = "cancelled"
	CartStatusExpired   CartStatus = "expired"
)

var validCartStatuses = []CartStatus{
	CartStatusOpen,
	CartStatusPending,
	CartStatusPaid,
	CartStatusCancelled,
	CartStatusExpired,
}

// String implements fmt.Stringer.
func (s CartStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CartStatus.
func (s CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the cart can no longer change state.
func (s CartStatus) IsTerminal() bool {
	switch s {
	case CartStatusPaid, CartStatusCancelled, CartStatusExpired:
		return true
	default:
		return false
	}
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
