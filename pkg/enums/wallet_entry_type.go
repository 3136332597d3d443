package enums

import "fmt"

// WalletEntryType maps to the kinds of entries in a seller's ledger.
type WalletEntryType string

const (
	WalletEntryTypeSaleCredit WalletEntryType = "sale_credit"
	WalletEntryTypePayout     WalletEntryType = "payout"
	WalletEntryTypeAdjustment WalletEntryType = "adjustment"
)

var validWalletEntryTypes = []WalletEntryType{
	WalletEntryTypeSaleCredit,
	WalletEntryTypePayout,
	WalletEntryTypeAdjustment,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t WalletEntryType) IsValid() bool {
	for _, candidate := range validWalletEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseWalletEntryType converts raw input into WalletEntryType.
func ParseWalletEntryType(value string) (WalletEntryType, error) {
	for _, candidate := range validWalletEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet entry type %q", value)
}
