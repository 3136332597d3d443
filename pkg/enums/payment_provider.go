package enums

import "fmt"

// PaymentProvider identifies how an order's payment was made. Manual sales
// are confirmed by staff and never synced against a gateway.
type PaymentProvider string

const (
	PaymentProviderManual      PaymentProvider = "manual"
	PaymentProviderMercadoPago PaymentProvider = "mercadopago"
	PaymentProviderEfi         PaymentProvider = "efi"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderManual,
	PaymentProviderMercadoPago,
	PaymentProviderEfi,
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// IsManual reports whether the provider is staff-confirmed only.
func (p PaymentProvider) IsManual() bool {
	return p == PaymentProviderManual
}

// IsValid reports whether the value is a known PaymentProvider.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider converts raw input into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
