package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keydeck/keydeck-backend/pkg/enums"
)

func TestMapProviderStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		provider enums.PaymentProvider
		raw      string
		want     enums.GatewayOutcome
		known    bool
	}{
		{enums.PaymentProviderMercadoPago, "approved", enums.GatewayOutcomePaid, true},
		{enums.PaymentProviderMercadoPago, "APPROVED", enums.GatewayOutcomePaid, true},
		{enums.PaymentProviderMercadoPago, "in_process", enums.GatewayOutcomeStillPending, true},
		{enums.PaymentProviderMercadoPago, "charged_back", enums.GatewayOutcomeFinalFailure, true},
		{enums.PaymentProviderEfi, "CONCLUIDA", enums.GatewayOutcomePaid, true},
		{enums.PaymentProviderEfi, "ATIVA", enums.GatewayOutcomeStillPending, true},
		{enums.PaymentProviderEfi, "REMOVIDA_PELO_PSP", enums.GatewayOutcomeFinalFailure, true},
		{enums.PaymentProviderMercadoPago, "some_new_status", enums.GatewayOutcomeStillPending, false},
		{enums.PaymentProviderManual, "anything", enums.GatewayOutcomeStillPending, false},
	}
	for _, tc := range cases {
		outcome, known := MapProviderStatus(tc.provider, tc.raw)
		assert.Equalf(t, tc.want, outcome, "%s/%s", tc.provider, tc.raw)
		assert.Equalf(t, tc.known, known, "%s/%s known", tc.provider, tc.raw)
	}
}
