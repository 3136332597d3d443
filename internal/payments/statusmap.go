package payments

import (
	"strings"

	"github.com/keydeck/keydeck-backend/pkg/enums"
)

// Provider status vocabularies differ per gateway; each raw status maps into
// one of three buckets that drive the order state machine.
var statusTables = map[enums.PaymentProvider]map[string]enums.GatewayOutcome{
	enums.PaymentProviderMercadoPago: {
		"approved":     enums.GatewayOutcomePaid,
		"accredited":   enums.GatewayOutcomePaid,
		"pending":      enums.GatewayOutcomeStillPending,
		"in_process":   enums.GatewayOutcomeStillPending,
		"rejected":     enums.GatewayOutcomeFinalFailure,
		"cancelled":    enums.GatewayOutcomeFinalFailure,
		"expired":      enums.GatewayOutcomeFinalFailure,
		"refunded":     enums.GatewayOutcomeFinalFailure,
		"charged_back": enums.GatewayOutcomeFinalFailure,
	},
	enums.PaymentProviderEfi: {
		"concluida":                       enums.GatewayOutcomePaid,
		"received":                        enums.GatewayOutcomePaid,
		"confirmed":                       enums.GatewayOutcomePaid,
		"ativa":                           enums.GatewayOutcomeStillPending,
		"devolvida":                       enums.GatewayOutcomeFinalFailure,
		"removida_pelo_usuario_recebedor": enums.GatewayOutcomeFinalFailure,
		"removida_pelo_psp":               enums.GatewayOutcomeFinalFailure,
	},
}

// MapProviderStatus buckets a raw provider status. Unknown statuses map to
// still_pending so a new provider vocabulary entry can never fail an order.
func MapProviderStatus(provider enums.PaymentProvider, raw string) (enums.GatewayOutcome, bool) {
	table, ok := statusTables[provider]
	if !ok {
		return enums.GatewayOutcomeStillPending, false
	}
	outcome, ok := table[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return enums.GatewayOutcomeStillPending, false
	}
	return outcome, true
}
