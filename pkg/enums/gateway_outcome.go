package enums

// GatewayOutcome is the closed internal tri-state that raw provider status
// vocabularies are translated into at the boundary. Pipeline logic never
// branches on raw provider strings.
type GatewayOutcome string

const (
	GatewayOutcomePaid         GatewayOutcome = "paid"
	GatewayOutcomeFinalFailure GatewayOutcome = "final_failure"
	GatewayOutcomeStillPending GatewayOutcome = "still_pending"
)

// String implements fmt.Stringer.
func (o GatewayOutcome) String() string {
	return string(o)
}
