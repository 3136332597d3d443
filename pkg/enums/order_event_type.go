package enums

// OrderEventType labels entries in an order's append-only audit trail.
type OrderEventType string

const (
	OrderEventCreated        OrderEventType = "created"
	OrderEventConfirmed      OrderEventType = "confirmed"
	OrderEventProviderStatus OrderEventType = "provider_status_changed"
	OrderEventStockShortage  OrderEventType = "stock_shortage"
	OrderEventDelivered      OrderEventType = "delivered"
	OrderEventCancelled      OrderEventType = "cancelled"
	OrderEventFailed         OrderEventType = "failed"
	OrderEventWalletCredited OrderEventType = "wallet_credited"
	OrderEventNotifyFallback OrderEventType = "notify_fallback"
)

// String implements fmt.Stringer.
func (t OrderEventType) String() string {
	return string(t)
}
