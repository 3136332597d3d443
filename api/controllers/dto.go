package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/internal/delivery"
	"github.com/keydeck/keydeck-backend/internal/orders"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
)

type cartResponse struct {
	ID              uuid.UUID  `json:"id"`
	StoreID         uuid.UUID  `json:"store_id"`
	BuyerUserID     string     `json:"buyer_user_id"`
	ChannelID       string     `json:"channel_id,omitempty"`
	ProductID       uuid.UUID  `json:"product_id"`
	VariantID       uuid.UUID  `json:"variant_id"`
	Quantity        int        `json:"quantity"`
	DiscountPercent int        `json:"discount_percent"`
	Status          string     `json:"status"`
	LinkedOrderID   *uuid.UUID `json:"linked_order_id,omitempty"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	return cartResponse{
		ID:              cart.ID,
		StoreID:         cart.StoreID,
		BuyerUserID:     cart.BuyerUserID,
		ChannelID:       cart.ChannelID,
		ProductID:       cart.ProductID,
		VariantID:       cart.VariantID,
		Quantity:        cart.Quantity,
		DiscountPercent: cart.DiscountPercent,
		Status:          string(cart.Status),
		LinkedOrderID:   cart.LinkedOrderID,
		LastActivityAt:  cart.LastActivityAt,
	}
}

type orderResponse struct {
	ID                uuid.UUID  `json:"id"`
	CartID            uuid.UUID  `json:"cart_id"`
	StoreID           uuid.UUID  `json:"store_id"`
	ProductID         uuid.UUID  `json:"product_id"`
	VariantID         uuid.UUID  `json:"variant_id"`
	Quantity          int        `json:"quantity"`
	GrossCents        int        `json:"gross_cents"`
	Status            string     `json:"status"`
	PaymentProvider   string     `json:"payment_provider"`
	ProviderPaymentID *string    `json:"provider_payment_id,omitempty"`
	ProviderStatus    *string    `json:"provider_status,omitempty"`
	DeliveryID        *uuid.UUID `json:"delivery_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	return orderResponse{
		ID:                order.ID,
		CartID:            order.CartID,
		StoreID:           order.StoreID,
		ProductID:         order.ProductID,
		VariantID:         order.VariantID,
		Quantity:          order.Quantity,
		GrossCents:        order.GrossCents,
		Status:            string(order.Status),
		PaymentProvider:   string(order.PaymentProvider),
		ProviderPaymentID: order.ProviderPaymentID,
		ProviderStatus:    order.ProviderStatus,
		DeliveryID:        order.DeliveryID,
		CreatedAt:         order.CreatedAt,
	}
}

type checkoutResponse struct {
	Order     orderResponse `json:"order"`
	QRCode    string        `json:"qr_code,omitempty"`
	CopyPaste string        `json:"copy_paste,omitempty"`
}

func newCheckoutResponse(result *orders.CheckoutResult) checkoutResponse {
	return checkoutResponse{
		Order:     newOrderResponse(result.Order),
		QRCode:    result.QRCode,
		CopyPaste: result.CopyPaste,
	}
}

type confirmResponse struct {
	OK         bool       `json:"ok"`
	Reason     string     `json:"reason"`
	DeliveryID *uuid.UUID `json:"delivery_id,omitempty"`
}

func newConfirmResponse(result delivery.Result) confirmResponse {
	return confirmResponse{
		OK:         result.OK,
		Reason:     string(result.Reason),
		DeliveryID: result.DeliveryID,
	}
}

type storeResponse struct {
	ID             uuid.UUID `json:"id"`
	GuildID        string    `json:"guild_id"`
	Name           string    `json:"name"`
	OwnerUserID    string    `json:"owner_user_id"`
	StaffChannelID string    `json:"staff_channel_id,omitempty"`
}

func newStoreResponse(store *models.Store) storeResponse {
	return storeResponse{
		ID:             store.ID,
		GuildID:        store.GuildID,
		Name:           store.Name,
		OwnerUserID:    store.OwnerUserID,
		StaffChannelID: store.StaffChannelID,
	}
}

type walletResponse struct {
	ID            uuid.UUID  `json:"id"`
	OwnerUserID   string     `json:"owner_user_id"`
	BalanceCents  int64      `json:"balance_cents"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
}

func newWalletResponse(account *models.WalletAccount) walletResponse {
	return walletResponse{
		ID:            account.ID,
		OwnerUserID:   account.OwnerUserID,
		BalanceCents:  account.BalanceCents,
		PlanExpiresAt: account.PlanExpiresAt,
	}
}

type walletEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type walletEntriesResponse struct {
	Entries    []walletEntryResponse `json:"entries"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

func newWalletEntriesResponse(entries []models.WalletEntry, next string) walletEntriesResponse {
	out := walletEntriesResponse{Entries: make([]walletEntryResponse, 0, len(entries)), NextCursor: next}
	for _, entry := range entries {
		out.Entries = append(out.Entries, walletEntryResponse{
			ID:          entry.ID,
			Type:        string(entry.Type),
			AmountCents: entry.AmountCents,
			Status:      entry.Status,
			OrderID:     entry.OrderID,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return out
}
