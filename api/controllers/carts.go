package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/api/middleware"
	"github.com/keydeck/keydeck-backend/api/responses"
	"github.com/keydeck/keydeck-backend/api/validators"
	"github.com/keydeck/keydeck-backend/internal/carts"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

type upsertCartRequest struct {
	StoreID     uuid.UUID `json:"store_id" validate:"required"`
	BuyerUserID string    `json:"buyer_user_id" validate:"required"`
	ChannelID   string    `json:"channel_id"`
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	VariantID   uuid.UUID `json:"variant_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,min=1"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// CartUpsert creates or reuses the buyer's open cart for a variant pick.
func CartUpsert(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload upsertCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeStore(r, payload.StoreID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.Upsert(r.Context(), carts.UpsertInput{
			StoreID:     payload.StoreID,
			BuyerUserID: payload.BuyerUserID,
			ChannelID:   payload.ChannelID,
			ProductID:   payload.ProductID,
			VariantID:   payload.VariantID,
			Quantity:    payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartFetch returns one cart by id.
func CartFetch(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.UUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.Get(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeStore(r, cart.StoreID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartTouch resets the cart's idle clock without changing anything else.
// The bot calls this on browsing activity so the reaper leaves live
// conversations alone.
func CartTouch(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.UUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.Get(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeStore(r, cart.StoreID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.TouchActivity(r.Context(), cartID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "touched"})
	}
}

// CartSetQuantity updates the quantity on an open cart.
func CartSetQuantity(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.UUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.SetQuantity(r.Context(), cartID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartApplyCoupon applies a store coupon code to an open cart.
func CartApplyCoupon(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.UUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload applyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.ApplyCoupon(r.Context(), cartID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// CartClearCoupon removes any discount from an open cart.
func CartClearCoupon(svc carts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := validators.UUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, err := svc.ClearCoupon(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func authorizeStore(r *http.Request, storeID uuid.UUID) error {
	claims, err := middleware.ClaimsFromRequest(r)
	if err != nil {
		return err
	}
	if claims.IsAdmin() {
		return nil
	}
	if claims.StoreID != storeID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "token is not scoped to this store")
	}
	return nil
}
