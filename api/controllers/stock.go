package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck-backend/api/responses"
	"github.com/keydeck/keydeck-backend/api/validators"
	"github.com/keydeck/keydeck-backend/internal/delivery"
	"github.com/keydeck/keydeck-backend/internal/stock"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

// WaitingStockRetrier is the slice of the delivery pipeline the admin sweep
// endpoint triggers.
type WaitingStockRetrier interface {
	RetryWaitingStock(ctx context.Context, limit int) (delivery.RetrySummary, error)
}

const retrySweepLimit = 100

type uploadStockRequest struct {
	StoreID   uuid.UUID `json:"store_id" validate:"required"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Bucket    string    `json:"bucket" validate:"required,max=64"`
	Tokens    []string  `json:"tokens" validate:"required,min=1,max=1000,dive,required"`
}

// StockUpload loads delivery tokens into a product's stock bucket.
func StockUpload(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload uploadStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeStore(r, payload.StoreID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		added, err := svc.Add(r.Context(), payload.StoreID, payload.ProductID, payload.Bucket, payload.Tokens)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]int{"added": added})
	}
}

// StockCount reports how many tokens a variant can draw from: its own
// bucket when that holds anything, otherwise the fallback buckets.
func StockCount(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, err := validators.UUIDQuery(r, "store_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeStore(r, storeID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.UUIDQuery(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.UUIDQuery(r, "variant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.AvailableCount(r.Context(), storeID, productID, variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"available": count})
	}
}

// StockRetrySweep re-runs delivery for orders parked on missing stock.
func StockRetrySweep(retrier WaitingStockRetrier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if retrier == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery pipeline unavailable"))
			return
		}
		summary, err := retrier.RetryWaitingStock(r.Context(), retrySweepLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
