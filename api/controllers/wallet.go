package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/keydeck/keydeck-backend/api/middleware"
	"github.com/keydeck/keydeck-backend/api/responses"
	"github.com/keydeck/keydeck-backend/internal/wallet"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
	"github.com/keydeck/keydeck-backend/pkg/pagination"
)

// WalletAccount returns a seller's ledger account. Sellers can only read
// their own account; admins can read any.
func WalletAccount(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerUserID := chi.URLParam(r, "userId")
		if ownerUserID == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "missing userId").
					WithDetails(map[string]string{"userId": "is required"}))
			return
		}
		claims, err := middleware.ClaimsFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !claims.IsAdmin() && claims.UserID != ownerUserID {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeForbidden, "cannot read another seller's wallet"))
			return
		}

		account, err := svc.GetAccount(r.Context(), ownerUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletResponse(account))
	}
}

// WalletEntries pages through a seller's ledger entries.
func WalletEntries(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerUserID := chi.URLParam(r, "userId")
		if ownerUserID == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "missing userId").
					WithDetails(map[string]string{"userId": "is required"}))
			return
		}
		claims, err := middleware.ClaimsFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !claims.IsAdmin() && claims.UserID != ownerUserID {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeForbidden, "cannot read another seller's wallet"))
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid limit").
						WithDetails(map[string]string{"limit": "must be a non-negative integer"}))
				return
			}
			limit = parsed
		}

		entries, next, err := svc.ListEntries(r.Context(), ownerUserID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletEntriesResponse(entries, next))
	}
}
