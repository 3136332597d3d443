package controllers

import (
	"net/http"
	"strings"

	"github.com/keydeck/keydeck-backend/api/responses"
	"github.com/keydeck/keydeck-backend/internal/stores"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

// StoreResolveGuild maps a guild id to its registered, active store.
func StoreResolveGuild(svc stores.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guildID := strings.TrimSpace(r.URL.Query().Get("guild_id"))
		if guildID == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "missing guild_id").
					WithDetails(map[string]string{"guild_id": "is required"}))
			return
		}
		store, err := svc.ResolveGuild(r.Context(), guildID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStoreResponse(store))
	}
}
