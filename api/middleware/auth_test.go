package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/keydeck/keydeck-backend/pkg/auth"
	"github.com/keydeck/keydeck-backend/pkg/config"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "keydeck-test",
		ExpirationMinutes: 30,
	}
}

func TestAuthSeedsClaims(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	storeID := uuid.New()
	token, err := pkgAuth.MintStaffToken(cfg, time.Now(), "staff-1", storeID, pkgAuth.RoleStaff)
	require.NoError(t, err)

	var seen *pkgAuth.StaffClaims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromRequest(r)
		w.WriteHeader(http.StatusNoContent)
	})

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	handler := Auth(cfg, logg)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "staff-1", seen.UserID)
	assert.Equal(t, storeID, seen.StoreID)
	assert.False(t, seen.IsAdmin())
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})
	handler := Auth(cfg, logg)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireAdmin(logg)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithClaims(req.Context(), &pkgAuth.StaffClaims{UserID: "u", Role: pkgAuth.RoleStaff}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithClaims(req.Context(), &pkgAuth.StaffClaims{UserID: "u", Role: pkgAuth.RoleAdmin}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
