package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keydeck/keydeck-backend/api/middleware"
	"github.com/keydeck/keydeck-backend/internal/carts"
	pkgAuth "github.com/keydeck/keydeck-backend/pkg/auth"
	"github.com/keydeck/keydeck-backend/pkg/db/models"
	"github.com/keydeck/keydeck-backend/pkg/enums"
	pkgerrors "github.com/keydeck/keydeck-backend/pkg/errors"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

type fakeCartService struct {
	carts.Service

	upsertInput carts.UpsertInput
	upsertCart  *models.Cart
	upsertErr   error

	quantityCart *models.Cart
	quantityErr  error

	getCart *models.Cart
	getErr  error

	touched  []uuid.UUID
	touchErr error
}

func (f *fakeCartService) Upsert(ctx context.Context, input carts.UpsertInput) (*models.Cart, error) {
	f.upsertInput = input
	return f.upsertCart, f.upsertErr
}

func (f *fakeCartService) SetQuantity(ctx context.Context, cartID uuid.UUID, quantity int) (*models.Cart, error) {
	return f.quantityCart, f.quantityErr
}

func (f *fakeCartService) Get(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return f.getCart, f.getErr
}

func (f *fakeCartService) TouchActivity(ctx context.Context, cartID uuid.UUID) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, cartID)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func authed(r *http.Request, claims *pkgAuth.StaffClaims) *http.Request {
	return r.WithContext(middleware.ContextWithClaims(r.Context(), claims))
}

func TestCartUpsertCreatesCart(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	cart := &models.Cart{
		ID: uuid.New(), StoreID: storeID, BuyerUserID: "buyer-1",
		ProductID: uuid.New(), VariantID: uuid.New(), Quantity: 2,
		Status: enums.CartStatusOpen, LastActivityAt: time.Now().UTC(),
	}
	svc := &fakeCartService{upsertCart: cart}

	body := fmt.Sprintf(`{"store_id":%q,"buyer_user_id":"buyer-1","product_id":%q,"variant_id":%q,"quantity":2}`,
		storeID, cart.ProductID, cart.VariantID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts", bytes.NewBufferString(body))
	req = authed(req, &pkgAuth.StaffClaims{UserID: "staff-1", StoreID: storeID, Role: pkgAuth.RoleStaff})
	rec := httptest.NewRecorder()

	CartUpsert(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "buyer-1", svc.upsertInput.BuyerUserID)
	assert.Equal(t, 2, svc.upsertInput.Quantity)

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, cart.ID, envelope.Data.ID)
	assert.Equal(t, "open", envelope.Data.Status)
}

func TestCartUpsertRejectsForeignStore(t *testing.T) {
	t.Parallel()

	svc := &fakeCartService{}
	body := fmt.Sprintf(`{"store_id":%q,"buyer_user_id":"buyer-1","product_id":%q,"variant_id":%q,"quantity":1}`,
		uuid.New(), uuid.New(), uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts", bytes.NewBufferString(body))
	req = authed(req, &pkgAuth.StaffClaims{UserID: "staff-1", StoreID: uuid.New(), Role: pkgAuth.RoleStaff})
	rec := httptest.NewRecorder()

	CartUpsert(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.upsertInput.BuyerUserID)
}

func TestCartUpsertValidatesBody(t *testing.T) {
	t.Parallel()

	svc := &fakeCartService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts", bytes.NewBufferString(`{"quantity":0}`))
	req = authed(req, &pkgAuth.StaffClaims{UserID: "staff-1", StoreID: uuid.New(), Role: pkgAuth.RoleAdmin})
	rec := httptest.NewRecorder()

	CartUpsert(svc, testLogger())(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartTouchResetsIdleClock(t *testing.T) {
	t.Parallel()

	storeID := uuid.New()
	cartID := uuid.New()
	svc := &fakeCartService{
		getCart: &models.Cart{ID: cartID, StoreID: storeID, Status: enums.CartStatusOpen},
	}

	router := chi.NewRouter()
	router.Post("/carts/{cartId}/touch", CartTouch(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/carts/"+cartID.String()+"/touch", nil)
	req = authed(req, &pkgAuth.StaffClaims{UserID: "staff-1", StoreID: storeID, Role: pkgAuth.RoleStaff})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.touched, 1)
	assert.Equal(t, cartID, svc.touched[0])
}

func TestCartTouchRejectsForeignStore(t *testing.T) {
	t.Parallel()

	cartID := uuid.New()
	svc := &fakeCartService{
		getCart: &models.Cart{ID: cartID, StoreID: uuid.New(), Status: enums.CartStatusOpen},
	}

	router := chi.NewRouter()
	router.Post("/carts/{cartId}/touch", CartTouch(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/carts/"+cartID.String()+"/touch", nil)
	req = authed(req, &pkgAuth.StaffClaims{UserID: "staff-1", StoreID: uuid.New(), Role: pkgAuth.RoleStaff})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, svc.touched)
}

func TestCartSetQuantitySurfacesStateConflict(t *testing.T) {
	t.Parallel()

	svc := &fakeCartService{
		quantityErr: pkgerrors.New(pkgerrors.CodeStateConflict, "cart is not open"),
	}
	cartID := uuid.New()

	router := chi.NewRouter()
	router.Put("/carts/{cartId}/quantity", CartSetQuantity(svc, testLogger()))

	req := httptest.NewRequest(http.MethodPut, "/carts/"+cartID.String()+"/quantity", bytes.NewBufferString(`{"quantity":3}`))
	req = authed(req, &pkgAuth.StaffClaims{UserID: "staff-1", Role: pkgAuth.RoleAdmin})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "STATE_CONFLICT", envelope.Error.Code)
	assert.Equal(t, "cart is not open", envelope.Error.Message)
}
