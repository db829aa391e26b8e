package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
)

func signedDashboardToken(t *testing.T, secret, shopID string) string {
	t.Helper()
	claims := DashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		ShopID: shopID,
		Role:   "owner",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestDashboardJWTScopesShop(t *testing.T) {
	mw := DashboardJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/dashboard/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signedDashboardToken(t, "secret", "shop-42"))
	rec := httptest.NewRecorder()

	var gotShop string
	var gotActor tenancy.Actor
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotShop, _ = tenancy.ShopIDFromContext(r.Context())
		gotActor, _ = tenancy.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotShop != "shop-42" {
		t.Errorf("expected shop-42 in context, got %q", gotShop)
	}
	if gotActor.Subject != "owner-1" || gotActor.Role != "owner" {
		t.Errorf("unexpected actor: %+v", gotActor)
	}
}

func TestDashboardJWTRejectsWrongSecret(t *testing.T) {
	mw := DashboardJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/dashboard/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signedDashboardToken(t, "other", "shop-42"))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestDashboardJWTRequiresShopClaim(t *testing.T) {
	mw := DashboardJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/dashboard/orders", nil)
	req.Header.Set("Authorization", "Bearer "+signedDashboardToken(t, "secret", ""))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without shop claim, got %d", rec.Code)
	}
}

func TestDashboardJWTMissingHeader(t *testing.T) {
	mw := DashboardJWT("secret")
	req := httptest.NewRequest(http.MethodGet, "/dashboard/orders", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestParseDashboardTokenExpired(t *testing.T) {
	claims := DashboardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		ShopID: "shop-42",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := ParseDashboardToken("secret", signed); err == nil {
		t.Fatal("expected expired token to fail")
	}
}
