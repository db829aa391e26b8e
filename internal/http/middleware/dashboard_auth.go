package middleware

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
)

// DashboardClaims are the claims in a dashboard session token. shop_id pins
// the session to one tenant; every downstream handler reads the shop from
// context, never from the request.
type DashboardClaims struct {
	jwt.RegisteredClaims
	ShopID string `json:"shop_id"`
	Role   string `json:"role,omitempty"`
}

// ParseDashboardToken validates a dashboard JWT and returns the actor it
// grants. Shared between the HTTP middleware and the websocket upgrade,
// which can only carry the token as a query parameter.
func ParseDashboardToken(secret, tokenString string) (tenancy.Actor, error) {
	claims := &DashboardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return tenancy.Actor{}, err
	}
	if !token.Valid || claims.ShopID == "" {
		return tenancy.Actor{}, jwt.ErrTokenInvalidClaims
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.ShopID
	}
	return tenancy.Actor{
		Subject: subject,
		Role:    claims.Role,
		ShopID:  claims.ShopID,
	}, nil
}

// DashboardJWT authenticates dashboard requests and scopes them to the shop
// named in the token.
func DashboardJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "dashboard auth disabled", http.StatusUnauthorized)
				return
			}
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			actor, err := ParseDashboardToken(secret, tokenString)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := tenancy.WithShopID(r.Context(), actor.ShopID)
			ctx = tenancy.WithActor(ctx, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
