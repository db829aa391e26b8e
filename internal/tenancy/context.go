package tenancy

import "context"

type ctxKey string

const (
	shopKey  ctxKey = "tajir.shop_id"
	actorKey ctxKey = "tajir.actor"
)

// Actor identifies the authenticated caller behind a request. Produced by the
// auth middleware and threaded explicitly; handlers never reach into raw
// request state for identity.
type Actor struct {
	Subject string
	Role    string
	ShopID  string
}

// WithShopID stores the shop id in context.
func WithShopID(ctx context.Context, shopID string) context.Context {
	return context.WithValue(ctx, shopKey, shopID)
}

// ShopIDFromContext extracts the shop id if present.
func ShopIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(shopKey)
	if val == nil {
		return "", false
	}
	shopID, ok := val.(string)
	return shopID, ok && shopID != ""
}

// WithActor stores the authenticated actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the authenticated actor if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	val := ctx.Value(actorKey)
	if val == nil {
		return Actor{}, false
	}
	actor, ok := val.(Actor)
	return actor, ok && actor.Subject != ""
}
