package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrShopNotFound is returned when no shop is mapped to a business identity.
var ErrShopNotFound = errors.New("channels: shop not found for business id")

// ShopResolver maps a provider-side business identity to a shop id.
type ShopResolver interface {
	ResolveShopID(ctx context.Context, externalBusinessID string) (string, error)
}

// StaticShopResolver resolves from an in-memory map with an optional default
// shop fallback for unmapped identities.
type StaticShopResolver struct {
	mapping     map[string]string
	defaultShop string
}

// NewStaticShopResolver constructs a resolver from an explicit map.
func NewStaticShopResolver(mapping map[string]string, defaultShop string) *StaticShopResolver {
	normalized := make(map[string]string, len(mapping))
	for raw, shop := range mapping {
		key := strings.TrimSpace(raw)
		if key == "" || strings.TrimSpace(shop) == "" {
			continue
		}
		normalized[key] = strings.TrimSpace(shop)
	}
	return &StaticShopResolver{mapping: normalized, defaultShop: strings.TrimSpace(defaultShop)}
}

// ParseShopMap builds a resolver from the JSON env form
// {"<business id>":"<shop id>", ...}; an empty string yields an empty map.
func ParseShopMap(raw, defaultShop string) (*StaticShopResolver, error) {
	mapping := map[string]string{}
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &mapping); err != nil {
			return nil, fmt.Errorf("channels: parse shop map: %w", err)
		}
	}
	return NewStaticShopResolver(mapping, defaultShop), nil
}

// Chain tries each resolver in order and returns the first mapping found.
// A resolver that answers ErrShopNotFound yields to the next one; any other
// error stops the chain, so a database outage is not mistaken for an
// unmapped business identity.
type Chain []ShopResolver

// ResolveShopID implements ShopResolver.
func (c Chain) ResolveShopID(ctx context.Context, externalBusinessID string) (string, error) {
	for _, resolver := range c {
		if resolver == nil {
			continue
		}
		shopID, err := resolver.ResolveShopID(ctx, externalBusinessID)
		if err == nil {
			return shopID, nil
		}
		if !errors.Is(err, ErrShopNotFound) {
			return "", err
		}
	}
	return "", ErrShopNotFound
}

// ResolveShopID implements ShopResolver.
func (r *StaticShopResolver) ResolveShopID(ctx context.Context, externalBusinessID string) (string, error) {
	if r == nil {
		return "", ErrShopNotFound
	}
	key := strings.TrimSpace(externalBusinessID)
	if key != "" {
		if shop, ok := r.mapping[key]; ok {
			return shop, nil
		}
	}
	if r.defaultShop != "" {
		return r.defaultShop, nil
	}
	return "", ErrShopNotFound
}
