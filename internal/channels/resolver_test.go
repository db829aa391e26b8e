package channels

import (
	"context"
	"errors"
	"testing"
)

func TestStaticShopResolver(t *testing.T) {
	resolver := NewStaticShopResolver(map[string]string{
		"123456": "shop-a",
		" 789 ":  "shop-b",
		"":       "ignored",
	}, "")

	ctx := context.Background()

	got, err := resolver.ResolveShopID(ctx, "123456")
	if err != nil || got != "shop-a" {
		t.Fatalf("expected shop-a, got %q err=%v", got, err)
	}

	got, err = resolver.ResolveShopID(ctx, "789")
	if err != nil || got != "shop-b" {
		t.Fatalf("expected trimmed key to resolve, got %q err=%v", got, err)
	}

	if _, err := resolver.ResolveShopID(ctx, "unknown"); !errors.Is(err, ErrShopNotFound) {
		t.Fatalf("expected ErrShopNotFound, got %v", err)
	}
}

func TestStaticShopResolverDefaultFallback(t *testing.T) {
	resolver := NewStaticShopResolver(map[string]string{"1": "shop-a"}, "shop-default")
	ctx := context.Background()

	got, err := resolver.ResolveShopID(ctx, "unmapped")
	if err != nil || got != "shop-default" {
		t.Fatalf("expected default fallback, got %q err=%v", got, err)
	}

	got, err = resolver.ResolveShopID(ctx, "1")
	if err != nil || got != "shop-a" {
		t.Fatalf("expected explicit mapping to win, got %q err=%v", got, err)
	}
}

func TestParseShopMap(t *testing.T) {
	resolver, err := ParseShopMap(`{"555":"shop-x"}`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := resolver.ResolveShopID(context.Background(), "555")
	if err != nil || got != "shop-x" {
		t.Fatalf("expected shop-x, got %q err=%v", got, err)
	}

	if _, err := ParseShopMap(`not json`, ""); err == nil {
		t.Fatal("expected error for malformed JSON")
	}

	resolver, err = ParseShopMap("", "shop-only-default")
	if err != nil {
		t.Fatalf("unexpected error for empty map: %v", err)
	}
	got, err = resolver.ResolveShopID(context.Background(), "anything")
	if err != nil || got != "shop-only-default" {
		t.Fatalf("expected default for empty map, got %q err=%v", got, err)
	}
}

func TestChainResolvesInOrder(t *testing.T) {
	ctx := context.Background()
	primary := NewStaticShopResolver(map[string]string{"100": "shop-db"}, "")
	fallback := NewStaticShopResolver(map[string]string{"200": "shop-env"}, "")

	chain := Chain{nil, primary, fallback}

	got, err := chain.ResolveShopID(ctx, "100")
	if err != nil || got != "shop-db" {
		t.Fatalf("expected primary hit, got %q err=%v", got, err)
	}

	got, err = chain.ResolveShopID(ctx, "200")
	if err != nil || got != "shop-env" {
		t.Fatalf("expected fallback hit, got %q err=%v", got, err)
	}

	if _, err := chain.ResolveShopID(ctx, "300"); !errors.Is(err, ErrShopNotFound) {
		t.Fatalf("expected ErrShopNotFound after exhausting chain, got %v", err)
	}
}

func TestChainStopsOnHardError(t *testing.T) {
	boom := errors.New("connection reset")
	failing := resolverFunc(func(ctx context.Context, id string) (string, error) {
		return "", boom
	})
	fallback := NewStaticShopResolver(nil, "shop-default")

	if _, err := (Chain{failing, fallback}).ResolveShopID(context.Background(), "100"); !errors.Is(err, boom) {
		t.Fatalf("expected hard error to stop the chain, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Sender(ChannelWhatsApp); ok {
		t.Fatal("expected empty registry miss")
	}

	sender := senderFunc(func(ctx context.Context, id, text string) error { return nil })
	reg.Register(ChannelWhatsApp, sender)
	reg.Register(ChannelInstagram, nil)

	if _, ok := reg.Sender(ChannelWhatsApp); !ok {
		t.Fatal("expected registered sender")
	}
	if _, ok := reg.Sender(ChannelInstagram); ok {
		t.Fatal("nil sender should not register")
	}
}

func TestChannelValid(t *testing.T) {
	for _, c := range []Channel{ChannelWhatsApp, ChannelInstagram, ChannelMessenger, ChannelChat} {
		if !c.Valid() {
			t.Fatalf("expected %s to be valid", c)
		}
	}
	if Channel("sms").Valid() {
		t.Fatal("expected unknown channel to be invalid")
	}
}

type senderFunc func(ctx context.Context, externalCustomerID, text string) error

func (f senderFunc) SendText(ctx context.Context, externalCustomerID, text string) error {
	return f(ctx, externalCustomerID, text)
}

type resolverFunc func(ctx context.Context, externalBusinessID string) (string, error)

func (f resolverFunc) ResolveShopID(ctx context.Context, externalBusinessID string) (string, error) {
	return f(ctx, externalBusinessID)
}
