package bootstrap

import (
	"fmt"
	"strings"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/internal/channels/instagram"
	"github.com/tajirhq/tajir-ai-platform/internal/channels/messenger"
	"github.com/tajirhq/tajir-ai-platform/internal/channels/whatsapp"
	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// ChannelSet bundles the wired provider adapters with the sender registry
// the orchestrator delivers replies through. Adapters for unconfigured
// providers are nil and their webhook routes never get registered.
type ChannelSet struct {
	WhatsApp  *whatsapp.Adapter
	Instagram *instagram.Adapter
	Messenger *messenger.Adapter
	Senders   *channels.Registry
}

// BuildChannels wires one adapter per provider that has credentials.
// onMessage receives every normalized inbound message from every provider.
func BuildChannels(cfg *appconfig.Config, onMessage func(channels.InboundMessage), logger *logging.Logger) (*ChannelSet, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	set := &ChannelSet{Senders: channels.NewRegistry()}

	if channelConfigured(cfg.WhatsAppAccessToken, cfg.WhatsAppVerifyToken) {
		set.WhatsApp = whatsapp.NewAdapter(
			cfg.WhatsAppAccessToken,
			cfg.WhatsAppPhoneNumberID,
			cfg.WhatsAppAppSecret,
			cfg.WhatsAppVerifyToken,
			onMessage,
			logger,
		)
		set.Senders.Register(channels.ChannelWhatsApp, set.WhatsApp)
		logger.Info("whatsapp channel enabled", "phone_number_id", cfg.WhatsAppPhoneNumberID)
	}

	if channelConfigured(cfg.InstagramAccessToken, cfg.InstagramVerifyToken) {
		set.Instagram = instagram.NewAdapter(
			cfg.InstagramAccessToken,
			cfg.InstagramAppSecret,
			cfg.InstagramVerifyToken,
			onMessage,
			logger,
		)
		set.Senders.Register(channels.ChannelInstagram, set.Instagram)
		logger.Info("instagram channel enabled")
	}

	if channelConfigured(cfg.MessengerAccessToken, cfg.MessengerVerifyToken) {
		set.Messenger = messenger.NewAdapter(
			cfg.MessengerAccessToken,
			cfg.MessengerAppSecret,
			cfg.MessengerVerifyToken,
			onMessage,
			logger,
		)
		set.Senders.Register(channels.ChannelMessenger, set.Messenger)
		logger.Info("messenger channel enabled")
	}

	return set, nil
}

// channelConfigured holds when either half of a provider setup is present:
// a verify token alone is enough to pass Meta's endpoint verification while
// the access token is still pending review.
func channelConfigured(accessToken, verifyToken string) bool {
	return strings.TrimSpace(accessToken) != "" || strings.TrimSpace(verifyToken) != ""
}

// BuildShopResolver assembles the business-identity resolver chain: the
// database mapping first, then the per-channel static maps from env, then
// the catch-all default shop. A nil linkStore skips the database layer.
func BuildShopResolver(cfg *appconfig.Config, linkStore channels.ShopResolver, logger *logging.Logger) (channels.ShopResolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	chain := channels.Chain{}
	if linkStore != nil {
		chain = append(chain, linkStore)
	}

	staticMaps := []struct {
		channel string
		raw     string
	}{
		{"whatsapp", cfg.WhatsAppShopMapJSON},
		{"instagram", cfg.InstagramShopMapJSON},
		{"messenger", cfg.MessengerShopMapJSON},
	}
	for _, m := range staticMaps {
		if strings.TrimSpace(m.raw) == "" {
			continue
		}
		resolver, err := channels.ParseShopMap(m.raw, "")
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %s shop map: %w", m.channel, err)
		}
		chain = append(chain, resolver)
		logger.Info("static shop map loaded", "channel", m.channel)
	}

	if strings.TrimSpace(cfg.DefaultShopID) != "" {
		chain = append(chain, channels.NewStaticShopResolver(nil, cfg.DefaultShopID))
		logger.Info("default shop fallback enabled", "shop_id", cfg.DefaultShopID)
	}

	return chain, nil
}
