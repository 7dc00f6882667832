package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"shopify-session-storage/internal/application"
	"shopify-session-storage/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler removes a shop's sessions when the app is uninstalled
type AppUninstalledHandler struct {
	logger         zerolog.Logger
	sessionService *application.SessionService
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(logger zerolog.Logger, sessionService *application.SessionService) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger:         logger,
		sessionService: sessionService,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppUninstalled
}

// Handle processes an app uninstalled webhook event
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.Shop
	if shopDomain == "" {
		var shopData map[string]interface{}
		if err := json.Unmarshal(event.Payload, &shopData); err != nil {
			return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
		}
		if myshopifyDomain, ok := shopData["myshopify_domain"].(string); ok {
			shopDomain = myshopifyDomain
		} else if d, ok := shopData["domain"].(string); ok {
			shopDomain = d
		}
	}
	if shopDomain == "" {
		return fmt.Errorf("app uninstalled webhook without shop domain")
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Msg("Processing app uninstalled webhook event")

	count, err := h.sessionService.PurgeShop(ctx, shopDomain)
	if err != nil {
		return err
	}

	h.logger.Info().
		Str("shop", shopDomain).
		Int("sessions", count).
		Msg("App uninstalled - sessions removed")
	return nil
}
