package domain

// Webhook topics handled by the session layer
const (
	TopicAppUninstalled = "app/uninstalled"
)

// WebhookEvent is a verified webhook delivery from Shopify
type WebhookEvent struct {
	Topic    string
	Shop     string
	Payload  []byte
	Verified bool
}
