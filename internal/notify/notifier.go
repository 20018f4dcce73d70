package notify

// Notifier defines the minimal outbound notification surface.
// It is intentionally small so the engine can depend on it without
// importing a concrete implementation.
type Notifier interface {
	Send(text string)
	UpdateConfig(webhook, secret string)
}
