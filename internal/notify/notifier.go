package notify

import "context"

// Notifier is the fire-and-forget contract towards the notification
// collaborator (email, push, analytics fan-out). Implementations must never
// fail the caller: delivery problems are logged and swallowed so a broken
// bus cannot roll back or block a checkout.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload map[string]any)
}

// Noop discards every event; used in tests and when no bus is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string, map[string]any) {}
