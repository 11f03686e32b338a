package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Provider is the outbound contract to an external payment provider:
// register an intent for an amount in minor units, get back the client
// secret the shopper's browser completes the payment with. The provider
// reports the outcome asynchronously through the signed webhook.
type Provider interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, metadata map[string]string) (clientSecret, intentID string, err error)
}

// StubProvider issues intents locally without calling anyone; the webhook
// endpoint (or a test) then drives the outcome. Useful for local runs.
type StubProvider struct{}

func (StubProvider) CreateIntent(_ context.Context, _ int64, _ map[string]string) (string, string, error) {
	intentID := fmt.Sprintf("pi_%s", uuid.New().String())
	return fmt.Sprintf("%s_secret_%s", intentID, uuid.New().String()), intentID, nil
}
