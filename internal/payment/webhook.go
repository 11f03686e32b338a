package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventType is the closed set of inbound provider events the state machine
// understands. Anything else is logged and ignored, never fatal.
type EventType string

const (
	EventPaymentSucceeded EventType = "payment_intent.succeeded"
	EventPaymentFailed    EventType = "payment_intent.payment_failed"
)

// Event is one provider webhook delivery. Metadata carries back the ids the
// intent was tagged with at creation, which is how the asynchronous
// callback is correlated to our records.
type Event struct {
	ID       string        `json:"id"`
	Type     EventType     `json:"type"`
	IntentID string        `json:"payment_intent_id"`
	Metadata EventMetadata `json:"metadata"`
}

type EventMetadata struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

// Sign computes the hex HMAC-SHA256 of the payload; the provider sends the
// same value in the signature header.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the webhook body against its signature header.
// Verification is mandatory before any processing; a mismatch is a hard
// rejection, not a retry.
func VerifySignature(secret, payload []byte, signature string) error {
	expected := Sign(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func ParseEvent(payload []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("unmarshal webhook event: %w", err)
	}
	return evt, nil
}
