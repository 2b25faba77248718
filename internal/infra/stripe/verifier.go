package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// Verifier authenticates webhook deliveries with the endpoint's signing secret.
// An empty secret turns verification off; only meant for local development
// against the Stripe CLI without a secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

func (v *Verifier) Skips() bool { return v.secret == "" }

// Verify checks the Stripe-Signature header against payload and decodes the event.
func (v *Verifier) Verify(payload []byte, header string) (stripe.Event, error) {
	if v.Skips() {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return stripe.Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return event, validate(event)
	}

	if header == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing header", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, validate(event)
}

func validate(event stripe.Event) error {
	if event.ID == "" || event.Type == "" || event.Data == nil {
		return ErrMalformedEvent
	}
	return nil
}
