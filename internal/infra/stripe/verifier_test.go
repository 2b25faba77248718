package stripe

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test_secret"

var testPayload = []byte(`{"id":"evt_123","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent","amount":10000}}}`)

func sign(payload []byte, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: at,
	}).Header
}

func headerFor(p webhook.SignedPayload) string {
	return fmt.Sprintf("t=%d,v1=%s", p.Timestamp.Unix(), hex.EncodeToString(p.Signature))
}

func TestVerifyAcceptsSignedEvent(t *testing.T) {
	v := NewVerifier(testSecret, 5*time.Minute)

	event, err := v.Verify(testPayload, sign(testPayload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, stripe.EventTypePaymentIntentSucceeded, event.Type)
	require.NotNil(t, event.Data)
	assert.Contains(t, string(event.Data.Raw), "pi_123")
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	v := NewVerifier(testSecret, 5*time.Minute)

	_, err := v.Verify(testPayload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	v := NewVerifier(testSecret, 5*time.Minute)

	_, err := v.Verify(testPayload, sign(testPayload, time.Now().Add(-10*time.Minute)))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("whsec_other", 5*time.Minute)

	_, err := v.Verify(testPayload, sign(testPayload, time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyRejectsAnySingleBitFlipInBody(t *testing.T) {
	v := NewVerifier(testSecret, 5*time.Minute)
	header := sign(testPayload, time.Now())

	for i := range testPayload {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), testPayload...)
			mutated[i] ^= 1 << bit
			_, err := v.Verify(mutated, header)
			if !assert.ErrorIs(t, err, ErrInvalidSignature, "byte %d bit %d", i, bit) {
				return
			}
		}
	}
}

func TestVerifyRejectsAnySingleBitFlipInSignature(t *testing.T) {
	v := NewVerifier(testSecret, 5*time.Minute)
	now := time.Now()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   testPayload,
		Secret:    testSecret,
		Timestamp: now,
	})

	for i := range signed.Signature {
		for bit := 0; bit < 8; bit++ {
			sig := append([]byte(nil), signed.Signature...)
			sig[i] ^= 1 << bit
			mutated := webhook.SignedPayload{UnsignedPayload: signed.UnsignedPayload, Signature: sig}
			header := headerFor(mutated)
			_, err := v.Verify(testPayload, header)
			if !assert.ErrorIs(t, err, ErrInvalidSignature, "byte %d bit %d", i, bit) {
				return
			}
		}
	}
}

func TestVerifySkipsWithoutSecret(t *testing.T) {
	v := NewVerifier("", 0)
	require.True(t, v.Skips())

	event, err := v.Verify(testPayload, "")
	require.NoError(t, err)
	assert.Equal(t, "evt_123", event.ID)

	_, err = v.Verify([]byte(`{"id":"evt_1"}`), "")
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = v.Verify([]byte(`not json`), "")
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
