package analytics

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorAcceptsRecognizedAndUnknownTypes(t *testing.T) {
	v := NewValidator(8192)

	tests := []struct {
		name      string
		eventType string
	}{
		{"view", "view"},
		{"click", "click"},
		{"conversion", "conversion"},
		{"unknown but well-formed", "wishlist_add"},
		{"dashed", "share-offer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := v.Validate(RawEvent{EventType: tt.eventType, SessionID: "sess-1"})
			assert.NoError(t, err)
			assert.Equal(t, tt.eventType, ev.EventType)
		})
	}
}

func TestValidatorRejectsMalformedInput(t *testing.T) {
	v := NewValidator(8192)

	tests := []struct {
		name  string
		raw   RawEvent
		field string
	}{
		{"empty event type", RawEvent{EventType: "", SessionID: "s"}, "event_type"},
		{"whitespace event type", RawEvent{EventType: "   ", SessionID: "s"}, "event_type"},
		{"uppercase event type", RawEvent{EventType: "View", SessionID: "s"}, "event_type"},
		{"event type too long", RawEvent{EventType: strings.Repeat("a", 51), SessionID: "s"}, "event_type"},
		{"event type with spaces", RawEvent{EventType: "page view", SessionID: "s"}, "event_type"},
		{"missing session", RawEvent{EventType: "view"}, "session_id"},
		{"session too long", RawEvent{EventType: "view", SessionID: strings.Repeat("s", 256)}, "session_id"},
		{"bad offer id", RawEvent{EventType: "view", SessionID: "s", OfferID: "not-a-uuid"}, "offer_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.raw)
			var verr *ValidationError
			assert.Error(t, err)
			assert.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidatorMetadataSizeCeiling(t *testing.T) {
	v := NewValidator(64)

	small := map[string]any{"k": "v"}
	ev, err := v.Validate(RawEvent{EventType: "view", SessionID: "s", Metadata: small})
	assert.NoError(t, err)
	assert.Equal(t, small, ev.Metadata)

	big := map[string]any{"blob": strings.Repeat("x", 200)}
	_, err = v.Validate(RawEvent{EventType: "view", SessionID: "s", Metadata: big})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "metadata", verr.Field)
	assert.Contains(t, verr.Reason, "size limit")
}

func TestValidatorNormalizesOfferID(t *testing.T) {
	v := NewValidator(8192)

	ev, err := v.Validate(RawEvent{
		EventType: "click",
		SessionID: "  sess-9  ",
		OfferID:   "6BA7B810-9DAD-11D1-80B4-00C04FD430C8",
	})
	assert.NoError(t, err)
	assert.Equal(t, "sess-9", ev.SessionID)
	if assert.NotNil(t, ev.OfferID) {
		assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", *ev.OfferID)
	}
}

func TestValidatorClampsTransportFields(t *testing.T) {
	v := NewValidator(8192)

	ev, err := v.Validate(RawEvent{
		EventType: "view",
		SessionID: "s",
		UserAgent: strings.Repeat("U", 600),
		ClientIP:  "203.0.113.7",
	})
	assert.NoError(t, err)
	assert.Len(t, ev.UserAgent, 512)
	assert.Equal(t, "203.0.113.7", ev.ClientIP)
}
