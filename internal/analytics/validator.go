package analytics

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	maxEventTypeLen = 50
	maxSessionIDLen = 255
	maxUserAgentLen = 512
	maxClientIPLen  = 64
)

// Event types must look like lowercase machine tags. Unrecognized but
// well-formed types pass through so new client versions can ship event
// types before the backend learns about them.
var eventTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Validator normalizes and rejects malformed incoming events. It is a
// pure function of its input and has no side effects.
type Validator struct {
	// MetadataMaxBytes caps the serialized size of an event's metadata.
	MetadataMaxBytes int
}

func NewValidator(metadataMaxBytes int) *Validator {
	return &Validator{MetadataMaxBytes: metadataMaxBytes}
}

// Validate checks a raw event and returns its normalized form, or a
// *ValidationError describing the first offending field.
func (v *Validator) Validate(raw RawEvent) (ValidEvent, error) {
	eventType := strings.TrimSpace(raw.EventType)
	if eventType == "" {
		return ValidEvent{}, &ValidationError{Field: "event_type", Reason: "is required"}
	}
	if len(eventType) > maxEventTypeLen {
		return ValidEvent{}, &ValidationError{Field: "event_type", Reason: "exceeds 50 characters"}
	}
	if !eventTypePattern.MatchString(eventType) {
		return ValidEvent{}, &ValidationError{Field: "event_type", Reason: "is malformed"}
	}

	sessionID := strings.TrimSpace(raw.SessionID)
	if sessionID == "" {
		return ValidEvent{}, &ValidationError{Field: "session_id", Reason: "is required"}
	}
	if len(sessionID) > maxSessionIDLen {
		return ValidEvent{}, &ValidationError{Field: "session_id", Reason: "exceeds 255 characters"}
	}

	var offerID *string
	if s := strings.TrimSpace(raw.OfferID); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return ValidEvent{}, &ValidationError{Field: "offer_id", Reason: "is not a valid UUID"}
		}
		normalized := id.String()
		offerID = &normalized
	}

	if raw.Metadata != nil && v.MetadataMaxBytes > 0 {
		serialized, err := json.Marshal(raw.Metadata)
		if err != nil {
			return ValidEvent{}, &ValidationError{Field: "metadata", Reason: "is not serializable"}
		}
		if len(serialized) > v.MetadataMaxBytes {
			return ValidEvent{}, &ValidationError{Field: "metadata", Reason: "exceeds size limit"}
		}
	}

	return ValidEvent{
		EventType: eventType,
		SessionID: sessionID,
		UserID:    raw.UserID,
		OfferID:   offerID,
		Metadata:  raw.Metadata,
		ClientIP:  clamp(strings.TrimSpace(raw.ClientIP), maxClientIPLen),
		UserAgent: clamp(raw.UserAgent, maxUserAgentLen),
	}, nil
}

func clamp(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
