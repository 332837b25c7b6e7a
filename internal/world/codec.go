package world

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Iron-Ham/giftswap/internal/errors"
)

// Timestamp is a UTC instant that reads both RFC 3339 and zone-less
// ISO-8601 values, the latter as written by older deployments.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// At returns t as a Timestamp normalized to UTC without a monotonic reading.
func At(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{t.UTC().Round(0)}
}

// String formats the timestamp as RFC 3339 with nanoseconds.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON encodes a zero timestamp as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts null, RFC 3339 and zone-less ISO-8601 strings.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML renders the timestamp as a plain string.
func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.String(), nil
}

// ParseTimestamp parses s with each supported layout in turn. Values
// without a zone are taken as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return At(parsed), nil
		}
	}
	return Timestamp{}, fmt.Errorf("timestamp: unrecognized format %q", s)
}

// Decode parses a persisted document and applies field defaults. Empty
// input yields an empty aggregate. Malformed input returns an error
// matching errors.ErrCorrupt.
func Decode(data []byte, now time.Time) (*State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(now), nil
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCorrupt, err)
	}
	s.normalize()
	if !s.Game.Phase.Valid() {
		return nil, fmt.Errorf("%w: unknown game phase %q", errors.ErrCorrupt, s.Game.Phase)
	}
	return &s, nil
}

// Encode renders s as indented JSON.
func Encode(s *State) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}
