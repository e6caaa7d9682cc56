// Package feed defines the message frames carried by the stream and how they
// are decoded and formatted for display.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ErrDecode wraps every failure to turn a frame payload into a Message.
var ErrDecode = errors.New("feed: decode message")

// Placeholder is shown instead of an elapsed time when no session is active.
const Placeholder = "--"

// Message is one frame pushed by the server.
type Message struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// UnmarshalJSON accepts the timestamp either as a string or as a JSON number
// (epoch seconds or milliseconds), keeping it in its textual form.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        int             `json:"id"`
		Timestamp json.RawMessage `json:"timestamp"`
		Message   string          `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ts, err := timestampText(raw.Timestamp)
	if err != nil {
		return err
	}

	m.ID = raw.ID
	m.Timestamp = ts
	m.Message = raw.Message
	return nil
}

func timestampText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("timestamp must be a string or number, got %s", raw)
	}
}

// Decode parses one frame payload. Anything other than a JSON object with an
// integer id is rejected with an error wrapping ErrDecode.
func Decode(data []byte) (Message, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Message{}, fmt.Errorf("%w: payload is not a JSON object", ErrDecode)
	}

	var m Message
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return m, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FormatTime renders a message timestamp as a wall-clock time in loc.
// Timestamps it cannot interpret are returned unchanged.
func FormatTime(ts string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t, ok := ParseTime(ts)
	if !ok {
		return ts
	}
	return t.In(loc).Format("15:04:05")
}

// ParseTime interprets ISO-8601 strings and epoch seconds or milliseconds.
func ParseTime(ts string) (time.Time, bool) {
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}

	f, err := strconv.ParseFloat(ts, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return time.Time{}, false
	}
	// Anything past 1e12 cannot be seconds (year 33658), so it is milliseconds.
	if f >= 1e12 {
		return time.UnixMilli(int64(f)), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}

// FormatElapsed renders d as minutes:seconds with zero-padded seconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
