package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from the intake topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// UnmarshalJSON accepts level as a JSON string or a JSON number. Numbers
// keep their literal text so validation sees exactly what was sent.
func (r *RawInput) UnmarshalJSON(b []byte) error {
	type plain RawInput
	var aux struct {
		plain
		Level json.RawMessage `json:"level"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = RawInput(aux.plain)

	level := bytes.TrimSpace(aux.Level)
	switch {
	case len(level) == 0, bytes.Equal(level, []byte("null")):
		r.Level = ""
	case level[0] == '"':
		if err := json.Unmarshal(level, &r.Level); err != nil {
			return err
		}
	default:
		var n json.Number
		if err := json.Unmarshal(level, &n); err != nil {
			return errors.New("level must be a string or a number")
		}
		r.Level = n.String()
	}
	return nil
}

// ParseSubmission decodes an intake message body into a RawInput.
func ParseSubmission(raw RawEvent) (RawInput, error) {
	var in RawInput
	if err := json.Unmarshal(raw.Value, &in); err != nil {
		return RawInput{}, fmt.Errorf("unmarshal submission: %w", err)
	}
	return in, nil
}
