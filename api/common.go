// Package api provides the wire types exchanged with the secure backend and
// some common helpers.
package api

import (
	"encoding/json"
	"time"
)

// TimeFormat defines the format used for timestamps across all this API.
const TimeFormat = time.RFC3339

// Time is a wrapper around time.Time that overrides how it is marshaled into JSON.
type Time struct {
	time.Time
}

// String returns a string representation of the timestamp.
func (t Time) String() string {
	return t.Format(TimeFormat)
}

// MarshalJSON marshals the timestamp with RFC3339 format.
func (t Time) MarshalJSON() ([]byte, error) {
	str := t.String()
	jsonStr, err := json.Marshal(str)
	if err != nil {
		return nil, err
	}
	return []byte(jsonStr), nil
}

// UnmarshalJSON parses an RFC3339 timestamp.
func (t *Time) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := time.Parse(TimeFormat, str)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
