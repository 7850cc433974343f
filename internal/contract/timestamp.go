package contract

import (
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayout matches Python's datetime.isoformat() output without an offset.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp decodes both RFC 3339 values and offset-less ISO-8601 values,
// which are interpreted as UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts a JSON string in either supported layout, or null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimestamp, data)
	}

	if v, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = v
		return nil
	}

	v, err := time.ParseInLocation(naiveLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	t.Time = v
	return nil
}

// MarshalJSON always writes RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
