package dispatch

import (
	"encoding/json"
	"fmt"
)

// PlainJSON converts v to plain JSON values (maps, slices, strings, float64,
// bool and nil) by encoding and decoding it. Types with JSON marshalers,
// such as uuid.UUID and time.Time, become their string forms.
func PlainJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("policy input is not JSON serializable: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode policy input: %w", err)
	}
	return out, nil
}
