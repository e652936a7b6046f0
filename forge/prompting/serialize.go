package prompting

import (
	"encoding/json"
	"fmt"
)

// SerializePayload normalizes a payload into text the model can consume:
// strings pass through, structured values get indented JSON, and anything
// the JSON encoder rejects falls back to the fmt representation. A nil
// payload serializes to the empty string.
func SerializePayload(payload any) string {
	switch t := payload.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}
