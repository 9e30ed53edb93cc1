package ollama

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Range checks on year and month stay in the tagger so out-of-range items are
// dropped rather than failing the whole window.
const dateResponseSchema = `{
  "type": "object",
  "required": ["dates"],
  "properties": {
    "dates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["year", "month"],
        "properties": {
          "year": {"type": "integer"},
          "month": {"type": "integer"},
          "text": {"type": "string"}
        }
      }
    }
  }
}`

var dateSchema = jsonschema.MustCompileString("date_response.json", dateResponseSchema)

func validateDateResponse(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal model output: %w", err)
	}
	if err := dateSchema.Validate(v); err != nil {
		return fmt.Errorf("model output does not match schema: %w", err)
	}
	return nil
}
