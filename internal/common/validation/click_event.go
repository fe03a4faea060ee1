// internal/common/validation/click_event.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// clickEventSchema constrains the click payloads accepted by TrackClick.
// Clicks come from the UI collaborator, so they are validated at the
// boundary before anything is recorded.
var clickEventSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"query": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"resultId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"resultKind": map[string]interface{}{
			"type": "string",
			"enum": []string{"item", "user", "tag", "action", "review"},
		},
		"position": map[string]interface{}{
			"type":    "integer",
			"minimum": 0,
		},
		"userId": map[string]interface{}{
			"type": "string",
		},
	},
	"required":             []string{"query", "resultId", "resultKind", "position"},
	"additionalProperties": false,
}

// ValidateClickEvent validates a raw click payload against the schema.
// Returns a joined description of every violation, or nil when valid.
func ValidateClickEvent(payload map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(clickEventSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("click event validation error: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("invalid click event: %s", strings.Join(details, "; "))
	}

	return nil
}
