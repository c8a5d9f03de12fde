package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonObjectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)

// decodeResponse unmarshals the expected JSON object out of a model reply,
// tolerating code fences and surrounding prose. A reply with no parseable
// object fails with ErrParse so callers can degrade to their fallback path.
func decodeResponse(text string, dest any) error {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), dest); err == nil {
		return nil
	}

	// The model sometimes wraps the object in explanation text; take the
	// outermost braces and try again.
	match := jsonObjectRegex.FindString(cleaned)
	if match == "" {
		return fmt.Errorf("%w: no JSON object in response (%.120s)", ErrParse, cleaned)
	}
	if err := json.Unmarshal([]byte(match), dest); err != nil {
		return fmt.Errorf("%w: %v (%.120s)", ErrParse, err, match)
	}
	return nil
}
