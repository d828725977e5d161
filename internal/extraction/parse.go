package extraction

import (
	"encoding/json"
	"strings"
)

// parseBudgetJSON parses the model's text response into a raw BudgetSheet.
// Any failure here is a malformed-response error, never recovered silently.
func parseBudgetJSON(text string) (*BudgetSheet, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &Error{Kind: KindMalformed, Message: "empty response from model"}
	}

	// Remove markdown code fences if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Keep only the outermost JSON object
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, &Error{Kind: KindMalformed, Message: "no JSON object found in response"}
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, &Error{Kind: KindMalformed, Message: "invalid JSON object in response"}
	}
	text = text[startIdx : endIdx+1]

	var sheet BudgetSheet
	if err := json.Unmarshal([]byte(text), &sheet); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: "unmarshaling budget sheet", Cause: err}
	}

	return &sheet, nil
}
