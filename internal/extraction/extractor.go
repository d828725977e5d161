package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Page is a single prepared page image, ready to send to the vision model.
// Pages are always JPEG after preparation.
type Page struct {
	Data []byte
}

// SheetLine is one raw line item as reported by the model, before any
// normalization. Zero-valued numbers mean "not written on the sheet".
type SheetLine struct {
	Description string  `json:"description"`
	Units       float64 `json:"units,omitempty"`
	UnitPrice   float64 `json:"unitPrice,omitempty"`
}

// UnmarshalJSON coerces the numeric fields through flexNumber so string
// values coming back from the model do not fail the whole parse
func (l *SheetLine) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string     `json:"description"`
		Units       flexNumber `json:"units"`
		UnitPrice   flexNumber `json:"unitPrice"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Description = raw.Description
	l.Units = float64(raw.Units)
	l.UnitPrice = float64(raw.UnitPrice)
	return nil
}

// BudgetSheet is the raw extraction result. It is never used for rendering
// directly; the budget package derives the canonical document from it.
type BudgetSheet struct {
	Client string      `json:"client"`
	Date   string      `json:"date"`
	Lines  []SheetLine `json:"lines"`
	Notes  string      `json:"notes,omitempty"`
}

// Extractor defines the interface for budget sheet extraction
type Extractor interface {
	// Extract analyzes the page images of one handwritten budget sheet
	// and returns the raw structured result
	Extract(ctx context.Context, pages []Page) (*BudgetSheet, error)
	// Close closes the extractor and releases resources
	Close() error
}

// flexNumber tolerates model output that writes numbers as strings
// (handwriting like "12,50" sometimes leaks through as text). Anything that
// cannot be read as a number decodes to zero, which downstream treats as
// "not priced".
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexNumber(v)
	return nil
}

// buildPrompt returns the extraction instruction for one budget sheet. The
// capture date is baked in so the model can apply the no-legible-date
// fallback itself.
func buildPrompt(now time.Time) string {
	return fmt.Sprintf(`You are analyzing photographs of a single handwritten budget/quote sheet. All images are pages or recaptures of the SAME document, in reading order. Carefully read all the handwriting and extract:

1. **Client**: the customer name written on the sheet.

2. **Date**: the date written on the sheet, in DD/MM/YYYY format. If no date is legible, use today's date: %s.

3. **Lines**: every work item in original reading order across all pages. For each line extract the description, the number of units and the unit price. Rules:
   - Include lines that only have descriptive text and no numbers (section headers, notes). Leave units and unitPrice out for those.
   - If a line shows only a single total amount with no explicit unit price, use 1 unit and that amount as the unit price.
   - If two images show the same region of the sheet, do not repeat the same line twice.
   - Fix obvious spelling mistakes in descriptions.
   - If something is illegible, leave that field out and describe the problem in "notes".

Do not compute subtotals or totals. Return only the JSON object.`, now.Format("02/01/2006"))
}
