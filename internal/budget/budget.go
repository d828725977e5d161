package budget

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TaxRate is the fixed IVA rate applied to every budget
const TaxRate = 0.21

// BudgetLine is one row of work on the sheet. Zero Units or UnitPrice means
// the value was not written on the page; LineTotal is only set when both are.
type BudgetLine struct {
	Description string  `json:"description"`
	Units       float64 `json:"units,omitempty"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
	LineTotal   float64 `json:"line_total,omitempty"`
}

// HasNumbers reports whether the line carries any numeric value
func (l BudgetLine) HasNumbers() bool {
	return l.Units > 0 || l.UnitPrice > 0
}

// BudgetDocument is the canonical extraction result. It is created once per
// successful extraction and never mutated afterward; history returns the
// same frozen value.
type BudgetDocument struct {
	ID       string       `json:"id"`
	Number   string       `json:"number"`
	Client   string       `json:"client"`
	Date     string       `json:"date"` // DD/MM/YYYY display text, kept opaque
	Lines    []BudgetLine `json:"lines"`
	Notes    string       `json:"notes,omitempty"`
	Subtotal float64      `json:"subtotal"`
	Tax      float64      `json:"tax"`
	Total    float64      `json:"total"`
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

// ExportBasename is the deterministic download name shared by both export
// adapters, without extension: Presupuesto_<number>_<CLIENT>.
func (d *BudgetDocument) ExportBasename() string {
	client := strings.ReplaceAll(d.Client, " ", "_")
	client = unsafeFilenameChars.ReplaceAllString(client, "")
	return fmt.Sprintf("Presupuesto_%s_%s", d.Number, client)
}

// HistoryEntry is an immutable snapshot of a BudgetDocument at creation time
type HistoryEntry struct {
	ID         string         `json:"id"`
	CapturedAt time.Time      `json:"captured_at"`
	Client     string         `json:"client"`
	Total      float64        `json:"total"`
	Document   BudgetDocument `json:"document"`
}
