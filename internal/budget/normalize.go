package budget

import (
	"sort"
	"strings"
	"time"

	"github.com/santibernabebb-gif/presupuestos/internal/extraction"
)

// UnknownClient is the display sentinel for sheets with no readable client
const UnknownClient = "CLIENTE NO DETECTADO"

// Normalize derives the canonical document from a raw model result. Totals
// are always recomputed here, never taken from the model. Lines without any
// numeric value sort before lines with numbers, stable within each group.
func Normalize(sheet *extraction.BudgetSheet, id, number string, now time.Time) *BudgetDocument {
	lines := make([]BudgetLine, 0, len(sheet.Lines))
	for _, raw := range sheet.Lines {
		description := strings.TrimSpace(raw.Description)
		if description == "" {
			continue
		}

		line := BudgetLine{Description: strings.ToUpper(description)}
		if raw.Units > 0 {
			line.Units = raw.Units
		}
		if raw.UnitPrice > 0 {
			line.UnitPrice = raw.UnitPrice
		}
		if line.Units > 0 && line.UnitPrice > 0 {
			line.LineTotal = line.Units * line.UnitPrice
		}
		lines = append(lines, line)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return !lines[i].HasNumbers() && lines[j].HasNumbers()
	})

	var subtotal float64
	for _, line := range lines {
		subtotal += line.LineTotal
	}
	tax := subtotal * TaxRate

	client := strings.ToUpper(strings.TrimSpace(sheet.Client))
	if client == "" {
		client = UnknownClient
	}

	date := strings.TrimSpace(sheet.Date)
	if date == "" {
		date = now.Format("02/01/2006")
	}

	return &BudgetDocument{
		ID:       id,
		Number:   number,
		Client:   client,
		Date:     date,
		Lines:    lines,
		Notes:    strings.TrimSpace(sheet.Notes),
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}
