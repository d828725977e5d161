package export

import (
	"bytes"
	"fmt"

	"github.com/fumiama/go-docx"

	"github.com/santibernabebb-gif/presupuestos/internal/budget"
)

// DOCX builds the Word rendition of a document natively, the second of the
// two export adapters. Same sections and values as the PDF layout.
type DOCX struct{}

// NewDOCX creates the Word renderer
func NewDOCX() *DOCX {
	return &DOCX{}
}

// Render produces the DOCX bytes for a document
func (d *DOCX) Render(document *budget.BudgetDocument) ([]byte, error) {
	w := docx.New().WithDefaultTheme()

	// Top label
	w.AddParagraph().Justification("center").
		AddText("PRESUPUESTO").Size("48").Bold().Italic().Color("E0F2FE")

	// Branding
	w.AddParagraph().AddText(brandName).Size("24").Bold()
	w.AddParagraph().AddText(brandAddress).Size("14")

	w.AddParagraph()

	// Client & date
	clientLine := w.AddParagraph()
	clientLine.AddText("Cliente: ").Bold()
	clientLine.AddText(document.Client).Bold().Underline("single")
	dateLine := w.AddParagraph()
	dateLine.AddText("Fecha: ").Bold()
	dateLine.AddText(document.Date).Bold().Underline("single")

	w.AddParagraph()

	// Main table: header row plus one row per line
	table := w.AddTable(len(document.Lines)+1, 4, 0, nil)
	headers := []string{"DESCRIPCION", "UNIDADES", "Precio Unit. (€)", "Precio (€)"}
	for i, title := range headers {
		table.TableRows[0].TableCells[i].AddParagraph().Justification("center").
			AddText(title).Size("16").Bold()
	}
	for i, line := range document.Lines {
		cells := table.TableRows[i+1].TableCells
		cells[0].AddParagraph().AddText(line.Description).Size("18").Bold()
		cells[1].AddParagraph().Justification("center").
			AddText(unitsOrBlank(line.Units)).Size("18").Bold()
		cells[2].AddParagraph().Justification("end").
			AddText(eurosOrBlank(line.UnitPrice)).Size("18").Bold()
		cells[3].AddParagraph().Justification("end").
			AddText(eurosOrBlank(line.LineTotal)).Size("18").Bold()
	}

	w.AddParagraph()

	// Totals
	totals := w.AddTable(3, 2, 0, nil)
	totalRows := []struct {
		label string
		value float64
	}{
		{"TOTAL €", document.Subtotal},
		{"IVA 21%", document.Tax},
		{"TOTAL FINAL", document.Total},
	}
	for i, row := range totalRows {
		cells := totals.TableRows[i].TableCells
		cells[0].AddParagraph().AddText(row.label).Size("16").Bold()
		cells[1].AddParagraph().Justification("end").AddText(euros(row.value)).Size("16").Bold()
	}

	if document.Notes != "" {
		w.AddParagraph()
		w.AddParagraph().AddText(document.Notes).Size("14").Italic()
	}

	w.AddParagraph()

	// Terms
	w.AddParagraph().AddText("IMPORTANTE:").Bold().Italic().Underline("single")
	for _, term := range terms {
		w.AddParagraph().AddText("• " + term).Size("14").Bold()
	}

	// Bottom watermark representation
	w.AddParagraph()
	mark := w.AddParagraph().Justification("center")
	mark.AddText("PRESUPUESTO").Size("36").Bold().Italic().Color("E0F2FE")
	w.AddParagraph().Justification("center").
		AddText(watermark).Size("12").Bold().Color("D1D5DB")

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing docx: %w", err)
	}
	return buf.Bytes(), nil
}
