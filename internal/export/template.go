// Package export renders a frozen BudgetDocument into the two download
// formats: an A4 PDF snapshotted from a fixed HTML layout, and a native
// Word document. Both reproduce the same client/date/line/total values.
package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/santibernabebb-gif/presupuestos/internal/budget"
)

// Fixed branding block of the paper form being replicated
const (
	brandName    = "Eduardo Quilis Llorens"
	brandAddress = "C/ Cervantes 41 • Onil • 03430 | 620-944-229 • NIF: 21667776-M"
	watermark    = "SantiSystems"
)

// Fixed terms printed under every budget
var terms = []string{
	"Cualquier imprevisto o problema surgido durante la realización de la obra se facturará aparte.",
	"Los cambios necesarios debido al estado de las superficies se presupuestarán y cobrarán por separado.",
	"El 50% del valor del presupuesto se abonará antes de iniciar la obra.",
}

// euros formats a monetary value the way the paper form writes it
func euros(v float64) string {
	return fmt.Sprintf("%.2f€", v)
}

// eurosOrBlank leaves absent amounts blank instead of writing 0.00€
func eurosOrBlank(v float64) string {
	if v <= 0 {
		return ""
	}
	return euros(v)
}

// unitsOrBlank leaves unquantified lines blank
func unitsOrBlank(v float64) string {
	if v <= 0 {
		return ""
	}
	return fmt.Sprintf("%g", v)
}

var budgetTemplate = template.Must(template.New("budget").Funcs(template.FuncMap{
	"euros":        euros,
	"eurosOrBlank": eurosOrBlank,
	"unitsOrBlank": unitsOrBlank,
}).Parse(budgetHTML))

type templateData struct {
	Document  *budget.BudgetDocument
	BrandName string
	Address   string
	Watermark string
	Terms     []string
}

// RenderHTML produces the fixed A4 layout for a document. The PDF adapter
// snapshots exactly this output.
func RenderHTML(document *budget.BudgetDocument) (string, error) {
	var buf bytes.Buffer
	err := budgetTemplate.Execute(&buf, templateData{
		Document:  document,
		BrandName: brandName,
		Address:   brandAddress,
		Watermark: watermark,
		Terms:     terms,
	})
	if err != nil {
		return "", fmt.Errorf("rendering budget template: %w", err)
	}
	return buf.String(), nil
}

const budgetHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<style>
  @page { size: A4 portrait; margin: 12mm; }
  body { font-family: Arial, Helvetica, sans-serif; color: #111; margin: 0; }
  .label {
    text-align: center;
    font-size: 32px;
    font-weight: 800;
    font-style: italic;
    color: #e0f2fe;
    -webkit-text-stroke: 1px #bae6fd;
  }
  .brand-name { font-size: 16px; font-weight: 700; margin-top: 10px; }
  .brand-address { font-size: 10px; }
  .meta { margin-top: 16px; font-weight: 700; }
  .meta span { text-decoration: underline; }
  table.lines { width: 100%; border-collapse: collapse; margin-top: 18px; }
  table.lines th, table.lines td { border: 1px solid #000; padding: 4px 6px; font-size: 12px; }
  table.lines th { background: #334155; color: #fff; text-align: center; font-size: 11px; }
  table.lines td { font-weight: 700; }
  td.center { text-align: center; }
  td.right { text-align: right; }
  table.totals { margin-left: auto; margin-top: 18px; width: 45%; border-collapse: collapse; }
  table.totals td { padding: 4px 6px; font-size: 12px; font-weight: 700; }
  table.totals td.right { text-align: right; }
  tr.grand td { background: #f1f5f9; font-size: 13px; }
  .notes { margin-top: 12px; font-size: 10px; font-style: italic; color: #92400e; }
  .terms { margin-top: 24px; }
  .terms-title { font-weight: 700; font-style: italic; text-decoration: underline; }
  .terms li { font-size: 10px; font-weight: 700; margin-top: 4px; }
  .watermark { margin-top: 48px; text-align: center; }
  .watermark .big {
    font-size: 24px; font-weight: 800; font-style: italic; color: #e0f2fe;
  }
  .watermark .small { font-size: 9px; font-weight: 700; color: #d1d5db; }
</style>
</head>
<body>
  <div class="label">PRESUPUESTO</div>

  <div class="brand-name">{{.BrandName}}</div>
  <div class="brand-address">{{.Address}}</div>

  <div class="meta">Cliente: <span>{{.Document.Client}}</span></div>
  <div class="meta">Fecha: <span>{{.Document.Date}}</span></div>

  <table class="lines">
    <thead>
      <tr>
        <th>DESCRIPCION</th>
        <th>UNIDADES</th>
        <th>Precio Unit. (€)</th>
        <th>Precio (€)</th>
      </tr>
    </thead>
    <tbody>
      {{range .Document.Lines}}
      <tr>
        <td>{{.Description}}</td>
        <td class="center">{{unitsOrBlank .Units}}</td>
        <td class="right">{{eurosOrBlank .UnitPrice}}</td>
        <td class="right">{{eurosOrBlank .LineTotal}}</td>
      </tr>
      {{end}}
    </tbody>
  </table>

  <table class="totals">
    <tr><td>TOTAL €</td><td class="right">{{euros .Document.Subtotal}}</td></tr>
    <tr><td>IVA 21%</td><td class="right">{{euros .Document.Tax}}</td></tr>
    <tr class="grand"><td>TOTAL FINAL</td><td class="right">{{euros .Document.Total}}</td></tr>
  </table>

  {{if .Document.Notes}}<div class="notes">{{.Document.Notes}}</div>{{end}}

  <div class="terms">
    <div class="terms-title">IMPORTANTE:</div>
    <ul>
      {{range .Terms}}<li>{{.}}</li>{{end}}
    </ul>
  </div>

  <div class="watermark">
    <div class="big">PRESUPUESTO</div>
    <div class="small">{{.Watermark}}</div>
  </div>
</body>
</html>
`
