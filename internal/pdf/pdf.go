// Package pdf renders quotations as printable documents.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/sunforge/solar-epc/internal/models"
)

// Generator renders one version of a quotation.
type Generator interface {
	Quotation(company *models.CompanySettings, q *models.Quotation, v *models.QuotationVersion) ([]byte, error)
}

// QuotationPDF renders with gofpdf core fonts; text is translated to cp1252.
type QuotationPDF struct {
	now func() time.Time
}

func New() *QuotationPDF { return &QuotationPDF{now: time.Now} }

func (g *QuotationPDF) Quotation(company *models.CompanySettings, q *models.Quotation, v *models.QuotationVersion) ([]byte, error) {
	if q == nil || v == nil {
		return nil, fmt.Errorf("quotation and version are required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(fmt.Sprintf("Quotation %d v%d", q.ID, v.VersionNumber)), false)
	pdf.SetCreator("solar-epc", false)
	pdf.AddPage()

	if company != nil {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Cell(0, 7, tr(company.Name))
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 9)
		for _, line := range nonEmpty(company.Address, joinNonEmpty(", ", company.City, company.State, company.Pincode), prefixed("GSTIN: ", company.GSTIN), joinNonEmpty("  ", company.Phone, company.Email)) {
			pdf.Cell(0, 4.5, tr(line))
			pdf.Ln(4.5)
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 9, tr("Quotation"))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, tr(fmt.Sprintf("No. Q-%05d / v%d    Date: %s    Status: %s", q.ID, v.VersionNumber, v.CreatedAt.Format("02 Jan 2006"), q.Status)))
	pdf.Ln(5)
	pdf.Cell(0, 5, tr(q.Title))
	pdf.Ln(5)
	if v.ValidUntil != nil {
		pdf.Cell(0, 5, tr("Valid until: "+v.ValidUntil.Format("02 Jan 2006")))
		pdf.Ln(5)
	}
	if q.Client != nil {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 5, tr("To: "+q.Client.DisplayName()))
		pdf.Ln(5)
		pdf.SetFont("Helvetica", "", 9)
		for _, line := range nonEmpty(q.Client.FullAddress(), prefixed("GSTIN: ", q.Client.GSTIN)) {
			pdf.Cell(0, 4.5, tr(line))
			pdf.Ln(4.5)
		}
	}

	pdf.Ln(4)
	widths := []float64{10, 80, 18, 16, 26, 14, 26}
	headers := []string{"#", "Description", "Qty", "Unit", "Rate", "GST", "Amount"}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, align(i), true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for i, it := range v.Items {
		cells := []string{
			fmt.Sprintf("%d", i+1),
			truncate(it.Description, 48),
			formatQty(it.Quantity),
			it.Unit,
			Money(it.UnitPrice),
			fmt.Sprintf("%g%%", it.TaxRate*100),
			Money(it.Amount()),
		}
		for j, c := range cells {
			pdf.CellFormat(widths[j], 6, tr(c), "1", 0, align(j), false, 0, "")
		}
		pdf.Ln(-1)
	}

	t := v.Totals()
	pdf.Ln(2)
	rows := [][2]string{{"Subtotal", Money(t.Subtotal)}}
	if t.Discount > 0 {
		rows = append(rows, [2]string{fmt.Sprintf("Discount (%g%%)", v.DiscountPct*100), "-" + Money(t.Discount)})
	}
	rows = append(rows, [2]string{"GST", Money(t.Tax)}, [2]string{"Total", Money(t.Total)})
	for i, r := range rows {
		style := ""
		if i == len(rows)-1 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(150, 6, r[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, tr("Rs. "+r[1]), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}

	if v.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 4.5, tr(v.Notes), "", "L", false)
	}
	if company != nil && company.Terms != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.Cell(0, 5, "Terms & conditions")
		pdf.Ln(5)
		pdf.SetFont("Helvetica", "", 8)
		pdf.MultiCell(0, 4, tr(company.Terms), "", "L", false)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.Cell(0, 4, "Generated "+g.now().Format(time.RFC3339))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quotation pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Money formats an amount with Indian digit grouping: 12,34,567.50.
func Money(f float64) string {
	neg := f < 0
	if neg {
		f = -f
	}
	s := fmt.Sprintf("%.2f", f)
	intPart, frac, _ := strings.Cut(s, ".")
	var groups []string
	if len(intPart) > 3 {
		head, last3 := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		intPart = strings.Join(append(groups, last3), ",")
	}
	out := intPart + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func formatQty(q float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", q), "0"), ".")
}

func align(col int) string {
	if col == 1 || col == 3 {
		return "L"
	}
	return "R"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func prefixed(prefix, v string) string {
	if v == "" {
		return ""
	}
	return prefix + v
}

func joinNonEmpty(sep string, parts ...string) string {
	return strings.Join(nonEmpty(parts...), sep)
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
