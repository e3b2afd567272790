package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"accounting/internal/core"
)

// Register describes one bill register document.
type Register struct {
	StartDate   string
	EndDate     string
	Status      string
	Bills       []core.Bill
	GeneratedAt time.Time
}

func (r Register) Total() decimal.Decimal {
	total := decimal.Zero
	for _, b := range r.Bills {
		total = total.Add(b.Amount)
	}
	return total
}

func (r Register) period() string {
	switch {
	case r.StartDate != "" && r.EndDate != "":
		return r.StartDate + " to " + r.EndDate
	case r.StartDate != "":
		return "from " + r.StartDate
	case r.EndDate != "":
		return "until " + r.EndDate
	}
	return "all dates"
}

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Date", 24},
	{"Vendor", 52},
	{"Bill #", 28},
	{"Status", 24},
	{"Due", 24},
	{"Amount", 28},
}

// BillsPDF renders the register as an A4 document with per-status totals.
func BillsPDF(r Register) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Bill Register", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Bill Register")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, "Period: "+r.period())
	pdf.Ln(6)
	if r.Status != "" {
		pdf.Cell(0, 7, "Status: "+r.Status)
		pdf.Ln(6)
	}
	pdf.Cell(0, 7, "Generated: "+r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 7, c.title, "B", 0, "L", false, 0, "")
	}
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "", 10)
	byStatus := map[string]decimal.Decimal{}
	var statuses []string
	for _, b := range r.Bills {
		cells := []string{b.BillDate, truncate(b.Vendor, 30), truncate(b.BillNumber, 16), b.Status, b.DueDate, b.Amount.StringFixed(2)}
		for i, c := range pdfColumns {
			align := "L"
			if i == len(pdfColumns)-1 {
				align = "R"
			}
			pdf.CellFormat(c.width, 6, cells[i], "", 0, align, false, 0, "")
		}
		pdf.Ln(6)
		if _, ok := byStatus[b.Status]; !ok {
			statuses = append(statuses, b.Status)
		}
		byStatus[b.Status] = byStatus[b.Status].Add(b.Amount)
	}
	if len(r.Bills) == 0 {
		pdf.Cell(0, 6, "No bills in this period.")
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Total: %s (%d bills)", r.Total().StringFixed(2), len(r.Bills)))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	for _, s := range statuses {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %s", s, byStatus[s].StringFixed(2)))
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render bills pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}
