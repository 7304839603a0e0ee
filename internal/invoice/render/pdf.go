// Package render produces printable invoice documents.
package render

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotoconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"

	invoicedomain "github.com/smallbiznis/tenancy/internal/invoice/domain"
)

type Renderer interface {
	RenderInvoice(invoice *invoicedomain.Invoice, orgName string) (io.Reader, error)
}

type pdfRenderer struct{}

func New() Renderer {
	return &pdfRenderer{}
}

func (r *pdfRenderer) RenderInvoice(invoice *invoicedomain.Invoice, orgName string) (io.Reader, error) {
	if invoice == nil {
		return nil, fmt.Errorf("render: invoice is required")
	}

	cfg := marotoconfig.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Invoice date: "+invoice.InvoiceDate.Format(time.DateOnly), props.Text{Top: 4}),
			text.New("Due date: "+formatOptionalDate(invoice.DueDate), props.Text{Top: 8}),
			text.New(fmt.Sprintf("Billing period: %s to %s",
				invoice.PeriodStart.Format(time.DateOnly),
				invoice.PeriodEnd.Format(time.DateOnly)), props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New(orgName, props.Text{Style: fontstyle.Bold}),
			text.New("Status: "+string(invoice.Status), props.Text{Top: 5}),
		),
	)

	m.AddRow(10,
		text.NewCol(5, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "Tax", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range invoice.Lines {
		m.AddRow(8,
			text.NewCol(5, line.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%.2f", line.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatMoney(line.Amount, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(1, formatMoney(line.TaxAmount, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatMoney(line.Total, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, formatMoney(invoice.Subtotal, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(2, formatMoney(invoice.TaxAmount, invoice.Currency), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, formatMoney(invoice.Total, invoice.Currency), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Balance due", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, formatMoney(invoice.Balance, invoice.Currency), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

// formatMoney renders minor units as a major-unit decimal string.
func formatMoney(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, currency, minor/100, minor%100)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
