package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Field is one labelled line on a document.
type Field struct {
	Label string
	Value string
}

// Section groups fields under a heading.
type Section struct {
	Heading string
	Fields  []Field
}

// Document is a titled list of sections rendered top to bottom.
type Document struct {
	Title       string
	Subtitle    string
	Sections    []Section
	Footer      string
	GeneratedAt time.Time
}

// PDFExporter renders key/value documents such as service receipts.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates an A4 PDF for doc.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, doc.Title, "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, doc.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	const labelWidth = 55.0
	for _, section := range doc.Sections {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(235, 235, 235)
		pdf.CellFormat(0, 8, section.Heading, "", 1, "", true, 0, "")
		pdf.Ln(1)
		for _, field := range section.Fields {
			value := field.Value
			if value == "" {
				value = "-"
			}
			pdf.SetFont("Arial", "B", 9)
			pdf.CellFormat(labelWidth, 6, field.Label, "", 0, "", false, 0, "")
			pdf.SetFont("Courier", "", 9)
			pdf.MultiCell(0, 6, value, "", "", false)
		}
		pdf.Ln(4)
	}

	generated := doc.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	pdf.SetFont("Arial", "I", 8)
	footer := "Generated " + generated.UTC().Format(time.RFC3339)
	if doc.Footer != "" {
		footer = doc.Footer + " - " + footer
	}
	pdf.MultiCell(0, 5, footer, "", "", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
