package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Section is one headed block of a study sheet. Paragraphs render as flowing
// text and Items as a bulleted list.
type Section struct {
	Heading    string
	Paragraphs []string
	Items      []string
}

// Sheet is a printable study document.
type Sheet struct {
	Title    string
	Subtitle string
	Sections []Section
}

// PDFExporter renders study sheets with gofpdf core fonts.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out sheet on A4 pages.
func (e *PDFExporter) Render(sheet Sheet) ([]byte, error) {
	if sheet.Title == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 8, tr(sheet.Title), "", "C", false)
	if sheet.Subtitle != "" {
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, tr(sheet.Subtitle), "", "C", false)
	}
	pdf.Ln(4)

	for _, section := range sheet.Sections {
		if section.Heading != "" {
			pdf.SetFont("Arial", "B", 12)
			pdf.MultiCell(0, 7, tr(section.Heading), "B", "L", false)
			pdf.Ln(2)
		}
		pdf.SetFont("Arial", "", 10)
		for _, p := range section.Paragraphs {
			pdf.MultiCell(0, 5, tr(p), "", "L", false)
			pdf.Ln(1)
		}
		for _, item := range section.Items {
			pdf.MultiCell(0, 5, tr("- "+item), "", "L", false)
		}
		pdf.Ln(4)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
