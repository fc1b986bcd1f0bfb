package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

const (
	pdfFont      = "Arial"
	pdfFontSize  = 9.0
	pdfPageWidth = 190.0
)

// pdfRenderer walks a goldmark document and draws it with fpdf.
// It understands the node kinds Markdown emits: headings, paragraphs,
// emphasis, bullet lists and tables.
type pdfRenderer struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	source []byte
	bold   bool
	italic bool
}

func renderPDF(doc ast.Node, source []byte, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont(pdfFont, "", pdfFontSize)

	// Core fonts are cp1252; translate so band labels like "73–97" survive
	r := &pdfRenderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), source: source}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, err
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to draw PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(pdfFont, style, pdfFontSize)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			size := 10.0
			switch node.Level {
			case 1:
				size = 14
			case 2:
				size = 12
			}
			r.pdf.SetFont(pdfFont, "B", size)
		} else {
			r.pdf.Ln(7)
			r.updateFont()
		}
	case *ast.Paragraph, *ast.TextBlock:
		if !entering {
			r.pdf.Ln(5)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, r.tr(string(node.Segment.Value(r.source))))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.ListItem:
		if entering {
			r.pdf.SetX(15)
			r.pdf.Write(5, "- ")
		}
	case *ast.List:
		if !entering {
			r.pdf.Ln(2)
		}
	case *extast.Table:
		if entering {
			r.renderTable(r.tableRows(node))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) tableRows(table *extast.Table) [][]string {
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		var row []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			row = append(row, r.cellText(cell))
		}
		rows = append(rows, row)
	}
	return rows
}

func (r *pdfRenderer) cellText(cell ast.Node) string {
	var buf bytes.Buffer
	_ = ast.Walk(cell, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(r.source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func (r *pdfRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const fontSize = 8.0
	const lineHeight = 5.0
	widths := r.columnWidths(rows, fontSize)

	r.pdf.Ln(2)
	for i, row := range rows {
		style, fill := "", false
		if i == 0 {
			style, fill = "B", true
			r.pdf.SetFillColor(230, 230, 230)
		}
		r.pdf.SetFont(pdfFont, style, fontSize)

		for j := range widths {
			text := ""
			if j < len(row) {
				text = row[j]
			}
			r.pdf.CellFormat(widths[j], lineHeight+1, r.fit(r.tr(text), widths[j]-2), "1", 0, "L", fill, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.pdf.Ln(3)
	r.updateFont()
}

// columnWidths sizes columns to their widest cell, scaled to fit the page
func (r *pdfRenderer) columnWidths(rows [][]string, fontSize float64) []float64 {
	widths := make([]float64, len(rows[0]))
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(pdfFont, style, fontSize)
		for j, cell := range row {
			if j >= len(widths) {
				break
			}
			if w := r.pdf.GetStringWidth(cell) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for i := range widths {
		if widths[i] < 12 {
			widths[i] = 12
		}
		total += widths[i]
	}
	if total > pdfPageWidth {
		scale := pdfPageWidth / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

// fit truncates text that would overflow its cell
func (r *pdfRenderer) fit(text string, width float64) string {
	if r.pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && r.pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
