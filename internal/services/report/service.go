// Package report renders recorded calculations as markdown, HTML or PDF.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Format is a report output format
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat maps a query value to a Format. Empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", s)
	}
}

// ContentType returns the HTTP content type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Extension returns the file extension for downloads
func (f Format) Extension() string {
	return "." + string(f)
}

// Service renders calculation reports
type Service struct {
	md     goldmark.Markdown
	logger arbor.ILogger
}

// NewService creates a report service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
		logger: logger,
	}
}

// Render produces the report for record in the requested format
func (s *Service) Render(record *models.CalculationRecord, format Format) ([]byte, error) {
	markdown := Markdown(record)

	var (
		out []byte
		err error
	)
	switch format {
	case FormatMarkdown:
		out = []byte(markdown)
	case FormatHTML:
		out, err = s.renderHTML(markdown, record.ID)
	case FormatPDF:
		source := []byte(markdown)
		doc := s.md.Parser().Parse(text.NewReader(source))
		out, err = renderPDF(doc, source, "Calculation "+record.ID)
	default:
		err = fmt.Errorf("unsupported report format: %s", format)
	}

	if err != nil {
		s.logger.Error().Err(err).Str("calculation_id", record.ID).Str("format", string(format)).Msg("Failed to render report")
		return nil, err
	}

	s.logger.Debug().
		Str("calculation_id", record.ID).
		Str("format", string(format)).
		Int("bytes", len(out)).
		Msg("Report rendered")
	return out, nil
}

func (s *Service) renderHTML(markdown, title string) ([]byte, error) {
	var body bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Calculation %s</title>\n", title)
	page.WriteString("<style>body{font-family:sans-serif;max-width:960px;margin:2em auto}" +
		"table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
