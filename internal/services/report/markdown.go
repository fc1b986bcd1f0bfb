package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/ecocalc/internal/models"
)

// Markdown renders a recorded calculation as a markdown document:
// a heading, a summary list and, for partial calculations, the measure table.
func Markdown(record *models.CalculationRecord) string {
	var b strings.Builder
	s := record.Summary

	fmt.Fprintf(&b, "# %s calculation %s\n\n", s.Scheme, record.ID)
	fmt.Fprintf(&b, "- **Lead:** %s\n", record.LeadID)
	fmt.Fprintf(&b, "- **Recorded:** %s\n", record.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- **Type:** %s\n", s.CalculationType)
	fmt.Fprintf(&b, "- **Floor area band:** %s\n", s.FloorAreaBand)
	fmt.Fprintf(&b, "- **Starting band:** %s\n", s.StartingBand)
	if s.FinishingBand != "" {
		fmt.Fprintf(&b, "- **Finishing band:** %s\n", s.FinishingBand)
	}
	if s.PreMainHeatSource != "" {
		fmt.Fprintf(&b, "- **Pre main heat source:** %s\n", s.PreMainHeatSource)
	}
	fmt.Fprintf(&b, "- **Rate used:** %s\n", s.RateUsed.StringFixed(2))
	if s.InnovationMultiplier != nil {
		fmt.Fprintf(&b, "- **Innovation multiplier:** %s\n", s.InnovationMultiplier.String())
	}
	b.WriteString("\n")

	if s.CalculationType == models.CalculationFull {
		b.WriteString("## Full project\n\n")
		fmt.Fprintf(&b, "| Cost savings | ECO value | Matrix row |\n")
		fmt.Fprintf(&b, "|---:|---:|---|\n")
		fmt.Fprintf(&b, "| %s | %s | %s |\n", money(s.CostSavings), money(s.ECOValue), s.MatchedRow)
		return b.String()
	}

	b.WriteString("## Measures\n\n")
	b.WriteString("| Measure | Category | % treated | ABS | PPS points | ECO value | Note |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---|\n")
	for _, m := range record.Measures {
		name := m.MeasureType
		if m.MeasureVariant != "" {
			name += " (" + m.MeasureVariant + ")"
		}
		note := ""
		switch {
		case !m.Matched():
			note = m.Error
		case m.IsInnovation:
			note = "innovation"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			escapeCell(name),
			escapeCell(m.MeasureCategory),
			m.PercentageTreated.String(),
			m.ABSValue.StringFixed(2),
			m.PPSPoints.StringFixed(2),
			m.ECOValue.StringFixed(2),
			escapeCell(note),
		)
	}

	b.WriteString("\n## Totals\n\n")
	fmt.Fprintf(&b, "- **Total ABS:** %s\n", money(s.TotalABS))
	fmt.Fprintf(&b, "- **Total ECO value:** %s\n", money(s.TotalECOValue))

	return b.String()
}

func money(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
