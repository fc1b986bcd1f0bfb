package eco

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Round2 rounds a monetary amount to pennies, half away from zero
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ClampPercentage bounds a percentage to [0,100]; nil means fully treated
func ClampPercentage(p *float64) decimal.Decimal {
	if p == nil {
		return hundred
	}
	pct := decimal.NewFromFloat(*p)
	if pct.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// SumRounded adds already-rounded amounts and rounds the total once more
func SumRounded(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round2(total)
}
