package analytics

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatCurrency renders a whole-unit amount with dot thousands separators,
// e.g. "Rp 1.250.000".
func FormatCurrency(amount decimal.Decimal, symbol string) string {
	f, _ := amount.Round(0).Float64()
	formatted := humanize.FormatFloat("#.###,", f)
	if symbol == "" {
		return formatted
	}
	return symbol + " " + formatted
}
