package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol is the prefix for displayed prices (Indonesian rupiah).
const CurrencySymbol = "Rp"

// FormatPrice renders amount as rupiah with Indonesian digit grouping,
// e.g. 12000 -> "Rp12.000". The format does not follow the UI language.
func FormatPrice(amount int64) string {
	p := message.NewPrinter(language.Indonesian)
	if amount < 0 {
		return "-" + CurrencySymbol + p.Sprintf("%d", -amount)
	}
	return CurrencySymbol + p.Sprintf("%d", amount)
}
