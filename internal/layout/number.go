package layout

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencySymbol is drawn in front of every price
const CurrencySymbol = "R$"

var printer = message.NewPrinter(language.BrazilianPortuguese)

// FormatNumber renders v with pt-BR thousands grouping and exactly decimals
// fraction digits. NaN and infinities render as zero.
func FormatNumber(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	if decimals <= 0 {
		return printer.Sprint(number.Decimal(math.Round(v), number.Scale(0)))
	}
	return printer.Sprint(number.Decimal(v, number.Scale(decimals)))
}

// FormatPrice renders whole values without decimals and anything else with
// two decimal places.
func FormatPrice(v float64) string {
	if v == math.Trunc(v) {
		return FormatNumber(v, 0)
	}
	return FormatNumber(v, 2)
}
