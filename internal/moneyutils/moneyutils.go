// Package moneyutils normalizes locale-specific amount strings into
// decimals. Bank exports disagree about almost everything: decimal commas,
// thousands dots, apostrophes, embedded currency codes, and typographic
// minus signs all show up in the wild.
package moneyutils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// currencyNoise lists substrings stripped before parsing. Codes first so
// "CHF" disappears before the lone symbols are handled.
var currencyNoise = []string{"CHF", "EUR", "USD", "GBP", "$", "€", "£"}

// Parse converts a raw amount string into a decimal using the configured
// decimal separator ("," or "."; "." when empty). The other separator is
// treated as thousands grouping and removed, as are apostrophes, spaces
// and currency noise. U+2212 minus is normalized to ASCII.
func Parse(raw, decimalSeparator string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	s = strings.ReplaceAll(s, "−", "-") // typographic minus
	s = strings.ReplaceAll(s, " ", "")  // non-breaking space
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "'", "")
	for _, noise := range currencyNoise {
		s = strings.ReplaceAll(s, noise, "")
	}

	switch decimalSeparator {
	case ",":
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d, nil
}
