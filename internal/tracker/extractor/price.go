package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var priceRegex = regexp.MustCompile(`\$?(\d+\.?\d*)`)

// ParsePrice extracts the first price from text such as "$1,299.99" or "1,299."
// and rounds it to cents.
func ParsePrice(text string) (float64, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))

	match := priceRegex.FindStringSubmatch(cleaned)
	if match == nil {
		return 0, fmt.Errorf("no price in %q", text)
	}

	amount, err := decimal.NewFromString(strings.TrimSuffix(match[1], "."))
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", match[1], err)
	}
	return amount.Round(2).InexactFloat64(), nil
}
