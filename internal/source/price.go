package source

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParsePriceText extracts the first price found in scraped text such as
// "$1,299.99", "1.299,99 €", "EUR 45,5" or "Now only 19.00!".
func ParsePriceText(raw string) (float64, bool) {
	num := firstNumber(raw)
	if num == "" {
		return 0, false
	}
	normalized := normalizeSeparators(num)
	if normalized == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	f, _ := d.Round(4).Float64()
	return f, true
}

func firstNumber(raw string) string {
	var b strings.Builder
	started := false
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			started = true
			b.WriteRune(r)
		case started && (r == ',' || r == '.'):
			b.WriteRune(r)
		case started:
			return strings.TrimRight(b.String(), ",.")
		}
	}
	return strings.TrimRight(b.String(), ",.")
}

func normalizeSeparators(num string) string {
	lastComma := strings.LastIndex(num, ",")
	lastDot := strings.LastIndex(num, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			num = strings.ReplaceAll(num, ".", "")
			return strings.Replace(num, ",", ".", 1)
		}
		return strings.ReplaceAll(num, ",", "")
	case lastComma >= 0:
		if strings.Count(num, ",") == 1 && len(num)-lastComma-1 <= 2 {
			return strings.Replace(num, ",", ".", 1)
		}
		return strings.ReplaceAll(num, ",", "")
	case lastDot >= 0:
		if strings.Count(num, ".") > 1 {
			return strings.ReplaceAll(num, ".", "")
		}
		return num
	default:
		return num
	}
}
