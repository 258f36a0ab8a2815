package common

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	nonMoneyRegex     = regexp.MustCompile(`[^0-9,.\-]`)
	nonDigitRegex     = regexp.MustCompile(`[^0-9]`)
	trailingCentsExpr = regexp.MustCompile(`,(\d{2})$`)
)

// ParseMoney parses free text such as "R$ 1.234,56" or "-123,45" using
// Brazilian separators. A bare integer stays an integer. It reports false when
// nothing numeric is left after cleaning.
func ParseMoney(text string) (decimal.Decimal, bool) {
	clean := nonMoneyRegex.ReplaceAllString(text, "")
	if clean == "" {
		return decimal.Zero, false
	}

	negative := false
	switch {
	case strings.HasPrefix(clean, "-"):
		negative, clean = true, clean[1:]
	case strings.HasSuffix(clean, "-"):
		// exports like "123,45-"
		negative, clean = true, clean[:len(clean)-1]
	}
	if strings.Contains(clean, "-") {
		return decimal.Zero, false
	}

	clean = stripThousandDots(clean)
	clean = trailingCentsExpr.ReplaceAllString(clean, ".$1")
	clean = strings.ReplaceAll(clean, ",", "")
	if strings.Trim(clean, ".") == "" {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, true
}

// stripThousandDots drops a dot only when it is followed by exactly three
// digits and then another separator.
func stripThousandDots(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '.' && i+4 < len(s) && isDigits(s[i+1:i+4]) && (s[i+4] == '.' || s[i+4] == ',') {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// ParseMaskedMoney parses the digit-only value of a masked currency field,
// where the last two digits are always cents ("123456" is 1234.56).
func ParseMaskedMoney(text string) (decimal.Decimal, bool) {
	digits := nonDigitRegex.ReplaceAllString(text, "")
	if digits == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, false
	}
	return amount.Shift(-2), true
}

// RoundAmount rounds to cents.
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
