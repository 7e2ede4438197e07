package money

import (
	"strconv"
	"strings"
)

// Format renders minor units as "KES 1,500.00". Integer math only, so large
// totals never pick up float rounding.
func Format(cents int64, currency string) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	major := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	if currency != "" {
		b.WriteString(currency)
		b.WriteByte(' ')
	}
	if neg {
		b.WriteByte('-')
	}
	for i, r := range major {
		if i > 0 && (len(major)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	minor := cents % 100
	if minor < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(minor, 10))
	return b.String()
}
