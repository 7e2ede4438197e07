package payments

import (
	"fmt"
	"strings"
)

// NormalizeMSISDN turns the phone formats customers type (0712..., +254 712...,
// 712...) into the 2547XXXXXXXX / 2541XXXXXXXX form the provider expects.
func NormalizeMSISDN(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
		}
	}
	d := b.String()

	switch {
	case len(d) == 10 && d[0] == '0':
		d = "254" + d[1:]
	case len(d) == 9:
		d = "254" + d
	}

	if len(d) != 12 || !strings.HasPrefix(d, "254") || (d[3] != '7' && d[3] != '1') {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	return d, nil
}
