package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{0, "KES", "KES 0.00"},
		{5, "KES", "KES 0.05"},
		{150000, "KES", "KES 1,500.00"},
		{123456789, "KES", "KES 1,234,567.89"},
		{-2550, "KES", "KES -25.50"},
		{99900, "", "999.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.cents, tt.currency))
	}
}
