package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMSISDN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0712345678", want: "254712345678"},
		{in: "0112345678", want: "254112345678"},
		{in: "+254 712 345 678", want: "254712345678"},
		{in: "254712345678", want: "254712345678"},
		{in: "712-345-678", want: "254712345678"},
		{in: "(0712) 345678", want: "254712345678"},
		{in: "0812345678", wantErr: true},
		{in: "2557123456789", wantErr: true},
		{in: "07123", wantErr: true},
		{in: "07l2345678", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeMSISDN(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPhone, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWholeUnits(t *testing.T) {
	n, err := WholeUnits(150000)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)

	n, err = WholeUnits(150001)
	require.NoError(t, err)
	assert.Equal(t, int64(1501), n, "fractions round up")

	_, err = WholeUnits(0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
