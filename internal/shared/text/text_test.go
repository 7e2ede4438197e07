package text

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "ok", 5, "ok"},
		{"exact", "hello", 5, "hello"},
		{"ascii", "hello world", 5, "hello"},
		{"multi-byte kept whole", "Malipo yamekataliwa – jaribu tena", 20, "Malipo yamekataliwa "},
		{"cut lands after a multi-byte rune", "ñandú🙂x", 6, "ñandú🙂"},
		{"no limit", "anything", 0, "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncate_NeverSplitsRunes(t *testing.T) {
	s := "ééééé" // 10 bytes
	for n := 1; n <= 5; n++ {
		got := Truncate(s, n)
		assert.True(t, utf8.ValidString(got))
		assert.Equal(t, n, utf8.RuneCountInString(got))
	}
}
