package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"Write a poem about the ocean", "Write a poem about the ocean and the moon", 13},
		{"Write a poem about the ocean", "List five programming languages", 26},
		{"café", "cafe", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
			assert.Equal(t, tt.want, Distance(tt.b, tt.a), "distance must be symmetric")
		})
	}
}

func TestRatio_Identity(t *testing.T) {
	for _, s := range []string{"", "a", "hello world", "Write a poem about the ocean", "日本語のテキスト"} {
		assert.Equal(t, 1.0, Ratio(s, s), "Ratio(%q, %q)", s, s)
	}
}

func TestRatio_EmptyEdges(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 0.0, Ratio("", "abc"))
	assert.Equal(t, 0.0, Ratio("abc", ""))
}

func TestRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Write a poem about the ocean", "Write a poem about the ocean and the moon"},
		{"kitten", "sitting"},
		{"a", "completely different"},
		{"short", "shorter"},
	}
	for _, p := range pairs {
		assert.Equal(t, Ratio(p[0], p[1]), Ratio(p[1], p[0]), "Ratio(%q, %q)", p[0], p[1])
	}
}

func TestRatio_Values(t *testing.T) {
	// 13 insertions over 41 runes.
	assert.InDelta(t, 28.0/41.0, Ratio("Write a poem about the ocean", "Write a poem about the ocean and the moon"), 1e-9)
	// 26 edits over 31 runes.
	assert.InDelta(t, 5.0/31.0, Ratio("Write a poem about the ocean", "List five programming languages"), 1e-9)
	assert.InDelta(t, 4.0/7.0, Ratio("kitten", "sitting"), 1e-9)
}

func TestRatio_Bounds(t *testing.T) {
	pairs := [][2]string{{"abc", "xyz"}, {"a", "aaaaaaaa"}, {"hello", "help"}}
	for _, p := range pairs {
		r := Ratio(p[0], p[1])
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)
	}
	assert.Equal(t, 0.0, Ratio("abc", "xyz"))
}

func TestRatio_InvalidUTF8(t *testing.T) {
	assert.Equal(t, 0.0, Ratio("\xff", "\xfe"))
	assert.InDelta(t, 2.0/3.0, Ratio("a\xffb", "a\xfeb"), 1e-9)
	assert.Equal(t, 1, Distance("\xff", "�"), "an invalid byte is not the replacement rune")
	assert.Equal(t, 1.0, Ratio("a\xffb", "a\xffb"))
	assert.Equal(t, 3, Distance("", "\xff\xfe\xfd"))
}
