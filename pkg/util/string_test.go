package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatHashtags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{"plain tags", []string{"golang", "testing"}, "#golang #testing"},
		{"existing hashes stripped", []string{"#golang", "##testing"}, "#golang #testing"},
		{"punctuation removed", []string{"go lang!", "c++"}, "#golang #c"},
		{"case-insensitive dedupe", []string{"Go", "go", "GO"}, "#Go"},
		{"empties skipped", []string{"", "  ", "#"}, ""},
		{"unicode kept", []string{"日本語"}, "#日本語"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatHashtags(tt.tags))
		})
	}
}

func TestFormatMentions(t *testing.T) {
	assert.Equal(t, "@alice @bob", FormatMentions([]string{"alice", "@bob"}))
	assert.Equal(t, "", FormatMentions([]string{"", "  "}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "long…", Truncate("longer", 5))

	// Runes, not bytes.
	assert.Equal(t, "ééé", Truncate("ééé", 3))
	assert.Equal(t, "éé…", Truncate("ééééé", 3))

	assert.Equal(t, "whatever", Truncate("whatever", 0))
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseTags(`["a", "b"]`))
	assert.Equal(t, []string{"a", "b"}, ParseTags("a, b"))
	assert.Empty(t, ParseTags(""))
}

func TestTruncateLongContent(t *testing.T) {
	out := Truncate(strings.Repeat("a", 500), 280)
	assert.Equal(t, 280, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "…"))
}
