package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var tagCleaner = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// FormatHashtags renders tags as a space-separated "#tag" suffix. Tags are
// stripped of characters the platforms reject and deduplicated in order.
func FormatHashtags(tags []string) string {
	seen := make(map[string]bool, len(tags))
	var parts []string

	for _, tag := range tags {
		tag = tagCleaner.ReplaceAllString(strings.TrimPrefix(strings.TrimSpace(tag), "#"), "")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, "#"+tag)
	}

	return strings.Join(parts, " ")
}

// FormatMentions renders handles as a space-separated "@handle" prefix list.
func FormatMentions(handles []string) string {
	var parts []string
	for _, handle := range handles {
		handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
		if handle == "" {
			continue
		}
		parts = append(parts, "@"+handle)
	}
	return strings.Join(parts, " ")
}

// Truncate shortens s to at most limit runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}

// ParseTags parses tag strings into arrays
func ParseTags(tagStr string) []string {
	if tagStr == "" {
		return []string{}
	}

	// Remove brackets if present
	tagStr = strings.Trim(tagStr, "[]")

	// Split by comma and clean up
	tags := strings.Split(tagStr, ",")
	var cleanTags []string

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		tag = strings.Trim(tag, "\"'") // Remove quotes
		if tag != "" {
			cleanTags = append(cleanTags, tag)
		}
	}

	return cleanTags
}
