package provider

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/postpilot-io/postpilot/internal/models"
)

// ValidateCommon applies the rules every platform shares: non-empty
// content, content within the character limit, media count within the media
// limit, and media types within the supported set. Platform packages call
// this first and append their own rules. Deterministic, no I/O.
func ValidateCommon(p Provider, post *models.Post) []string {
	var violations []string

	if strings.TrimSpace(post.Content) == "" {
		violations = append(violations, "content is required")
	}

	if limit := p.CharacterLimit(); limit > 0 {
		if n := utf8.RuneCountInString(post.Content); n > limit {
			violations = append(violations,
				fmt.Sprintf("content length %d exceeds %s limit of %d characters", n, p.Name(), limit))
		}
	}

	if limit := p.MediaLimit(); limit >= 0 && len(post.Media) > limit {
		violations = append(violations,
			fmt.Sprintf("media count %d exceeds %s limit of %d", len(post.Media), p.Name(), limit))
	}

	supported := p.SupportedMediaTypes()
	for _, media := range post.Media {
		if !mediaTypeSupported(supported, media.Type) {
			violations = append(violations,
				fmt.Sprintf("media type %q is not supported by %s", media.Type, p.Name()))
		}
	}

	return violations
}

// HasMediaOfType reports whether the post carries at least one attachment
// of the given type.
func HasMediaOfType(post *models.Post, t models.MediaType) bool {
	for _, media := range post.Media {
		if media.Type == t {
			return true
		}
	}
	return false
}

func mediaTypeSupported(supported []models.MediaType, t models.MediaType) bool {
	for _, s := range supported {
		if s == t {
			return true
		}
	}
	return false
}
