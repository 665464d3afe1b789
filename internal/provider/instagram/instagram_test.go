package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
)

func newProvider() *Provider {
	exec := provider.NewExecutor(provider.ModeStub, zap.NewNop())
	return New(zap.NewNop(), exec, provider.Credentials{ClientID: "id"})
}

func TestValidateRequiresMedia(t *testing.T) {
	p := newProvider()

	violations := p.Validate(&models.Post{Content: "caption only"})
	assert.Contains(t, violations, "instagram requires at least one image or video")

	withImage := &models.Post{
		Content: "caption",
		Media:   models.MediaAttachments{{Type: models.MediaTypeImage, URL: "https://cdn.example.com/a.jpg"}},
	}
	assert.Empty(t, p.Validate(withImage))
}

func TestValidateRejectsGIF(t *testing.T) {
	p := newProvider()

	violations := p.Validate(&models.Post{
		Content: "caption",
		Media:   models.MediaAttachments{{Type: models.MediaTypeGIF}},
	})
	assert.Contains(t, violations, `media type "gif" is not supported by instagram`)
}
