package tiktok

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
)

func newProvider() *Provider {
	exec := provider.NewExecutor(provider.ModeStub, zap.NewNop())
	return New(zap.NewNop(), exec, provider.Credentials{ClientID: "id"})
}

func TestValidateRequiresVideo(t *testing.T) {
	p := newProvider()

	assert.Contains(t, p.Validate(&models.Post{Content: "caption"}), "requires video content")

	withVideo := &models.Post{
		Content: "caption",
		Media:   models.MediaAttachments{{Type: models.MediaTypeVideo, URL: "https://cdn.example.com/v.mp4"}},
	}
	assert.Empty(t, p.Validate(withVideo))
}

func TestStubPublish(t *testing.T) {
	p := newProvider()

	post := &models.Post{
		ID:      "post-1",
		Content: "caption",
		Media:   models.MediaAttachments{{Type: models.MediaTypeVideo, URL: "https://cdn.example.com/v.mp4"}},
	}

	res, err := p.Publish(context.Background(), post, &models.Channel{Platform: "tiktok"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.RemoteID)
	assert.Contains(t, res.URL, "tiktok.com")
}
