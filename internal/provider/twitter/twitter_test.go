package twitter

import (
	"strings"
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

func TestValidate(t *testing.T) {
	p := newProvider()

	assert.Empty(t, p.Validate(&models.Post{Content: "hello"}))

	violations := p.Validate(&models.Post{Content: strings.Repeat("a", 281)})
	assert.Len(t, violations, 1)
	assert.Contains(t, violations[0], "280")
}

func TestComposeText(t *testing.T) {
	post := &models.Post{
		Content:  "big news",
		Link:     "https://example.com/post",
		Hashtags: models.StringArray{"golang", "release"},
		Mentions: models.StringArray{"alice"},
	}

	got := composeText(post, 280)
	assert.Equal(t, "@alice big news\nhttps://example.com/post\n#golang #release", got)
}

func TestComposeTextTruncated(t *testing.T) {
	post := &models.Post{Content: strings.Repeat("a", 400)}

	got := composeText(post, 280)
	assert.Equal(t, 280, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
