package provider

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
)

// fakeProvider carries just enough capability surface to drive the shared
// validation and stub helpers.
type fakeProvider struct {
	name       string
	charLimit  int
	mediaLimit int
	mediaTypes []models.MediaType
}

func (f *fakeProvider) Name() string                          { return f.name }
func (f *fakeProvider) CharacterLimit() int                   { return f.charLimit }
func (f *fakeProvider) MediaLimit() int                       { return f.mediaLimit }
func (f *fakeProvider) SupportedMediaTypes() []models.MediaType { return f.mediaTypes }
func (f *fakeProvider) DefaultScopes() []string               { return nil }

func (f *fakeProvider) Validate(post *models.Post) []string {
	return ValidateCommon(f, post)
}

func (f *fakeProvider) Authenticate(context.Context, Credentials) (*oauth2.Token, error) {
	return nil, ErrAuthorizationRequired
}
func (f *fakeProvider) ExchangeCode(context.Context, string) (*oauth2.Token, error) {
	return nil, ErrAuthorizationRequired
}
func (f *fakeProvider) AuthCodeURL(string) string { return "" }

func (f *fakeProvider) Publish(context.Context, *models.Post, *models.Channel) (*Result, error) {
	return nil, nil
}
func (f *fakeProvider) FetchAnalytics(context.Context, string, *models.Channel) (models.MetricMap, error) {
	return nil, nil
}
func (f *fakeProvider) VerifyMethods() []VerifyMethod { return []VerifyMethod{VerifyDirectGet} }
func (f *fakeProvider) VerifyRemoteStatus(context.Context, *models.PlatformPublication, *models.Channel, VerifyMethod) (Existence, error) {
	return Exists, nil
}

func newFake() *fakeProvider {
	return &fakeProvider{
		name:       "fake",
		charLimit:  20,
		mediaLimit: 2,
		mediaTypes: []models.MediaType{models.MediaTypeImage},
	}
}

func TestValidateCommon(t *testing.T) {
	tests := []struct {
		name string
		post models.Post
		want []string
	}{
		{
			name: "valid post",
			post: models.Post{Content: "hello"},
			want: nil,
		},
		{
			name: "empty content",
			post: models.Post{Content: "   "},
			want: []string{"content is required"},
		},
		{
			name: "content over the limit",
			post: models.Post{Content: strings.Repeat("a", 21)},
			want: []string{"content length 21 exceeds fake limit of 20 characters"},
		},
		{
			name: "too many attachments",
			post: models.Post{
				Content: "ok",
				Media: models.MediaAttachments{
					{Type: models.MediaTypeImage},
					{Type: models.MediaTypeImage},
					{Type: models.MediaTypeImage},
				},
			},
			want: []string{"media count 3 exceeds fake limit of 2"},
		},
		{
			name: "unsupported media type",
			post: models.Post{
				Content: "ok",
				Media:   models.MediaAttachments{{Type: models.MediaTypeVideo}},
			},
			want: []string{`media type "video" is not supported by fake`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateCommon(newFake(), &tt.post))
		})
	}
}

func TestValidateCommonCountsRunes(t *testing.T) {
	// 20 multi-byte runes are within a 20-character limit.
	post := models.Post{Content: strings.Repeat("ü", 20)}
	assert.Empty(t, ValidateCommon(newFake(), &post))
}

func TestRetryableStatus(t *testing.T) {
	retryable := []int{408, 429, 500, 502, 503, 599}
	for _, code := range retryable {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}

	terminal := []int{200, 301, 400, 401, 403, 404, 410, 422}
	for _, code := range terminal {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}

func TestResultFromError(t *testing.T) {
	res := ResultFromError(&StatusError{Platform: "fake", StatusCode: 503, Body: "down"})
	assert.False(t, res.Success)
	assert.True(t, res.Retryable)

	res = ResultFromError(&StatusError{Platform: "fake", StatusCode: 403, Body: "forbidden"})
	assert.False(t, res.Retryable)
}

func TestSimulatePublishDeterministic(t *testing.T) {
	exec := NewExecutor(ModeStub, zap.NewNop())
	post := &models.Post{ID: "post-1", Content: "hello"}

	first, err := exec.SimulatePublish(newFake(), post)
	require.NoError(t, err)
	require.True(t, first.Success)
	assert.NotEmpty(t, first.RemoteID)
	assert.NotEmpty(t, first.URL)

	second, err := exec.SimulatePublish(newFake(), post)
	require.NoError(t, err)
	assert.Equal(t, first.RemoteID, second.RemoteID, "same input must yield the same remote id")
}

func TestSimulatePublishInvalidPostFails(t *testing.T) {
	exec := NewExecutor(ModeStub, zap.NewNop())
	post := &models.Post{ID: "post-2", Content: ""}

	res, err := exec.SimulatePublish(newFake(), post)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Retryable)
	assert.Contains(t, res.ErrorMsg, "content is required")
}

func TestSimulateMetrics(t *testing.T) {
	exec := NewExecutor(ModeStub, zap.NewNop())

	m := exec.SimulateMetrics("remote-1")
	assert.Equal(t, m, exec.SimulateMetrics("remote-1"), "metrics must be stable per remote id")

	impressions := m[MetricImpressions]
	assert.GreaterOrEqual(t, impressions, 500.0)
	assert.Less(t, impressions, 50000.0)
	assert.LessOrEqual(t, m[MetricReach], impressions)
	assert.GreaterOrEqual(t, m[MetricEngagementRate], 0.0)
}

func TestStubRemoteURL(t *testing.T) {
	assert.Equal(t,
		"https://twitter.com/i/web/status/abc",
		StubRemoteURL("twitter", "abc"))
	assert.Equal(t,
		"https://www.youtube.com/watch?v=abc",
		StubRemoteURL("youtube", "abc"))
	assert.Equal(t,
		"https://example.com/unknown/abc",
		StubRemoteURL("unknown", "abc"))
}
