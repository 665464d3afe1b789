package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/postpilot-io/postpilot/internal/models"
)

func TestPostFromRequest(t *testing.T) {
	post := postFromRequest(&createPostRequest{
		Content:         "hello",
		Hashtags:        []string{"golang"},
		Tags:            `"release", "v2"`,
		TargetPlatforms: []string{"twitter"},
	})

	assert.NotEmpty(t, post.ID)
	assert.Equal(t, models.PostStatusDraft, post.Status)
	assert.Equal(t, models.StringArray{"golang", "release", "v2"}, post.Hashtags)
	assert.Equal(t, models.StringArray{"twitter"}, post.TargetPlatforms)
}

func TestPostFromRequestScheduled(t *testing.T) {
	when := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	post := postFromRequest(&createPostRequest{
		Content:      "later",
		ScheduledFor: &when,
	})

	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.Equal(t, &when, post.ScheduledFor)
}
