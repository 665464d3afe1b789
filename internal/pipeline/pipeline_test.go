package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/internal/tokenstore"
)

type fakeStore struct {
	posts    map[string]*models.Post
	channels map[string]*models.Channel
	pubs     map[string]*models.PlatformPublication
	jobs     []models.PublishJob
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:    make(map[string]*models.Post),
		channels: make(map[string]*models.Channel),
		pubs:     make(map[string]*models.PlatformPublication),
	}
}

func (f *fakeStore) LoadPost(_ context.Context, id string) (*models.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return nil, errors.New("post not found")
	}
	return post, nil
}

func (f *fakeStore) SavePost(_ context.Context, post *models.Post) error {
	f.posts[post.ID] = post
	return nil
}

func (f *fakeStore) LoadChannel(_ context.Context, id string) (*models.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, errors.New("channel not found")
	}
	return ch, nil
}

func (f *fakeStore) SaveChannel(_ context.Context, ch *models.Channel) error {
	f.channels[ch.ID] = ch
	return nil
}

func (f *fakeStore) FindChannelByPlatform(_ context.Context, platform string) (*models.Channel, error) {
	for _, ch := range f.channels {
		if ch.Platform == platform {
			return ch, nil
		}
	}
	return nil, errors.New("no channel for platform")
}

func (f *fakeStore) AppendPublication(_ context.Context, pub *models.PlatformPublication) error {
	if pub.CreatedAt.IsZero() {
		pub.CreatedAt = time.Now().UTC()
	}
	f.pubs[pub.ID] = pub
	return nil
}

func (f *fakeStore) UpdatePublication(_ context.Context, pub *models.PlatformPublication) error {
	f.pubs[pub.ID] = pub
	return nil
}

func (f *fakeStore) RecordJob(_ context.Context, job *models.PublishJob) error {
	f.jobs = append(f.jobs, *job)
	return nil
}

func (f *fakeStore) ListJobs(_ context.Context, postID string) ([]models.PublishJob, error) {
	var out []models.PublishJob
	for _, job := range f.jobs {
		if job.PostID == postID {
			out = append(out, job)
		}
	}
	return out, nil
}

type fakeTasks struct {
	scheduled int
	fail      bool
}

func (f *fakeTasks) ScheduleAnalyticsCollection(context.Context, string, string, string, string) error {
	if f.fail {
		return errors.New("queue unavailable")
	}
	f.scheduled++
	return nil
}

type fakeNotifier struct {
	calls     int
	successes int
}

func (f *fakeNotifier) NotifyPublishOutcome(_ context.Context, _ *models.Post, _ string, success bool, _ string) {
	f.calls++
	if success {
		f.successes++
	}
}

// scriptedProvider is a provider whose validation and publish outcome are
// set by the test.
type scriptedProvider struct {
	name       string
	violations []string
	result     *provider.Result
	publishErr error
	published  int
}

func (s *scriptedProvider) Name() string                            { return s.name }
func (s *scriptedProvider) CharacterLimit() int                     { return 1000 }
func (s *scriptedProvider) MediaLimit() int                         { return 4 }
func (s *scriptedProvider) SupportedMediaTypes() []models.MediaType { return nil }
func (s *scriptedProvider) DefaultScopes() []string                 { return nil }

func (s *scriptedProvider) Validate(*models.Post) []string { return s.violations }

func (s *scriptedProvider) Authenticate(context.Context, provider.Credentials) (*oauth2.Token, error) {
	return nil, provider.ErrAuthorizationRequired
}
func (s *scriptedProvider) ExchangeCode(context.Context, string) (*oauth2.Token, error) {
	return nil, provider.ErrAuthorizationRequired
}
func (s *scriptedProvider) AuthCodeURL(string) string { return "" }

func (s *scriptedProvider) Publish(context.Context, *models.Post, *models.Channel) (*provider.Result, error) {
	s.published++
	if s.publishErr != nil {
		return nil, s.publishErr
	}
	return s.result, nil
}

func (s *scriptedProvider) FetchAnalytics(context.Context, string, *models.Channel) (models.MetricMap, error) {
	return nil, nil
}
func (s *scriptedProvider) VerifyMethods() []provider.VerifyMethod {
	return []provider.VerifyMethod{provider.VerifyDirectGet}
}
func (s *scriptedProvider) VerifyRemoteStatus(context.Context, *models.PlatformPublication, *models.Channel, provider.VerifyMethod) (provider.Existence, error) {
	return provider.Exists, nil
}

type fakeResolver struct {
	providers map[string]provider.Provider
}

func (f *fakeResolver) Resolve(platform string) (provider.Provider, error) {
	p, ok := f.providers[platform]
	if !ok {
		return nil, errors.New("unsupported platform")
	}
	return p, nil
}

type fixture struct {
	pipeline *Pipeline
	store    *fakeStore
	tasks    *fakeTasks
	notifier *fakeNotifier
	adapter  *scriptedProvider
	resolver *fakeResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newFakeStore()
	expiry := time.Now().Add(time.Hour)
	store.channels["ch1"] = &models.Channel{
		ID:               "ch1",
		Platform:         "twitter",
		ConnectionStatus: models.ConnectionConnected,
		AccessToken:      "tok",
		TokenExpiry:      &expiry,
	}
	store.posts["p1"] = &models.Post{
		ID:              "p1",
		Content:         "hello world",
		TargetPlatforms: models.StringArray{"twitter"},
		Status:          models.PostStatusDraft,
	}

	adapter := &scriptedProvider{
		name: "twitter",
		result: &provider.Result{
			Success:  true,
			RemoteID: "remote-1",
			URL:      "https://twitter.com/i/web/status/remote-1",
		},
	}
	tasks := &fakeTasks{}
	notifier := &fakeNotifier{}
	tokens := tokenstore.New(store, zap.NewNop())
	resolver := &fakeResolver{providers: map[string]provider.Provider{"twitter": adapter}}

	return &fixture{
		pipeline: New(resolver, tokens, store, tasks, notifier, zap.NewNop()),
		store:    store,
		tasks:    tasks,
		notifier: notifier,
		adapter:  adapter,
		resolver: resolver,
	}
}

// addPlatform registers a second channel and provider so tests can exercise
// multi-target posts.
func (f *fixture) addPlatform(platform, channelID string) *scriptedProvider {
	expiry := time.Now().Add(time.Hour)
	f.store.channels[channelID] = &models.Channel{
		ID:               channelID,
		Platform:         platform,
		ConnectionStatus: models.ConnectionConnected,
		AccessToken:      "tok",
		TokenExpiry:      &expiry,
	}
	adapter := &scriptedProvider{
		name: platform,
		result: &provider.Result{
			Success:  true,
			RemoteID: "remote-" + platform,
			URL:      "https://" + platform + ".example.com/remote",
		},
	}
	f.resolver.providers[platform] = adapter
	return adapter
}

func TestPublishSuccess(t *testing.T) {
	f := newFixture(t)

	pub, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.NoError(t, err)
	require.NotNil(t, pub)

	assert.Equal(t, "remote-1", pub.RemoteID)
	assert.Equal(t, models.PublicationStateActive, pub.State)
	assert.Equal(t, models.ConfidenceHigh, pub.Confidence)
	assert.NotNil(t, pub.PublishedAt)

	assert.Equal(t, models.PostStatusPublished, f.store.posts["p1"].Status)
	require.Len(t, f.store.jobs, 1)
	assert.Equal(t, models.JobStatusCompleted, f.store.jobs[0].Status)
	assert.Equal(t, 1, f.tasks.scheduled)
	assert.Equal(t, 1, f.notifier.successes)
}

func TestPublishValidationFailureLeavesPostUntouched(t *testing.T) {
	f := newFixture(t)
	f.adapter.violations = []string{"content is required"}

	_, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.Error(t, err)

	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "twitter", ve.Platform)

	assert.Equal(t, 0, f.adapter.published, "provider must not be called on validation failure")
	assert.Equal(t, models.PostStatusDraft, f.store.posts["p1"].Status)
	assert.Empty(t, f.store.jobs)
}

func TestPublishUntargetedPlatformRejected(t *testing.T) {
	f := newFixture(t)
	f.store.posts["p1"].TargetPlatforms = models.StringArray{"linkedin"}

	_, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	_, ok := AsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, 0, f.adapter.published)
}

func TestPublishExpiredTokenRequiresAuthentication(t *testing.T) {
	f := newFixture(t)
	expired := time.Now().Add(-time.Minute)
	f.store.channels["ch1"].TokenExpiry = &expired

	_, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.Equal(t, 0, f.adapter.published)
}

func TestPublishProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.adapter.result = &provider.Result{
		Success:   false,
		ErrorMsg:  "rate limited",
		Retryable: true,
	}

	_, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.Error(t, err)

	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable)

	// The only target failed, so the post as a whole failed.
	assert.Equal(t, models.PostStatusFailed, f.store.posts["p1"].Status)
	require.Len(t, f.store.jobs, 1)
	assert.Equal(t, models.JobStatusFailed, f.store.jobs[0].Status)
	assert.True(t, f.store.jobs[0].Retryable)
}

func TestPublishProviderErrorClassified(t *testing.T) {
	f := newFixture(t)
	f.adapter.result = nil
	f.adapter.publishErr = &provider.StatusError{Platform: "twitter", StatusCode: 503, Body: "down"}

	_, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable, "5xx must be classified retryable")
}

func TestRepostSupersedesPrior(t *testing.T) {
	f := newFixture(t)

	first, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.NoError(t, err)

	f.adapter.result = &provider.Result{
		Success:  true,
		RemoteID: "remote-2",
		URL:      "https://twitter.com/i/web/status/remote-2",
	}
	second, err := f.pipeline.Repost(context.Background(), "p1", "ch1")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "remote-2", second.RemoteID)

	prior := f.store.pubs[first.ID]
	require.NotNil(t, prior)
	assert.Equal(t, models.PublicationStateSuperseded, prior.State)
	assert.Equal(t, second.ID, prior.SupersededBy)
	assert.Equal(t, "remote-1", prior.RemoteID, "history must keep the prior remote id")

	assert.Equal(t, models.PostStatusPublished, f.store.posts["p1"].Status)
}

func TestRepostWithoutPriorPublicationRejected(t *testing.T) {
	f := newFixture(t)
	f.store.posts["p1"].Status = models.PostStatusPublished

	_, err := f.pipeline.Repost(context.Background(), "p1", "ch1")
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Violations[0], "repost requires an existing publication")
}

func TestPublishPartialFailureKeepsOtherTargetsPublishable(t *testing.T) {
	f := newFixture(t)
	f.store.posts["p1"].TargetPlatforms = models.StringArray{"twitter", "linkedin"}
	linkedin := f.addPlatform("linkedin", "ch2")

	f.adapter.result = &provider.Result{
		Success:   false,
		ErrorMsg:  "rate limited",
		Retryable: true,
	}
	_, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.Error(t, err)
	assert.Equal(t, models.PostStatusPublishing, f.store.posts["p1"].Status,
		"one failed target must not settle the post while another is pending")

	// The second target and a retry of the first must both still go
	// through.
	pub, err := f.pipeline.Publish(context.Background(), "p1", "ch2")
	require.NoError(t, err)
	assert.Equal(t, "remote-linkedin", pub.RemoteID)
	assert.Equal(t, 1, linkedin.published)
	assert.Equal(t, models.PostStatusPublished, f.store.posts["p1"].Status)

	f.adapter.result = &provider.Result{Success: true, RemoteID: "remote-1"}
	_, err = f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.NoError(t, err)
}

func TestPublishAllTargetsFailed(t *testing.T) {
	f := newFixture(t)
	f.store.posts["p1"].TargetPlatforms = models.StringArray{"twitter", "linkedin"}
	linkedin := f.addPlatform("linkedin", "ch2")

	f.adapter.result = &provider.Result{Success: false, ErrorMsg: "boom"}
	linkedin.result = &provider.Result{Success: false, ErrorMsg: "boom"}

	_, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.Error(t, err)
	assert.Equal(t, models.PostStatusPublishing, f.store.posts["p1"].Status)

	_, err = f.pipeline.Publish(context.Background(), "p1", "ch2")
	require.Error(t, err)
	assert.Equal(t, models.PostStatusFailed, f.store.posts["p1"].Status,
		"the post fails only once every target has failed")
}

func TestTaskSchedulingFailureDoesNotFailPublish(t *testing.T) {
	f := newFixture(t)
	f.tasks.fail = true

	pub, err := f.pipeline.Publish(context.Background(), "p1", "ch1")
	require.NoError(t, err)
	assert.NotNil(t, pub)
	assert.Equal(t, models.PostStatusPublished, f.store.posts["p1"].Status)
}
