package reconcile

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
)

type probeAnswer struct {
	existence provider.Existence
	err       error
}

// probeProvider answers each verification method from a script.
type probeProvider struct {
	name    string
	answers map[provider.VerifyMethod]probeAnswer
}

func (p *probeProvider) Name() string                            { return p.name }
func (p *probeProvider) CharacterLimit() int                     { return 3000 }
func (p *probeProvider) MediaLimit() int                         { return 9 }
func (p *probeProvider) SupportedMediaTypes() []models.MediaType { return nil }
func (p *probeProvider) DefaultScopes() []string                 { return nil }
func (p *probeProvider) Validate(*models.Post) []string          { return nil }

func (p *probeProvider) Authenticate(context.Context, provider.Credentials) (*oauth2.Token, error) {
	return nil, provider.ErrAuthorizationRequired
}
func (p *probeProvider) ExchangeCode(context.Context, string) (*oauth2.Token, error) {
	return nil, provider.ErrAuthorizationRequired
}
func (p *probeProvider) AuthCodeURL(string) string { return "" }

func (p *probeProvider) Publish(context.Context, *models.Post, *models.Channel) (*provider.Result, error) {
	return nil, nil
}
func (p *probeProvider) FetchAnalytics(context.Context, string, *models.Channel) (models.MetricMap, error) {
	return nil, nil
}

func (p *probeProvider) VerifyMethods() []provider.VerifyMethod {
	methods := make([]provider.VerifyMethod, 0, len(p.answers))
	for _, m := range []provider.VerifyMethod{
		provider.VerifyDirectGet,
		provider.VerifyListingSearch,
		provider.VerifyURLProbe,
	} {
		if _, ok := p.answers[m]; ok {
			methods = append(methods, m)
		}
	}
	return methods
}

func (p *probeProvider) VerifyRemoteStatus(_ context.Context, _ *models.PlatformPublication, _ *models.Channel, method provider.VerifyMethod) (provider.Existence, error) {
	answer := p.answers[method]
	return answer.existence, answer.err
}

type fakeResolver struct {
	p provider.Provider
}

func (f *fakeResolver) Resolve(string) (provider.Provider, error) { return f.p, nil }

type fakeStore struct {
	posts    map[string]*models.Post
	channels map[string]*models.Channel
	updated  []*models.PlatformPublication
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

func (f *fakeStore) AppendPublication(_ context.Context, _ *models.PlatformPublication) error {
	return nil
}

func (f *fakeStore) UpdatePublication(_ context.Context, pub *models.PlatformPublication) error {
	f.updated = append(f.updated, pub)
	return nil
}

func (f *fakeStore) RecordJob(_ context.Context, _ *models.PublishJob) error { return nil }

func (f *fakeStore) ListJobs(_ context.Context, _ string) ([]models.PublishJob, error) {
	return nil, nil
}

func newFixture(answers map[provider.VerifyMethod]probeAnswer) (*Reconciler, *fakeStore) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		posts: map[string]*models.Post{
			"p1": {
				ID:              "p1",
				Content:         "hello",
				TargetPlatforms: models.StringArray{"linkedin"},
				Status:          models.PostStatusPublished,
				Publications: []models.PlatformPublication{
					{
						ID:          "pub1",
						PostID:      "p1",
						Platform:    "linkedin",
						RemoteID:    "urn:li:share:1",
						RemoteURL:   "https://www.linkedin.com/feed/update/urn:li:share:1",
						PublishedAt: &published,
						State:       models.PublicationStateActive,
						Confidence:  models.ConfidenceHigh,
					},
				},
			},
		},
		channels: map[string]*models.Channel{
			"ch1": {ID: "ch1", Platform: "linkedin", AccessToken: "tok"},
		},
	}

	resolver := &fakeResolver{p: &probeProvider{name: "linkedin", answers: answers}}
	r := New(resolver, store, Config{}, zap.NewNop())
	return r, store
}

func TestReconcileUnanimousDeletionMutates(t *testing.T) {
	r, store := newFixture(map[provider.VerifyMethod]probeAnswer{
		provider.VerifyDirectGet:     {existence: provider.Deleted},
		provider.VerifyListingSearch: {existence: provider.Deleted},
		provider.VerifyURLProbe:      {existence: provider.Deleted},
	})

	outcome, err := r.Reconcile(context.Background(), "p1", "pub1")
	require.NoError(t, err)

	assert.Equal(t, VerdictDeleted, outcome.Verdict)
	assert.Equal(t, models.ConfidenceHigh, outcome.Confidence)
	assert.Equal(t, 0.0, outcome.ExistsPercentage)
	assert.True(t, outcome.Mutated)

	pub := &store.posts["p1"].Publications[0]
	assert.Equal(t, models.PublicationStateDeleted, pub.State)
	assert.True(t, pub.StatusVerified)
	assert.NotNil(t, pub.LastVerifiedAt)
	assert.Equal(t, models.PostStatusDeletedOnPlatform, store.posts["p1"].Status)
}

func TestReconcileErroredProbeExcludedFromVote(t *testing.T) {
	r, store := newFixture(map[provider.VerifyMethod]probeAnswer{
		provider.VerifyDirectGet:     {existence: provider.Deleted},
		provider.VerifyListingSearch: {existence: provider.Deleted},
		provider.VerifyURLProbe:      {err: errors.New("probe timed out")},
	})

	outcome, err := r.Reconcile(context.Background(), "p1", "pub1")
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.ErroredMethods)
	assert.Equal(t, 2, outcome.DeletedVotes)
	assert.Equal(t, VerdictDeleted, outcome.Verdict)
	assert.Equal(t, models.ConfidenceHigh, outcome.Confidence,
		"an errored probe must not dilute the remaining unanimous votes")
	assert.True(t, outcome.Mutated)
	assert.Equal(t, models.PostStatusDeletedOnPlatform, store.posts["p1"].Status)
}

func TestReconcileEvenSplitIsUncertain(t *testing.T) {
	r, store := newFixture(map[provider.VerifyMethod]probeAnswer{
		provider.VerifyDirectGet: {existence: provider.Exists},
		provider.VerifyURLProbe:  {existence: provider.Deleted},
	})

	outcome, err := r.Reconcile(context.Background(), "p1", "pub1")
	require.ErrorIs(t, err, ErrUncertain)

	assert.Equal(t, VerdictUncertain, outcome.Verdict)
	assert.Equal(t, models.ConfidenceLow, outcome.Confidence)
	assert.True(t, outcome.RequiresConfirmation)
	assert.False(t, outcome.Mutated)

	assert.Equal(t, models.PublicationStateActive, store.posts["p1"].Publications[0].State,
		"uncertainty must never mutate state")
	assert.Equal(t, models.PostStatusPublished, store.posts["p1"].Status)
}

func TestReconcileLowConfidenceDeletionNeedsConfirmation(t *testing.T) {
	r, store := newFixture(map[provider.VerifyMethod]probeAnswer{
		provider.VerifyDirectGet:     {existence: provider.Exists},
		provider.VerifyListingSearch: {existence: provider.Deleted},
		provider.VerifyURLProbe:      {existence: provider.Deleted},
	})

	outcome, err := r.Reconcile(context.Background(), "p1", "pub1")
	require.ErrorIs(t, err, ErrUncertain)

	assert.Equal(t, VerdictDeleted, outcome.Verdict)
	assert.NotEqual(t, models.ConfidenceHigh, outcome.Confidence)
	assert.True(t, outcome.RequiresConfirmation)
	assert.False(t, outcome.Mutated)
	assert.Equal(t, models.PublicationStateActive, store.posts["p1"].Publications[0].State)
}

func TestReconcileExistsRefreshesConfidence(t *testing.T) {
	r, store := newFixture(map[provider.VerifyMethod]probeAnswer{
		provider.VerifyDirectGet:     {existence: provider.Exists},
		provider.VerifyListingSearch: {existence: provider.Exists},
		provider.VerifyURLProbe:      {existence: provider.Exists},
	})

	outcome, err := r.Reconcile(context.Background(), "p1", "pub1")
	require.NoError(t, err)

	assert.Equal(t, VerdictExists, outcome.Verdict)
	assert.Equal(t, models.ConfidenceHigh, outcome.Confidence)
	assert.Equal(t, 100.0, outcome.ExistsPercentage)
	assert.False(t, outcome.Mutated)
	assert.Contains(t, outcome.Instructions, "manually",
		"an existing post must come with manual-deletion instructions")

	pub := &store.posts["p1"].Publications[0]
	assert.Equal(t, models.PublicationStateActive, pub.State)
	assert.NotNil(t, pub.LastVerifiedAt)
}

func TestReconcileAllProbesErroredIsUncertain(t *testing.T) {
	r, _ := newFixture(map[provider.VerifyMethod]probeAnswer{
		provider.VerifyDirectGet: {err: errors.New("boom")},
		provider.VerifyURLProbe:  {err: errors.New("boom")},
	})

	outcome, err := r.Reconcile(context.Background(), "p1", "pub1")
	require.ErrorIs(t, err, ErrUncertain)

	assert.Equal(t, VerdictUncertain, outcome.Verdict)
	assert.Equal(t, models.ConfidenceUnknown, outcome.Confidence)
	assert.Equal(t, 2, outcome.ErroredMethods)
}

func TestConfirmDeleted(t *testing.T) {
	r, store := newFixture(map[provider.VerifyMethod]probeAnswer{
		provider.VerifyDirectGet: {existence: provider.Exists},
	})

	err := r.Confirm(context.Background(), "p1", "pub1", VerdictDeleted, "checked in the browser")
	require.NoError(t, err)

	pub := &store.posts["p1"].Publications[0]
	assert.Equal(t, models.PublicationStateDeleted, pub.State)
	assert.Equal(t, models.ConfidenceHigh, pub.Confidence)
	assert.True(t, pub.StatusVerified)
	assert.Equal(t, "checked in the browser", pub.Notes)
	assert.Equal(t, models.PostStatusDeletedOnPlatform, store.posts["p1"].Status)
}

func TestConfirmExists(t *testing.T) {
	r, store := newFixture(nil)

	err := r.Confirm(context.Background(), "p1", "pub1", VerdictExists, "")
	require.NoError(t, err)

	pub := &store.posts["p1"].Publications[0]
	assert.Equal(t, models.PublicationStateActive, pub.State)
	assert.Equal(t, models.ConfidenceHigh, pub.Confidence)
	assert.True(t, pub.StatusVerified)
}

func TestConfirmExistsRevertsAutomaticDeletion(t *testing.T) {
	r, store := newFixture(map[provider.VerifyMethod]probeAnswer{
		provider.VerifyDirectGet: {existence: provider.Deleted},
		provider.VerifyURLProbe:  {existence: provider.Deleted},
	})

	// The unanimous vote deletes automatically.
	_, err := r.Reconcile(context.Background(), "p1", "pub1")
	require.NoError(t, err)
	require.Equal(t, models.PostStatusDeletedOnPlatform, store.posts["p1"].Status)

	// The operator says the probes were wrong; the post must come back.
	require.NoError(t, r.Confirm(context.Background(), "p1", "pub1", VerdictExists, "still visible"))

	pub := &store.posts["p1"].Publications[0]
	assert.Equal(t, models.PublicationStateActive, pub.State)
	assert.Equal(t, models.PostStatusPublished, store.posts["p1"].Status)
}

func TestConfirmRejectsUncertainVerdict(t *testing.T) {
	r, _ := newFixture(nil)

	err := r.Confirm(context.Background(), "p1", "pub1", VerdictUncertain, "")
	require.Error(t, err)
}

func TestConfidenceMapping(t *testing.T) {
	r, _ := newFixture(nil)

	tests := []struct {
		pct  float64
		want models.Confidence
	}{
		{0, models.ConfidenceHigh},
		{10, models.ConfidenceHigh},
		{20, models.ConfidenceHigh},
		{25, models.ConfidenceLow},
		{40, models.ConfidenceMedium},
		{50, models.ConfidenceLow},
		{66.7, models.ConfidenceMedium},
		{79.9, models.ConfidenceMedium},
		{80, models.ConfidenceHigh},
		{100, models.ConfidenceHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.confidence(tt.pct), "pct %.1f", tt.pct)
	}
}
