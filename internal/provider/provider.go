package provider

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
)

// Mode is the process-wide stub/real switch. Stub providers fabricate
// plausible outcomes with no network calls so the pipeline, lifecycle and
// reconciler can be exercised without live credentials.
type Mode string

const (
	ModeStub Mode = "stub"
	ModeReal Mode = "real"
)

// VerifyMethod names one independent remote-existence probe. Platforms
// advertise which methods they support; the reconciler runs all of them
// and treats each as one vote.
type VerifyMethod string

const (
	VerifyDirectGet     VerifyMethod = "direct_get"
	VerifyListingSearch VerifyMethod = "listing_search"
	VerifyURLProbe      VerifyMethod = "url_probe"
)

// Existence is a single probe's answer about a remote post.
type Existence string

const (
	Exists  Existence = "exists"
	Deleted Existence = "deleted"
)

// Result is the transient outcome of one provider call. It is consumed
// immediately by the pipeline or reconciler and never persisted as-is.
type Result struct {
	Success     bool
	RemoteID    string
	URL         string
	ErrorMsg    string
	Retryable   bool
	PublishedAt time.Time
}

// Credentials is the OAuth client material handed to Authenticate.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Provider is the uniform contract every platform integration implements.
// Capability accessors are static facts; Validate is pure and never touches
// the network; Publish and FetchAnalytics honor the stub/real mode the
// provider was constructed with.
type Provider interface {
	Name() string

	CharacterLimit() int
	MediaLimit() int
	SupportedMediaTypes() []models.MediaType
	DefaultScopes() []string

	Validate(post *models.Post) []string

	Authenticate(ctx context.Context, creds Credentials) (*oauth2.Token, error)
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	AuthCodeURL(state string) string

	Publish(ctx context.Context, post *models.Post, ch *models.Channel) (*Result, error)
	FetchAnalytics(ctx context.Context, remoteID string, ch *models.Channel) (models.MetricMap, error)

	VerifyMethods() []VerifyMethod
	VerifyRemoteStatus(ctx context.Context, pub *models.PlatformPublication, ch *models.Channel, method VerifyMethod) (Existence, error)
}

// Common metric vocabulary. Real-mode adapters normalize platform field
// names into these keys; stub mode emits them directly.
const (
	MetricImpressions    = "impressions"
	MetricReach          = "reach"
	MetricLikes          = "likes"
	MetricShares         = "shares"
	MetricComments       = "comments"
	MetricClicks         = "clicks"
	MetricSaves          = "saves"
	MetricEngagementRate = "engagement_rate"
)

// ResultFromError maps a failed provider call to a Result, carrying the
// retryable classification when the failure was an HTTP status error.
func ResultFromError(err error) *Result {
	res := &Result{
		Success:  false,
		ErrorMsg: err.Error(),
	}
	if se, ok := AsStatusError(err); ok {
		res.Retryable = se.Retryable()
	}
	return res
}
