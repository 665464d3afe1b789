package twitter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/pkg/util"
)

const (
	platformName = "twitter"
	apiBase      = "https://api.twitter.com/2"
)

var defaultScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}

// Provider publishes tweets through the v2 API.
type Provider struct {
	logger *zap.Logger
	exec   *provider.Executor
	oauth  *oauth2.Config
}

func New(logger *zap.Logger, exec *provider.Executor, creds provider.Credentials) *Provider {
	return &Provider{
		logger: logger,
		exec:   exec,
		oauth: provider.NewOAuthConfig(creds, oauth2.Endpoint{
			AuthURL:  "https://twitter.com/i/oauth2/authorize",
			TokenURL: "https://api.twitter.com/2/oauth2/token",
		}, defaultScopes),
	}
}

func (p *Provider) Name() string { return platformName }

func (p *Provider) CharacterLimit() int { return 280 }

func (p *Provider) MediaLimit() int { return 4 }

func (p *Provider) SupportedMediaTypes() []models.MediaType {
	return []models.MediaType{models.MediaTypeImage, models.MediaTypeGIF, models.MediaTypeVideo}
}

func (p *Provider) DefaultScopes() []string { return defaultScopes }

func (p *Provider) Validate(post *models.Post) []string {
	return provider.ValidateCommon(p, post)
}

func (p *Provider) Authenticate(ctx context.Context, creds provider.Credentials) (*oauth2.Token, error) {
	if p.exec.Stub() {
		return p.exec.SimulateToken(platformName, creds.ClientID), nil
	}
	// Posting on behalf of a user needs user consent; there is no
	// app-only token that can write tweets.
	return nil, provider.ErrAuthorizationRequired
}

func (p *Provider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return provider.ExchangeCode(ctx, p.exec, p.oauth, platformName, code)
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type tweetResponse struct {
	Data *struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []apiError `json:"errors"`
}

func (p *Provider) Publish(ctx context.Context, post *models.Post, ch *models.Channel) (*provider.Result, error) {
	if p.exec.Stub() {
		return p.exec.SimulatePublish(p, post)
	}

	text := composeText(post, p.CharacterLimit())

	var resp tweetResponse
	err := p.exec.DoJSON(ctx, platformName, http.MethodPost, apiBase+"/tweets", ch.AccessToken,
		map[string]any{"text": text}, &resp)
	if err != nil {
		return provider.ResultFromError(err), nil
	}
	if resp.Data == nil {
		return &provider.Result{
			Success:  false,
			ErrorMsg: fmt.Sprintf("twitter accepted the request but returned no tweet: %s", firstErrorTitle(resp.Errors)),
		}, nil
	}

	p.logger.Info("Tweet published",
		zap.String("tweet_id", resp.Data.ID),
		zap.String("post_id", post.ID))

	return &provider.Result{
		Success:     true,
		RemoteID:    resp.Data.ID,
		URL:         fmt.Sprintf("https://twitter.com/i/web/status/%s", resp.Data.ID),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) FetchAnalytics(ctx context.Context, remoteID string, ch *models.Channel) (models.MetricMap, error) {
	if p.exec.Stub() {
		return p.exec.SimulateMetrics(remoteID), nil
	}

	var resp struct {
		Data *struct {
			PublicMetrics struct {
				RetweetCount    float64 `json:"retweet_count"`
				ReplyCount      float64 `json:"reply_count"`
				LikeCount       float64 `json:"like_count"`
				QuoteCount      float64 `json:"quote_count"`
				ImpressionCount float64 `json:"impression_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}

	url := fmt.Sprintf("%s/tweets/%s?tweet.fields=public_metrics", apiBase, remoteID)
	if err := p.exec.DoJSON(ctx, platformName, http.MethodGet, url, ch.AccessToken, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("tweet %s not found", remoteID)
	}

	m := resp.Data.PublicMetrics
	metrics := models.MetricMap{
		provider.MetricImpressions: m.ImpressionCount,
		provider.MetricLikes:       m.LikeCount,
		provider.MetricShares:      m.RetweetCount + m.QuoteCount,
		provider.MetricComments:    m.ReplyCount,
	}
	if m.ImpressionCount > 0 {
		metrics[provider.MetricEngagementRate] =
			(m.LikeCount + m.RetweetCount + m.QuoteCount + m.ReplyCount) / m.ImpressionCount * 100
	}
	return metrics, nil
}

func (p *Provider) VerifyMethods() []provider.VerifyMethod {
	return []provider.VerifyMethod{provider.VerifyDirectGet, provider.VerifyURLProbe}
}

func (p *Provider) VerifyRemoteStatus(ctx context.Context, pub *models.PlatformPublication, ch *models.Channel, method provider.VerifyMethod) (provider.Existence, error) {
	if p.exec.Stub() {
		return p.exec.SimulateVerify()
	}

	switch method {
	case provider.VerifyDirectGet:
		var resp tweetResponse
		url := fmt.Sprintf("%s/tweets/%s", apiBase, pub.RemoteID)
		err := p.exec.DoJSON(ctx, platformName, http.MethodGet, url, ch.AccessToken, nil, &resp)
		if se, ok := provider.AsStatusError(err); ok && se.StatusCode == http.StatusNotFound {
			return provider.Deleted, nil
		}
		if err != nil {
			return "", err
		}
		// Deleted tweets come back 200 with an errors array and no data.
		if resp.Data == nil {
			return provider.Deleted, nil
		}
		return provider.Exists, nil
	case provider.VerifyURLProbe:
		return p.exec.ProbeURL(ctx, platformName, pub.RemoteURL)
	default:
		return "", fmt.Errorf("twitter does not support verify method %q", method)
	}
}

func composeText(post *models.Post, limit int) string {
	var b strings.Builder
	if mentions := util.FormatMentions(post.Mentions); mentions != "" {
		b.WriteString(mentions)
		b.WriteString(" ")
	}
	b.WriteString(post.Content)
	if post.Link != "" {
		b.WriteString("\n")
		b.WriteString(post.Link)
	}
	if tags := util.FormatHashtags(post.Hashtags); tags != "" {
		b.WriteString("\n")
		b.WriteString(tags)
	}
	return util.Truncate(b.String(), limit)
}

func firstErrorTitle(errs []apiError) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	return errs[0].Title
}
