package facebook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/pkg/util"
)

const (
	platformName = "facebook"
	graphBase    = "https://graph.facebook.com/v19.0"
)

var defaultScopes = []string{"pages_manage_posts", "pages_read_engagement"}

// Provider publishes page posts through the Graph API. The channel handle
// is the page id the post goes to.
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
			AuthURL:  "https://www.facebook.com/v19.0/dialog/oauth",
			TokenURL: "https://graph.facebook.com/v19.0/oauth/access_token",
		}, defaultScopes),
	}
}

func (p *Provider) Name() string { return platformName }

func (p *Provider) CharacterLimit() int { return 63206 }

func (p *Provider) MediaLimit() int { return 10 }

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
	return nil, provider.ErrAuthorizationRequired
}

func (p *Provider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return provider.ExchangeCode(ctx, p.exec, p.oauth, platformName, code)
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *Provider) Publish(ctx context.Context, post *models.Post, ch *models.Channel) (*provider.Result, error) {
	if p.exec.Stub() {
		return p.exec.SimulatePublish(p, post)
	}

	message := post.Content
	if tags := util.FormatHashtags(post.Hashtags); tags != "" {
		message += "\n\n" + tags
	}

	body := map[string]any{"message": message}
	if post.Link != "" {
		body["link"] = post.Link
	}

	var resp struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/feed", graphBase, ch.Handle)
	if err := p.exec.DoJSON(ctx, platformName, http.MethodPost, endpoint, ch.AccessToken, body, &resp); err != nil {
		return provider.ResultFromError(err), nil
	}

	p.logger.Info("Facebook post published",
		zap.String("remote_id", resp.ID),
		zap.String("page_id", ch.Handle))

	return &provider.Result{
		Success:     true,
		RemoteID:    resp.ID,
		URL:         fmt.Sprintf("https://www.facebook.com/%s", resp.ID),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) FetchAnalytics(ctx context.Context, remoteID string, ch *models.Channel) (models.MetricMap, error) {
	if p.exec.Stub() {
		return p.exec.SimulateMetrics(remoteID), nil
	}

	metrics := models.MetricMap{}

	var insights struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value float64 `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	insightsURL := fmt.Sprintf("%s/%s/insights?metric=%s", graphBase, remoteID,
		url.QueryEscape("post_impressions,post_impressions_unique,post_clicks"))
	if err := p.exec.DoJSON(ctx, platformName, http.MethodGet, insightsURL, ch.AccessToken, nil, &insights); err != nil {
		return nil, err
	}
	for _, entry := range insights.Data {
		if len(entry.Values) == 0 {
			continue
		}
		switch entry.Name {
		case "post_impressions":
			metrics[provider.MetricImpressions] = entry.Values[0].Value
		case "post_impressions_unique":
			metrics[provider.MetricReach] = entry.Values[0].Value
		case "post_clicks":
			metrics[provider.MetricClicks] = entry.Values[0].Value
		}
	}

	var engagement struct {
		Likes struct {
			Summary struct {
				TotalCount float64 `json:"total_count"`
			} `json:"summary"`
		} `json:"likes"`
		Comments struct {
			Summary struct {
				TotalCount float64 `json:"total_count"`
			} `json:"summary"`
		} `json:"comments"`
		Shares struct {
			Count float64 `json:"count"`
		} `json:"shares"`
	}
	fieldsURL := fmt.Sprintf("%s/%s?fields=%s", graphBase, remoteID,
		url.QueryEscape("likes.summary(true),comments.summary(true),shares"))
	if err := p.exec.DoJSON(ctx, platformName, http.MethodGet, fieldsURL, ch.AccessToken, nil, &engagement); err != nil {
		return nil, err
	}
	metrics[provider.MetricLikes] = engagement.Likes.Summary.TotalCount
	metrics[provider.MetricComments] = engagement.Comments.Summary.TotalCount
	metrics[provider.MetricShares] = engagement.Shares.Count

	if impressions := metrics[provider.MetricImpressions]; impressions > 0 {
		metrics[provider.MetricEngagementRate] =
			(metrics[provider.MetricLikes] + metrics[provider.MetricComments] + metrics[provider.MetricShares]) / impressions * 100
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
		var resp struct {
			ID string `json:"id"`
		}
		endpoint := fmt.Sprintf("%s/%s?fields=id", graphBase, pub.RemoteID)
		err := p.exec.DoJSON(ctx, platformName, http.MethodGet, endpoint, ch.AccessToken, nil, &resp)
		if se, ok := provider.AsStatusError(err); ok {
			// The Graph API answers 404 for hard deletes and a 400
			// "unsupported get request" for posts it no longer serves.
			if se.StatusCode == http.StatusNotFound ||
				(se.StatusCode == http.StatusBadRequest && strings.Contains(se.Body, "does not exist")) {
				return provider.Deleted, nil
			}
		}
		if err != nil {
			return "", err
		}
		return provider.Exists, nil
	case provider.VerifyURLProbe:
		return p.exec.ProbeURL(ctx, platformName, pub.RemoteURL)
	default:
		return "", fmt.Errorf("facebook does not support verify method %q", method)
	}
}
