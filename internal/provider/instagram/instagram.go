package instagram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/pkg/util"
)

const (
	platformName = "instagram"
	graphBase    = "https://graph.facebook.com/v19.0"
	captionLimit = 2200
)

var defaultScopes = []string{"instagram_basic", "instagram_content_publish"}

// Provider publishes through the Instagram Graph API. Publishing is a
// two-step protocol: create a media container, then publish the container.
// The channel handle is the IG user id.
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
			AuthURL:  "https://api.instagram.com/oauth/authorize",
			TokenURL: "https://api.instagram.com/oauth/access_token",
		}, defaultScopes),
	}
}

func (p *Provider) Name() string { return platformName }

func (p *Provider) CharacterLimit() int { return captionLimit }

func (p *Provider) MediaLimit() int { return 10 }

func (p *Provider) SupportedMediaTypes() []models.MediaType {
	return []models.MediaType{models.MediaTypeImage, models.MediaTypeVideo}
}

func (p *Provider) DefaultScopes() []string { return defaultScopes }

func (p *Provider) Validate(post *models.Post) []string {
	violations := provider.ValidateCommon(p, post)

	if len(post.Media) == 0 {
		violations = append(violations, "instagram requires at least one image or video")
	}

	return violations
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

	caption := post.Content
	if tags := util.FormatHashtags(post.Hashtags); tags != "" {
		caption += "\n\n" + tags
	}
	caption = util.Truncate(caption, captionLimit)

	// Step 1: create the media container.
	media := post.Media[0]
	body := map[string]any{"caption": caption}
	if media.Type == models.MediaTypeVideo {
		body["media_type"] = "REELS"
		body["video_url"] = media.URL
	} else {
		body["image_url"] = media.URL
	}

	var container struct {
		ID string `json:"id"`
	}
	containerURL := fmt.Sprintf("%s/%s/media", graphBase, ch.Handle)
	if err := p.exec.DoJSON(ctx, platformName, http.MethodPost, containerURL, ch.AccessToken, body, &container); err != nil {
		return provider.ResultFromError(err), nil
	}

	// Step 2: publish the container.
	var published struct {
		ID string `json:"id"`
	}
	publishURL := fmt.Sprintf("%s/%s/media_publish", graphBase, ch.Handle)
	err := p.exec.DoJSON(ctx, platformName, http.MethodPost, publishURL, ch.AccessToken,
		map[string]any{"creation_id": container.ID}, &published)
	if err != nil {
		return provider.ResultFromError(err), nil
	}

	p.logger.Info("Instagram media published",
		zap.String("container_id", container.ID),
		zap.String("media_id", published.ID))

	return &provider.Result{
		Success:     true,
		RemoteID:    published.ID,
		URL:         p.permalink(ctx, published.ID, ch),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) FetchAnalytics(ctx context.Context, remoteID string, ch *models.Channel) (models.MetricMap, error) {
	if p.exec.Stub() {
		return p.exec.SimulateMetrics(remoteID), nil
	}

	var resp struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value float64 `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	url := fmt.Sprintf("%s/%s/insights?metric=impressions,reach,likes,comments,saved,shares", graphBase, remoteID)
	if err := p.exec.DoJSON(ctx, platformName, http.MethodGet, url, ch.AccessToken, nil, &resp); err != nil {
		return nil, err
	}

	metrics := models.MetricMap{}
	for _, entry := range resp.Data {
		if len(entry.Values) == 0 {
			continue
		}
		value := entry.Values[0].Value
		switch entry.Name {
		case "impressions":
			metrics[provider.MetricImpressions] = value
		case "reach":
			metrics[provider.MetricReach] = value
		case "likes":
			metrics[provider.MetricLikes] = value
		case "comments":
			metrics[provider.MetricComments] = value
		case "saved":
			metrics[provider.MetricSaves] = value
		case "shares":
			metrics[provider.MetricShares] = value
		}
	}
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
		if se, ok := provider.AsStatusError(err); ok && se.StatusCode == http.StatusNotFound {
			return provider.Deleted, nil
		}
		if err != nil {
			return "", err
		}
		return provider.Exists, nil
	case provider.VerifyURLProbe:
		return p.exec.ProbeURL(ctx, platformName, pub.RemoteURL)
	default:
		return "", fmt.Errorf("instagram does not support verify method %q", method)
	}
}

// permalink fetches the public URL for a published media id. Best effort:
// a failure here should not fail an otherwise successful publish.
func (p *Provider) permalink(ctx context.Context, mediaID string, ch *models.Channel) string {
	var resp struct {
		Permalink string `json:"permalink"`
	}
	url := fmt.Sprintf("%s/%s?fields=permalink", graphBase, mediaID)
	if err := p.exec.DoJSON(ctx, platformName, http.MethodGet, url, ch.AccessToken, nil, &resp); err != nil {
		p.logger.Warn("Failed to fetch Instagram permalink",
			zap.String("media_id", mediaID),
			zap.Error(err))
		return ""
	}
	return resp.Permalink
}
