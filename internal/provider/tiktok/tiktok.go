package tiktok

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
	platformName = "tiktok"
	apiBase      = "https://open.tiktokapis.com/v2"
	captionLimit = 2200
)

var defaultScopes = []string{"user.info.basic", "video.upload", "video.publish"}

// Provider publishes videos through the TikTok content posting API using
// the PULL_FROM_URL source, so the platform fetches the bytes itself.
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
			AuthURL:  "https://www.tiktok.com/v2/auth/authorize/",
			TokenURL: "https://open.tiktokapis.com/v2/oauth/token/",
		}, defaultScopes),
	}
}

func (p *Provider) Name() string { return platformName }

func (p *Provider) CharacterLimit() int { return captionLimit }

func (p *Provider) MediaLimit() int { return 1 }

func (p *Provider) SupportedMediaTypes() []models.MediaType {
	return []models.MediaType{models.MediaTypeVideo}
}

func (p *Provider) DefaultScopes() []string { return defaultScopes }

func (p *Provider) Validate(post *models.Post) []string {
	violations := provider.ValidateCommon(p, post)

	if !provider.HasMediaOfType(post, models.MediaTypeVideo) {
		violations = append(violations, "requires video content")
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

	var video *models.MediaAttachment
	for i := range post.Media {
		if post.Media[i].Type == models.MediaTypeVideo {
			video = &post.Media[i]
			break
		}
	}
	if video == nil {
		return &provider.Result{Success: false, ErrorMsg: "requires video content"}, nil
	}

	caption := post.Content
	if tags := util.FormatHashtags(post.Hashtags); tags != "" {
		caption += " " + tags
	}
	caption = util.Truncate(caption, captionLimit)

	body := map[string]any{
		"post_info": map[string]any{
			"title":           caption,
			"privacy_level":   "PUBLIC_TO_EVERYONE",
			"disable_comment": false,
		},
		"source_info": map[string]any{
			"source":    "PULL_FROM_URL",
			"video_url": video.URL,
		},
	}

	var resp struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	err := p.exec.DoJSON(ctx, platformName, http.MethodPost, apiBase+"/post/publish/video/init/", ch.AccessToken, body, &resp)
	if err != nil {
		return provider.ResultFromError(err), nil
	}
	if resp.Error.Code != "" && resp.Error.Code != "ok" {
		return &provider.Result{
			Success:  false,
			ErrorMsg: fmt.Sprintf("tiktok publish rejected: %s: %s", resp.Error.Code, resp.Error.Message),
		}, nil
	}

	p.logger.Info("TikTok video publish initiated",
		zap.String("publish_id", resp.Data.PublishID),
		zap.String("post_id", post.ID))

	return &provider.Result{
		Success:     true,
		RemoteID:    resp.Data.PublishID,
		URL:         fmt.Sprintf("https://www.tiktok.com/@%s", ch.Handle),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) FetchAnalytics(ctx context.Context, remoteID string, ch *models.Channel) (models.MetricMap, error) {
	if p.exec.Stub() {
		return p.exec.SimulateMetrics(remoteID), nil
	}

	body := map[string]any{
		"filters": map[string]any{
			"video_ids": []string{remoteID},
		},
	}
	var resp struct {
		Data struct {
			Videos []struct {
				ViewCount    float64 `json:"view_count"`
				LikeCount    float64 `json:"like_count"`
				CommentCount float64 `json:"comment_count"`
				ShareCount   float64 `json:"share_count"`
			} `json:"videos"`
		} `json:"data"`
	}
	endpoint := apiBase + "/video/query/?fields=view_count,like_count,comment_count,share_count"
	if err := p.exec.DoJSON(ctx, platformName, http.MethodPost, endpoint, ch.AccessToken, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Videos) == 0 {
		return nil, fmt.Errorf("video %s not found", remoteID)
	}

	v := resp.Data.Videos[0]
	metrics := models.MetricMap{
		provider.MetricImpressions: v.ViewCount,
		provider.MetricLikes:       v.LikeCount,
		provider.MetricComments:    v.CommentCount,
		provider.MetricShares:      v.ShareCount,
	}
	if v.ViewCount > 0 {
		metrics[provider.MetricEngagementRate] =
			(v.LikeCount + v.CommentCount + v.ShareCount) / v.ViewCount * 100
	}
	return metrics, nil
}

func (p *Provider) VerifyMethods() []provider.VerifyMethod {
	return []provider.VerifyMethod{provider.VerifyDirectGet}
}

func (p *Provider) VerifyRemoteStatus(ctx context.Context, pub *models.PlatformPublication, ch *models.Channel, method provider.VerifyMethod) (provider.Existence, error) {
	if p.exec.Stub() {
		return p.exec.SimulateVerify()
	}
	if method != provider.VerifyDirectGet {
		return "", fmt.Errorf("tiktok does not support verify method %q", method)
	}

	body := map[string]any{
		"filters": map[string]any{
			"video_ids": []string{pub.RemoteID},
		},
	}
	var resp struct {
		Data struct {
			Videos []struct {
				ID string `json:"id"`
			} `json:"videos"`
		} `json:"data"`
	}
	endpoint := apiBase + "/video/query/?fields=id"
	if err := p.exec.DoJSON(ctx, platformName, http.MethodPost, endpoint, ch.AccessToken, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Data.Videos) == 0 {
		return provider.Deleted, nil
	}
	return provider.Exists, nil
}
