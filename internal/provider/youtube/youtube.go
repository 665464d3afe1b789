package youtube

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
)

const (
	platformName     = "youtube"
	titleLimit       = 100
	descriptionLimit = 5000
)

var defaultScopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube.readonly",
}

// Provider uploads videos through the YouTube Data API. The post content
// becomes the video description; the title is mandatory.
type Provider struct {
	logger *zap.Logger
	exec   *provider.Executor
	oauth  *oauth2.Config
}

func New(logger *zap.Logger, exec *provider.Executor, creds provider.Credentials) *Provider {
	return &Provider{
		logger: logger,
		exec:   exec,
		oauth:  provider.NewOAuthConfig(creds, google.Endpoint, defaultScopes),
	}
}

func (p *Provider) Name() string { return platformName }

func (p *Provider) CharacterLimit() int { return descriptionLimit }

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
	if post.Title == "" {
		violations = append(violations, "video title is required")
	} else if n := utf8.RuneCountInString(post.Title); n > titleLimit {
		violations = append(violations,
			fmt.Sprintf("title length %d exceeds youtube limit of %d characters", n, titleLimit))
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
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *Provider) Publish(ctx context.Context, post *models.Post, ch *models.Channel) (*provider.Result, error) {
	if p.exec.Stub() {
		return p.exec.SimulatePublish(p, post)
	}

	service, err := p.service(ctx, ch)
	if err != nil {
		return provider.ResultFromError(err), nil
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

	// Stream the video bytes from wherever the attachment lives.
	resp, err := p.exec.Client().Get(video.URL)
	if err != nil {
		return provider.ResultFromError(fmt.Errorf("failed to fetch video source: %w", err)), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return provider.ResultFromError(&provider.StatusError{
			Platform:   platformName,
			StatusCode: resp.StatusCode,
			Body:       "video source fetch failed",
		}), nil
	}

	upload := &youtubeapi.Video{
		Snippet: &youtubeapi.VideoSnippet{
			Title:       post.Title,
			Description: post.Content,
			Tags:        post.Hashtags,
			CategoryId:  "22",
		},
		Status: &youtubeapi.VideoStatus{PrivacyStatus: "public"},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, upload)
	inserted, err := call.Media(resp.Body).Context(ctx).Do()
	if err != nil {
		return provider.ResultFromError(fmt.Errorf("youtube upload failed: %w", err)), nil
	}

	p.logger.Info("YouTube video published",
		zap.String("video_id", inserted.Id),
		zap.String("post_id", post.ID))

	return &provider.Result{
		Success:     true,
		RemoteID:    inserted.Id,
		URL:         "https://www.youtube.com/watch?v=" + inserted.Id,
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) FetchAnalytics(ctx context.Context, remoteID string, ch *models.Channel) (models.MetricMap, error) {
	if p.exec.Stub() {
		return p.exec.SimulateMetrics(remoteID), nil
	}

	service, err := p.service(ctx, ch)
	if err != nil {
		return nil, err
	}

	resp, err := service.Videos.List([]string{"statistics"}).Id(remoteID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("youtube statistics lookup failed: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("video %s not found", remoteID)
	}

	stats := resp.Items[0].Statistics
	metrics := models.MetricMap{
		provider.MetricImpressions: float64(stats.ViewCount),
		provider.MetricLikes:       float64(stats.LikeCount),
		provider.MetricComments:    float64(stats.CommentCount),
	}
	if stats.ViewCount > 0 {
		metrics[provider.MetricEngagementRate] =
			float64(stats.LikeCount+stats.CommentCount) / float64(stats.ViewCount) * 100
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
		return "", fmt.Errorf("youtube does not support verify method %q", method)
	}

	service, err := p.service(ctx, ch)
	if err != nil {
		return "", err
	}

	resp, err := service.Videos.List([]string{"id"}).Id(pub.RemoteID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube lookup failed: %w", err)
	}
	if len(resp.Items) == 0 {
		return provider.Deleted, nil
	}
	return provider.Exists, nil
}

func (p *Provider) service(ctx context.Context, ch *models.Channel) (*youtubeapi.Service, error) {
	tok := &oauth2.Token{AccessToken: ch.AccessToken, RefreshToken: ch.RefreshToken}
	if ch.TokenExpiry != nil {
		tok.Expiry = *ch.TokenExpiry
	}
	client := p.oauth.Client(ctx, tok)
	service, err := youtubeapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize YouTube service: %w", err)
	}
	return service, nil
}
