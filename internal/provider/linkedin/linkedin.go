package linkedin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/pkg/util"
)

const (
	platformName = "linkedin"
	apiBase      = "https://api.linkedin.com/v2"
)

var defaultScopes = []string{"openid", "profile", "w_member_social"}

// Provider publishes UGC shares. LinkedIn exposes no dependable edit or
// delete endpoint, so this adapter carries the full set of verification
// probes the reconciler votes over.
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
			AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
		}, defaultScopes),
	}
}

func (p *Provider) Name() string { return platformName }

func (p *Provider) CharacterLimit() int { return 3000 }

func (p *Provider) MediaLimit() int { return 9 }

func (p *Provider) SupportedMediaTypes() []models.MediaType {
	return []models.MediaType{models.MediaTypeImage, models.MediaTypeVideo}
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

	// Step 1: resolve the member URN for the token.
	authorURN, err := p.resolveAuthor(ctx, ch)
	if err != nil {
		return provider.ResultFromError(err), nil
	}

	// Step 2: submit the UGC share.
	text := post.Content
	if tags := util.FormatHashtags(post.Hashtags); tags != "" {
		text += "\n\n" + tags
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": text},
		"shareMediaCategory": "NONE",
	}
	if post.Link != "" {
		shareContent["shareMediaCategory"] = "ARTICLE"
		shareContent["media"] = []map[string]any{{
			"status":      "READY",
			"originalUrl": post.Link,
		}}
	}

	body := map[string]any{
		"author":         authorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := p.exec.DoJSON(ctx, platformName, http.MethodPost, apiBase+"/ugcPosts", ch.AccessToken, body, &resp); err != nil {
		return provider.ResultFromError(err), nil
	}

	p.logger.Info("LinkedIn share published",
		zap.String("share_urn", resp.ID),
		zap.String("author", authorURN))

	return &provider.Result{
		Success:     true,
		RemoteID:    resp.ID,
		URL:         fmt.Sprintf("https://www.linkedin.com/feed/update/%s", resp.ID),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) FetchAnalytics(ctx context.Context, remoteID string, ch *models.Channel) (models.MetricMap, error) {
	if p.exec.Stub() {
		return p.exec.SimulateMetrics(remoteID), nil
	}

	var resp struct {
		LikesSummary struct {
			TotalLikes float64 `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			AggregatedTotalComments float64 `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}
	endpoint := fmt.Sprintf("%s/socialActions/%s", apiBase, url.PathEscape(remoteID))
	if err := p.exec.DoJSON(ctx, platformName, http.MethodGet, endpoint, ch.AccessToken, nil, &resp); err != nil {
		return nil, err
	}

	return models.MetricMap{
		provider.MetricLikes:    resp.LikesSummary.TotalLikes,
		provider.MetricComments: resp.CommentsSummary.AggregatedTotalComments,
	}, nil
}

// VerifyMethods lists the independent probes available for LinkedIn. All
// three are run and treated as separate votes because no single one is
// dependable.
func (p *Provider) VerifyMethods() []provider.VerifyMethod {
	return []provider.VerifyMethod{
		provider.VerifyDirectGet,
		provider.VerifyListingSearch,
		provider.VerifyURLProbe,
	}
}

func (p *Provider) VerifyRemoteStatus(ctx context.Context, pub *models.PlatformPublication, ch *models.Channel, method provider.VerifyMethod) (provider.Existence, error) {
	if p.exec.Stub() {
		return p.exec.SimulateVerify()
	}

	switch method {
	case provider.VerifyDirectGet:
		return p.verifyDirect(ctx, pub, ch)
	case provider.VerifyListingSearch:
		return p.verifyListing(ctx, pub, ch)
	case provider.VerifyURLProbe:
		return p.exec.ProbeURL(ctx, platformName, pub.RemoteURL)
	default:
		return "", fmt.Errorf("linkedin does not support verify method %q", method)
	}
}

func (p *Provider) verifyDirect(ctx context.Context, pub *models.PlatformPublication, ch *models.Channel) (provider.Existence, error) {
	var resp struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/ugcPosts/%s", apiBase, url.PathEscape(pub.RemoteID))
	err := p.exec.DoJSON(ctx, platformName, http.MethodGet, endpoint, ch.AccessToken, nil, &resp)
	if se, ok := provider.AsStatusError(err); ok && se.StatusCode == http.StatusNotFound {
		return provider.Deleted, nil
	}
	if err != nil {
		return "", err
	}
	return provider.Exists, nil
}

// verifyListing cross-checks the author's recent shares for the remote id.
// Absence from the listing is a deletion vote, not proof; that is exactly
// why the reconciler aggregates.
func (p *Provider) verifyListing(ctx context.Context, pub *models.PlatformPublication, ch *models.Channel) (provider.Existence, error) {
	authorURN, err := p.resolveAuthor(ctx, ch)
	if err != nil {
		return "", err
	}

	var resp struct {
		Elements []struct {
			ID string `json:"id"`
		} `json:"elements"`
	}
	endpoint := fmt.Sprintf("%s/ugcPosts?q=authors&authors=List(%s)&count=50", apiBase, url.QueryEscape(authorURN))
	if err := p.exec.DoJSON(ctx, platformName, http.MethodGet, endpoint, ch.AccessToken, nil, &resp); err != nil {
		return "", err
	}

	for _, el := range resp.Elements {
		if el.ID == pub.RemoteID {
			return provider.Exists, nil
		}
	}
	return provider.Deleted, nil
}

func (p *Provider) resolveAuthor(ctx context.Context, ch *models.Channel) (string, error) {
	var resp struct {
		Sub string `json:"sub"`
	}
	if err := p.exec.DoJSON(ctx, platformName, http.MethodGet, apiBase+"/userinfo", ch.AccessToken, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to resolve LinkedIn profile: %w", err)
	}
	if resp.Sub == "" {
		return "", fmt.Errorf("linkedin userinfo returned no subject")
	}
	return "urn:li:person:" + resp.Sub, nil
}
