package provider

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
)

// Stub-mode synthesis. Outcomes depend only on the input so the pipeline,
// lifecycle and tests behave deterministically without live credentials.

var stubDomains = map[string]string{
	"twitter":   "twitter.com/i/web/status",
	"facebook":  "www.facebook.com/posts",
	"instagram": "www.instagram.com/p",
	"linkedin":  "www.linkedin.com/feed/update",
	"youtube":   "www.youtube.com/watch?v=",
	"tiktok":    "www.tiktok.com/@stub/video",
}

// SimulatePublish fabricates a publish outcome from input validity alone:
// a post that fails the adapter's validation fails deterministically, an
// acceptable post succeeds with a stable synthetic remote id.
func (e *Executor) SimulatePublish(p Provider, post *models.Post) (*Result, error) {
	if violations := p.Validate(post); len(violations) > 0 {
		return &Result{
			Success:   false,
			ErrorMsg:  strings.Join(violations, "; "),
			Retryable: false,
		}, nil
	}

	remoteID := StubRemoteID(p.Name(), post.ID)
	return &Result{
		Success:     true,
		RemoteID:    remoteID,
		URL:         StubRemoteURL(p.Name(), remoteID),
		PublishedAt: time.Now().UTC(),
	}, nil
}

// SimulateToken fabricates a token bundle with a plausible expiry so the
// downstream expiry handling runs the same path as production.
func (e *Executor) SimulateToken(platform, subject string) *oauth2.Token {
	id := StubRemoteID(platform, "identity/"+subject)
	return &oauth2.Token{
		AccessToken:  fmt.Sprintf("stub-%s-access-%s", platform, id[:8]),
		RefreshToken: fmt.Sprintf("stub-%s-refresh-%s", platform, id[:8]),
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

// SimulateMetrics returns bounded synthetic engagement figures, stable per
// remote id, in the common metric vocabulary.
func (e *Executor) SimulateMetrics(remoteID string) models.MetricMap {
	h := fnv.New64a()
	h.Write([]byte(remoteID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	impressions := float64(500 + rng.Intn(49500))
	reach := impressions * (0.5 + rng.Float64()*0.5)
	likes := reach * rng.Float64() * 0.2
	shares := likes * rng.Float64() * 0.5
	comments := likes * rng.Float64() * 0.3
	clicks := reach * rng.Float64() * 0.1
	saves := likes * rng.Float64() * 0.4
	engagement := (likes + shares + comments) / impressions * 100

	return models.MetricMap{
		MetricImpressions:    float64(int(impressions)),
		MetricReach:          float64(int(reach)),
		MetricLikes:          float64(int(likes)),
		MetricShares:         float64(int(shares)),
		MetricComments:       float64(int(comments)),
		MetricClicks:         float64(int(clicks)),
		MetricSaves:          float64(int(saves)),
		MetricEngagementRate: engagement,
	}
}

// SimulateVerify reports the remote post as existing. Stub mode never
// deletes anything remotely, so this is the truthful answer.
func (e *Executor) SimulateVerify() (Existence, error) {
	return Exists, nil
}

// StubRemoteID derives a stable fake remote identifier from the platform
// and post identity.
func StubRemoteID(platform, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("postpilot/"+platform+"/"+key)).String()
}

// StubRemoteURL builds a plausible public URL for a synthetic remote id.
func StubRemoteURL(platform, remoteID string) string {
	domain, ok := stubDomains[platform]
	if !ok {
		return fmt.Sprintf("https://example.com/%s/%s", platform, remoteID)
	}
	if strings.HasSuffix(domain, "=") {
		return fmt.Sprintf("https://%s%s", domain, remoteID)
	}
	return fmt.Sprintf("https://%s/%s", domain, remoteID)
}
