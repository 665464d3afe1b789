package registry

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/postpilot-io/postpilot/internal/config"
	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/internal/provider/facebook"
	"github.com/postpilot-io/postpilot/internal/provider/instagram"
	"github.com/postpilot-io/postpilot/internal/provider/linkedin"
	"github.com/postpilot-io/postpilot/internal/provider/tiktok"
	"github.com/postpilot-io/postpilot/internal/provider/twitter"
	"github.com/postpilot-io/postpilot/internal/provider/youtube"
)

// ErrUnsupportedPlatform is returned when a platform name has no registered
// provider. This is a configuration or programmer error, never retryable.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Snapshot is the static constraint view of one platform, copied onto a
// channel when it connects.
type Snapshot struct {
	CharacterLimit      int
	MediaLimit          int
	SupportedMediaTypes []models.MediaType
	DefaultScopes       []string
}

// Registry resolves platform names to provider implementations. Built once
// at process start from config; stateless and side-effect free after that.
type Registry struct {
	providers map[string]provider.Provider
	names     []string
}

// New constructs providers for every enabled platform. All adapters share
// the one executor, so the stub/real mode is uniform across the process.
func New(logger *zap.Logger, exec *provider.Executor, cfg *config.ProvidersConfig) *Registry {
	r := &Registry{providers: make(map[string]provider.Provider)}

	register := func(name string, construct func(provider.Credentials) provider.Provider) {
		pc := cfg.Platform(name)
		if pc == nil || !pc.Enabled {
			logger.Info("Platform disabled, skipping registration", zap.String("platform", name))
			return
		}

		creds := provider.Credentials{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURL,
			Scopes:       pc.Scopes,
		}
		r.providers[name] = construct(creds)
		r.names = append(r.names, name)
		logger.Info("Provider registered", zap.String("platform", name))
	}

	register("twitter", func(c provider.Credentials) provider.Provider { return twitter.New(logger, exec, c) })
	register("facebook", func(c provider.Credentials) provider.Provider { return facebook.New(logger, exec, c) })
	register("instagram", func(c provider.Credentials) provider.Provider { return instagram.New(logger, exec, c) })
	register("linkedin", func(c provider.Credentials) provider.Provider { return linkedin.New(logger, exec, c) })
	register("youtube", func(c provider.Credentials) provider.Provider { return youtube.New(logger, exec, c) })
	register("tiktok", func(c provider.Credentials) provider.Provider { return tiktok.New(logger, exec, c) })

	sort.Strings(r.names)
	return r
}

// Resolve returns the provider for a platform name.
func (r *Registry) Resolve(platform string) (provider.Provider, error) {
	p, ok := r.providers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	return p, nil
}

// SupportedPlatforms returns the registered platform names in stable order.
func (r *Registry) SupportedPlatforms() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Snapshot returns the constraint snapshot for a platform.
func (r *Registry) Snapshot(platform string) (*Snapshot, error) {
	p, err := r.Resolve(platform)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		CharacterLimit:      p.CharacterLimit(),
		MediaLimit:          p.MediaLimit(),
		SupportedMediaTypes: p.SupportedMediaTypes(),
		DefaultScopes:       p.DefaultScopes(),
	}, nil
}
