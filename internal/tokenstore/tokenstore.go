// Package tokenstore keeps OAuth credentials per channel with explicit
// expiry tracking. Reads of expired bundles fail closed; callers must rerun
// the OAuth flow rather than receive stale credentials.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/postpilot-io/postpilot/internal/models"
)

var (
	// ErrTokenMissing means the channel never completed an OAuth flow.
	ErrTokenMissing = errors.New("no token stored for channel")
	// ErrTokenExpired means the stored bundle is past its expiry.
	ErrTokenExpired = errors.New("token expired, re-authentication required")
)

// ChannelStore is the slice of the persistence collaborator the token
// store needs.
type ChannelStore interface {
	LoadChannel(ctx context.Context, id string) (*models.Channel, error)
	SaveChannel(ctx context.Context, ch *models.Channel) error
}

type Store struct {
	channels ChannelStore
	logger   *zap.Logger
	now      func() time.Time
}

func New(channels ChannelStore, logger *zap.Logger) *Store {
	return &Store{
		channels: channels,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the channel's token bundle, or ErrTokenMissing /
// ErrTokenExpired. An expired read also flips the channel's connection
// status so the invariant connected ⇒ non-expired token holds.
func (s *Store) Get(ctx context.Context, channelID string) (*oauth2.Token, error) {
	ch, err := s.channels.LoadChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}

	if ch.AccessToken == "" {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrTokenMissing)
	}

	if ch.TokenExpired(s.now()) {
		if ch.ConnectionStatus != models.ConnectionExpired {
			ch.ConnectionStatus = models.ConnectionExpired
			if saveErr := s.channels.SaveChannel(ctx, ch); saveErr != nil {
				s.logger.Error("Failed to mark channel expired",
					zap.String("channel_id", channelID),
					zap.Error(saveErr))
			}
		}
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrTokenExpired)
	}

	tok := &oauth2.Token{
		AccessToken:  ch.AccessToken,
		RefreshToken: ch.RefreshToken,
		TokenType:    "Bearer",
	}
	if ch.TokenExpiry != nil {
		tok.Expiry = *ch.TokenExpiry
	}
	return tok, nil
}

// defaultTokenTTL bounds tokens whose exchange response carried no expiry.
// Without it a zero expiry would store a connected channel that every Get
// rejects as expired.
const defaultTokenTTL = time.Hour

// Put stores a fresh token bundle on the channel and marks it connected.
func (s *Store) Put(ctx context.Context, channelID string, tok *oauth2.Token) error {
	ch, err := s.channels.LoadChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to load channel %s: %w", channelID, err)
	}

	ch.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		ch.RefreshToken = tok.RefreshToken
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(defaultTokenTTL)
	}
	ch.TokenExpiry = &expiry
	ch.ConnectionStatus = models.ConnectionConnected

	if err := s.channels.SaveChannel(ctx, ch); err != nil {
		return fmt.Errorf("failed to save channel %s: %w", channelID, err)
	}

	s.logger.Info("Token bundle stored",
		zap.String("channel_id", channelID),
		zap.Time("expiry", tok.Expiry))
	return nil
}
