// Package reconcile determines whether a published post still exists on
// its platform when the platform cannot say so reliably. Several
// independent probes are run concurrently and their votes are aggregated
// into a confidence-scored verdict; anything short of high confidence goes
// to a human instead of mutating state.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/postpilot-io/postpilot/internal/lifecycle"
	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/pipeline"
	"github.com/postpilot-io/postpilot/internal/provider"
)

// ErrUncertain means the probes neither confirmed existence nor deletion
// with enough confidence. Never resolved silently: an operator verdict is
// required before any state changes.
var ErrUncertain = errors.New("reconciliation uncertain, manual confirmation required")

// Verdict is the aggregated answer about a remote post.
type Verdict string

const (
	VerdictExists    Verdict = "exists"
	VerdictDeleted   Verdict = "deleted"
	VerdictUncertain Verdict = "uncertain"
)

// Outcome reports one reconciliation run.
type Outcome struct {
	Verdict              Verdict           `json:"verdict"`
	Confidence           models.Confidence `json:"confidence"`
	ExistsPercentage     float64           `json:"exists_percentage"`
	MethodsRun           int               `json:"methods_run"`
	ExistsVotes          int               `json:"exists_votes"`
	DeletedVotes         int               `json:"deleted_votes"`
	ErroredMethods       int               `json:"errored_methods"`
	Mutated              bool              `json:"mutated"`
	RequiresConfirmation bool              `json:"requires_confirmation"`
	Instructions         string            `json:"instructions,omitempty"`
}

// Config carries the vote-policy knobs. The thresholds are product policy
// carried over for review, not invariants.
type Config struct {
	ProbeTimeout    time.Duration
	HighThreshold   float64
	MediumThreshold float64
}

func (c *Config) defaults() {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 12 * time.Second
	}
	if c.HighThreshold == 0 {
		c.HighThreshold = 80
	}
	if c.MediumThreshold == 0 {
		c.MediumThreshold = 40
	}
}

type Reconciler struct {
	registry pipeline.Resolver
	store    pipeline.Store
	cfg      Config
	logger   *zap.Logger
}

func New(reg pipeline.Resolver, store pipeline.Store, cfg Config, logger *zap.Logger) *Reconciler {
	cfg.defaults()
	return &Reconciler{
		registry: reg,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// Reconcile probes the remote platform for one publication and applies the
// decision policy:
//
//	deleted + high confidence  → automatic transition, verified stamp
//	deleted + lower confidence → ErrUncertain, no mutation
//	exists                     → confidence refreshed, manual-deletion
//	                             instructions returned
//
// A probe that errors or times out is excluded from the vote entirely.
func (r *Reconciler) Reconcile(ctx context.Context, postID, publicationID string) (*Outcome, error) {
	post, err := r.store.LoadPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", postID, err)
	}
	pub := findPublication(post, publicationID)
	if pub == nil {
		return nil, fmt.Errorf("publication %s not found on post %s", publicationID, postID)
	}
	ch, err := r.channelFor(ctx, pub.Platform)
	if err != nil {
		return nil, err
	}

	adapter, err := r.registry.Resolve(pub.Platform)
	if err != nil {
		return nil, err
	}

	outcome := r.vote(ctx, adapter, pub, ch)

	switch {
	case outcome.Verdict == VerdictUncertain:
		outcome.RequiresConfirmation = true
		r.logger.Warn("Reconciliation inconclusive",
			zap.String("post_id", postID),
			zap.String("platform", pub.Platform),
			zap.Float64("exists_percentage", outcome.ExistsPercentage),
			zap.Int("methods_run", outcome.MethodsRun))
		return outcome, ErrUncertain

	case outcome.Verdict == VerdictDeleted && outcome.Confidence == models.ConfidenceHigh:
		if err := r.markDeleted(ctx, post, pub, outcome.Confidence, ""); err != nil {
			return outcome, err
		}
		outcome.Mutated = true
		r.logger.Info("Publication confirmed deleted on platform",
			zap.String("post_id", postID),
			zap.String("platform", pub.Platform),
			zap.Float64("exists_percentage", outcome.ExistsPercentage))
		return outcome, nil

	case outcome.Verdict == VerdictDeleted:
		outcome.RequiresConfirmation = true
		r.logger.Warn("Probable deletion needs manual confirmation",
			zap.String("post_id", postID),
			zap.String("platform", pub.Platform),
			zap.String("confidence", string(outcome.Confidence)))
		return outcome, ErrUncertain

	default: // exists
		now := time.Now().UTC()
		pub.LastVerifiedAt = &now
		pub.Confidence = outcome.Confidence
		if err := r.store.UpdatePublication(ctx, pub); err != nil {
			r.logger.Error("Failed to refresh publication confidence",
				zap.String("publication_id", pub.ID),
				zap.Error(err))
		}
		outcome.Instructions = fmt.Sprintf(
			"%s provides no reliable programmatic delete; remove the post manually at %s, then re-run reconciliation or record a manual verdict",
			pub.Platform, pub.RemoteURL)
		return outcome, nil
	}
}

// Confirm records an operator-supplied verdict as ground truth, bypassing
// the vote. This is the trust escape hatch for inconclusive automation.
func (r *Reconciler) Confirm(ctx context.Context, postID, publicationID string, verdict Verdict, notes string) error {
	if verdict != VerdictExists && verdict != VerdictDeleted {
		return fmt.Errorf("manual verdict must be %q or %q, got %q", VerdictExists, VerdictDeleted, verdict)
	}

	post, err := r.store.LoadPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to load post %s: %w", postID, err)
	}
	pub := findPublication(post, publicationID)
	if pub == nil {
		return fmt.Errorf("publication %s not found on post %s", publicationID, postID)
	}

	now := time.Now().UTC()
	pub.LastVerifiedAt = &now
	pub.Confidence = models.ConfidenceHigh
	pub.StatusVerified = true
	pub.Notes = notes

	if verdict == VerdictDeleted {
		return r.markDeleted(ctx, post, pub, models.ConfidenceHigh, notes)
	}

	pub.State = models.PublicationStateActive
	if err := r.store.UpdatePublication(ctx, pub); err != nil {
		return fmt.Errorf("failed to save manual verdict: %w", err)
	}

	// Ground truth flows into the post status too, undoing a wrong
	// automatic deletion.
	post.Status = lifecycle.Compute(post, true)
	if err := r.store.SavePost(ctx, post); err != nil {
		return fmt.Errorf("failed to save post after manual verdict: %w", err)
	}

	r.logger.Info("Manual verdict recorded",
		zap.String("post_id", postID),
		zap.String("publication_id", publicationID),
		zap.String("verdict", string(verdict)))
	return nil
}

// vote runs every probe the platform advertises, concurrently, each under
// its own timeout. A timeout is an excluded method, not a deletion vote.
func (r *Reconciler) vote(ctx context.Context, adapter provider.Provider, pub *models.PlatformPublication, ch *models.Channel) *Outcome {
	methods := adapter.VerifyMethods()

	var mu sync.Mutex
	exists, deleted, errored := 0, 0, 0

	g, gctx := errgroup.WithContext(ctx)
	for _, method := range methods {
		method := method
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, r.cfg.ProbeTimeout)
			defer cancel()

			existence, err := adapter.VerifyRemoteStatus(probeCtx, pub, ch, method)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errored++
				r.logger.Warn("Verification probe excluded",
					zap.String("platform", pub.Platform),
					zap.String("method", string(method)),
					zap.Error(err))
			case existence == provider.Exists:
				exists++
			default:
				deleted++
			}
			return nil
		})
	}
	_ = g.Wait()

	outcome := &Outcome{
		MethodsRun:     len(methods),
		ExistsVotes:    exists,
		DeletedVotes:   deleted,
		ErroredMethods: errored,
	}

	total := exists + deleted
	if total == 0 {
		outcome.Verdict = VerdictUncertain
		outcome.Confidence = models.ConfidenceUnknown
		return outcome
	}

	pct := float64(exists) / float64(total) * 100
	outcome.ExistsPercentage = pct
	outcome.Confidence = r.confidence(pct)

	switch {
	case exists == deleted:
		// An even split carries no signal regardless of thresholds.
		outcome.Verdict = VerdictUncertain
		outcome.Confidence = models.ConfidenceLow
	case pct < 50:
		outcome.Verdict = VerdictDeleted
	default:
		outcome.Verdict = VerdictExists
	}
	return outcome
}

// confidence maps the exists percentage to a categorical grade. Strongly
// one-sided results are high confidence in either direction; the 40–80
// band is medium; the rest is low.
func (r *Reconciler) confidence(pct float64) models.Confidence {
	switch {
	case pct >= r.cfg.HighThreshold || pct <= 100-r.cfg.HighThreshold:
		return models.ConfidenceHigh
	case pct == 50:
		return models.ConfidenceLow
	case pct >= r.cfg.MediumThreshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func (r *Reconciler) markDeleted(ctx context.Context, post *models.Post, pub *models.PlatformPublication, confidence models.Confidence, notes string) error {
	now := time.Now().UTC()
	pub.State = models.PublicationStateDeleted
	pub.Confidence = confidence
	pub.StatusVerified = true
	pub.LastVerifiedAt = &now
	if notes != "" {
		pub.Notes = notes
	}
	if err := r.store.UpdatePublication(ctx, pub); err != nil {
		return fmt.Errorf("failed to mark publication deleted: %w", err)
	}

	post.Status = lifecycle.Compute(post, true)
	if err := r.store.SavePost(ctx, post); err != nil {
		return fmt.Errorf("failed to save post after deletion transition: %w", err)
	}
	return nil
}

// channelFor finds a connected channel for the platform; reconciliation
// reuses the publish credentials.
func (r *Reconciler) channelFor(ctx context.Context, platform string) (*models.Channel, error) {
	ch, err := r.store.FindChannelByPlatform(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("no channel available for platform %s: %w", platform, err)
	}
	return ch, nil
}

func findPublication(post *models.Post, publicationID string) *models.PlatformPublication {
	for i := range post.Publications {
		if post.Publications[i].ID == publicationID {
			return &post.Publications[i]
		}
	}
	return nil
}
