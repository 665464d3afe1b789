// Package lifecycle owns the post status state machine. Only the publish
// pipeline and the status reconciler drive transitions; everything here is
// a pure function over post and publication records.
package lifecycle

import (
	"fmt"

	"github.com/postpilot-io/postpilot/internal/models"
)

// transitions holds the allowed edges. published → published covers both
// reposts and reconciliation confidence updates; publishing → publishing
// keeps per-platform attempts independent while earlier targets are still
// unresolved.
var transitions = map[models.PostStatus][]models.PostStatus{
	models.PostStatusDraft:     {models.PostStatusScheduled, models.PostStatusPublishing},
	models.PostStatusScheduled: {models.PostStatusPublishing, models.PostStatusDraft},
	models.PostStatusPublishing: {
		models.PostStatusPublishing,
		models.PostStatusPublished,
		models.PostStatusFailed,
	},
	models.PostStatusPublished: {
		models.PostStatusPublished,
		models.PostStatusPublishing,
		models.PostStatusDeletedOnPlatform,
	},
	models.PostStatusFailed:            {models.PostStatusPublishing},
	models.PostStatusDeletedOnPlatform: {},
}

// CanTransition reports whether the edge from → to is allowed.
func CanTransition(from, to models.PostStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change.
func Transition(post *models.Post, to models.PostStatus) error {
	if !CanTransition(post.Status, to) {
		return fmt.Errorf("illegal lifecycle transition %s → %s for post %s", post.Status, to, post.ID)
	}
	post.Status = to
	return nil
}

// Compute derives the authoritative post status from its publication
// history:
//   - published if at least one active publication exists
//   - deleted_on_platform if every targeted platform's latest
//     non-superseded publication is deleted
//   - failed if publishing was attempted and nothing ever succeeded
//   - otherwise the current status stands (draft, scheduled, publishing)
func Compute(post *models.Post, attempted bool) models.PostStatus {
	latest := latestPerPlatform(post.Publications)

	active := 0
	deleted := 0
	for _, pub := range latest {
		switch pub.State {
		case models.PublicationStateActive:
			active++
		case models.PublicationStateDeleted:
			deleted++
		}
	}

	switch {
	case active > 0:
		return models.PostStatusPublished
	case len(latest) > 0 && deleted == len(latest) && allTargetsCovered(post, latest):
		return models.PostStatusDeletedOnPlatform
	case attempted && len(latest) == 0:
		return models.PostStatusFailed
	case deleted > 0:
		// Some platforms deleted, none active, not all targets covered:
		// the post is no longer live anywhere.
		return models.PostStatusDeletedOnPlatform
	default:
		return post.Status
	}
}

// latestPerPlatform picks each platform's most recent non-superseded
// publication. Superseded rows stay in history but never influence status.
func latestPerPlatform(pubs []models.PlatformPublication) map[string]*models.PlatformPublication {
	latest := make(map[string]*models.PlatformPublication)
	for i := range pubs {
		pub := &pubs[i]
		if pub.State == models.PublicationStateSuperseded {
			continue
		}
		current, ok := latest[pub.Platform]
		if !ok || pub.CreatedAt.After(current.CreatedAt) {
			latest[pub.Platform] = pub
		}
	}
	return latest
}

func allTargetsCovered(post *models.Post, latest map[string]*models.PlatformPublication) bool {
	for _, platform := range post.TargetPlatforms {
		if _, ok := latest[platform]; !ok {
			return false
		}
	}
	return true
}
