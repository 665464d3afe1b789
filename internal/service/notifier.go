package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/postpilot-io/postpilot/internal/models"
)

// LogNotifier is the default notification collaborator: it records publish
// outcomes in the log. Real delivery (email, webhooks) plugs in behind the
// same interface; either way the call is best effort.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyPublishOutcome(ctx context.Context, post *models.Post, platform string, success bool, message string) {
	if success {
		n.logger.Info("Publish outcome notification",
			zap.String("post_id", post.ID),
			zap.String("platform", platform),
			zap.Bool("success", true))
		return
	}
	n.logger.Warn("Publish outcome notification",
		zap.String("post_id", post.ID),
		zap.String("platform", platform),
		zap.Bool("success", false),
		zap.String("error", message))
}
