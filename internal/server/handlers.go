package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/postpilot-io/postpilot/internal/models"
	"github.com/postpilot-io/postpilot/internal/pipeline"
	"github.com/postpilot-io/postpilot/internal/provider"
	"github.com/postpilot-io/postpilot/internal/reconcile"
	"github.com/postpilot-io/postpilot/internal/registry"
	"github.com/postpilot-io/postpilot/internal/tokenstore"
	"github.com/postpilot-io/postpilot/pkg/util"
)

type createPostRequest struct {
	AuthorID        string                  `json:"author_id"`
	Title           string                  `json:"title"`
	Content         string                  `json:"content"`
	Link            string                  `json:"link"`
	Hashtags        []string                `json:"hashtags"`
	Tags            string                  `json:"tags"`
	Mentions        []string                `json:"mentions"`
	Media           models.MediaAttachments `json:"media"`
	TargetPlatforms []string                `json:"target_platforms"`
	ScheduledFor    *time.Time              `json:"scheduled_for"`
}

// postFromRequest builds the draft. Hashtags arrive either as an array or
// as the comma-separated `tags` shorthand; both feed the same list.
func postFromRequest(req *createPostRequest) *models.Post {
	status := models.PostStatusDraft
	if req.ScheduledFor != nil {
		status = models.PostStatusScheduled
	}

	hashtags := req.Hashtags
	if req.Tags != "" {
		hashtags = append(hashtags, util.ParseTags(req.Tags)...)
	}

	return &models.Post{
		ID:              uuid.NewString(),
		AuthorID:        req.AuthorID,
		Title:           req.Title,
		Content:         req.Content,
		Link:            req.Link,
		Hashtags:        models.StringArray(hashtags),
		Mentions:        models.StringArray(req.Mentions),
		Media:           req.Media,
		TargetPlatforms: models.StringArray(req.TargetPlatforms),
		Status:          status,
		ScheduledFor:    req.ScheduledFor,
	}
}

func (s *Server) handleCreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post := postFromRequest(&req)

	if err := s.Store.CreatePost(c.Request.Context(), post); err != nil {
		s.Logger.Error("Failed to create post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	c.JSON(http.StatusCreated, post)
}

func (s *Server) handleGetPost(c *gin.Context) {
	post, err := s.Store.LoadPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.Store.ListJobs(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

type publishRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

func (s *Server) handlePublish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pub, err := s.Pipeline.Publish(c.Request.Context(), c.Param("id"), req.ChannelID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publication": pub})
}

func (s *Server) handleRepost(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pub, err := s.Pipeline.Repost(c.Request.Context(), c.Param("id"), req.ChannelID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"publication": pub})
}

type reconcileRequest struct {
	PublicationID string `json:"publication_id" binding:"required"`
}

func (s *Server) handleReconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := s.Reconciler.Reconcile(c.Request.Context(), c.Param("id"), req.PublicationID)
	if errors.Is(err, reconcile.ErrUncertain) {
		// The outcome is still useful to the operator deciding the verdict.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "outcome": outcome})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

type confirmRequest struct {
	PublicationID string `json:"publication_id" binding:"required"`
	Verdict       string `json:"verdict" binding:"required"`
	Notes         string `json:"notes"`
}

func (s *Server) handleConfirmReconcile(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.Reconciler.Confirm(c.Request.Context(), c.Param("id"), req.PublicationID, reconcile.Verdict(req.Verdict), req.Notes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verdict recorded"})
}

type createChannelRequest struct {
	Platform string `json:"platform" binding:"required"`
	Handle   string `json:"handle"`
}

func (s *Server) handleCreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := s.Registry.Snapshot(req.Platform)
	if err != nil {
		s.writeError(c, err)
		return
	}

	mediaTypes := make(models.StringArray, len(snap.SupportedMediaTypes))
	for i, t := range snap.SupportedMediaTypes {
		mediaTypes[i] = string(t)
	}

	ch := &models.Channel{
		ID:                  uuid.NewString(),
		Platform:            req.Platform,
		Handle:              req.Handle,
		ConnectionStatus:    models.ConnectionDisconnected,
		Scopes:              models.StringArray(snap.DefaultScopes),
		CharacterLimit:      snap.CharacterLimit,
		MediaLimit:          snap.MediaLimit,
		SupportedMediaTypes: mediaTypes,
	}
	if err := s.Store.CreateChannel(c.Request.Context(), ch); err != nil {
		s.Logger.Error("Failed to create channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create channel"})
		return
	}

	// Stub providers hand back a token immediately; real ones need the
	// user through the consent flow first.
	p, _ := s.Registry.Resolve(req.Platform)
	pc := s.Config.Providers.Platform(req.Platform)
	tok, err := p.Authenticate(c.Request.Context(), provider.Credentials{
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		RedirectURL:  pc.RedirectURL,
		Scopes:       pc.Scopes,
	})
	if err == nil {
		if err := s.Tokens.Put(c.Request.Context(), ch.ID, tok); err != nil {
			s.Logger.Error("Failed to store token", zap.String("channel_id", ch.ID), zap.Error(err))
		} else {
			ch.ConnectionStatus = models.ConnectionConnected
		}
	} else if !errors.Is(err, provider.ErrAuthorizationRequired) {
		s.Logger.Warn("Channel authentication failed",
			zap.String("platform", req.Platform),
			zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{
		"channel":     ch,
		"connect_url": "/api/v1/oauth/" + req.Platform + "/connect?channel_id=" + ch.ID,
	})
}

func (s *Server) handleListChannels(c *gin.Context) {
	channels, err := s.Store.ListChannels(c.Request.Context())
	if err != nil {
		s.Logger.Error("Failed to list channels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list channels"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// handleOAuthConnect redirects to the platform's consent page. The channel
// ID rides along as the state parameter and comes back in the callback.
func (s *Server) handleOAuthConnect(c *gin.Context) {
	p, err := s.Registry.Resolve(c.Param("platform"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	channelID := c.Query("channel_id")
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id is required"})
		return
	}
	if _, err := s.Store.LoadChannel(c.Request.Context(), channelID); err != nil {
		s.writeError(c, err)
		return
	}

	c.Redirect(http.StatusFound, p.AuthCodeURL(channelID))
}

func (s *Server) handleOAuthCallback(c *gin.Context) {
	p, err := s.Registry.Resolve(c.Param("platform"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	code := c.Query("code")
	channelID := c.Query("state")
	if code == "" || channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state are required"})
		return
	}

	tok, err := p.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		s.Logger.Error("Code exchange failed",
			zap.String("platform", c.Param("platform")),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Code exchange failed"})
		return
	}

	if err := s.Tokens.Put(c.Request.Context(), channelID, tok); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Channel connected", "channel_id": channelID})
}

func (s *Server) handleListPlatforms(c *gin.Context) {
	type platformInfo struct {
		Name                string             `json:"name"`
		CharacterLimit      int                `json:"character_limit"`
		MediaLimit          int                `json:"media_limit"`
		SupportedMediaTypes []models.MediaType `json:"supported_media_types"`
		DefaultScopes       []string           `json:"default_scopes"`
	}

	names := s.Registry.SupportedPlatforms()
	out := make([]platformInfo, 0, len(names))
	for _, name := range names {
		snap, err := s.Registry.Snapshot(name)
		if err != nil {
			continue
		}
		out = append(out, platformInfo{
			Name:                name,
			CharacterLimit:      snap.CharacterLimit,
			MediaLimit:          snap.MediaLimit,
			SupportedMediaTypes: snap.SupportedMediaTypes,
			DefaultScopes:       snap.DefaultScopes,
		})
	}

	c.JSON(http.StatusOK, gin.H{"platforms": out})
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	if ve, ok := pipeline.AsValidationError(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      ve.Error(),
			"platform":   ve.Platform,
			"violations": ve.Violations,
		})
		return
	}

	var pe *pipeline.PublishError
	if errors.As(err, &pe) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     pe.Error(),
			"platform":  pe.Platform,
			"retryable": pe.Retryable,
		})
		return
	}

	switch {
	case errors.Is(err, pipeline.ErrAuthenticationRequired),
		errors.Is(err, tokenstore.ErrTokenMissing),
		errors.Is(err, tokenstore.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrUnsupportedPlatform):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, reconcile.ErrUncertain):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.Logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
