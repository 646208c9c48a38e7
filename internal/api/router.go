package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pulsedash/pulse/internal/analytics"
	"github.com/pulsedash/pulse/internal/models"
	"github.com/pulsedash/pulse/internal/youtube"
	"github.com/pulsedash/pulse/pkg/logging"
)

const (
	defaultPostLimit = 50
	maxPostLimit     = 200
)

// PostReader reads processed posts for presentation
type PostReader interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.ProcessedPost, error)
}

// ChannelAnalytics is the read-and-trigger surface the API exposes over the
// snapshot engine
type ChannelAnalytics interface {
	Capture(ctx context.Context, channelID string) (*models.ChannelSnapshot, error)
	Summarize(ctx context.Context, channelID string) (*analytics.Summary, error)
	Track(ctx context.Context, query string) (*analytics.Summary, error)
	History(ctx context.Context, channelID string, limit int) ([]models.ChannelSnapshot, error)
}

// HealthChecker reports storage health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router sets up the reporting API routes
type Router struct {
	posts    PostReader
	channels ChannelAnalytics
	health   HealthChecker
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(posts PostReader, channels ChannelAnalytics, health HealthChecker) *Router {
	return &Router{
		posts:    posts,
		channels: channels,
		health:   health,
		logger:   logging.GetLogger().With(zap.String("component", "api-router")),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	apiGroup := engine.Group("/api")
	apiGroup.GET("/users/:id/posts", r.getUserPosts)
	apiGroup.GET("/youtube/channels/:id/summary", r.getChannelSummary)
	apiGroup.GET("/youtube/channels/:id/history", r.getChannelHistory)
	apiGroup.POST("/youtube/capture", r.captureSnapshot)
	apiGroup.GET("/youtube/search", r.searchChannel)
}

func (r *Router) healthHandler(c *gin.Context) {
	if r.health != nil {
		if err := r.health.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "pulse-api",
	})
}

// getUserPosts returns a user's processed posts, newest first
func (r *Router) getUserPosts(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	limit := parseLimit(c.Query("limit"), defaultPostLimit, maxPostLimit)

	posts, err := r.posts.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		r.logger.Error("Failed to list posts", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// getChannelSummary returns the derived summary for a channel, recomputed
// on every request
func (r *Router) getChannelSummary(c *gin.Context) {
	summary, err := r.channels.Summarize(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, youtube.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
			return
		}
		r.logger.Error("Failed to summarize channel", zap.String("channel_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarize channel"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// getChannelHistory returns raw snapshot history, newest first
func (r *Router) getChannelHistory(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 30, 60)

	history, err := r.channels.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		r.logger.Error("Failed to read history", zap.String("channel_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

type captureRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

// captureSnapshot triggers an on-demand snapshot capture
func (r *Router) captureSnapshot(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel_id is required"})
		return
	}

	snapshot, err := r.channels.Capture(c.Request.Context(), req.ChannelID)
	if err != nil {
		if errors.Is(err, youtube.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
			return
		}
		r.logger.Error("Failed to capture snapshot", zap.String("channel_id", req.ChannelID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to capture snapshot"})
		return
	}

	c.JSON(http.StatusCreated, snapshot)
}

// searchChannel resolves a free-text query, starts tracking the channel and
// returns its summary
func (r *Router) searchChannel(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	summary, err := r.channels.Track(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, youtube.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no channel matches the query"})
			return
		}
		r.logger.Error("Failed to track channel", zap.String("query", query), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve channel"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
