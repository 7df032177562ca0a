package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dotcommander/imaginator/internal/core"
	"github.com/dotcommander/imaginator/internal/storage"
)

// Handler serves the story engine over HTTP
type Handler struct {
	engine  *core.Engine
	exports *storage.ExportWriter
	logger  *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger.With("component", "api")
	}
}

// WithExportWriter enables saving renderings to disk
func WithExportWriter(w *storage.ExportWriter) Option {
	return func(h *Handler) {
		h.exports = w
	}
}

func NewHandler(engine *core.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		logger: slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the gin engine with every route mounted
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(h.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	stories := r.Group("/api/stories", requireOwner())
	{
		stories.POST("", h.createStory)
		stories.GET("", h.listStories)
		stories.GET("/:id", h.getStory)
		stories.DELETE("/:id", h.deleteStory)
		stories.POST("/:id/begin", h.begin)
		stories.POST("/:id/choose", h.choose)
		stories.POST("/:id/scenes", h.nextScene)
		stories.GET("/:id/analysis", h.analyze)
		stories.POST("/:id/export", h.exportStory)
		stories.GET("/:id/exports", h.listExports)
		stories.GET("/:id/history", h.history)
		stories.GET("/:id/events", h.streamEvents)
	}

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, ErrorBadRequest, "no such route")
	})
	return r
}
