// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, compression, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/votehub-backend/docs" // registers the generated OpenAPI document
	"github.com/tbourn/votehub-backend/internal/config"
	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/http/handlers"
	"github.com/tbourn/votehub-backend/internal/http/middleware"
	"github.com/tbourn/votehub-backend/internal/repo"
	"github.com/tbourn/votehub-backend/internal/services"
)

// repoShim adapts the repository free functions to the repo interfaces the
// services depend on (TopicRepo, VoteRepo, ResultsRepo, DemographicsRepo and
// SuggestionRepo). This keeps services decoupled from the concrete repo
// package while reusing existing functions.
type repoShim struct{}

// CreateTopic proxies repo.CreateTopic.
func (repoShim) CreateTopic(ctx context.Context, db *gorm.DB, t *domain.Topic) (*domain.Topic, error) {
	return repo.CreateTopic(ctx, db, t)
}

// GetTopic proxies repo.GetTopic.
func (repoShim) GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error) {
	return repo.GetTopic(ctx, db, id)
}

// CountTopics proxies repo.CountTopics (pagination support).
func (repoShim) CountTopics(ctx context.Context, db *gorm.DB, f repo.TopicFilter) (int64, error) {
	return repo.CountTopics(ctx, db, f)
}

// ListTopicsPage proxies repo.ListTopicsPage (pagination support).
func (repoShim) ListTopicsPage(ctx context.Context, db *gorm.DB, f repo.TopicFilter, offset, limit int) ([]domain.Topic, error) {
	return repo.ListTopicsPage(ctx, db, f, offset, limit)
}

// FindSimilarTopics proxies repo.FindSimilarTopics.
func (repoShim) FindSimilarTopics(ctx context.Context, db *gorm.DB, title, excludeID string, limit int) ([]domain.Topic, error) {
	return repo.FindSimilarTopics(ctx, db, title, excludeID, limit)
}

// UpdateTopic proxies repo.UpdateTopic.
func (repoShim) UpdateTopic(ctx context.Context, db *gorm.DB, id string, e repo.TopicEdit) error {
	return repo.UpdateTopic(ctx, db, id, e)
}

// LinkTopic proxies repo.LinkTopic.
func (repoShim) LinkTopic(ctx context.Context, db *gorm.DB, id, targetID string) error {
	return repo.LinkTopic(ctx, db, id, targetID)
}

// IncrementTopicViews proxies repo.IncrementTopicViews.
func (repoShim) IncrementTopicViews(ctx context.Context, db *gorm.DB, id string) error {
	return repo.IncrementTopicViews(ctx, db, id)
}

// RefreshTopicVoteCount proxies repo.RefreshTopicVoteCount.
func (repoShim) RefreshTopicVoteCount(ctx context.Context, db *gorm.DB, id string) error {
	return repo.RefreshTopicVoteCount(ctx, db, id)
}

// GetVoteType proxies repo.GetVoteType.
func (repoShim) GetVoteType(ctx context.Context, db *gorm.DB, id string) (*domain.VoteTypeConfig, error) {
	return repo.GetVoteType(ctx, db, id)
}

// GetVoteTypeByName proxies repo.GetVoteTypeByName.
func (repoShim) GetVoteTypeByName(ctx context.Context, db *gorm.DB, name string) (*domain.VoteTypeConfig, error) {
	return repo.GetVoteTypeByName(ctx, db, name)
}

// ListActiveVoteTypes proxies repo.ListActiveVoteTypes.
func (repoShim) ListActiveVoteTypes(ctx context.Context, db *gorm.DB) ([]domain.VoteTypeConfig, error) {
	return repo.ListActiveVoteTypes(ctx, db)
}

// GetProfile proxies repo.GetProfile.
func (repoShim) GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	return repo.GetProfile(ctx, db, id)
}

// UpsertVote proxies repo.UpsertVote.
func (repoShim) UpsertVote(ctx context.Context, db *gorm.DB, v *domain.Vote) (*domain.Vote, error) {
	return repo.UpsertVote(ctx, db, v)
}

// GetVote proxies repo.GetVote.
func (repoShim) GetVote(ctx context.Context, db *gorm.DB, topicID, profileID string) (*domain.Vote, error) {
	return repo.GetVote(ctx, db, topicID, profileID)
}

// ListTopicVotes proxies repo.ListTopicVotes.
func (repoShim) ListTopicVotes(ctx context.Context, db *gorm.DB, topicID string, verifiedOnly bool) ([]domain.Vote, error) {
	return repo.ListTopicVotes(ctx, db, topicID, verifiedOnly)
}

// GetResultsCache proxies repo.GetResultsCache.
func (repoShim) GetResultsCache(ctx context.Context, db *gorm.DB, topicID string) (*domain.VoteResultsCache, error) {
	return repo.GetResultsCache(ctx, db, topicID)
}

// UpsertResultsCache proxies repo.UpsertResultsCache.
func (repoShim) UpsertResultsCache(ctx context.Context, db *gorm.DB, row *domain.VoteResultsCache) (*domain.VoteResultsCache, error) {
	return repo.UpsertResultsCache(ctx, db, row)
}

// ListVoterDemographics proxies repo.ListVoterDemographics.
func (repoShim) ListVoterDemographics(ctx context.Context, db *gorm.DB, topicID string) ([]domain.ProfileDemographics, error) {
	return repo.ListVoterDemographics(ctx, db, topicID)
}

// CreateSuggestions proxies repo.CreateSuggestions.
func (repoShim) CreateSuggestions(ctx context.Context, db *gorm.DB, rows []domain.TopicSimilaritySuggestion) error {
	return repo.CreateSuggestions(ctx, db, rows)
}

// CreateSuggestion proxies repo.CreateSuggestion.
func (repoShim) CreateSuggestion(ctx context.Context, db *gorm.DB, sg *domain.TopicSimilaritySuggestion) (*domain.TopicSimilaritySuggestion, error) {
	return repo.CreateSuggestion(ctx, db, sg)
}

// ListSuggestions proxies repo.ListSuggestions.
func (repoShim) ListSuggestions(ctx context.Context, db *gorm.DB, topicID, status string) ([]domain.TopicSimilaritySuggestion, error) {
	return repo.ListSuggestions(ctx, db, topicID, status)
}

// GetSuggestion proxies repo.GetSuggestion.
func (repoShim) GetSuggestion(ctx context.Context, db *gorm.DB, id string) (*domain.TopicSimilaritySuggestion, error) {
	return repo.GetSuggestion(ctx, db, id)
}

// ReviewSuggestion proxies repo.ReviewSuggestion.
func (repoShim) ReviewSuggestion(ctx context.Context, db *gorm.DB, id, reviewerID, status string, at time.Time) error {
	return repo.ReviewSuggestion(ctx, db, id, reviewerID, status, at)
}

// Services bundles the application services behind the HTTP API.
type Services struct {
	Topics       *services.TopicService
	Votes        *services.VoteService
	Results      *services.ResultsService
	Suggestions  *services.SuggestionService
	Demographics *services.DemographicsService
}

// NewServices builds the service graph over db. Casting a vote recomputes
// results through the same ResultsService the read path uses.
func NewServices(db *gorm.DB) Services {
	demo := services.NewDemographicsService(db, repoShim{})
	results := services.NewResultsService(db, repoShim{}, demo)
	return Services{
		Topics:       services.NewTopicService(db, repoShim{}),
		Votes:        services.NewVoteService(db, repoShim{}, results),
		Results:      results,
		Suggestions:  services.NewSuggestionService(db, repoShim{}),
		Demographics: demo,
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
//  10. Gzip compression (when enabled)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logs with redaction
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{
		MaskHeaders: []string{"X-API-Key"},
		LogHeaders:  true,
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, voterID, topicID, key string, now time.Time) (string, error) {
			rec, err := repo.GetIdempotency(ctx, db, voterID, topicID, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return "", nil
			}
			if err != nil {
				return "", err
			}
			return rec.VoteID, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// Every accepted vote recomputes the topic's results; casting gets its own
	// per voter and topic budget. Zero values leave it unlimited.
	var voteLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.VoteRateBurst > 0 {
		voteLimit = middleware.NewRateLimiter(cfg.VoteRateRPS, cfg.VoteRateBurst, middleware.KeyByVoterAndTopic()).
			WithScope("vote").Handler()
	}

	// 9) CORS posture (allow all when no origins are configured)
	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)

	// Security headers (HSTS only when enabled and request is HTTPS)
	// A voter's own ballot is never cached; shared resources rely on ETags.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStoreRoutes: []string{
			routePath(cfg.APIBasePath, "/topics/:id/votes"),
			routePath(cfg.APIBasePath, "/topics/:id/votes/me"),
		},
		EnablePolicy: true,
	}))

	// 10) Response compression; /metrics is left to promhttp
	if cfg.GzipEnabled {
		r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	svc := NewServices(db)
	h := handlers.New(svc.Topics, svc.Votes, svc.Results, svc.Suggestions)
	if cfg.IdempotencyTTL > 0 {
		h.IdempotencyTTL = cfg.IdempotencyTTL
	}

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Vote types
		api.GET("/vote-types", h.ListVoteTypes)

		// Topics
		api.POST("/topics", h.CreateTopic)
		api.GET("/topics", h.ListTopics)
		api.GET("/topics/similar", h.FindSimilarTopics)
		api.GET("/topics/:id", h.GetTopic)
		api.PATCH("/topics/:id", h.UpdateTopic)
		api.POST("/topics/:id/link", h.LinkTopic)

		// Votes and results
		api.POST("/topics/:id/votes", voteLimit, h.CastVote)
		api.GET("/topics/:id/votes/me", h.GetMyVote)
		api.GET("/topics/:id/results", h.GetResults)

		// Similarity suggestions
		api.GET("/topics/:id/suggestions", h.ListSuggestions)
		api.POST("/topics/:id/suggestions", h.ReportSuggestion)
		api.POST("/suggestions/:id/review", h.ReviewSuggestion)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// routePath joins the API base path and a route the way groupWithPrefix
// mounts it, yielding the template c.FullPath() reports.
func routePath(base, route string) string {
	if base == "" || base == "/" {
		return route
	}
	return base + route
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// corsHandlers builds the CORS chain. With no allowlist every origin is
// accepted without credentials and ACAO: * is set even on requests without
// an Origin header; otherwise allowed origins are echoed back.
func corsHandlers(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}
