// Topic HTTP handlers.
//
// This file exposes REST endpoints for topics and vote types:
//   - GET    /vote-types             (active vote types)
//   - GET    /topics                 (list, paginated, ETag support)
//   - POST   /topics                 (create, returns similar topics)
//   - GET    /topics/similar         (similarity finder)
//   - GET    /topics/{id}            (detail, counts a view)
//   - PATCH  /topics/{id}            (edit title/description, returns similar topics)
//   - POST   /topics/{id}/link       (link a duplicate to its target)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/http/middleware"
	"github.com/tbourn/votehub-backend/internal/repo"
	"github.com/tbourn/votehub-backend/internal/services"
	"github.com/tbourn/votehub-backend/internal/sysutil"
	"github.com/tbourn/votehub-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// TopicService defines topic lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TopicService interface {
	// ListVoteTypes returns the active vote types.
	ListVoteTypes(ctx context.Context) ([]domain.VoteTypeConfig, error)
	// Create inserts a topic and returns it with the similar topics found.
	Create(ctx context.Context, in services.CreateTopicInput) (*domain.Topic, []domain.Topic, error)
	// View counts a view and returns the topic.
	View(ctx context.Context, id string) (*domain.Topic, error)
	// ListPage returns a page of topics and the total count.
	ListPage(ctx context.Context, f repo.TopicFilter, page, pageSize int) ([]domain.Topic, int64, error)
	// FindSimilar returns up to five active topics whose title contains title.
	FindSimilar(ctx context.Context, title, excludeID string) ([]domain.Topic, error)
	// Update edits a topic and returns it with the similar topics found.
	Update(ctx context.Context, id string, in services.UpdateTopicInput) (*domain.Topic, []domain.Topic, error)
	// Link marks topicID as a duplicate of targetID.
	Link(ctx context.Context, topicID, targetID string) error
}

// VoteService defines vote casting operations.
type VoteService interface {
	// VerificationOf returns the voter's verification flag and level.
	VerificationOf(ctx context.Context, voterID string) (bool, string, error)
	// Cast records or replaces the voter's vote on a topic.
	Cast(ctx context.Context, in services.CastVoteInput) (*domain.Vote, error)
	// Get returns the voter's vote on a topic.
	Get(ctx context.Context, topicID, voterID string) (*domain.Vote, error)
}

// ResultsService serves cached topic results.
type ResultsService interface {
	// Get returns the results, recomputing them when stale, missing or forced.
	Get(ctx context.Context, topicID string, force bool) (*domain.VoteResultsCache, error)
}

// SuggestionService defines similarity suggestion operations.
type SuggestionService interface {
	ListPending(ctx context.Context, topicID string) ([]domain.TopicSimilaritySuggestion, error)
	Report(ctx context.Context, topicID, similarTopicID string) (*domain.TopicSimilaritySuggestion, error)
	Review(ctx context.Context, suggestionID, reviewerID, status string) (*domain.TopicSimilaritySuggestion, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for topics, votes, results and suggestions.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	topicSvc   TopicService
	voteSvc    VoteService
	resultsSvc ResultsService
	suggSvc    SuggestionService

	// IdempotencyTTL is how long a recorded vote replay stays valid.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(topicSvc TopicService, voteSvc VoteService, resultsSvc ResultsService, suggSvc SuggestionService) *Handlers {
	return &Handlers{
		topicSvc:       topicSvc,
		voteSvc:        voteSvc,
		resultsSvc:     resultsSvc,
		suggSvc:        suggSvc,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// userID is the voter or author acting on the request.
func userID(c *gin.Context) string {
	return middleware.VoterID(c)
}

//
// DTOs
//

// CreateTopicRequest is the JSON payload for creating a topic.
type CreateTopicRequest struct {
	// Title is the poll question (1–255 chars).
	Title       string `json:"title" binding:"required,min=1" example:"Is pineapple acceptable on pizza?"`
	Description string `json:"description" example:"Settle it once and for all."`
	// VoteType is the id or machine name of the vote type.
	VoteType string `json:"vote_type" binding:"required" example:"yes_no"`
	// VoteConfig overrides the vote type's default config when set.
	VoteConfig           json.RawMessage `json:"vote_config,omitempty" swaggertype:"object"`
	RequireVerification  bool            `json:"require_verification" example:"false"`
	MinVerificationLevel string          `json:"min_verification_level" example:"none"`
	ExpiresAt            *time.Time      `json:"expires_at,omitempty"`
}

// CreateTopicResponse returns the created topic and its possible duplicates.
type CreateTopicResponse struct {
	Topic         *domain.Topic  `json:"topic"`
	SimilarTopics []domain.Topic `json:"similar_topics"`
}

// UpdateTopicRequest is the JSON payload for editing a topic. Omitted fields
// are left unchanged.
type UpdateTopicRequest struct {
	Title       *string `json:"title,omitempty" example:"Is pineapple acceptable on pizza?"`
	Description *string `json:"description,omitempty" example:"Settle it once and for all."`
}

// LinkTopicRequest is the JSON payload for linking a topic to its target.
type LinkTopicRequest struct {
	TargetID string `json:"target_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListTopicsResponse wraps a page of topics and pagination information.
type ListTopicsResponse struct {
	Topics     []domain.Topic `json:"topics"`
	Pagination Pagination     `json:"pagination"`
}

// TopicsResponse wraps an unpaginated topic list.
type TopicsResponse struct {
	Topics []domain.Topic `json:"topics"`
}

// VoteTypesResponse wraps the active vote types.
type VoteTypesResponse struct {
	VoteTypes []domain.VoteTypeConfig `json:"vote_types"`
}

//
// Helpers
//

// clampPagination reads page and page_size from the query string.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(c.Query("page"), c.Query("page_size"))
}

// topicFilter builds a list filter from query parameters.
func topicFilter(c *gin.Context) repo.TopicFilter {
	return repo.TopicFilter{
		CreatedBy:       strings.TrimSpace(c.Query("created_by")),
		Search:          strings.TrimSpace(c.Query("search")),
		IncludeInactive: sysutil.IsTruthy(c.Query("include_inactive")),
		OrderBy:         c.Query("order_by"),
		Desc:            !strings.EqualFold(c.Query("direction"), "asc"),
	}
}

//
// Handlers
//

// ListVoteTypes godoc
// @ID          listVoteTypes
// @Summary     List vote types
// @Description Returns the active vote types ordered by name.
// @Tags        Topics
// @Produce     json
// @Success     200  {object}  handlers.VoteTypesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /vote-types [get]
func (h *Handlers) ListVoteTypes(c *gin.Context) {
	items, err := h.topicSvc.ListVoteTypes(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.VoteTypeConfig{}
	}
	ok(c, http.StatusOK, VoteTypesResponse{VoteTypes: items})
}

// CreateTopic godoc
// @ID          createTopic
// @Summary     Create a topic
// @Description Creates a topic for the current user. Active topics whose title contains the new title are returned as possible duplicates and recorded as pending suggestions.
// @Tags        Topics
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateTopicRequest  true  "Create topic payload"
//
// @Success     201  {object}  handlers.CreateTopicResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /topics [post]
func (h *Handlers) CreateTopic(c *gin.Context) {
	var req CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title and vote_type required")
		return
	}

	t, similar, err := h.topicSvc.Create(c.Request.Context(), services.CreateTopicInput{
		CreatedBy:            userID(c),
		Title:                req.Title,
		Description:          req.Description,
		VoteType:             req.VoteType,
		VoteConfig:           req.VoteConfig,
		RequireVerification:  req.RequireVerification,
		MinVerificationLevel: req.MinVerificationLevel,
		ExpiresAt:            req.ExpiresAt,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, CreateTopicResponse{Topic: t, SimilarTopics: similar})
}

// ListTopics godoc
// @ID          listTopics
// @Summary     List topics (paginated)
// @Description Returns a page of topics. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Topics
// @Produce     json
//
// @Param       If-None-Match     header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page              query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size         query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       search            query   string  false "Title substring (case-insensitive)"
// @Param       created_by        query   string  false "Author user id"
// @Param       order_by          query   string  false "Sort column"  Enums(created_at, vote_count, view_count)
// @Param       direction         query   string  false "Sort direction"  Enums(asc, desc)
// @Param       include_inactive  query   bool    false "Include linked and deactivated topics"
//
// @Success     200  {object} handlers.ListTopicsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /topics [get]
func (h *Handlers) ListTopics(c *gin.Context) {
	ctx := c.Request.Context()
	f := topicFilter(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.topicSvc.(*services.TopicService); ok {
		db = svc.DB
	}
	if db != nil {
		if stamp, err := repo.TopicsStamp(ctx, db, f); err == nil {
			if notModified(c, stamp.ETag("topics", c.Request.URL.RawQuery)) {
				return
			}
		}
	}

	items, total, err := h.topicSvc.ListPage(ctx, f, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListTopicsResponse{
		Topics: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// FindSimilarTopics godoc
// @ID          findSimilarTopics
// @Summary     Find similar topics
// @Description Returns up to five active topics whose title contains the given title, ignoring case.
// @Tags        Topics
// @Produce     json
// @Param       title       query  string  true   "Title to match"
// @Param       exclude_id  query  string  false  "Topic id to leave out"
// @Success     200  {object} handlers.TopicsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /topics/similar [get]
func (h *Handlers) FindSimilarTopics(c *gin.Context) {
	items, err := h.topicSvc.FindSimilar(c.Request.Context(), c.Query("title"), c.Query("exclude_id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, TopicsResponse{Topics: items})
}

// GetTopic godoc
// @ID          getTopic
// @Summary     Get a topic
// @Description Returns a topic with its vote type and counts the view.
// @Tags        Topics
// @Produce     json
// @Param       id  path  string  true  "Topic ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Topic
// @Failure     404  {object} handlers.ErrorResponse "Topic not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /topics/{id} [get]
func (h *Handlers) GetTopic(c *gin.Context) {
	t, err := h.topicSvc.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, t)
}

// UpdateTopic godoc
// @ID          updateTopic
// @Summary     Edit a topic
// @Description Updates the title and/or description. A new title is matched against other active topics; hits are returned and recorded as pending suggestions.
// @Tags        Topics
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Topic ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateTopicRequest  true  "Fields to change"
// @Success     200  {object} handlers.CreateTopicResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Topic not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /topics/{id} [patch]
func (h *Handlers) UpdateTopic(c *gin.Context) {
	var req UpdateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Title == nil && req.Description == nil) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title or description required")
		return
	}
	t, similar, err := h.topicSvc.Update(c.Request.Context(), c.Param("id"), services.UpdateTopicInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, CreateTopicResponse{Topic: t, SimilarTopics: similar})
}

// LinkTopic godoc
// @ID          linkTopic
// @Summary     Link a duplicate topic
// @Description Deactivates the topic and points it at the target. Votes and cached results are kept.
// @Tags        Topics
// @Accept      json
// @Param       id    path  string  true  "Topic ID (UUID)"  format(uuid)
// @Param       body  body  handlers.LinkTopicRequest  true  "Link target"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid link"
// @Failure     404  {object} handlers.ErrorResponse "Topic not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /topics/{id}/link [post]
func (h *Handlers) LinkTopic(c *gin.Context) {
	var req LinkTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "target_id required")
		return
	}
	if err := h.topicSvc.Link(c.Request.Context(), c.Param("id"), req.TargetID); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
