// Suggestion HTTP handlers.
//
// This file exposes REST endpoints for similarity suggestions:
//   - GET  /topics/{id}/suggestions    (pending suggestions of a topic)
//   - POST /topics/{id}/suggestions    (user report of a duplicate)
//   - POST /suggestions/{id}/review    (accept or reject)
//
// Accepting a suggestion links the topic to the similar topic.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// ReportSuggestionRequest is the JSON payload for reporting a duplicate.
type ReportSuggestionRequest struct {
	SimilarTopicID string `json:"similar_topic_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// ReviewSuggestionRequest is the JSON payload for a review decision.
//
// Status must be one of:
//   - accepted : link the topic to the similar topic
//   - rejected : keep both topics
type ReviewSuggestionRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted rejected" example:"accepted"`
}

// SuggestionsResponse wraps a list of suggestions.
type SuggestionsResponse struct {
	Suggestions []domain.TopicSimilaritySuggestion `json:"suggestions"`
}

// ListSuggestions godoc
// @ID          listSuggestions
// @Summary     List pending suggestions
// @Tags        Suggestions
// @Produce     json
// @Param       id  path  string  true  "Topic ID (UUID)"  format(uuid)
// @Success     200  {object} handlers.SuggestionsResponse
// @Failure     404  {object} handlers.ErrorResponse "Topic not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /topics/{id}/suggestions [get]
func (h *Handlers) ListSuggestions(c *gin.Context) {
	items, err := h.suggSvc.ListPending(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, SuggestionsResponse{Suggestions: items})
}

// ReportSuggestion godoc
// @ID          reportSuggestion
// @Summary     Report a duplicate topic
// @Description Records a user_report suggestion that the topic duplicates another one.
// @Tags        Suggestions
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Topic ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ReportSuggestionRequest  true  "Similar topic"
// @Success     201  {object} domain.TopicSimilaritySuggestion
// @Failure     400  {object} handlers.ErrorResponse "Invalid link"
// @Failure     404  {object} handlers.ErrorResponse "Topic not found"
// @Failure     409  {object} handlers.ErrorResponse "Already suggested"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /topics/{id}/suggestions [post]
func (h *Handlers) ReportSuggestion(c *gin.Context) {
	var req ReportSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "similar_topic_id required")
		return
	}
	s, err := h.suggSvc.Report(c.Request.Context(), c.Param("id"), req.SimilarTopicID)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, s)
}

// ReviewSuggestion godoc
// @ID          reviewSuggestion
// @Summary     Review a suggestion
// @Description Accepts or rejects a pending suggestion. Accepting links the topic to the similar topic.
// @Tags        Suggestions
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "Reviewer ID (demo header)"  example(mod-1)
// @Param       id         path    string  true  "Suggestion ID (UUID)"  format(uuid)
// @Param       body       body    handlers.ReviewSuggestionRequest  true  "Decision"
// @Success     200  {object} domain.TopicSimilaritySuggestion
// @Failure     400  {object} handlers.ErrorResponse "Invalid status"
// @Failure     404  {object} handlers.ErrorResponse "Suggestion not found"
// @Failure     409  {object} handlers.ErrorResponse "Already reviewed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /suggestions/{id}/review [post]
func (h *Handlers) ReviewSuggestion(c *gin.Context) {
	var req ReviewSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be accepted or rejected")
		return
	}
	s, err := h.suggSvc.Review(c.Request.Context(), c.Param("id"), userID(c), req.Status)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, s)
}
