// Vote HTTP handlers.
//
// This file exposes REST endpoints for votes:
//   - POST /topics/{id}/votes      (cast or replace the caller's vote)
//   - GET  /topics/{id}/votes/me   (the caller's current vote)
//
// Handlers are transport-thin:
//   - decode the vote payload ({answer}, {choice}, {rating} or {response})
//   - look up the caller's verification state and delegate to VoteService
//   - implement idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// cast exists for (user, topic, key), the handler returns the caller's stored
// vote without casting again and sets `Idempotency-Replayed: true`.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/http/middleware"
	"github.com/tbourn/votehub-backend/internal/repo"
	"github.com/tbourn/votehub-backend/internal/services"
)

// CastVoteRequest documents the vote payload. Exactly one field is expected,
// matching the topic's vote type.
type CastVoteRequest struct {
	Answer   *string  `json:"answer,omitempty" example:"yes"`
	Choice   *string  `json:"choice,omitempty" example:"margherita"`
	Rating   *float64 `json:"rating,omitempty" example:"4"`
	Response *string  `json:"response,omitempty" example:"More vegetarian options"`
}

// CastVoteResponse is the JSON envelope for a stored vote.
type CastVoteResponse struct {
	Vote *domain.Vote `json:"vote"`
}

// CastVote godoc
// @ID          castVote
// @Summary     Cast a vote
// @Description Records the caller's vote on a topic, replacing any earlier vote. The topic's results are recomputed before the response is sent.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Votes
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "Voter ID"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Topic ID (UUID)"  format(uuid)
// @Param       body             body    handlers.CastVoteRequest  true  "Vote payload"
//
// @Success     200  {object}  handlers.CastVoteResponse  "Stored vote"
// @Failure     400  {object}  handlers.ErrorResponse     "Invalid vote"
// @Failure     403  {object}  handlers.ErrorResponse     "Verification required"
// @Failure     404  {object}  handlers.ErrorResponse     "Topic not found"
// @Failure     409  {object}  handlers.ErrorResponse     "Topic closed"
// @Failure     500  {object}  handlers.ErrorResponse     "Internal error"
// @Router      /topics/{id}/votes [post]
func (h *Handlers) CastVote(c *gin.Context) {
	ctx := c.Request.Context()
	topicID := c.Param("id")

	var payload domain.Payload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Kind == domain.KindUnknown {
		fail(c, http.StatusBadRequest, ErrCodeInvalidVote, "body must be one of {answer}, {choice}, {rating}, {response}")
		return
	}

	voter := userID(c)

	// Replay: IdempotencyValidator found a vote produced under this key.
	if _, replay := middleware.ReplayedVote(c); replay {
		if prev, err := h.voteSvc.Get(ctx, topicID, voter); err == nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, CastVoteResponse{Vote: prev})
			return
		}
	}

	verified, level, err := h.voteSvc.VerificationOf(ctx, voter)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeVoteFailed, err.Error())
		return
	}

	v, err := h.voteSvc.Cast(ctx, services.CastVoteInput{
		TopicID:           topicID,
		VoterID:           voter,
		Payload:           payload,
		IsVerified:        verified,
		VerificationLevel: level,
		IPAddress:         c.ClientIP(),
		UserAgent:         c.Request.UserAgent(),
	})
	if err != nil {
		failService(c, err, ErrCodeVoteFailed)
		return
	}

	// Remember the key so a retry gets this vote back (best effort).
	if idemKey, hasKey := middleware.GetIdempotencyKey(c); hasKey {
		if svc, okSvc := h.voteSvc.(*services.VoteService); okSvc && svc.DB != nil {
			rec := domain.Idempotency{VoterID: voter, TopicID: topicID, Key: idemKey, VoteID: v.ID, Status: http.StatusOK}
			_, _ = repo.CreateIdempotency(ctx, svc.DB, rec, time.Now(), h.IdempotencyTTL)
		}
	}

	ok(c, http.StatusOK, CastVoteResponse{Vote: v})
}

// GetMyVote godoc
// @ID          getMyVote
// @Summary     Get the caller's vote
// @Tags        Votes
// @Produce     json
// @Param       X-User-ID  header  string  true  "Voter ID"  example(user123)
// @Param       id         path    string  true  "Topic ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.CastVoteResponse
// @Failure     404  {object}  handlers.ErrorResponse  "No vote"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /topics/{id}/votes/me [get]
func (h *Handlers) GetMyVote(c *gin.Context) {
	v, err := h.voteSvc.Get(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, CastVoteResponse{Vote: v})
}
