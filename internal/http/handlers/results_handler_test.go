package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/services"
)

func newResultsRouter(rs ResultsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(stubTopicSvc{}, stubVoteSvc{}, rs, stubSuggSvc{})
	r := gin.New()
	r.GET("/topics/:id/results", h.GetResults)
	return r
}

func TestGetResults_ForceFlagAndBody(t *testing.T) {
	calc := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var forced []bool
	r := newResultsRouter(stubResultsSvc{
		get: func(_ context.Context, topicID string, force bool) (*domain.VoteResultsCache, error) {
			forced = append(forced, force)
			b := domain.NewDemographicBreakdown()
			b.ByAge["25-34"] = 2
			return &domain.VoteResultsCache{
				TopicID:              topicID,
				AllVotes:             datatypes.JSON(`{"yes":2,"no":1}`),
				VerifiedVotes:        datatypes.JSON(`{"yes":1}`),
				DemographicBreakdown: datatypes.NewJSONType(b),
				LastCalculated:       calc,
				VoteCountAll:         3,
				VoteCountVerified:    1,
			}, nil
		},
	})

	w := do(r, http.MethodGet, "/topics/t1/results", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	_ = do(r, http.MethodGet, "/topics/t1/results?force=true", "", nil)
	_ = do(r, http.MethodGet, "/topics/t1/results?force=1", "", nil)
	_ = do(r, http.MethodGet, "/topics/t1/results?force=nope", "", nil)
	if len(forced) != 4 || forced[0] || !forced[1] || !forced[2] || forced[3] {
		t.Fatalf("force flags = %v", forced)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	all := body["all_votes"].(map[string]any)
	if all["yes"] != float64(2) || body["vote_count_verified"] != float64(1) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	demo := body["demographic_breakdown"].(map[string]any)
	if demo["by_age"].(map[string]any)["25-34"] != float64(2) {
		t.Fatalf("unexpected breakdown %v", demo)
	}
}

func TestGetResults_ETag(t *testing.T) {
	calc := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := newResultsRouter(stubResultsSvc{
		get: func(_ context.Context, topicID string, _ bool) (*domain.VoteResultsCache, error) {
			return &domain.VoteResultsCache{TopicID: topicID, LastCalculated: calc}, nil
		},
	})
	w1 := do(r, http.MethodGet, "/topics/t1/results", "", nil)
	etag := w1.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	w2 := do(r, http.MethodGet, "/topics/t1/results", "", map[string]string{"If-None-Match": etag})
	if w2.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w2.Code)
	}
}

func TestGetResults_Errors(t *testing.T) {
	r := newResultsRouter(stubResultsSvc{
		get: func(context.Context, string, bool) (*domain.VoteResultsCache, error) { return nil, services.ErrTopicNotFound },
	})
	if w := do(r, http.MethodGet, "/topics/t1/results", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}

	r = newResultsRouter(stubResultsSvc{
		get: func(context.Context, string, bool) (*domain.VoteResultsCache, error) { return nil, errors.New("upsert failed") },
	})
	w := do(r, http.MethodGet, "/topics/t1/results", "", nil)
	if w.Code != http.StatusInternalServerError || errCode(t, w) != ErrCodeResultsFailed {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}
