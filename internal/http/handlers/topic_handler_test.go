package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/repo"
	"github.com/tbourn/votehub-backend/internal/services"
)

func newTopicRouter(ts TopicService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(ts, stubVoteSvc{}, stubResultsSvc{}, stubSuggSvc{})
	r := gin.New()
	r.GET("/vote-types", h.ListVoteTypes)
	r.GET("/topics", h.ListTopics)
	r.POST("/topics", h.CreateTopic)
	r.GET("/topics/similar", h.FindSimilarTopics)
	r.GET("/topics/:id", h.GetTopic)
	r.PATCH("/topics/:id", h.UpdateTopic)
	r.POST("/topics/:id/link", h.LinkTopic)
	return r
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd *bytes.Buffer
	if body != "" {
		rd = bytes.NewBufferString(body)
	} else {
		rd = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er.Code
}

func TestUserID_Precedence(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := userID(c); got != "demo-user" {
		t.Fatalf("fallback = %q", got)
	}
	c.Request.Header.Set("X-User-ID", "hdr")
	if got := userID(c); got != "hdr" {
		t.Fatalf("header = %q", got)
	}
	c.Set("userID", "ctx")
	if got := userID(c); got != "ctx" {
		t.Fatalf("context = %q", got)
	}
}

func TestCreateTopic_PassesInputAndReturns201(t *testing.T) {
	var got services.CreateTopicInput
	r := newTopicRouter(stubTopicSvc{
		create: func(_ context.Context, in services.CreateTopicInput) (*domain.Topic, []domain.Topic, error) {
			got = in
			return &domain.Topic{ID: "t2", Title: in.Title}, []domain.Topic{{ID: "t1", Title: "Best pizza in town"}}, nil
		},
	})

	w := do(r, http.MethodPost, "/topics",
		`{"title":"Best pizza","vote_type":"yes_no","vote_config":{"options":["yes","no"]},"require_verification":true,"min_verification_level":"email"}`,
		map[string]string{"X-User-ID": "u1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.CreatedBy != "u1" || got.VoteType != "yes_no" || !got.RequireVerification || got.MinVerificationLevel != "email" {
		t.Fatalf("unexpected input %+v", got)
	}
	if string(got.VoteConfig) != `{"options":["yes","no"]}` {
		t.Fatalf("vote_config = %s", got.VoteConfig)
	}
	var resp CreateTopicResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Topic.ID != "t2" || len(resp.SimilarTopics) != 1 || resp.SimilarTopics[0].ID != "t1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreateTopic_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing vote type", `{"title":"x"}`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown vote type", `{"title":"x","vote_type":"ranked"}`, services.ErrVoteTypeNotFound, http.StatusBadRequest, ErrCodeBadRequest},
		{"db failure", `{"title":"x","vote_type":"yes_no"}`, errors.New("db down"), http.StatusInternalServerError, ErrCodeCreateFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTopicRouter(stubTopicSvc{
				create: func(context.Context, services.CreateTopicInput) (*domain.Topic, []domain.Topic, error) {
					if tc.err == nil {
						t.Fatalf("service should not be called")
					}
					return nil, nil, tc.err
				},
			})
			w := do(r, http.MethodPost, "/topics", tc.body, nil)
			if w.Code != tc.status || errCode(t, w) != tc.code {
				t.Fatalf("got %d %s; want %d %s", w.Code, w.Body.String(), tc.status, tc.code)
			}
		})
	}
}

func TestListTopics_FilterAndPagination(t *testing.T) {
	var gotF repo.TopicFilter
	var gotPage, gotSize int
	r := newTopicRouter(stubTopicSvc{
		listPage: func(_ context.Context, f repo.TopicFilter, p, ps int) ([]domain.Topic, int64, error) {
			gotF, gotPage, gotSize = f, p, ps
			return []domain.Topic{{ID: "a"}, {ID: "b"}}, 5, nil
		},
	})

	w := do(r, http.MethodGet, "/topics?page=2&page_size=2&search=pizza&created_by=u1&order_by=vote_count&direction=asc&include_inactive=true", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if gotF.Search != "pizza" || gotF.CreatedBy != "u1" || gotF.OrderBy != "vote_count" || gotF.Desc || !gotF.IncludeInactive {
		t.Fatalf("unexpected filter %+v", gotF)
	}
	if gotPage != 2 || gotSize != 2 {
		t.Fatalf("page=%d size=%d", gotPage, gotSize)
	}
	var resp ListTopicsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pagination.TotalPages != 3 || !resp.Pagination.HasNext || len(resp.Topics) != 2 {
		t.Fatalf("unexpected pagination %+v", resp.Pagination)
	}
}

func TestListTopics_ETag_NotModified(t *testing.T) {
	db := newHandlersDB(t)
	if _, err := repo.UpsertVoteType(context.Background(), db, &domain.VoteTypeConfig{
		ID: "vt-yes-no", Name: domain.VoteTypeYesNo, DisplayName: "Yes / No", DefaultConfig: datatypes.JSON(`{}`), IsActive: true,
	}); err != nil {
		t.Fatalf("seed vote type: %v", err)
	}
	svc := services.NewTopicService(db, testRepo{})
	if _, _, err := svc.Create(context.Background(), services.CreateTopicInput{Title: "Tabs or spaces", VoteType: domain.VoteTypeYesNo}); err != nil {
		t.Fatalf("create: %v", err)
	}
	r := newTopicRouter(svc)

	w1 := do(r, http.MethodGet, "/topics", "", nil)
	etag := w1.Header().Get("ETag")
	if w1.Code != http.StatusOK || etag == "" {
		t.Fatalf("first call status=%d etag=%q", w1.Code, etag)
	}
	w2 := do(r, http.MethodGet, "/topics", "", map[string]string{"If-None-Match": etag})
	if w2.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w2.Code)
	}

	if _, _, err := svc.Create(context.Background(), services.CreateTopicInput{Title: "Vim or Emacs", VoteType: domain.VoteTypeYesNo}); err != nil {
		t.Fatalf("create: %v", err)
	}
	w3 := do(r, http.MethodGet, "/topics", "", map[string]string{"If-None-Match": etag})
	if w3.Code != http.StatusOK {
		t.Fatalf("expected 200 after change, got %d", w3.Code)
	}
}

func TestFindSimilarTopics_ForwardsQuery(t *testing.T) {
	var title, exclude string
	r := newTopicRouter(stubTopicSvc{
		findSimilar: func(_ context.Context, ti, ex string) ([]domain.Topic, error) {
			title, exclude = ti, ex
			return []domain.Topic{{ID: "t1"}}, nil
		},
	})
	w := do(r, http.MethodGet, "/topics/similar?title=Best+Pizza&exclude_id=t9", "", nil)
	if w.Code != http.StatusOK || title != "Best Pizza" || exclude != "t9" {
		t.Fatalf("status=%d title=%q exclude=%q", w.Code, title, exclude)
	}
	var resp TopicsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Topics) != 1 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestGetTopic_NotFound(t *testing.T) {
	r := newTopicRouter(stubTopicSvc{
		view: func(context.Context, string) (*domain.Topic, error) { return nil, services.ErrTopicNotFound },
	})
	w := do(r, http.MethodGet, "/topics/x", "", nil)
	if w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotFound {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestLinkTopic(t *testing.T) {
	var from, to string
	r := newTopicRouter(stubTopicSvc{
		link: func(_ context.Context, a, b string) error {
			from, to = a, b
			if a == b {
				return services.ErrInvalidLink
			}
			return nil
		},
	})
	w := do(r, http.MethodPost, "/topics/t1/link", `{"target_id":"t2"}`, nil)
	if w.Code != http.StatusNoContent || from != "t1" || to != "t2" {
		t.Fatalf("status=%d from=%q to=%q", w.Code, from, to)
	}
	w = do(r, http.MethodPost, "/topics/t1/link", `{"target_id":"t1"}`, nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidLink {
		t.Fatalf("self link: %d %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodPost, "/topics/t1/link", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing target: %d", w.Code)
	}
}

func TestUpdateTopic(t *testing.T) {
	var gotID string
	var gotIn services.UpdateTopicInput
	r := newTopicRouter(stubTopicSvc{
		update: func(_ context.Context, id string, in services.UpdateTopicInput) (*domain.Topic, []domain.Topic, error) {
			gotID, gotIn = id, in
			if id == "missing" {
				return nil, nil, services.ErrTopicNotFound
			}
			return &domain.Topic{ID: id, Title: *in.Title}, []domain.Topic{{ID: "t2", Title: "Best pizza in town"}}, nil
		},
	})

	w := do(r, http.MethodPatch, "/topics/t1", `{"title":"Best pizza"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotID != "t1" || gotIn.Title == nil || *gotIn.Title != "Best pizza" || gotIn.Description != nil {
		t.Fatalf("unexpected input id=%q %+v", gotID, gotIn)
	}
	var resp CreateTopicResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Topic == nil || resp.Topic.ID != "t1" || len(resp.SimilarTopics) != 1 || resp.SimilarTopics[0].ID != "t2" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = do(r, http.MethodPatch, "/topics/missing", `{"title":"x"}`, nil)
	if w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotFound {
		t.Fatalf("missing: %d %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodPatch, "/topics/t1", `{}`, nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeBadRequest {
		t.Fatalf("empty edit: %d %s", w.Code, w.Body.String())
	}
}

func TestListVoteTypes(t *testing.T) {
	r := newTopicRouter(stubTopicSvc{})
	w := do(r, http.MethodGet, "/vote-types", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"vote_types":[]}` {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}

	r = newTopicRouter(stubTopicSvc{
		voteTypes: func(context.Context) ([]domain.VoteTypeConfig, error) { return nil, errors.New("boom") },
	})
	w = do(r, http.MethodGet, "/vote-types", "", nil)
	if w.Code != http.StatusInternalServerError || errCode(t, w) != ErrCodeListFailed {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}
