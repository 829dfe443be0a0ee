package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestVoterID_Precedence(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	// no request at all
	if got := VoterID(c); got != anonymousVoter {
		t.Fatalf("nil request: %q", got)
	}

	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Request.Header.Set("X-User-ID", "  hdr  ")
	if got := VoterID(c); got != "hdr" {
		t.Fatalf("header: %q", got)
	}
	c.Set("userID", 42) // wrong type is ignored
	if got := VoterID(c); got != "hdr" {
		t.Fatalf("wrong type: %q", got)
	}
	c.Set("userID", "ctx")
	if got := VoterID(c); got != "ctx" {
		t.Fatalf("context: %q", got)
	}
}

func TestReplayAccessors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatal("key present on empty context")
	}
	if IsReplay(c) {
		t.Fatal("replay on empty context")
	}
	c.Set(ctxKeyIdemVoteID, 7) // non-string is ignored
	if IsReplay(c) {
		t.Fatal("non-string vote id treated as replay")
	}
	c.Set(ctxKeyIdemVoteID, "v-1")
	if id, ok := ReplayedVote(c); !ok || id != "v-1" {
		t.Fatalf("ReplayedVote = %q %v", id, ok)
	}
}

func TestIdempotencyValidator_SkipsWithoutHeaderAndOnSafeMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	lookup := func(context.Context, string, string, string, time.Time) (string, error) {
		calls++
		return "v-x", nil
	}
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.Any("/topics/:id/votes", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("%s: key should not be stashed", c.Request.Method)
		}
		c.Status(http.StatusNoContent)
	})

	// POST without header
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/topics/t1/votes", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("post without key: %d", w.Code)
	}

	// GET with a header, even an invalid one, is left alone
	req := httptest.NewRequest(http.MethodGet, "/topics/t1/votes", nil)
	req.Header.Set(HeaderIdempotencyKey, "not valid!")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("get with key: %d", w.Code)
	}
	if calls != 0 {
		t.Fatalf("lookup called %d times", calls)
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long for custom limit", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"too long for default limit", IdempotencyOptions{}, strings.Repeat("k", defaultIdemKeyLen+1)},
		{"space in default pattern", IdempotencyOptions{}, "two words"},
		{"custom digits-only pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-7"); c.Next() })
			r.Use(IdempotencyValidator(tc.opts, nil))
			r.POST("/topics/:id/votes", func(c *gin.Context) { t.Fatal("handler must not run") })

			req := httptest.NewRequest(http.MethodPost, "/topics/t1/votes", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("json: %v", err)
			}
			if body["code"] != "bad_idempotency_key" || body["request_id"] != "rid-7" {
				t.Fatalf("body=%v", body)
			}
		})
	}
}

func TestIdempotencyValidator_LookupHitMissAndError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	type seen struct{ voter, topic, key string }
	var got seen
	stored := map[seen]string{{"u9", "t42", "k-9"}: "v-9"}
	lookup := func(_ context.Context, voter, topic, key string, now time.Time) (string, error) {
		if !now.Equal(fixed) {
			t.Fatalf("now=%v", now)
		}
		got = seen{voter, topic, key}
		if key == "boom" {
			return "", errors.New("db down")
		}
		return stored[got], nil
	}

	var logs bytes.Buffer
	lg := zerolog.New(&logs)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("logger", &lg); c.Next() })
	r.Use(IdempotencyValidator(IdempotencyOptions{Now: func() time.Time { return fixed }}, lookup))
	r.POST("/topics/:id/votes", func(c *gin.Context) {
		id, _ := ReplayedVote(c)
		c.JSON(http.StatusOK, gin.H{"replay": IsReplay(c), "bypass": IsRateBypass(c), "vote_id": id})
	})

	post := func(user, key string) map[string]any {
		req := httptest.NewRequest(http.MethodPost, "/topics/t42/votes", nil)
		if user != "" {
			req.Header.Set("X-User-ID", user)
		}
		req.Header.Set(HeaderIdempotencyKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
		var out map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		return out
	}

	out := post("u9", "k-9")
	if out["replay"] != true || out["bypass"] != true || out["vote_id"] != "v-9" {
		t.Fatalf("hit: %v", out)
	}
	if got != (seen{"u9", "t42", "k-9"}) {
		t.Fatalf("lookup args: %+v", got)
	}

	out = post("", "k-9")
	if out["replay"] != false || out["bypass"] != false {
		t.Fatalf("anonymous miss: %v", out)
	}
	if got.voter != anonymousVoter {
		t.Fatalf("anonymous voter id: %q", got.voter)
	}

	out = post("u9", "boom")
	if out["replay"] != false {
		t.Fatalf("error must fall through to a fresh cast: %v", out)
	}
	if !strings.Contains(logs.String(), "idempotency lookup failed") {
		t.Fatalf("lookup error not logged: %s", logs.String())
	}
}
