// Idempotent retries for vote casting.
//
// Clients may send an Idempotency-Key header with POST /topics/:id/votes.
// IdempotencyValidator checks the key and asks a lookup whether an earlier
// request from the same voter on the same topic already produced a vote for
// it. On a hit the vote id is stored on the context: the handler answers with
// that vote instead of casting again, and the rate limiters let it through.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen retry key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemVoteID = "idem.vote_id"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemKeyLen = 200

	// anonymousVoter is used when neither auth middleware nor X-User-ID
	// identify the caller.
	anonymousVoter = "demo-user"
)

var defaultIdemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key of the current request.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}

// ReplayedVote returns the id of the vote an earlier request with the same
// key produced, if the lookup found one.
func ReplayedVote(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemVoteID)
	return s, s != ""
}

// IsReplay reports whether the request repeats a completed cast.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayedVote(c)
	return ok
}

// VoterID resolves the caller: the "userID" set by auth middleware, then the
// X-User-ID header, then a shared anonymous id.
func VoterID(c *gin.Context) string {
	if id := requestUser(c); id != "" {
		return id
	}
	return anonymousVoter
}

// IdempotencyOptions tunes key validation. Zero values select a 200 byte
// limit, the token pattern ^[A-Za-z0-9._~\-:]+$ and time.Now.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
	Now     func() time.Time
}

// IdempotencyLookup returns the vote id stored for (voterID, topicID, key)
// that is still valid at now, or "" when there is none. Expiry is the
// lookup's business.
type IdempotencyLookup func(ctx context.Context, voterID, topicID, key string, now time.Time) (voteID string, err error)

// IdempotencyValidator validates Idempotency-Key on unsafe methods and runs
// lookup for it. Requests without the header pass untouched; a malformed key
// is rejected with 400 bad_idempotency_key. Lookup errors are logged and the
// request proceeds as a fresh cast.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemKeyLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemKeyPattern
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || safeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			voteID, err := lookup(c.Request.Context(), VoterID(c), c.Param("id"), key, now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed")
			case voteID != "":
				c.Set(ctxKeyIdemVoteID, voteID)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
