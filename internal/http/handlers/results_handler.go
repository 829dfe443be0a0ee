package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/votehub-backend/internal/sysutil"
)

// GetResults godoc
// @ID          getResults
// @Summary     Get topic results
// @Description Returns the cached results of a topic: aggregates over all votes and over verified votes, plus a demographic breakdown of voters.
// @Description Cached results are served for up to 60 seconds; force=true (or 1/yes/on) recomputes them. Supports weak ETag via If-None-Match.
// @Tags        Results
// @Produce     json
// @Param       id             path    string  true   "Topic ID (UUID)"  format(uuid)
// @Param       force          query   bool    false  "Recompute even when fresh"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  domain.VoteResultsCache
// @Header      200  {string}  ETag  "Weak ETag derived from last_calculated"
// @Success     304  {string}  string "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Topic not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /topics/{id}/results [get]
func (h *Handlers) GetResults(c *gin.Context) {
	topicID := c.Param("id")
	force := sysutil.IsTruthy(c.Query("force"))

	row, err := h.resultsSvc.Get(c.Request.Context(), topicID, force)
	if err != nil {
		failService(c, err, ErrCodeResultsFailed)
		return
	}

	etag := fmt.Sprintf(`W/"results:%s:%d:%d"`, topicID, row.LastCalculated.UnixNano(), row.VoteCountAll)
	if notModified(c, etag) {
		return
	}
	ok(c, http.StatusOK, row)
}
