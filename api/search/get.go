package search

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/testimony-api/api/types"
	"github.com/killallgit/testimony-api/internal/services/indexer"
	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

const searchTimeout = 30 * time.Second

// Get handles semantic search requests
// @Summary      Search testimonies
// @Description  Embeds the query and ranks testimonies by similarity of their summary and transcript passages
// @Tags         search
// @Produce      json
// @Param        q       query  string  true   "Search text"
// @Param        limit   query  int     false  "Maximum results (1-50)"
// @Param        origin  query  string  false  "Restrict to one origin"
// @Success      200 {object} types.SearchResponse "Ranked testimonies"
// @Failure      400 {object} types.ErrorResponse "Bad request - invalid parameters"
// @Failure      502 {object} types.ErrorResponse "Embedding provider error"
// @Failure      504 {object} types.ErrorResponse "Gateway timeout - search request timed out"
// @Router       /api/v1/search [get]
func Get(deps *types.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Search == nil {
			types.SendUnavailable(c, "search")
			return
		}

		var q types.SearchQuery
		if err := c.ShouldBindQuery(&q); err != nil || strings.TrimSpace(q.Query) == "" {
			types.SendBadRequest(c, "Search query is required")
			return
		}

		if q.Limit == 0 {
			q.Limit = indexer.DefaultSearchLimit
		}
		if q.Limit < 1 || q.Limit > indexer.MaxSearchLimit {
			types.SendBadRequest(c, "Limit must be between 1 and 50")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
		defer cancel()

		results, err := deps.Search.Search(ctx, q.Query, indexer.SearchOptions{Limit: q.Limit, Origin: q.Origin})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				types.SendError(c, apperrors.TimeoutError("search", searchTimeout.String()))
				return
			}
			types.SendError(c, apperrors.UpstreamError("embeddings", err))
			return
		}
		if results == nil {
			results = []indexer.SearchResult{}
		}

		c.JSON(http.StatusOK, types.SearchResponse{
			BaseResponse: types.BaseResponse{Status: types.StatusOK},
			Query:        q.Query,
			Results:      results,
			Count:        len(results),
		})
	}
}
