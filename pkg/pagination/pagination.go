// Package pagination parses and clamps the page/limit query parameters shared
// by every listing endpoint, and builds the paging envelope those endpoints
// return.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a clamped page/limit pair. Offset is precomputed for SQL use.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse reads page and limit from the query string. Missing, malformed, or
// out-of-range values fall back to the defaults; limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Envelope wraps a listing payload with its paging metadata.
func Envelope(items interface{}, total int64, page, limit int) map[string]interface{} {
	return map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	}
}
