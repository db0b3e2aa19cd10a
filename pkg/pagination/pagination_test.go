package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(t *testing.T, query string) Params {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	t.Run("defaults when nothing is given", func(t *testing.T) {
		p := parseQuery(t, "")
		assert.Equal(t, DefaultPage, p.Page)
		assert.Equal(t, DefaultLimit, p.Limit)
		assert.Equal(t, 0, p.Offset)
	})

	t.Run("computes the offset", func(t *testing.T) {
		p := parseQuery(t, "page=3&limit=10")
		assert.Equal(t, 3, p.Page)
		assert.Equal(t, 10, p.Limit)
		assert.Equal(t, 20, p.Offset)
	})

	t.Run("clamps out-of-range values", func(t *testing.T) {
		p := parseQuery(t, "page=-1&limit=0")
		assert.Equal(t, DefaultPage, p.Page)
		assert.Equal(t, DefaultLimit, p.Limit)

		p = parseQuery(t, "limit=5000")
		assert.Equal(t, MaxLimit, p.Limit)
	})

	t.Run("falls back on malformed values", func(t *testing.T) {
		p := parseQuery(t, "page=abc&limit=xyz")
		assert.Equal(t, DefaultPage, p.Page)
		assert.Equal(t, DefaultLimit, p.Limit)
	})
}

func TestEnvelope(t *testing.T) {
	env := Envelope([]string{"a", "b"}, 42, 2, 20)
	assert.Equal(t, []string{"a", "b"}, env["items"])
	assert.Equal(t, int64(42), env["total"])
	assert.Equal(t, 2, env["page"])
	assert.Equal(t, 20, env["limit"])
}
