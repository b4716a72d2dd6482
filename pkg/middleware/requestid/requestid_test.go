package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idRouter(seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		*seen = Value(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestReusesInboundID(t *testing.T) {
	var seen string
	r := idRouter(&seen)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "trace-42.a")

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trace-42.a", seen)
	assert.Equal(t, "trace-42.a", w.Header().Get("X-Request-ID"))
}

func TestGeneratesIDWhenMissing(t *testing.T) {
	var seen string
	r := idRouter(&seen)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestReplacesMalformedInboundID(t *testing.T) {
	cases := map[string]string{
		"header injection": "abc\ndef",
		"oversized":        strings.Repeat("x", 65),
		"bad characters":   "abc;def ghi",
	}
	for name, inbound := range cases {
		t.Run(name, func(t *testing.T) {
			var seen string
			r := idRouter(&seen)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("X-Request-ID", inbound)

			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)
			assert.NotEqual(t, inbound, seen)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err)
		})
	}
}

func TestValueOutsideMiddlewareIsEmpty(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, Value(c))
}
