package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, inbound string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var seen string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(Header, inbound)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return seen, rec.Header().Get(Header)
}

func TestMiddlewareReusesInboundID(t *testing.T) {
	seen, echoed := run(t, "gateway-abc.123")
	require.Equal(t, "gateway-abc.123", seen)
	require.Equal(t, seen, echoed)
}

func TestMiddlewareReplacesUnsafeID(t *testing.T) {
	for _, inbound := range []string{"", "bad id\r\n", strings.Repeat("a", 200)} {
		seen, echoed := run(t, inbound)
		_, err := uuid.Parse(seen)
		require.NoError(t, err, inbound)
		require.Equal(t, seen, echoed)
	}
}
