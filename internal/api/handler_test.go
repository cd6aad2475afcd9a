package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-service/internal/cart"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(nil, cart.NewManager(nil, nil), nil, nil, nil, 0)
	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func TestSessionIDMintedAndEchoed(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// A caller without a session gets one minted and returned, so it
	// can be replayed on subsequent requests.
	minted := rec.Header().Get("X-Session-ID")
	require.NotEmpty(t, minted)
	_, err := uuid.Parse(minted)
	assert.NoError(t, err)
}

func TestSessionIDEchoedBack(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-1", rec.Header().Get("X-Session-ID"))
}
