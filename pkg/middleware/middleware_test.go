package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compress-service/pkg/config"
)

var testJWT = config.JWTConfig{Enabled: true, Secret: "s3cret", Issuer: "compress", AdminRole: "admin"}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "admin": IsAdmin(c)})
	})
	return r
}

func TestRequestContextSetsRequestIDAndUser(t *testing.T) {
	r := newEngine(RequestContextMiddleware())
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "42")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"user":"42"`)
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	token, err := IssueToken(testJWT, "7", "admin", time.Minute)
	require.NoError(t, err)

	r := newEngine(RequestContextMiddleware(), JWTAuthMiddleware(testJWT))
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-User-ID", "spoofed")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"7"`)
	assert.Contains(t, w.Body.String(), `"admin":true`)
}

func TestJWTAuthRejectsMissingAndExpired(t *testing.T) {
	r := newEngine(JWTAuthMiddleware(testJWT))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := IssueToken(testJWT, "7", "", -time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(config.JWTConfig{Secret: "other", Issuer: "compress"}, "7", "", time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(testJWT, token)
	assert.Error(t, err)
}
