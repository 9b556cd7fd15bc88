package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeVerifier struct{ valid string }

func (f fakeVerifier) Verify(plain string) bool { return plain != "" && plain == f.valid }

func newProtectedRouter(v TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireToken(v), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequireTokenAcceptsBearerHeader(t *testing.T) {
	r := newProtectedRouter(fakeVerifier{valid: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireTokenAcceptsQueryParam(t *testing.T) {
	r := newProtectedRouter(fakeVerifier{valid: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/protected?token=secret", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireTokenRejectsMissingToken(t *testing.T) {
	r := newProtectedRouter(fakeVerifier{valid: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireTokenRejectsWrongToken(t *testing.T) {
	r := newProtectedRouter(fakeVerifier{valid: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/protected?token=nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireTokenPrefersQueryOverMissingHeader(t *testing.T) {
	r := newProtectedRouter(fakeVerifier{valid: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/protected?token=secret", nil)
	req.Header.Set("Authorization", "Basic garbage")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
