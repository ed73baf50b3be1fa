package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/foxford/event/internal/middleware"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func runAuth(t *testing.T, authHeader string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	return runAuthTrusted(t, authHeader, nil, "")
}

func runAuthTrusted(t *testing.T, authHeader string, trusted *middleware.TrustedAccounts, serviceSecret string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)

	var reached bool
	r.Use(middleware.Auth(testSecret, trusted))
	r.GET("/", func(c *gin.Context) {
		reached = true
		agent, ok := middleware.AgentFromContext(c)
		if ok {
			c.JSON(http.StatusOK, gin.H{"agent": agent.String(), "trusted": middleware.IsTrustedFromContext(c)})
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if serviceSecret != "" {
		req.Header.Set(middleware.ServiceSecretHeader, serviceSecret)
	}
	r.ServeHTTP(w, req)
	_ = reached
	return w, c
}

func TestAuth_ValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "web.teacher-1.example.org",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	w, _ := runAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "web.teacher-1.example.org")
}

func TestAuth_MissingHeader(t *testing.T) {
	w, _ := runAuth(t, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_MalformedHeader(t *testing.T) {
	w, _ := runAuth(t, "Basic abc123")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_InvalidSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "web.teacher-1.example.org"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	w, _ := runAuth(t, "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_SubjectNotAnAgentID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "not-a-valid-agent-id"})
	w, _ := runAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_MissingSubjectClaim(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	w, _ := runAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_UntrustedByDefault(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "dispatcher.svc.example.org"})
	w, _ := runAuth(t, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trusted":false`)
}

func TestAuth_TrustedServiceAccountWithMatchingSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	require.NoError(t, err)
	trusted, err := middleware.ParseTrustedAccounts("svc.example.org:" + string(hash))
	require.NoError(t, err)

	token := signToken(t, jwt.MapClaims{"sub": "dispatcher.svc.example.org"})
	w, _ := runAuthTrusted(t, "Bearer "+token, trusted, "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trusted":true`)
}

func TestAuth_TrustedServiceAccountWithWrongSecretStaysUntrusted(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.DefaultCost)
	require.NoError(t, err)
	trusted, err := middleware.ParseTrustedAccounts("svc.example.org:" + string(hash))
	require.NoError(t, err)

	token := signToken(t, jwt.MapClaims{"sub": "dispatcher.svc.example.org"})
	w, _ := runAuthTrusted(t, "Bearer "+token, trusted, "wrong")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trusted":false`)
}
