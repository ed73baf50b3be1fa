package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/foxford/event/internal/agentid"
	"github.com/foxford/event/internal/domain"
)

// AgentIDContextKey is the gin.Context key Auth stores the
// authenticated domain.AgentID under.
const AgentIDContextKey = "agent_id"

// IsTrustedContextKey is the gin.Context key Auth stores the
// trusted-service-account verdict under, spec.md §4.B/§4.D.
const IsTrustedContextKey = "agent_is_trusted"

// ServiceSecretHeader carries a trusted service account's shared
// secret, checked against TrustedAccounts by Auth.
const ServiceSecretHeader = "X-Service-Secret"

var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth verifies a bearer JWT and extracts its "sub" claim as an
// AgentID of the form "label.account_label.audience", the identity
// format every downstream service call is keyed on. When trusted is
// non-nil, it also checks the X-Service-Secret header against the
// account's configured secret and stores the verdict for handlers to
// read via IsTrustedFromContext.
func Auth(jwtSecret string, trusted *TrustedAccounts) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			logrus.WithError(err).Warn("auth: failed to extract bearer token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			c.Abort()
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logrus.WithError(err).Warn("auth: invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			logrus.Error("auth: 'sub' claim missing or not a string")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token is missing a subject claim"})
			c.Abort()
			return
		}

		agent, err := agentid.Parse(sub)
		if err != nil {
			logrus.WithError(err).WithField("sub", sub).Warn("auth: subject claim is not a valid agent id")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token subject is not a valid agent id"})
			c.Abort()
			return
		}

		c.Set(AgentIDContextKey, domain.AgentID(agent))
		isTrusted := trusted.Verify(agent, c.GetHeader(ServiceSecretHeader))
		c.Set(IsTrustedContextKey, isTrusted)
		logrus.WithFields(logrus.Fields{"agent": agent.String(), "trusted": isTrusted}).Debug("auth: request authenticated")
		c.Next()
	}
}

// AgentFromContext returns the AgentID Auth stored on c, if any.
func AgentFromContext(c *gin.Context) (domain.AgentID, bool) {
	v, ok := c.Get(AgentIDContextKey)
	if !ok {
		return domain.AgentID{}, false
	}
	agent, ok := v.(domain.AgentID)
	return agent, ok
}

// IsTrustedFromContext reports whether Auth verified the caller as a
// trusted service account. Defaults to false when Auth never ran.
func IsTrustedFromContext(c *gin.Context) bool {
	v, ok := c.Get(IsTrustedContextKey)
	if !ok {
		return false
	}
	trusted, _ := v.(bool)
	return trusted
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token or claims type")
	}
	return claims, nil
}
