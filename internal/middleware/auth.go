package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/classly/scheduling-engine/internal/models"
	appErrors "github.com/classly/scheduling-engine/pkg/errors"
	"github.com/classly/scheduling-engine/pkg/response"
)

// ContextCallerKey is the gin context key storing validated service claims.
const ContextCallerKey = "caller"

// Auth requires a valid HS256 service token on the route.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := parseServiceToken(parts[1], secret)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextCallerKey, claims)
		c.Next()
	}
}

// RequireRole blocks callers whose token role is not in the allowed set.
// It must run after Auth.
func RequireRole(roles ...models.CallerRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CallerFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "insufficient role"))
		c.Abort()
	}
}

// CallerFromContext returns the validated claims, or nil when absent.
func CallerFromContext(c *gin.Context) *models.ServiceClaims {
	value, ok := c.Get(ContextCallerKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.ServiceClaims)
	if !ok {
		return nil
	}
	return claims
}

func parseServiceToken(tokenString, secret string) (*models.ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(*models.ServiceClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
