package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/vaultflow/auth"
	apperrors "github.com/kbukum/vaultflow/errors"
)

// ClaimsKey is the gin context key holding the caller's *auth.Claims.
const ClaimsKey = "auth_claims"

// TokenParser validates a bearer token.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Auth returns a Gin middleware that validates Bearer tokens with parser
// and stores the claims under ClaimsKey. A nil parser disables the check.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if parser == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperrors.Unauthorized("authorization header required"))
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, apperrors.Unauthorized("invalid authorization header format"))
			return
		}
		claims, err := parser.Parse(strings.TrimSpace(token))
		if err != nil {
			abort(c, apperrors.Unauthorized("invalid token"))
			return
		}
		c.Set(ClaimsKey, claims)
		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// RequireScope rejects requests whose claims lack scope. Requests that
// passed through a disabled Auth carry no claims and are allowed.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ClaimsKey)
		if !exists {
			c.Next()
			return
		}
		if claims, ok := v.(*auth.Claims); !ok || !claims.HasScope(scope) {
			abort(c, apperrors.Forbidden("token lacks scope "+scope))
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
