package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/studhelper/studhelper/internal/auth"
	"github.com/studhelper/studhelper/pkg/errors"
	"github.com/studhelper/studhelper/pkg/response"
)

const (
	CtxClaimsKey  = "authClaims"
	CtxSubjectKey = "authSubject"
)

// Auth enforces bearer JWT authentication and requires scope on the token.
func Auth(jwt *iauth.JWTService, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			return
		}

		claims, err := jwt.Validate(strings.TrimSpace(authz[7:]))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		if scope != "" && claims.Scope != scope {
			response.Error(c, errors.ErrPermissionDenied)
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxSubjectKey, claims.Subject)
		c.Next()
	}
}
