package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goalstake/engine/internal/domain"
	"github.com/goalstake/engine/internal/service"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxWallet = "wallet"
	CtxRole   = "role"
)

// ──────────────────────────────────────────────────────────────────────────────
// JWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// JWTMiddleware validates the Bearer token in the Authorization header.
// On success it stores the wallet (domain.WalletID) and role in the context.
func JWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			abort(c, http.StatusUnauthorized, "ERR_UNAUTHENTICATED", domain.ErrUnauthorized)
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abort(c, http.StatusUnauthorized, "ERR_UNAUTHENTICATED", err)
			return
		}
		wallet, _ := claims.Wallet()

		c.Set(CtxWallet, wallet)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RoleMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// RoleMiddleware ensures the authenticated caller has one of the allowed roles.
// Must be placed after JWTMiddleware in the chain.
func RoleMiddleware(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			abort(c, http.StatusForbidden, "ERR_PERMISSION_DENIED", domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, code string, err error) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

// GetWallet retrieves the authenticated wallet. Empty when the middleware
// was not applied.
func GetWallet(c *gin.Context) domain.WalletID {
	v, _ := c.Get(CtxWallet)
	w, _ := v.(domain.WalletID)
	return w
}

// GetRole retrieves the authenticated caller's role.
func GetRole(c *gin.Context) string {
	v, _ := c.Get(CtxRole)
	r, _ := v.(string)
	return r
}
