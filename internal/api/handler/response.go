package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goalstake/engine/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, count, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"count": count,
			"page":  page,
			"limit": limit,
		},
	})
}

var kindStatus = map[domain.Kind]int{
	domain.KindNotFound:            http.StatusNotFound,
	domain.KindInvalidState:        http.StatusConflict,
	domain.KindPermissionDenied:    http.StatusForbidden,
	domain.KindConstraintViolation: http.StatusUnprocessableEntity,
	domain.KindInsufficientFunds:   http.StatusPaymentRequired,
	domain.KindUnauthenticated:     http.StatusUnauthorized,
	domain.KindUnavailable:         http.StatusServiceUnavailable,
	domain.KindInternal:            http.StatusInternalServerError,
}

// respondDomainError maps err to a status by kind. Internal errors never
// leak their text; rule errors carry their details.
func respondDomainError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := kindStatus[kind]
	_ = c.Error(err)

	body := gin.H{
		"success": false,
		"error":   domain.PublicMessage(err),
		"code":    "ERR_" + strings.ToUpper(string(kind)),
	}
	if d := domain.DetailsOf(err); len(d) > 0 {
		body["details"] = d
	}
	c.AbortWithStatusJSON(status, body)
}

// parsePagination reads ?page=&limit= with limits clamped to 1..200.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return
}
