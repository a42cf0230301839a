package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/goalstake/engine/internal/api/middleware"
	"github.com/goalstake/engine/internal/domain"
	"github.com/goalstake/engine/internal/service"
)

// AccountHandler serves claims, payout previews, balances and the treasury.
type AccountHandler struct {
	claimSvc   *service.ClaimService
	accountSvc *service.AccountService
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(claimSvc *service.ClaimService, accountSvc *service.AccountService) *AccountHandler {
	return &AccountHandler{claimSvc: claimSvc, accountSvc: accountSvc}
}

// Claim godoc
// POST /api/goals/:id/claim [JWT]
func (h *AccountHandler) Claim(c *gin.Context) {
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}
	receipt, err := h.claimSvc.Claim(c.Request.Context(), goalID, middleware.GetWallet(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, receipt)
}

// Preview godoc
// GET /api/goals/:id/payout [JWT]
func (h *AccountHandler) Preview(c *gin.Context) {
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}
	preview, err := h.claimSvc.Preview(c.Request.Context(), goalID, middleware.GetWallet(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, preview)
}

// Balance godoc
// GET /api/me/balance [JWT]
// A wallet that was never funded reads as zero.
func (h *AccountHandler) Balance(c *gin.Context) {
	wallet := middleware.GetWallet(c)
	bal, err := h.accountSvc.Balance(c.Request.Context(), wallet)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		respondDomainError(c, err)
		return
	}
	if err != nil {
		bal = decimal.Zero
	}
	respondSuccess(c, http.StatusOK, gin.H{"wallet": wallet, "balance": bal.StringFixed(2)})
}

// History godoc
// GET /api/me/history?page=1&limit=50 [JWT]
func (h *AccountHandler) History(c *gin.Context) {
	page, limit := parsePagination(c)
	entries, err := h.accountSvc.History(c.Request.Context(), middleware.GetWallet(c), limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// Treasury godoc
// GET /api/admin/treasury [JWT, admin]
func (h *AccountHandler) Treasury(c *gin.Context) {
	rep, err := h.accountSvc.Treasury(c.Request.Context())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, rep)
}
