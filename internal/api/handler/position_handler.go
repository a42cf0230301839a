package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/goalstake/engine/internal/api/middleware"
	"github.com/goalstake/engine/internal/domain"
	"github.com/goalstake/engine/internal/service"
)

// PositionHandler serves takePosition and castVote.
type PositionHandler struct {
	positionSvc *service.PositionService
	voteSvc     *service.VerificationService
	gate        *ModerationGate
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positionSvc *service.PositionService, voteSvc *service.VerificationService, gate *ModerationGate) *PositionHandler {
	return &PositionHandler{positionSvc: positionSvc, voteSvc: voteSvc, gate: gate}
}

// Take godoc
// POST /api/goals/:id/positions [JWT]
// Body: {"side":"YES","amount":"20.00"}
func (h *PositionHandler) Take(c *gin.Context) {
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Side   string `json:"side"   binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a decimal string")
		return
	}

	receipt, err := h.positionSvc.Take(c.Request.Context(), service.TakePositionRequest{
		GoalID: goalID,
		Wallet: middleware.GetWallet(c),
		Side:   domain.Side(body.Side),
		Amount: amount,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, receipt)
}

// Vote godoc
// POST /api/goals/:id/votes [JWT]
// Body: {"approved":true,"comment":"saw the photos"}
func (h *PositionHandler) Vote(c *gin.Context) {
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Approved *bool  `json:"approved" binding:"required"`
		Comment  string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if merr := h.gate.Check("comment", body.Comment); merr != nil {
		respondModeration(c, merr)
		return
	}

	res, err := h.voteSvc.Cast(c.Request.Context(), service.CastVoteRequest{
		GoalID:   goalID,
		Wallet:   middleware.GetWallet(c),
		Approved: *body.Approved,
		Comment:  body.Comment,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, res)
}
