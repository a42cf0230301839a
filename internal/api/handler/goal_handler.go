package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goalstake/engine/internal/api/middleware"
	"github.com/goalstake/engine/internal/domain"
	"github.com/goalstake/engine/internal/service"
)

// GoalHandler serves goal creation, proof submission and goal queries.
type GoalHandler struct {
	goalSvc *service.GoalService
	gate    *ModerationGate
}

// NewGoalHandler creates a GoalHandler.
func NewGoalHandler(goalSvc *service.GoalService, gate *ModerationGate) *GoalHandler {
	return &GoalHandler{goalSvc: goalSvc, gate: gate}
}

// Create godoc
// POST /api/goals [JWT]
// Body: {"circle_id":"uuid","title":"Run 5k","deadline":"2026-01-01T00:00:00Z","stake":"10"}
func (h *GoalHandler) Create(c *gin.Context) {
	var body struct {
		CircleID    string    `json:"circle_id"   binding:"required"`
		Title       string    `json:"title"       binding:"required"`
		Description string    `json:"description"`
		Category    string    `json:"category"`
		Deadline    time.Time `json:"deadline"    binding:"required"`
		Stake       *string   `json:"stake"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	circleID, err := uuid.Parse(body.CircleID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_CIRCLE_ID", "invalid circle_id format")
		return
	}
	req := service.CreateGoalRequest{
		CircleID:    circleID,
		Creator:     middleware.GetWallet(c),
		Title:       body.Title,
		Description: body.Description,
		Category:    body.Category,
		Deadline:    body.Deadline,
	}
	if body.Stake != nil {
		stake, err := decimal.NewFromString(*body.Stake)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "stake must be a decimal string")
			return
		}
		req.Stake = &stake
	}
	if merr := h.gate.CheckAll("title", body.Title, "description", body.Description); merr != nil {
		respondModeration(c, merr)
		return
	}

	goal, err := h.goalSvc.Create(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, goal.View())
}

// SubmitProof godoc
// POST /api/goals/:id/proof [JWT]
// Body: {"proof_url":"https://…","proof_description":"Finished in 27 minutes"}
func (h *GoalHandler) SubmitProof(c *gin.Context) {
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}
	var body struct {
		ProofURL         string `json:"proof_url"`
		ProofDescription string `json:"proof_description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if merr := h.gate.Check("proof_description", body.ProofDescription); merr != nil {
		respondModeration(c, merr)
		return
	}

	goal, err := h.goalSvc.SubmitProof(c.Request.Context(), goalID, middleware.GetWallet(c),
		body.ProofURL, body.ProofDescription)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, goal.View())
}

// Get godoc
// GET /api/goals/:id
func (h *GoalHandler) Get(c *gin.Context) {
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}
	detail, err := h.goalSvc.Get(c.Request.Context(), goalID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, detail)
}

// ListByCircle godoc
// GET /api/circles/:id/goals
func (h *GoalHandler) ListByCircle(c *gin.Context) {
	circleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_CIRCLE_ID", "invalid circle id")
		return
	}
	goals, err := h.goalSvc.ListByCircle(c.Request.Context(), circleID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, goals)
}

// ForWallet godoc
// GET /api/wallets/:wallet/goals
func (h *GoalHandler) ForWallet(c *gin.Context) {
	wallet, err := domain.ParseWallet(c.Param("wallet"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	goals, err := h.goalSvc.ForWallet(c.Request.Context(), wallet)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, goals)
}

// goalIDParam parses :id, writing a 400 on failure.
func goalIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_GOAL_ID", "invalid goal id")
		return uuid.Nil, false
	}
	return id, true
}
