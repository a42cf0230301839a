package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/goalstake/engine/internal/api/handler"
	"github.com/goalstake/engine/internal/api/middleware"
	"github.com/goalstake/engine/internal/config"
	"github.com/goalstake/engine/internal/service"
	"github.com/goalstake/engine/internal/ws"
)

// Pinger reports storage health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc         *service.AuthService
	GoalSvc         *service.GoalService
	PositionSvc     *service.PositionService
	VerificationSvc *service.VerificationService
	ClaimSvc        *service.ClaimService
	AccountSvc      *service.AccountService
	Hub             *ws.Hub // optional
	Health          Pinger  // optional
	Logger          *zap.Logger
	Cfg             *config.Config
}

// SetupRouter creates the gin engine with every route and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.AccessLog(logger))
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "storage": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	gate := handler.NewModerationGate(deps.Cfg.Moderation)
	goalH := handler.NewGoalHandler(deps.GoalSvc, gate)
	positionH := handler.NewPositionHandler(deps.PositionSvc, deps.VerificationSvc, gate)
	accountH := handler.NewAccountHandler(deps.ClaimSvc, deps.AccountSvc)

	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)
	writeRL := middleware.RateLimitMiddleware(deps.Cfg.Server.RateLimitRPS, deps.Cfg.Server.RateBurst)

	api := r.Group("/api")
	{
		// ── Public reads ─────────────────────────────────────────────────────
		api.GET("/goals/:id", goalH.Get)
		api.GET("/circles/:id/goals", goalH.ListByCircle)
		api.GET("/wallets/:wallet/goals", goalH.ForWallet)

		// ── Authenticated routes ─────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			goals := authed.Group("/goals")
			goals.Use(writeRL)
			{
				goals.POST("", goalH.Create)
				goals.POST("/:id/positions", positionH.Take)
				goals.POST("/:id/proof", goalH.SubmitProof)
				goals.POST("/:id/votes", positionH.Vote)
				goals.POST("/:id/claim", accountH.Claim)
			}
			authed.GET("/goals/:id/payout", accountH.Preview)

			me := authed.Group("/me")
			{
				me.GET("/balance", accountH.Balance)
				me.GET("/history", accountH.History)
			}

			admin := authed.Group("/admin")
			admin.Use(middleware.RoleMiddleware(service.RoleAdmin))
			{
				admin.GET("/treasury", accountH.Treasury)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware allows any origin outside production; in production only
// the configured origins are echoed back.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
