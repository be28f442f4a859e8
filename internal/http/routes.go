package http

import (
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/config"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/http/handlers"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/http/middleware"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/service"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Deps carries everything the router needs. DB and Redis may be nil.
type Deps struct {
	Rooms  *service.RoomService
	Hub    *ws.Hub
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Config *config.Config
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	h := handlers.NewHandler(d.Rooms)
	healthHandler := handlers.NewHealthHandler(d.DB, d.Redis, cfg.AppVersion)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	apiWindow := time.Duration(cfg.APIRateWindow) * time.Second
	apiRL := middleware.SimpleRateLimit(cfg.APIRateLimit, apiWindow)
	if middleware.RedisEnabled() {
		apiRL = middleware.RedisRateLimit(cfg.APIRateLimit, apiWindow)
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Metrics(), apiRL)
	registerAPIRoutes(v1, h, cfg)

	r.GET("/ws", ws.HandleWS(d.Hub, cfg.AllowedOrigin))
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, cfg *config.Config) {
	// Room lifecycle
	api.POST("/rooms", h.CreateRoom)
	api.GET("/rooms/:id", h.GetRoom)
	api.POST("/rooms/:id/join", h.JoinRoom)
	api.POST("/rooms/:id/leave", middleware.Ticket(), h.LeaveRoom)

	// Host controls
	api.POST("/rooms/:id/start", middleware.Ticket(), h.StartGame)
	api.POST("/rooms/:id/reset", middleware.Ticket(), h.ResetGame)
	api.POST("/rooms/:id/settings", middleware.Ticket(), h.ChangeSetting)

	// Board actions, rate limited per player
	actionRL := middleware.ActionRateLimit(cfg.ActionRateLimit, time.Duration(cfg.ActionRateWindow)*time.Second)
	api.POST("/rooms/:id/reveal", middleware.Ticket(), actionRL, h.Reveal)
	api.POST("/rooms/:id/flag", middleware.Ticket(), actionRL, h.ToggleFlag)

	// Finished games
	api.GET("/rooms/:id/history", h.RoomHistory)
	api.GET("/history", h.RecentHistory)
}
