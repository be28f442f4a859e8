package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/config"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/db"
	httpServer "github.com/pigmyo7Z7/minesweeper-multiplayer/internal/http"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/http/middleware"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/logger"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/repository"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/service"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitTickets(cfg.JWTSecret, cfg.TicketTTL)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		store repository.SessionStore
		rdb   *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		middleware.InitRedisRateLimiter(rdb)
		store = repository.NewRedisSessionStore(rdb, cfg.RoomTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, rooms are kept in process memory")
		mem := repository.NewMemorySessionStore(cfg.RoomTTL)
		mem.StartCleanup(ctx, 10*time.Minute)
		store = mem
	}

	var (
		dbPool  *pgxpool.Pool
		results service.GameResults
	)
	if cfg.DatabaseURL != "" {
		dbPool = db.Connect(cfg.DatabaseURL)
		defer dbPool.Close()
		results = repository.NewGameResultRepository(dbPool)
	} else {
		logger.Warn("DATABASE_URL not set, game history disabled")
	}

	rooms := service.NewRoomService(store, results)
	hub := ws.NewHub(rooms)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Rooms:  rooms,
		Hub:    hub,
		DB:     dbPool,
		Redis:  rdb,
		Config: cfg,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", cfg.AppVersion)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
