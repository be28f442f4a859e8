package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	AppVersion  string
	LogLevel    string
	LogJSON     bool
	DatabaseURL string // пусто: история игр отключена
	JWTSecret   string
	TicketTTL   time.Duration

	// Redis: пусто - комнаты хранятся в памяти процесса
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RoomTTL       time.Duration

	AllowedOrigin string

	// Rate limits
	ActionRateLimit  int
	ActionRateWindow int
	APIRateLimit     int
	APIRateWindow    int
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds the config from getenv. Missing optional values fall back
// to defaults; malformed numbers are errors.
func FromEnv(getenv func(string) string) (*Config, error) {
	jwtSecret := getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	port := getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	version := getenv("APP_VERSION")
	if version == "" {
		version = "dev"
	}

	logLevel := getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	redisDB, err := intVar(getenv, "REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	ticketHours, err := intVar(getenv, "TICKET_TTL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	roomHours, err := intVar(getenv, "ROOM_TTL_HOURS", 6)
	if err != nil {
		return nil, err
	}

	actionRateLimit, err := intVar(getenv, "ACTION_RATE_LIMIT", 20) // действий за ->
	if err != nil {
		return nil, err
	}
	actionRateWindow, err := intVar(getenv, "ACTION_RATE_WINDOW", 1) // -> секунд
	if err != nil {
		return nil, err
	}
	apiRateLimit, err := intVar(getenv, "API_RATE_LIMIT", 120)
	if err != nil {
		return nil, err
	}
	apiRateWindow, err := intVar(getenv, "API_RATE_WINDOW_SECONDS", 60)
	if err != nil {
		return nil, err
	}

	return &Config{
		AppPort:          port,
		AppVersion:       version,
		LogLevel:         logLevel,
		LogJSON:          getenv("LOG_JSON") == "true",
		DatabaseURL:      getenv("DATABASE_URL"),
		JWTSecret:        jwtSecret,
		TicketTTL:        time.Duration(ticketHours) * time.Hour,
		RedisAddr:        getenv("REDIS_ADDR"),
		RedisPassword:    getenv("REDIS_PASSWORD"),
		RedisDB:          redisDB,
		RoomTTL:          time.Duration(roomHours) * time.Hour,
		AllowedOrigin:    getenv("ALLOWED_ORIGIN"),
		ActionRateLimit:  actionRateLimit,
		ActionRateWindow: actionRateWindow,
		APIRateLimit:     apiRateLimit,
		APIRateWindow:    apiRateWindow,
	}, nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}
