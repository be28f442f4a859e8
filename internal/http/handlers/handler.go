package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/http/middleware"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/logger"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Rooms *service.RoomService
}

func NewHandler(rooms *service.RoomService) *Handler {
	return &Handler{Rooms: rooms}
}

// getPlayer извлекает игрока из контекста Gin (ставит middleware.Ticket)
func getPlayer(c *gin.Context) (roomID, player string, ok bool) {
	roomID = c.GetString(middleware.CtxRoomID)
	player = c.GetString(middleware.CtxPlayer)
	return roomID, player, roomID != "" && player != ""
}

// writeError maps domain errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrRoomExists),
		errors.Is(err, domain.ErrNameTaken):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidSetting),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrOutOfBounds):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("request failed",
			"path", c.FullPath(), "room_id", c.Param("id"), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
