package handlers

import (
	"net/http"
	"strconv"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/service"

	"github.com/gin-gonic/gin"
)

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

type cellRequest struct {
	Row *int `json:"row" binding:"required"`
	Col *int `json:"col" binding:"required"`
}

type settingRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// RoomResponse - состояние комнаты для клиента
type RoomResponse struct {
	Room      *domain.Session `json:"room"`
	MinesLeft int             `json:"minesLeft"`
	Version   int64           `json:"version,omitempty"`
}

// ActionResponse - результат действия игрока
type ActionResponse struct {
	Applied   bool            `json:"applied"`
	Events    []domain.Event  `json:"events"`
	Room      *domain.Session `json:"room"`
	Version   int64           `json:"version"`
	MinesLeft int             `json:"minesLeft"`
}

type joinResponse struct {
	Room   *domain.Session `json:"room"`
	Player string          `json:"player"`
	Ticket string          `json:"ticket"`
}

// CreateRoom создаёт комнату, создатель становится хостом
func (h *Handler) CreateRoom(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	out, err := h.Rooms.CreateRoom(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondJoined(c, http.StatusCreated, out)
}

func (h *Handler) JoinRoom(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	out, err := h.Rooms.JoinRoom(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondJoined(c, http.StatusOK, out)
}

func (h *Handler) respondJoined(c *gin.Context, status int, out service.Outcome) {
	ticket, err := service.GenerateTicket(out.Session.ID, out.Actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue ticket"})
		return
	}
	c.JSON(status, joinResponse{Room: out.Session, Player: out.Actor, Ticket: ticket})
}

func (h *Handler) GetRoom(c *gin.Context) {
	snap, err := h.Rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, RoomResponse{
		Room:      snap.Session,
		MinesLeft: snap.Session.MinesLeft(),
		Version:   snap.Version,
	})
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID, player, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	out, err := h.Rooms.LeaveRoom(c.Request.Context(), roomID, player)
	h.respondAction(c, out, err)
}

func (h *Handler) StartGame(c *gin.Context) {
	roomID, player, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	out, err := h.Rooms.StartGame(c.Request.Context(), roomID, player)
	h.respondAction(c, out, err)
}

func (h *Handler) ResetGame(c *gin.Context) {
	roomID, player, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	out, err := h.Rooms.ResetGame(c.Request.Context(), roomID, player)
	h.respondAction(c, out, err)
}

func (h *Handler) ChangeSetting(c *gin.Context) {
	roomID, player, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key and value required"})
		return
	}
	out, err := h.Rooms.ChangeSetting(c.Request.Context(), roomID, player, req.Key, req.Value)
	h.respondAction(c, out, err)
}

func (h *Handler) Reveal(c *gin.Context) {
	roomID, player, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req cellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "row and col required"})
		return
	}
	out, err := h.Rooms.Reveal(c.Request.Context(), roomID, player, *req.Row, *req.Col)
	h.respondAction(c, out, err)
}

func (h *Handler) ToggleFlag(c *gin.Context) {
	roomID, player, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req cellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "row and col required"})
		return
	}
	out, err := h.Rooms.ToggleFlag(c.Request.Context(), roomID, player, *req.Row, *req.Col)
	h.respondAction(c, out, err)
}

func (h *Handler) respondAction(c *gin.Context, out service.Outcome, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	events := out.Events
	if events == nil {
		events = []domain.Event{}
	}
	c.JSON(http.StatusOK, ActionResponse{
		Applied:   out.Applied,
		Events:    events,
		Room:      out.Session,
		Version:   out.Version,
		MinesLeft: out.Session.MinesLeft(),
	})
}

// RoomHistory - завершённые игры комнаты
func (h *Handler) RoomHistory(c *gin.Context) {
	h.history(c, c.Param("id"))
}

// RecentHistory - последние завершённые игры всех комнат
func (h *Handler) RecentHistory(c *gin.Context) {
	h.history(c, "")
}

func (h *Handler) history(c *gin.Context, roomID string) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := h.Rooms.History(c.Request.Context(), roomID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": recs})
}
