package ws

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/service"
)

const assignAttempts = 3

// Hub fans committed room state out to the websocket clients connected to
// this process. Each room with at least one client holds one store
// subscription.
type Hub struct {
	Rooms map[string]*Room
	mu    sync.RWMutex
	svc   *service.RoomService
}

func NewHub(svc *service.RoomService) *Hub {
	return &Hub{
		Rooms: make(map[string]*Room),
		svc:   svc,
	}
}

// AssignClient registers c with the room named by its ticket.
func (h *Hub) AssignClient(c *Client) (*Room, error) {
	for i := 0; i < assignAttempts; i++ {
		room, err := h.roomFor(c.RoomID)
		if err != nil {
			return nil, err
		}
		select {
		case room.Register <- c:
			return room, nil
		case <-room.done:
			// room shut down between lookup and register
			log.Printf("Hub.AssignClient: room=%s closed while registering conn=%s, retrying", room.ID, c.ID)
		}
	}
	return nil, errors.New("room unavailable")
}

func (h *Hub) roomFor(id string) (*Room, error) {
	h.mu.RLock()
	room, ok := h.Rooms[id]
	h.mu.RUnlock()
	if ok {
		return room, nil
	}

	// subscribing may hit the network, so it runs without the lock
	ctx, cancel := context.WithCancel(context.Background())
	updates, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		cancel()
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.Rooms[id]; ok {
		// another connection won the race
		cancel()
		return room, nil
	}
	room = NewRoom(id, h, updates, cancel)
	h.Rooms[id] = room

	log.Printf("Hub.roomFor: subscribed room=%s, starting Run()", id)
	go room.Run()
	return room, nil
}

func (h *Hub) removeRoom(r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Rooms[r.ID] == r {
		delete(h.Rooms, r.ID)
	}
}

// RoomCount returns the number of rooms with live connections.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Rooms)
}
