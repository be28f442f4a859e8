package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/repository"
	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/service"
)

const actionTimeout = 5 * time.Second

// Room owns the local clients of one room. Only Run touches Clients.
type Room struct {
	ID      string
	Clients map[string]*Client

	Register   chan *Client
	Disconnect chan *Client

	createdAt time.Time
	hub       *Hub
	updates   <-chan repository.Snapshot
	cancel    context.CancelFunc
	last      []byte
	done      chan struct{}
}

func NewRoom(id string, hub *Hub, updates <-chan repository.Snapshot, cancel context.CancelFunc) *Room {
	return &Room{
		ID:         id,
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Disconnect: make(chan *Client),
		createdAt:  time.Now(),
		hub:        hub,
		updates:    updates,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (r *Room) Run() {
	log.Printf("Room.Run: starting room=%s", r.ID)
	defer r.cleanup()

	for {
		select {
		case c := <-r.Register:
			r.handleRegister(c)

		case c := <-r.Disconnect:
			r.handleDisconnect(c)
			if len(r.Clients) == 0 {
				log.Printf("Room.Run: room=%s is empty, exiting after %s", r.ID, time.Since(r.createdAt).Round(time.Second))
				return
			}

		case snap, ok := <-r.updates:
			if !ok {
				log.Printf("Room.Run: room=%s subscription ended, closing clients", r.ID)
				r.broadcast(encode(MsgError, ErrorPayload{Message: "room closed"}))
				for id, c := range r.Clients {
					delete(r.Clients, id)
					c.close()
				}
				return
			}
			r.last = encode(MsgState, StatePayload{
				Room:      snap.Session,
				Version:   snap.Version,
				MinesLeft: snap.Session.MinesLeft(),
			})
			r.broadcast(r.last)
		}
	}
}

func (r *Room) handleRegister(c *Client) {
	r.Clients[c.ID] = c
	log.Printf("Room.handleRegister: room=%s conn=%s player=%s clients=%d", r.ID, c.ID, c.Player, len(r.Clients))
	if r.last != nil {
		c.send(r.last)
	}
}

func (r *Room) handleDisconnect(c *Client) {
	if _, ok := r.Clients[c.ID]; !ok {
		return
	}
	delete(r.Clients, c.ID)
	log.Printf("Room.handleDisconnect: room=%s conn=%s player=%s clients=%d", r.ID, c.ID, c.Player, len(r.Clients))
}

// leave is safe to call after Run has exited.
func (r *Room) leave(c *Client) {
	select {
	case r.Disconnect <- c:
	case <-r.done:
	}
}

func (r *Room) broadcast(msg []byte) {
	for _, c := range r.Clients {
		c.send(msg)
	}
}

func (r *Room) cleanup() {
	r.hub.removeRoom(r)
	r.cancel()
	close(r.done)
}

// HandleMessage runs on the sender's read goroutine. The result of an
// action goes back to the sender as events; everyone gets the new state
// through the subscription.
func (r *Room) HandleMessage(c *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.send(encode(MsgError, ErrorPayload{Message: "invalid message"}))
		return
	}

	switch msg.Type {
	case MsgPing:
		c.send(encode(MsgPong, nil))

	case MsgReveal, MsgFlag:
		var cell CellPayload
		if err := json.Unmarshal(msg.Payload, &cell); err != nil {
			c.send(encode(MsgError, ErrorPayload{Message: "invalid payload"}))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		var (
			out service.Outcome
			err error
		)
		if msg.Type == MsgReveal {
			out, err = r.hub.svc.Reveal(ctx, r.ID, c.Player, cell.Row, cell.Col)
		} else {
			out, err = r.hub.svc.ToggleFlag(ctx, r.ID, c.Player, cell.Row, cell.Col)
		}
		if err != nil {
			log.Printf("Room.HandleMessage: room=%s player=%s %s failed: %v", r.ID, c.Player, msg.Type, err)
			c.send(encode(MsgError, ErrorPayload{Message: err.Error()}))
			return
		}
		c.send(encode(MsgEvents, EventsPayload{Applied: out.Applied, Events: out.Events}))

	default:
		c.send(encode(MsgError, ErrorPayload{Message: "unknown message type: " + msg.Type}))
	}
}
