package ws

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 64
)

// Client is one websocket connection of a player. A player may hold
// several connections; ID tells them apart.
type Client struct {
	ID     string
	RoomID string
	Player string
	Conn   *websocket.Conn
	Send   chan []byte

	Hub  *Hub
	Room *Room
	Done chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewClient(roomID, player string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:     uuid.NewString(),
		RoomID: roomID,
		Player: player,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    hub,
		Done:   make(chan struct{}),
	}
}

func (c *Client) Run() {
	go c.writePump()
	c.send(encode(MsgReady, nil))

	room, err := c.Hub.AssignClient(c)
	if err != nil {
		log.Printf("Client.Run: conn=%s player=%s room=%s assign failed: %v", c.ID, c.Player, c.RoomID, err)
		c.send(encode(MsgError, ErrorPayload{Message: err.Error()}))
		c.close()
		return
	}
	c.Room = room
	log.Printf("Client.Run: conn=%s player=%s assigned to room=%s", c.ID, c.Player, room.ID)

	c.readPump()
}

// send queues msg without blocking. A client too slow to drain its buffer
// loses the message; the next state push carries the full session anyway.
func (c *Client) send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		log.Printf("Client.send: conn=%s buffer full, dropping message", c.ID)
		return false
	}
}

// close stops the writer, which closes the connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

//read
func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		close(c.Done)
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Client.readPump: conn=%s read error: %v", c.ID, err)
			}
			return
		}
		c.Room.HandleMessage(c, msg)
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("Client.writePump: conn=%s write error: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

//disconnect
func (c *Client) disconnect() {
	if c.Room != nil {
		c.Room.leave(c)
	}
	c.close()
}
