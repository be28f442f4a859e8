package ws

import (
	"encoding/json"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/domain"
)

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client → server
type CellPayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// server → client
type StatePayload struct {
	Room      *domain.Session `json:"room"`
	Version   int64           `json:"version"`
	MinesLeft int             `json:"minesLeft"`
}

type EventsPayload struct {
	Applied bool           `json:"applied"`
	Events  []domain.Event `json:"events"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func encode(msgType string, payload any) []byte {
	msg := Message{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			raw, _ = json.Marshal(ErrorPayload{Message: "encode failed"})
			msg.Type = MsgError
		}
		msg.Payload = raw
	}
	b, _ := json.Marshal(msg)
	return b
}
