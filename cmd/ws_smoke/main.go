package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/ws"

	"github.com/gorilla/websocket"
)

type joinResponse struct {
	Room struct {
		ID string `json:"id"`
	} `json:"room"`
	Ticket string `json:"ticket"`
}

func main() {
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	host := flag.String("host", "127.0.0.1:"+port, "server address")
	flag.Parse()

	base := "http://" + *host + "/api/v1"
	client := &http.Client{Timeout: 5 * time.Second}

	a := post[joinResponse](client, base+"/rooms", "", map[string]string{"name": "smokeA"})
	roomID := a.Room.ID
	b := post[joinResponse](client, base+"/rooms/"+roomID+"/join", "", map[string]string{"name": "smokeB"})
	log.Printf("room %s created", roomID)

	connA := dial(*host, a.Ticket)
	defer connA.Close()
	connB := dial(*host, b.Ticket)
	defer connB.Close()

	post[map[string]any](client, base+"/rooms/"+roomID+"/start", a.Ticket, nil)

	reveal, _ := json.Marshal(ws.Message{Type: ws.MsgReveal, Payload: json.RawMessage(`{"row":4,"col":4}`)})
	if err := connA.WriteMessage(websocket.TextMessage, reveal); err != nil {
		log.Fatalf("write A: %v", err)
	}

	drain(connA, "A")
	drain(connB, "B")

	log.Println("smoke test finished")
}

func post[T any](client *http.Client, url, ticket string, body any) T {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ticket != "" {
		req.Header.Set("Authorization", "Bearer "+ticket)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Fatalf("post %s: status %d", url, resp.StatusCode)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode %s: %v", url, err)
	}
	return out
}

func dial(host, ticket string) *websocket.Conn {
	url := fmt.Sprintf("ws://%s/ws?ticket=%s", host, ticket)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	return conn
}

// drain prints whatever arrives until the read deadline. A timed out
// connection cannot be read again, so the first error ends it.
func drain(conn *websocket.Conn, name string) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ws.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("%s got undecodable frame: %s", name, raw)
			continue
		}
		log.Printf("%s got %s (%d bytes)", name, msg.Type, len(msg.Payload))
	}
}
