package ws

const (
	// client - server
	MsgReveal = "reveal"
	MsgFlag   = "flag"
	MsgPing   = "ping"

	// server - client
	MsgReady  = "ready"
	MsgState  = "state"
	MsgEvents = "events"
	MsgPong   = "pong"
	MsgError  = "error"
)
