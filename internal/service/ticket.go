package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Ticket identifies a player inside one room. It is handed out on create
// and join and presented with every action.
type Ticket struct {
	RoomID string `json:"room_id"`
	Player string `json:"player"`
}

var (
	ticketSecret []byte
	ticketTTL    = 24 * time.Hour
)

var ErrInvalidTicket = errors.New("invalid ticket")

func InitTickets(secret string, ttl time.Duration) {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	ticketSecret = []byte(secret)
	if ttl > 0 {
		ticketTTL = ttl
	}
}

func GenerateTicket(roomID, player string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"room_id": roomID,
		"player":  player,
		"exp":     now.Add(ticketTTL).Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ticketSecret)
}

func ParseTicket(tokenString string) (Ticket, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return ticketSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Ticket{}, ErrInvalidTicket
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Ticket{}, ErrInvalidTicket
	}
	roomID, _ := claims["room_id"].(string)
	player, _ := claims["player"].(string)
	if roomID == "" || player == "" {
		return Ticket{}, ErrInvalidTicket
	}

	return Ticket{RoomID: roomID, Player: player}, nil
}
