package middleware

import (
	"net/http"
	"strings"

	"github.com/pigmyo7Z7/minesweeper-multiplayer/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	CtxRoomID = "room_id"
	CtxPlayer = "player"
)

// Ticket resolves the player from the bearer ticket. The ticket must belong
// to the room in the :id path parameter.
func Ticket() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "ticket required"})
			return
		}

		ticket, err := service.ParseTicket(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid ticket"})
			return
		}
		if id := c.Param("id"); id != "" && id != ticket.RoomID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "ticket is for another room"})
			return
		}

		c.Set(CtxRoomID, ticket.RoomID)
		c.Set(CtxPlayer, ticket.Player)
		c.Next()
	}
}
