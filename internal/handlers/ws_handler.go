package handlers

import (
	"context"
	"log"
	"strconv"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/services"
	sessionws "github.com/sandesh-khatiwada/Sahara-sub000/internal/websocket"
	"github.com/sandesh-khatiwada/Sahara-sub000/pkg/utils"
)

type joinSignaler interface {
	MarkJoined(ctx context.Context, actorID int64, sessionID int64) error
}

type SessionSocketHandler struct {
	service   joinSignaler
	hub       *sessionws.Hub
	jwtSecret string
}

func NewSessionSocketHandler(
	service *services.SessionService,
	hub *sessionws.Hub,
	jwtSecret string,
) *SessionSocketHandler {
	return &SessionSocketHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// WebSocketAuth validates the token handed over as a query parameter, since
// browsers cannot set headers on websocket upgrades.
func (h *SessionSocketHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	claims, err := utils.ValidateToken(c.Query("token"), h.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

// HandleWebSocket connects a participant to their session room. The
// connection itself is the join signal: a successful upgrade marks the
// session joined before the presence loop starts.
func (h *SessionSocketHandler) HandleWebSocket(conn *websocket.Conn) {
	defer conn.Close()

	rawUserID, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil || userID <= 0 {
		_ = conn.WriteJSON(fiber.Map{"error": "Invalid token"})
		return
	}

	sessionID, err := strconv.ParseInt(conn.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		_ = conn.WriteJSON(fiber.Map{"error": "Invalid session id"})
		return
	}

	if err := h.service.MarkJoined(context.Background(), userID, sessionID); err != nil {
		log.Printf("sessionws: join refused for session %d: %v", sessionID, err)
		_ = conn.WriteJSON(fiber.Map{"error": err.Error()})
		return
	}

	client := sessionws.NewClient(h.hub, conn, sessionID, userID)
	h.hub.Register(client)
	go client.WriteLoop()
	client.ReadLoop()
}
