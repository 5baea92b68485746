package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/moimhub/club-system/chat"
	"github.com/moimhub/club-system/middleware"
	"github.com/moimhub/club-system/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: сверять Origin со списком доверенных доменов перед продом.
		return true
	},
}

type WebSocketHandler struct {
	hub         *chat.Hub
	chatService services.ChatService
	logger      *slog.Logger
}

func NewWebSocketHandler(hub *chat.Hub, chatService services.ChatService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		chatService: chatService,
		logger:      logger,
	}
}

// ServeWs поднимает websocket-соединение чата. Канал выбирается уже по
// соединению командой open, одно соединение держит один открытый канал.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "failed to identify current user")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Int("userID", currentUserID), slog.Any("error", err))
		return
	}

	client := chat.NewClient(conn, h.chatService, h.hub, currentUserID, h.logger)

	go client.WritePump()
	go client.ReadPump()
}
