package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Action — входящая команда от поверхности чата.
type Action struct {
	Type          string     `json:"type"` // open, send, retry, discard, close
	Channel       *ChannelID `json:"channel,omitempty"`
	ProvisionalID string     `json:"provisional_id,omitempty"`
	Content       string     `json:"content,omitempty"`
}

const (
	ActionOpen    = "open"
	ActionSend    = "send"
	ActionRetry   = "retry"
	ActionDiscard = "discard"
	ActionClose   = "close"
)

// Client связывает одно websocket-соединение с его ChannelManager.
type Client struct {
	conn    *websocket.Conn
	manager *ChannelManager
	logger  *slog.Logger
	userID  int
	cancel  context.CancelFunc
}

func NewClient(conn *websocket.Conn, store Store, feed Feed, userID int, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:    conn,
		manager: NewChannelManager(ctx, store, feed, userID),
		logger:  logger,
		userID:  userID,
		cancel:  cancel,
	}
}

// ReadPump читает команды до разрыва соединения. Блокирующие операции
// менеджера (Send, Open) выполняются прямо в цикле чтения: команды одного
// соединения последовательны, это держит FIFO-инвариант отправок.
func (c *Client) ReadPump() {
	defer func() {
		c.manager.Close()
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("chat: unexpected websocket close", slog.Int("userID", c.userID), slog.Any("error", err))
			}
			return
		}

		var action Action
		if err := json.Unmarshal(raw, &action); err != nil {
			c.logger.Warn("chat: malformed action", slog.Int("userID", c.userID), slog.Any("error", err))
			continue
		}
		c.dispatch(action)
	}
}

func (c *Client) dispatch(action Action) {
	switch action.Type {
	case ActionOpen:
		if action.Channel == nil {
			return
		}
		if err := c.manager.Open(*action.Channel); err != nil {
			c.logger.Warn("chat: open channel failed",
				slog.Int("userID", c.userID),
				slog.String("room", action.Channel.Room()),
				slog.Any("error", err))
		}
	case ActionSend:
		if action.ProvisionalID == "" {
			return
		}
		if err := c.manager.Send(action.ProvisionalID, action.Content); err != nil {
			c.logger.Warn("chat: send failed", slog.Int("userID", c.userID), slog.Any("error", err))
		}
	case ActionRetry:
		if err := c.manager.Retry(action.ProvisionalID); err != nil {
			c.logger.Warn("chat: retry failed", slog.Int("userID", c.userID), slog.Any("error", err))
		}
	case ActionDiscard:
		c.manager.Discard(action.ProvisionalID)
	case ActionClose:
		c.manager.CloseChannel()
	}
}

// WritePump шлет фреймы менеджера и пинги. Завершается закрытием Out()
// из ReadPump или ошибкой записи.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.manager.Out():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
