package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Server upgrades HTTP requests to WebSocket connections attached to a Hub.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewServer(hub *Hub, allowedOrigin string, logger *zap.Logger) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
		logger: logger.Named("ws"),
	}
}

// Handle serves GET /ws
func (s *Server) Handle(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return nil
	}

	conn := NewConn(sendBuffer)
	go s.writePump(ws, conn)
	s.readPump(ws, conn)
	return nil
}

func (s *Server) readPump(ws *websocket.Conn, conn *Conn) {
	defer func() {
		s.hub.Leave(conn)
		close(conn.send)
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.reply(conn, EventError, "malformed frame")
			continue
		}
		switch env.Event {
		case EventAuthenticate:
			var actorID string
			if err := json.Unmarshal(env.Data, &actorID); err != nil || actorID == "" {
				s.reply(conn, EventError, "authenticate requires an actor id")
				continue
			}
			s.hub.Join(actorID, conn)
			s.reply(conn, EventAuthenticated, actorID)
		default:
			s.reply(conn, EventError, "unknown event")
		}
	}
}

func (s *Server) reply(conn *Conn, event string, data interface{}) {
	frame, err := Encode(event, data)
	if err != nil {
		return
	}
	select {
	case conn.send <- frame:
	default:
	}
}

func (s *Server) writePump(ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case frame, ok := <-conn.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
