package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/collab-service/internal/auth"
	"github.com/cwrk-planet/collab-service/internal/domain"

	"github.com/gorilla/websocket"
)

type Server struct {
	upgrader websocket.Upgrader
	registry *Registry
	auth     auth.Authenticator

	pingEvery time.Duration
}

func NewServer(registry *Registry, authn auth.Authenticator) *Server {
	return &Server{
		registry: registry,
		auth:     authn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws?access_token=...
// Невалидный credential отклоняется до upgrade — объект соединения не создаётся.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("access_token"))
	if token == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}

	actor, err := s.auth.Authenticate(r.Context(), token)
	if err != nil {
		slog.Warn("ws auth failed", "err", err)
		http.Error(w, "invalid access_token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "user", actor.ID, "err", err)
		return
	}

	c := newWsConn(conn, actor)
	slog.Debug("ws connected", "user", actor.ID)

	go s.writeLoop(r.Context(), c)
	s.readLoop(c)

	// Уборка на любом пути закрытия, включая транспортные ошибки:
	// выход из текущей комнаты пересчитывает присутствие.
	s.registry.Leave(c)
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "user", actor.ID, "err", err)
	}
	slog.Debug("ws disconnected", "user", actor.ID)
}

func (s *Server) readLoop(c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleMessage(c, data)
	}
}

// handleMessage разбирает одно входящее управляющее сообщение.
// Битый или неизвестный payload молча отбрасывается: соединение живёт дальше.
func (s *Server) handleMessage(c *wsConn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case TypeJoinCourse:
		courseID := strings.TrimSpace(msg.CourseID)
		if courseID == "" {
			return
		}
		presence := s.registry.Join(courseID, c)
		_ = c.Send(Message{
			Type:     TypePresenceList,
			CourseID: courseID,
			Payload:  PresenceListPayload{Users: actorInfos(presence)},
			TSUnix:   time.Now().Unix(),
		})

	case TypeLeaveCourse:
		s.registry.Leave(c)

	case TypeChatMessage:
		// чат имеет смысл только внутри комнаты
		courseID, ok := s.registry.RoomOf(c)
		if !ok {
			return
		}
		var p ChatPayload
		if decode(msg.Payload, &p) != nil {
			return
		}
		text := strings.TrimSpace(p.Text)
		if text == "" {
			return
		}
		s.registry.Publish(courseID, TypeChat,
			ChatPayload{Text: text},
			WithActor(c.Actor()), ExcludeConn(c))

	default:
		// ignore
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- wsConn ---

type wsConn struct {
	conn   *websocket.Conn
	actor  domain.Actor
	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn, actor domain.Actor) *wsConn {
	return &wsConn{
		conn:   c,
		actor:  actor,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	if !c.Open() {
		return net.ErrClosed
	}
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) Open() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *wsConn) Actor() domain.Actor { return c.actor }
