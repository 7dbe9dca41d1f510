// Package collab — клиентская сторона канала совместной работы над курсом.
//
// Supervisor даёт UI-коду стабильную абстракцию «подключён, в комнате,
// получаю события» поверх транспорта, который может оборваться в любой момент:
// авто-reconnect с повторным join_course, кэш присутствия, типизированная
// подписка на события.
package collab

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultReconnectDelay = 3 * time.Second

type Handler func(Event)

type Options struct {
	// URL эндпоинта, например ws://localhost:8083/ws
	URL string
	// AccessToken уходит query-параметром при upgrade
	AccessToken string
	// CourseID — комната, в которую supervisor входит после каждого connect
	CourseID string
	// SelfID — собственный id для защитной фильтрации presence
	SelfID string
	// ReconnectDelay — фиксированная задержка перед переподключением (default 3s)
	ReconnectDelay time.Duration
	// Dialer — переопределяется в тестах
	Dialer *websocket.Dialer
}

type Supervisor struct {
	opts Options

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	reconnect *time.Timer
	presence  map[string]User
	handlers  map[string]map[int]Handler
	nextID    int
}

func New(opts Options) *Supervisor {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}

	return &Supervisor{
		opts:     opts,
		presence: make(map[string]User),
		handlers: make(map[string]map[int]Handler),
	}
}

// Connect открывает транспорт и сразу отправляет join_course.
// При неудаче планирует переподключение — ошибка наружу не отдаётся,
// supervisor сам доберётся до сервера, когда тот оживёт.
func (s *Supervisor) Connect() {
	s.mu.Lock()
	if s.closed || s.conn != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	endpoint := s.opts.URL + "?access_token=" + url.QueryEscape(s.opts.AccessToken)
	conn, _, err := s.opts.Dialer.Dial(endpoint, nil)
	if err != nil {
		slog.Debug("collab dial failed", "err", err)
		s.scheduleReconnect()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	_ = conn.WriteJSON(control{Type: "join_course", CourseID: s.opts.CourseID})

	go s.readLoop(conn)
}

// Connected сообщает, открыт ли транспорт в данный момент.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Presence возвращает снимок кэша присутствия.
func (s *Supervisor) Presence() []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]User, 0, len(s.presence))
	for _, u := range s.presence {
		out = append(out, u)
	}
	return out
}

// On регистрирует обработчик событий типа eventType и возвращает функцию
// отписки. Обработчиков на тип может быть несколько; регистрация и отписка
// безопасны в том числе изнутри другого обработчика.
func (s *Supervisor) On(eventType string, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	hs, ok := s.handlers[eventType]
	if !ok {
		hs = make(map[int]Handler)
		s.handlers[eventType] = hs
	}
	s.nextID++
	id := s.nextID
	hs[id] = h

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if hs, ok := s.handlers[eventType]; ok {
			delete(hs, id)
			if len(hs) == 0 {
				delete(s.handlers, eventType)
			}
		}
	}
}

// SendChat отправляет chat_message с обрезанным текстом.
// Пустой текст или закрытый транспорт — молчаливый no-op.
func (s *Supervisor) SendChat(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	conn := s.conn
	connected := s.connected
	s.mu.Unlock()

	if !connected || conn == nil {
		return
	}
	_ = conn.WriteJSON(control{Type: "chat_message", Payload: ChatPayload{Text: text}})
}

// Close навсегда останавливает supervisor: отменяет отложенный reconnect
// и закрывает транспорт, не планируя нового подключения.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.connected = false
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	conn := s.conn
	s.conn = nil
	s.presence = make(map[string]User)
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// -------- internal --------

func (s *Supervisor) readLoop(conn *websocket.Conn) {
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		s.handleEvent(ev)
	}
	s.handleClose(conn)
}

func (s *Supervisor) handleEvent(ev Event) {
	switch ev.Type {
	case EventPresenceList:
		// полная замена кэша; свой id отфильтровываем на всякий случай,
		// даже если сервер уже исключил его
		var p presenceListPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		s.mu.Lock()
		s.presence = make(map[string]User, len(p.Users))
		for _, u := range p.Users {
			if u.ID == s.opts.SelfID {
				continue
			}
			s.presence[u.ID] = u
		}
		s.mu.Unlock()

	case EventPresenceJoined, EventPresenceLeft:
		var p PeerPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		s.mu.Lock()
		if ev.Type == EventPresenceJoined {
			if p.User.ID != s.opts.SelfID {
				s.presence[p.User.ID] = p.User
			}
		} else {
			delete(s.presence, p.User.ID)
		}
		s.mu.Unlock()
	}

	s.dispatch(ev)
}

// dispatch вызывает обработчики по снимку множества: обработчик может
// отписаться или подписать нового изнутри вызова, не ломая итерацию.
func (s *Supervisor) dispatch(ev Event) {
	s.mu.Lock()
	hs := s.handlers[ev.Type]
	snapshot := make([]Handler, 0, len(hs))
	for _, h := range hs {
		snapshot = append(snapshot, h)
	}
	s.mu.Unlock()

	for _, h := range snapshot {
		h(ev)
	}
}

// handleClose срабатывает на любом обрыве транспорта, плановом или нет.
func (s *Supervisor) handleClose(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		// обрыв устаревшего соединения после переподключения
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.connected = false
	s.presence = make(map[string]User)
	closed := s.closed
	s.mu.Unlock()

	_ = conn.Close()
	if !closed {
		s.scheduleReconnect()
	}
}

// scheduleReconnect держит не больше одного отложенного таймера:
// предыдущий отменяется и заменяется, а не копится.
func (s *Supervisor) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.reconnect != nil {
		s.reconnect.Stop()
	}
	s.reconnect = time.AfterFunc(s.opts.ReconnectDelay, func() {
		s.mu.Lock()
		s.reconnect = nil
		s.mu.Unlock()
		s.Connect()
	})
}
