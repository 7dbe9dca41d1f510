package ws

import (
	"sync"
	"time"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

// Conn — исходящая сторона одного живого соединения.
// Registry хранит только членство, жизненным циклом Conn управляет сервер.
type Conn interface {
	Send(msg Message) error
	Open() bool
	Actor() domain.Actor
}

// Registry владеет членством комнат: course_id -> множество соединений.
// Комната существует только пока в ней есть хотя бы одно соединение.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // courseID -> set of connections
	where map[Conn]string              // conn -> текущая комната
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[Conn]struct{}),
		where: make(map[Conn]string),
		now:   time.Now,
	}
}

// Join добавляет соединение в комнату курса, создавая её при необходимости.
// Если соединение уже состоит в другой комнате — сначала неявный Leave.
// Возвращает список присутствия (без актора самого соединения) для немедленной
// отправки присоединившемуся. presence:joined рассылается только если это
// первое соединение данного актора в комнате.
func (r *Registry) Join(courseID string, c Conn) []domain.Actor {
	actor := c.Actor()

	r.mu.Lock()
	var left *leaveResult
	if prev, ok := r.where[c]; ok && prev != courseID {
		left = r.removeLocked(prev, c)
	}

	rs, ok := r.rooms[courseID]
	if !ok {
		rs = make(map[Conn]struct{})
		r.rooms[courseID] = rs
	}

	// актор уже представлен другим соединением?
	first := !r.actorPresentLocked(courseID, actor.ID)

	rs[c] = struct{}{}
	r.where[c] = courseID

	presence := r.presenceLocked(courseID, actor.ID)

	var joinedRcpt []Conn
	if first {
		joinedRcpt = r.membersLocked(courseID, c)
	}
	r.mu.Unlock()

	if left != nil && left.last {
		r.fanout(left.recipients, r.peerEvent(TypePresenceLeft, left.courseID, left.actor))
	}
	if first {
		r.fanout(joinedRcpt, r.peerEvent(TypePresenceJoined, courseID, actor))
	}

	return presence
}

// Leave убирает соединение из его текущей комнаты. Идемпотентен: соединение
// без комнаты — no-op. presence:left рассылается только когда ушло последнее
// соединение актора.
func (r *Registry) Leave(c Conn) {
	r.mu.Lock()
	courseID, ok := r.where[c]
	if !ok {
		r.mu.Unlock()
		return
	}
	res := r.removeLocked(courseID, c)
	r.mu.Unlock()

	if res != nil && res.last {
		r.fanout(res.recipients, r.peerEvent(TypePresenceLeft, courseID, res.actor))
	}
}

// RoomOf возвращает текущую комнату соединения.
func (r *Registry) RoomOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	courseID, ok := r.where[c]
	return courseID, ok
}

// Presence возвращает различных акторов комнаты, кроме exclude.
// Актор с несколькими соединениями попадает в список один раз.
func (r *Registry) Presence(courseID string, exclude domain.UserID) []domain.Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.presenceLocked(courseID, exclude)
}

// -------- broadcaster --------

// Publisher — контракт для доменных сервисов, которым нужно оповестить
// комнату о внешнем событии (например, восстановлении снапшота).
type Publisher interface {
	Publish(courseID, eventType string, payload any, opts ...PublishOption)
}

type publishOpts struct {
	actor   domain.Actor
	exclude Conn
}

type PublishOption func(*publishOpts)

// WithActor подставляет явного автора события вместо дефолтного "system".
// Явный актор всегда побеждает дефолт, слияния нет.
func WithActor(a domain.Actor) PublishOption {
	return func(o *publishOpts) { o.actor = a }
}

// ExcludeConn исключает отправителя из рассылки.
func ExcludeConn(c Conn) PublishOption {
	return func(o *publishOpts) { o.exclude = c }
}

// Publish рассылает событие всем участникам комнаты. Несуществующая или пустая
// комната — нормальное состояние, не ошибка. Доставка best-effort, at-most-once:
// закрытые соединения пропускаются без ретраев.
func (r *Registry) Publish(courseID, eventType string, payload any, opts ...PublishOption) {
	o := publishOpts{actor: domain.SystemActor()}
	for _, opt := range opts {
		opt(&o)
	}

	ai := actorInfo(o.actor)
	msg := Message{
		Type:     eventType,
		CourseID: courseID,
		Actor:    &ai,
		Payload:  payload,
		TSUnix:   r.now().Unix(),
	}

	r.mu.RLock()
	members := r.membersLocked(courseID, o.exclude)
	r.mu.RUnlock()

	r.fanout(members, msg)
}

// -------- internal --------

type leaveResult struct {
	courseID   string
	actor      domain.Actor
	last       bool
	recipients []Conn
}

// removeLocked убирает c из комнаты. Возвращает nil, если c не был участником.
func (r *Registry) removeLocked(courseID string, c Conn) *leaveResult {
	delete(r.where, c)

	rs, ok := r.rooms[courseID]
	if !ok {
		return nil
	}
	if _, member := rs[c]; !member {
		return nil
	}

	delete(rs, c)
	if len(rs) == 0 {
		delete(r.rooms, courseID) // пустых комнат не держим
	}

	res := &leaveResult{courseID: courseID, actor: c.Actor()}
	if !r.actorPresentLocked(courseID, res.actor.ID) {
		res.last = true
		res.recipients = r.membersLocked(courseID, nil)
	}
	return res
}

func (r *Registry) actorPresentLocked(courseID string, id domain.UserID) bool {
	for m := range r.rooms[courseID] {
		if m.Actor().ID == id {
			return true
		}
	}
	return false
}

func (r *Registry) presenceLocked(courseID string, exclude domain.UserID) []domain.Actor {
	seen := make(map[domain.UserID]struct{})
	out := make([]domain.Actor, 0, len(r.rooms[courseID]))
	for m := range r.rooms[courseID] {
		a := m.Actor()
		if a.ID == exclude {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (r *Registry) membersLocked(courseID string, exclude Conn) []Conn {
	rs := r.rooms[courseID]
	out := make([]Conn, 0, len(rs))
	for m := range rs {
		if m == exclude {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (r *Registry) peerEvent(eventType, courseID string, a domain.Actor) Message {
	ai := actorInfo(a)
	return Message{
		Type:     eventType,
		CourseID: courseID,
		Actor:    &ai,
		Payload:  PeerPayload{User: ai},
		TSUnix:   r.now().Unix(),
	}
}

// fanout доставляет сообщение перечисленным соединениям. Ошибка записи в одно
// соединение не прерывает доставку остальным.
func (r *Registry) fanout(conns []Conn, msg Message) {
	for _, c := range conns {
		if !c.Open() {
			continue
		}
		_ = c.Send(msg) // best-effort
	}
}
