package ws

import (
	"sync"
	"testing"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

type fakeConn struct {
	actor domain.Actor

	mu   sync.Mutex
	msgs []Message
	open bool
}

func newFakeConn(id int64, name string) *fakeConn {
	return &fakeConn{
		actor: domain.Actor{ID: domain.UserID(id), DisplayName: name},
		open:  true,
	}
}

func (c *fakeConn) Send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Actor() domain.Actor { return c.actor }

func (c *fakeConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

func (c *fakeConn) ofType(t string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Message
	for _, m := range c.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func peerID(t *testing.T, m Message) string {
	t.Helper()
	p, ok := m.Payload.(PeerPayload)
	if !ok {
		t.Fatalf("payload: got %T, want PeerPayload", m.Payload)
	}
	return p.User.ID
}

func TestRegistry_FirstJoinerEmptyPresence(t *testing.T) {
	reg := NewRegistry()
	c1 := newFakeConn(1, "alice")

	presence := reg.Join("course-42", c1)
	if len(presence) != 0 {
		t.Errorf("presence: got %d actors, want 0", len(presence))
	}
}

func TestRegistry_SecondActorJoinNotifiesFirst(t *testing.T) {
	reg := NewRegistry()
	c1 := newFakeConn(1, "alice")
	c2 := newFakeConn(2, "bob")

	reg.Join("course-42", c1)
	presence := reg.Join("course-42", c2)

	if len(presence) != 1 || presence[0].DisplayName != "alice" {
		t.Errorf("bob's presence: got %v, want [alice]", presence)
	}

	joined := c1.ofType(TypePresenceJoined)
	if len(joined) != 1 {
		t.Fatalf("alice got %d presence:joined, want 1", len(joined))
	}
	if id := peerID(t, joined[0]); id != "2" {
		t.Errorf("joined user id: got %q, want %q", id, "2")
	}

	// сам присоединившийся своё же presence:joined не получает
	if got := c2.ofType(TypePresenceJoined); len(got) != 0 {
		t.Errorf("bob got %d presence:joined about himself, want 0", len(got))
	}
}

func TestRegistry_PresenceDedupsActorConnections(t *testing.T) {
	reg := NewRegistry()
	tab1 := newFakeConn(1, "alice")
	tab2 := newFakeConn(1, "alice")
	bob := newFakeConn(2, "bob")

	reg.Join("course-42", tab1)
	reg.Join("course-42", tab2)

	presence := reg.Join("course-42", bob)
	if len(presence) != 1 {
		t.Errorf("presence: got %d actors, want 1 (alice deduped)", len(presence))
	}
}

func TestRegistry_SameActorTwoTabs_SingleEventPair(t *testing.T) {
	reg := NewRegistry()
	bob := newFakeConn(2, "bob")
	reg.Join("course-42", bob)

	tab1 := newFakeConn(1, "alice")
	tab2 := newFakeConn(1, "alice")

	reg.Join("course-42", tab1)
	reg.Join("course-42", tab2)

	if got := bob.ofType(TypePresenceJoined); len(got) != 1 {
		t.Fatalf("bob got %d presence:joined for alice, want 1", len(got))
	}

	// первая вкладка закрылась — alice всё ещё в комнате
	reg.Leave(tab1)
	if got := bob.ofType(TypePresenceLeft); len(got) != 0 {
		t.Fatalf("bob got presence:left while tab2 is still open")
	}

	// последняя вкладка — ровно один presence:left
	reg.Leave(tab2)
	left := bob.ofType(TypePresenceLeft)
	if len(left) != 1 {
		t.Fatalf("bob got %d presence:left, want 1", len(left))
	}
	if id := peerID(t, left[0]); id != "1" {
		t.Errorf("left user id: got %q, want %q", id, "1")
	}
}

func TestRegistry_LeaveIdempotent(t *testing.T) {
	reg := NewRegistry()
	c1 := newFakeConn(1, "alice")
	c2 := newFakeConn(2, "bob")
	reg.Join("course-42", c2)

	// c1 никуда не входил: no-op, без событий
	reg.Leave(c1)
	reg.Leave(c1)

	if len(c2.ofType(TypePresenceLeft)) != 0 {
		t.Errorf("bob got presence:left for a connection that never joined")
	}

	// повторный leave после настоящего тоже no-op
	reg.Join("course-42", c1)
	reg.Leave(c1)
	reg.Leave(c1)
	if got := c2.ofType(TypePresenceLeft); len(got) != 1 {
		t.Errorf("bob got %d presence:left, want exactly 1", len(got))
	}
}

func TestRegistry_JoinSwitchesRoom(t *testing.T) {
	reg := NewRegistry()
	alice := newFakeConn(1, "alice")
	bob := newFakeConn(2, "bob")

	reg.Join("course-1", alice)
	reg.Join("course-1", bob)

	// неявный leave из course-1 при входе в course-2
	reg.Join("course-2", alice)

	if got := bob.ofType(TypePresenceLeft); len(got) != 1 {
		t.Fatalf("bob got %d presence:left after alice switched rooms, want 1", len(got))
	}

	if room, ok := reg.RoomOf(alice); !ok || room != "course-2" {
		t.Errorf("RoomOf(alice): got %q/%v, want course-2", room, ok)
	}

	if p := reg.Presence("course-1", 0); len(p) != 1 {
		t.Errorf("course-1 presence: got %d, want 1 (bob only)", len(p))
	}
}

func TestRegistry_PublishUnknownRoomNoop(t *testing.T) {
	reg := NewRegistry()
	// не должно паниковать и ошибаться
	reg.Publish("never-created", TypeChat, ChatPayload{Text: "hi"})
}

func TestRegistry_PublishDefaultsToSystemActor(t *testing.T) {
	reg := NewRegistry()
	c := newFakeConn(1, "alice")
	reg.Join("course-42", c)

	reg.Publish("course-42", TypeSnapshotRestored, nil)

	got := c.ofType(TypeSnapshotRestored)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Actor == nil || got[0].Actor.ID != domain.SystemActorID {
		t.Errorf("actor: got %v, want system", got[0].Actor)
	}
	if got[0].TSUnix == 0 {
		t.Error("ts_unix: server-assigned timestamp missing")
	}
}

func TestRegistry_PublishExplicitActorWins(t *testing.T) {
	reg := NewRegistry()
	c := newFakeConn(1, "alice")
	reg.Join("course-42", c)

	reg.Publish("course-42", TypeSnapshotRestored, nil,
		WithActor(domain.Actor{ID: 7, DisplayName: "carol"}))

	got := c.ofType(TypeSnapshotRestored)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Actor.ID != "7" || got[0].Actor.DisplayName != "carol" {
		t.Errorf("actor: got %v, want carol(7)", got[0].Actor)
	}
}

func TestRegistry_PublishExcludesSender(t *testing.T) {
	reg := NewRegistry()
	alice := newFakeConn(1, "alice")
	bob := newFakeConn(2, "bob")
	reg.Join("course-42", alice)
	reg.Join("course-42", bob)

	reg.Publish("course-42", TypeChat, ChatPayload{Text: "hi"},
		WithActor(alice.Actor()), ExcludeConn(alice))

	if got := alice.ofType(TypeChat); len(got) != 0 {
		t.Errorf("sender received own echo")
	}
	if got := bob.ofType(TypeChat); len(got) != 1 {
		t.Errorf("bob got %d chat events, want 1", len(got))
	}
}

func TestRegistry_PublishSkipsClosedTransport(t *testing.T) {
	reg := NewRegistry()
	alive := newFakeConn(1, "alice")
	dead := newFakeConn(2, "bob")
	reg.Join("course-42", alive)
	reg.Join("course-42", dead)

	dead.close()
	reg.Publish("course-42", TypeChat, ChatPayload{Text: "hi"})

	if got := dead.ofType(TypeChat); len(got) != 0 {
		t.Errorf("closed transport received %d events, want 0", len(got))
	}
	if got := alive.ofType(TypeChat); len(got) != 1 {
		t.Errorf("open transport got %d events, want 1", len(got))
	}
}
