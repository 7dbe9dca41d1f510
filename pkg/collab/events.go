package collab

import "encoding/json"

// Типы событий канала. Дублируют серверные константы:
// SDK не тянет internal-пакеты сервиса.
const (
	EventPresenceList     = "presence:list"
	EventPresenceJoined   = "presence:joined"
	EventPresenceLeft     = "presence:left"
	EventChatMessage      = "chat:message"
	EventSnapshotRestored = "snapshot:restored"
)

// User — участник курса в терминах протокола.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Event — входящее событие канала. Payload остаётся сырым JSON:
// форма зависит от Type, подписчик декодирует сам.
type Event struct {
	Type     string          `json:"type"`
	CourseID string          `json:"course_id,omitempty"`
	Actor    *User           `json:"actor,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	TSUnix   int64           `json:"ts_unix,omitempty"`
}

// DecodePayload разбирает payload события в типизированную структуру.
func (e Event) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, dst)
}

// ChatPayload — payload событий chat:message.
type ChatPayload struct {
	Text string `json:"text"`
}

// PeerPayload — payload событий presence:joined / presence:left.
type PeerPayload struct {
	User User `json:"user"`
}

type presenceListPayload struct {
	Users []User `json:"users"`
}

// исходящее управляющее сообщение
type control struct {
	Type     string `json:"type"`
	CourseID string `json:"course_id,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}
