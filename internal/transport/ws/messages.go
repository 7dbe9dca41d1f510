package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

// Управляющие сообщения клиента
const (
	TypeJoinCourse  = "join_course"  // войти в комнату курса
	TypeLeaveCourse = "leave_course" // выйти из текущей комнаты
	TypeChatMessage = "chat_message" // чат в текущую комнату
)

// События сервера
const (
	TypePresenceList     = "presence:list"     // полный снапшот присутствия, один раз на join
	TypePresenceJoined   = "presence:joined"   // первый вход актора в комнату
	TypePresenceLeft     = "presence:left"     // последний выход актора из комнаты
	TypeChat             = "chat:message"      // ретранслированный чат
	TypeSnapshotRestored = "snapshot:restored" // доменное событие от snapshot-service
)

// Message — JSON-конверт в обе стороны, дискриминируется полем type.
type Message struct {
	Type     string     `json:"type"`
	CourseID string     `json:"course_id,omitempty"`
	Actor    *ActorInfo `json:"actor,omitempty"`
	Payload  any        `json:"payload,omitempty"`
	TSUnix   int64      `json:"ts_unix,omitempty"`
}

type ActorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type PresenceListPayload struct {
	Users []ActorInfo `json:"users"`
}

type PeerPayload struct {
	User ActorInfo `json:"user"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

func actorInfo(a domain.Actor) ActorInfo {
	if a.IsSystem() {
		return ActorInfo{ID: domain.SystemActorID, DisplayName: a.DisplayName}
	}
	return ActorInfo{ID: a.ID.String(), DisplayName: a.DisplayName}
}

func actorInfos(actors []domain.Actor) []ActorInfo {
	out := make([]ActorInfo, 0, len(actors))
	for _, a := range actors {
		out = append(out, actorInfo(a))
	}
	return out
}

// decode перегоняет payload из map[string]any в типизированную структуру.
func decode(payload any, dst any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}
