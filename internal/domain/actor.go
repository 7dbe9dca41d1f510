package domain

import "strconv"

type UserID int64

// Actor — человек (id + имя), а не соединение.
// Один Actor может держать несколько соединений (две вкладки браузера).
type Actor struct {
	ID          UserID
	DisplayName string
}

// SystemActorID — wire-идентификатор серверных событий без явного автора.
const SystemActorID = "system"

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func SystemActor() Actor {
	return Actor{ID: 0, DisplayName: SystemActorID}
}

func (a Actor) IsSystem() bool {
	return a.ID == 0
}
