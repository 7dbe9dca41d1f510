package domain

import "time"

type User struct {
	ID          UserID    `db:"id"`
	DisplayName string    `db:"display_name"`
	AvatarURL   *string   `db:"avatar_url"`
	CreatedAt   time.Time `db:"created_at"`
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, DisplayName: u.DisplayName}
}
