package domain

import "time"

// Snapshot — сохранённое состояние контента курса.
// Data хранится как JSONB и не интерпретируется этим сервисом.
type Snapshot struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	Label     string    `db:"label"`
	Data      []byte    `db:"data"`
	CreatedBy UserID    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}
