package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/collab-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SnapshotRepository struct {
	db *pgxpool.Pool
}

func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Save(ctx context.Context, s *domain.Snapshot) error {
	query := `
		INSERT INTO course_snapshots (id, course_id, label, data, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	err := r.db.QueryRow(ctx, query, s.ID, s.CourseID, s.Label, s.Data, int64(s.CreatedBy)).
		Scan(&s.CreatedAt)
	if err != nil {
		return err
	}
	return nil
}

func (r *SnapshotRepository) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	var s domain.Snapshot
	query := `
		SELECT id, course_id, label, data, created_by, created_at
		FROM course_snapshots WHERE id=$1`
	err := r.db.QueryRow(ctx, query, id).
		Scan(&s.ID, &s.CourseID, &s.Label, &s.Data, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListByCourse возвращает снапшоты курса с курсорной пагинацией (created_at,id DESC).
// Data в список не включается — для ленты достаточно метаданных.
func (r *SnapshotRepository) ListByCourse(ctx context.Context, courseID, after string, limit int) ([]domain.Snapshot, string, error) {
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}

	const query = `
		SELECT id, course_id, label, created_by, created_at
		FROM course_snapshots
		WHERE course_id = $1
		  AND (
		    $2::timestamptz IS NULL
		    OR created_at < $2
		    OR (created_at = $2 AND id < $3)
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	var createdAt any
	var id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, query, courseID, createdAt, id, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.CourseID, &s.Label, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, "", err
		}
		out = append(out, s)
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}
