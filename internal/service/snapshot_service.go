package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/postgres"
	"github.com/cwrk-planet/collab-service/internal/transport/ws"

	"github.com/google/uuid"
)

// Payload событий snapshot:restored
type SnapshotEventPayload struct {
	SnapshotID string `json:"snapshot_id"`
	Label      string `json:"label"`
}

type SnapshotService struct {
	snaps *postgres.SnapshotRepository
	pub   ws.Publisher
}

func NewSnapshotService(snaps *postgres.SnapshotRepository, pub ws.Publisher) *SnapshotService {
	return &SnapshotService{snaps: snaps, pub: pub}
}

// Create сохраняет снапшот контента курса. Data должна быть валидным JSON.
func (s *SnapshotService) Create(ctx context.Context, courseID, label string, data []byte, by domain.Actor) (*domain.Snapshot, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, domain.ErrEmptyLabel
	}
	if len(data) == 0 || !json.Valid(data) {
		return nil, domain.ErrEmptySnapshot
	}

	snap := &domain.Snapshot{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Label:     label,
		Data:      data,
		CreatedBy: by.ID,
	}
	if err := s.snaps.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("snapshotRepo.Save: %w", err)
	}

	return snap, nil
}

// Restore отдаёт данные снапшота и оповещает комнату курса.
// Само восстановление контента делает CRUD-приложение; здесь только
// snapshot:restored через Broadcaster с актором инициатора.
func (s *SnapshotService) Restore(ctx context.Context, courseID, snapshotID string, by domain.Actor) (*domain.Snapshot, error) {
	snap, err := s.snaps.Get(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if snap.CourseID != courseID {
		return nil, domain.ErrSnapshotNotFound
	}

	s.pub.Publish(courseID, ws.TypeSnapshotRestored,
		SnapshotEventPayload{SnapshotID: snap.ID, Label: snap.Label},
		ws.WithActor(by))

	return snap, nil
}

// List возвращает метаданные снапшотов курса с курсорной пагинацией.
func (s *SnapshotService) List(ctx context.Context, courseID, after string, limit int) ([]domain.Snapshot, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	return s.snaps.ListByCourse(ctx, courseID, after, limit)
}
