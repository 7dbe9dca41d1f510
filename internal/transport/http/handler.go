package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/postgres"
	"github.com/cwrk-planet/collab-service/internal/service"
	httpmw "github.com/cwrk-planet/collab-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	snapSvc *service.SnapshotService
}

func NewHandler(snap *service.SnapshotService) *Handler {
	return &Handler{snapSvc: snap}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateSnapshotRequest struct {
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data"`
}

type SnapshotItem struct {
	ID        string          `json:"id"`
	CourseID  string          `json:"course_id"`
	Label     string          `json:"label"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type SnapshotListResponse struct {
	Items      []SnapshotItem `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func snapshotItem(s *domain.Snapshot, withData bool) SnapshotItem {
	item := SnapshotItem{
		ID:        s.ID,
		CourseID:  s.CourseID,
		Label:     s.Label,
		CreatedBy: s.CreatedBy.String(),
		CreatedAt: s.CreatedAt,
	}
	if withData {
		item.Data = s.Data
	}
	return item
}

// POST /courses/{id}/snapshots
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")
	actor, _ := httpmw.ActorFromCtx(r.Context())

	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	snap, err := h.snapSvc.Create(r.Context(), courseID, req.Label, req.Data, actor)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyLabel) || errors.Is(err, domain.ErrEmptySnapshot) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		slog.Error("handler.CreateSnapshot:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, snapshotItem(snap, false))
}

// GET /courses/{id}/snapshots?limit=&cursor=
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	snaps, next, err := h.snapSvc.List(r.Context(), courseID, cursor, limit)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.ListSnapshots:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := SnapshotListResponse{Items: make([]SnapshotItem, 0, len(snaps)), NextCursor: next}
	for i := range snaps {
		resp.Items = append(resp.Items, snapshotItem(&snaps[i], false))
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /courses/{id}/snapshots/{snapshotID}/restore
func (h *Handler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")
	snapshotID := chi.URLParam(r, "snapshotID")
	actor, _ := httpmw.ActorFromCtx(r.Context())

	snap, err := h.snapSvc.Restore(r.Context(), courseID, snapshotID, actor)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "snapshot not found"})
			return
		}
		slog.Error("handler.RestoreSnapshot:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, snapshotItem(snap, true))
}
