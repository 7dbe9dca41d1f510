package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwrk-planet/collab-service/internal/auth"
	"github.com/cwrk-planet/collab-service/internal/domain"
)

type staticAuth struct{}

func (staticAuth) Authenticate(_ context.Context, token string) (domain.Actor, error) {
	if token == "tok-alice" {
		return domain.Actor{ID: 1, DisplayName: "alice"}, nil
	}
	return domain.Actor{}, auth.ErrInvalidToken
}

func TestAuthMiddleware(t *testing.T) {
	var gotActor domain.Actor
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotActor, _ = ActorFromCtx(r.Context())
	})
	h := AuthMiddleware(staticAuth{})(next)

	cases := []struct {
		name       string
		header     string
		wantStatus int
		wantNext   bool
	}{
		{"no header", "", http.StatusUnauthorized, false},
		{"not bearer", "Basic abc", http.StatusUnauthorized, false},
		{"bad token", "Bearer nope", http.StatusUnauthorized, false},
		{"valid", "Bearer tok-alice", http.StatusOK, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(http.MethodGet, "/courses/1/snapshots", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantStatus)
			}
			if called != tc.wantNext {
				t.Errorf("next called: got %v, want %v", called, tc.wantNext)
			}
		})
	}

	if gotActor.ID != 1 || gotActor.DisplayName != "alice" {
		t.Errorf("actor in context: got %+v, want alice(1)", gotActor)
	}
}
