package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/cwrk-planet/collab-service/internal/domain"
)

// Authenticator превращает предъявленный credential в Actor.
// Интерфейс нужен, чтобы ws-сервер тестировался без ключей и базы.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Actor, error)
}

type UserStore interface {
	Get(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// TokenAuthenticator: подпись токена проверяется локально,
// display name добирается из users по sub.
type TokenAuthenticator struct {
	verifier *TokenVerifier
	users    UserStore
}

func NewTokenAuthenticator(verifier *TokenVerifier, users UserStore) *TokenAuthenticator {
	return &TokenAuthenticator{verifier: verifier, users: users}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (domain.Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Actor{}, ErrMissingToken
	}

	claims, err := a.verifier.ParseAndValidate(token)
	if err != nil {
		return domain.Actor{}, err
	}

	uid, err := SubjectAsUserID(claims)
	if err != nil {
		return domain.Actor{}, err
	}

	u, err := a.users.Get(ctx, domain.UserID(uid))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Actor{}, ErrInvalidSubject
		}
		return domain.Actor{}, err
	}

	return u.Actor(), nil
}
