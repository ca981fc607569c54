package services

import (
	"context"
	"errors"

	"carmarket/internal/domain"
	"carmarket/internal/repos"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid email or password")

// AuthService is the identity provider: it turns a session id into an Actor.
type AuthService struct {
	Users *repos.UserRepo
}

func (s *AuthService) Login(ctx context.Context, sid, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}

// CurrentActor resolves the session to an Actor. An unknown or anonymous
// session yields the zero Actor, which every guarded operation refuses.
func (s *AuthService) CurrentActor(ctx context.Context, sid string) domain.Actor {
	if sid == "" {
		return domain.Actor{}
	}
	u, err := s.CurrentUser(ctx, sid)
	if err != nil || u == nil {
		return domain.Actor{}
	}
	return u.Actor()
}
