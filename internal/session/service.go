// Package session derives the current user from the persisted token
// and owns the only code paths allowed to mutate it.
package session

import (
	"context"
	"errors"
	"fmt"

	"stayfinder/internal/backend"
	"stayfinder/internal/querycache"
	"stayfinder/internal/util"
	"stayfinder/pkg/domain"
)

// Service resolves the current session through the query cache.
type Service struct {
	api    *backend.Client
	cache  *querycache.Cache
	tokens TokenStore
}

// TokenStore is the persisted-token dependency (see tokenstore).
type TokenStore interface {
	Token() (string, bool)
	SetToken(token string) error
	Clear() error
}

func New(api *backend.Client, cache *querycache.Cache, tokens TokenStore) *Service {
	return &Service{api: api, cache: cache, tokens: tokens}
}

// BearerToken exposes the persisted token for other data services.
// They only read it; mutation stays here.
func (s *Service) BearerToken() (string, bool) {
	return s.tokens.Token()
}

// Current returns the session bound to the persisted token, or nil
// when there is none. An absent token never touches the network, and a
// token the backend rejects degrades to "logged out" rather than an
// error so public browsing keeps working.
func (s *Service) Current(ctx context.Context) (*domain.User, error) {
	token, ok := s.tokens.Token()
	if !ok {
		return nil, nil
	}
	user, err := querycache.Lookup(ctx, s.cache, querycache.KeyAuthUser,
		func(ctx context.Context) (*domain.User, error) {
			u, err := s.api.Me(ctx, token)
			if err != nil {
				var apiErr *backend.APIError
				if errors.As(err, &apiErr) {
					util.LoggerFromContext(ctx).Debug("who-am-I rejected, treating as logged out", "status", apiErr.Status)
					return nil, nil
				}
				return nil, err
			}
			if u.ID == "" {
				// Some backends answer 200 with an error body.
				return nil, nil
			}
			return &u, nil
		})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login exchanges credentials for a token, persists it, and
// invalidates the cached session so the next read re-derives it.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	user, token, err := s.api.Login(ctx, email, password)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.tokens.SetToken(token); err != nil {
		return domain.User{}, fmt.Errorf("persist token: %w", err)
	}
	if err := s.cache.Invalidate(ctx, querycache.KeyAuthUser); err != nil {
		return domain.User{}, fmt.Errorf("invalidate session entry: %w", err)
	}
	util.LoggerFromContext(ctx).Info("login", "user_id", user.ID)
	return user, nil
}

// Signup registers an account and establishes the session like Login.
func (s *Service) Signup(ctx context.Context, email, phone, username, password string) (domain.User, error) {
	user, token, err := s.api.Register(ctx, email, phone, username, password)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.tokens.SetToken(token); err != nil {
		return domain.User{}, fmt.Errorf("persist token: %w", err)
	}
	if err := s.cache.Invalidate(ctx, querycache.KeyAuthUser); err != nil {
		return domain.User{}, fmt.Errorf("invalidate session entry: %w", err)
	}
	util.LoggerFromContext(ctx).Info("signup", "user_id", user.ID)
	return user, nil
}

// Logout clears the token and removes the cached session entry, so a
// stale session is never shown before a fresh login. Removal, not
// invalidation: there must be no refetch with a cleared token.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.tokens.Clear(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if err := s.cache.Remove(ctx, querycache.KeyAuthUser); err != nil {
		return fmt.Errorf("remove session entry: %w", err)
	}
	util.LoggerFromContext(ctx).Info("logout")
	return nil
}
