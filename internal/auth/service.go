// Package auth implements cookie based authentication with short lived access tokens
// and rotating refresh tokens. Only a bcrypt hash of the current refresh token is stored.
package auth

import (
	"context"
	"errors"
	"time"

	"message-board/internal/storage"
	"message-board/internal/storage/zapadapter"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRole is assigned to every signed up user
const DefaultRole = "user"

// Store is the persistence used by Service, implemented by *storage.Store
type Store interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	RoleByName(ctx context.Context, name string) (storage.Role, error)
	CreateUser(ctx context.Context, u storage.NewUser) (uuid.UUID, error)
	UserByEmail(ctx context.Context, email string) (storage.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (storage.User, error)
	SetRefreshToken(ctx context.Context, id uuid.UUID, hash *string) error
}

type Service struct {
	logger *zap.SugaredLogger
	store  Store
	cfg    Config
	tokens tokenIssuer
}

type Option interface {
	apply(*Service)
}

type optionFunc func(s *Service)

func (f optionFunc) apply(s *Service) { f(s) }

// Clock replaces time source used for issuing and verifying tokens
func Clock(now func() time.Time) Option {
	return optionFunc(func(s *Service) {
		s.tokens.now = now
	})
}

func NewService(logger *zap.SugaredLogger, store Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		logger: logger,
		store:  store,
		cfg:    cfg,
		tokens: tokenIssuer{secret: []byte(cfg.SecretKey), now: time.Now},
	}
	for _, opt := range opts {
		opt.apply(s)
	}

	return s
}

// SignUp registers a user with the default role and signs them in
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Tokens, error) {
	exists, err := s.store.EmailExists(ctx, in.Email)
	if err != nil {
		return Tokens{}, err
	}
	if exists {
		return Tokens{}, ErrEmailInUse
	}

	password, err := hash(in.Password, s.cfg.HashCost)
	if err != nil {
		return Tokens{}, err
	}

	role, err := s.store.RoleByName(ctx, DefaultRole)
	if err != nil {
		if errors.Is(err, storage.ErrRoleNotExist) {
			return Tokens{}, ErrRoleNotFound
		}
		return Tokens{}, err
	}

	id, err := s.store.CreateUser(ctx, storage.NewUser{Email: in.Email, Password: password, RoleID: role.ID})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserExists):
			return Tokens{}, ErrEmailInUse
		case errors.Is(err, storage.ErrRoleNotExist):
			return Tokens{}, ErrRoleNotFound
		}
		return Tokens{}, err
	}

	zapadapter.WithRequestID(ctx, s.logger).Infof("Signed up user %s", id)

	return s.rotate(ctx, Identity{UserID: id, Email: in.Email})
}

// SignIn checks credentials and issues a fresh token pair
func (s *Service) SignIn(ctx context.Context, in SignInInput) (Tokens, error) {
	u, err := s.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, err
	}

	if !matches(in.Password, u.Password) {
		return Tokens{}, ErrInvalidCredentials
	}

	return s.rotate(ctx, Identity{UserID: u.ID, Email: u.Email})
}

// Refresh exchanges a valid refresh token for a new pair. The presented token must be the last one issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, ErrInvalidToken
	}

	id, err := s.tokens.parse(refreshToken, refreshTokenType)
	if err != nil {
		return Tokens{}, err
	}

	u, err := s.store.UserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return Tokens{}, ErrInvalidToken
		}
		return Tokens{}, err
	}

	if u.RefreshToken == nil || !tokenMatches(refreshToken, *u.RefreshToken) {
		zapadapter.WithRequestID(ctx, s.logger).Warnf("Refresh token of user %s does not match", u.ID)
		return Tokens{}, ErrInvalidToken
	}

	return s.rotate(ctx, Identity{UserID: u.ID, Email: u.Email})
}

// Logout forgets the stored refresh token so it can not be exchanged anymore
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	err := s.store.SetRefreshToken(ctx, userID, nil)
	if errors.Is(err, storage.ErrUserNotExist) {
		return ErrInvalidToken
	}
	return err
}

// Authenticate verifies an access token
func (s *Service) Authenticate(accessToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, ErrInvalidToken
	}
	return s.tokens.parse(accessToken, accessTokenType)
}

func (s *Service) rotate(ctx context.Context, id Identity) (Tokens, error) {
	tokens, err := s.tokens.issue(id, s.cfg)
	if err != nil {
		return Tokens{}, err
	}

	hashed, err := hashToken(tokens.Refresh, s.cfg.HashCost)
	if err != nil {
		return Tokens{}, err
	}

	if err := s.store.SetRefreshToken(ctx, id.UserID, &hashed); err != nil {
		return Tokens{}, err
	}

	return tokens, nil
}
