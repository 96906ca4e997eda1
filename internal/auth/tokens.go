package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"
)

// Claims is the payload of both access and refresh tokens, told apart by Type
type Claims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is the authenticated user extracted from a token
type Identity struct {
	UserID uuid.UUID
	Email  string
}

type Tokens struct {
	Access  string
	Refresh string
}

type tokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func (ti tokenIssuer) sign(id Identity, typ string, ttl time.Duration) (string, error) {
	now := ti.now()
	claims := Claims{
		Email: id.Email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

func (ti tokenIssuer) issue(id Identity, cfg Config) (Tokens, error) {
	access, err := ti.sign(id, accessTokenType, cfg.Expiration)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := ti.sign(id, refreshTokenType, cfg.RefreshExpiration)
	if err != nil {
		return Tokens{}, err
	}

	return Tokens{Access: access, Refresh: refresh}, nil
}

// parse verifies signature, expiry and token type. Expired tokens yield ErrTokenExpired, anything else invalid ErrInvalidToken.
func (ti tokenIssuer) parse(token, typ string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrInvalidToken
	}

	if claims.Type != typ {
		return Identity{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: id, Email: claims.Email}, nil
}
