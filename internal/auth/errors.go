package auth

import "message-board/internal/failure"

var (
	ErrInvalidCredentials = failure.New(failure.Unauthorized, "INVALID_CREDENTIALS")
	ErrEmailInUse         = failure.New(failure.Conflict, "EMAIL_ALREADY_IN_USE")
	ErrTokenExpired       = failure.New(failure.Unauthorized, "TOKEN_EXPIRED")
	ErrInvalidToken       = failure.New(failure.Unauthorized, "INVALID_TOKEN")
	ErrRoleNotFound       = failure.New(failure.NotFound, "ROLE_NOT_FOUND")
)
