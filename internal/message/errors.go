package message

import "message-board/internal/failure"

var (
	ErrUserNotFound     = failure.New(failure.NotFound, "USER_NOT_FOUND")
	ErrMessageNotFound  = failure.New(failure.NotFound, "MESSAGE_NOT_FOUND")
	ErrNotMessageAuthor = failure.New(failure.Forbidden, "NOT_MESSAGE_AUTHOR")
	ErrCreateFailed     = failure.New(failure.Internal, "Could not create message")
	ErrUpdateFailed     = failure.New(failure.Internal, "Internal server error")
)
