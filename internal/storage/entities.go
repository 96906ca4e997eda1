package storage

import (
	"time"

	"github.com/google/uuid"
)

type Role struct {
	ID   uuid.UUID
	Name string
}

type User struct {
	ID           uuid.UUID
	Email        string
	Password     string
	RefreshToken *string
	IsActive     bool
	RoleID       *uuid.UUID
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type NewUser struct {
	Email    string
	Password string
	RoleID   uuid.UUID
}

// Author is the projection of a user attached to messages
type Author struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type Tag struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TagRef is the projection of a tag attached to messages
type TagRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Message struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    Author    `json:"author"`
	Tag       TagRef    `json:"tag"`
}

// MessageRef holds the fields needed to authorize a write on a live message
type MessageRef struct {
	ID       uuid.UUID
	AuthorID uuid.UUID
	TagID    uuid.UUID
}

type NewMessage struct {
	Content  string
	AuthorID uuid.UUID
	TagID    uuid.UUID
}

type CreatedMessage struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessagePatch lists columns to change, nil fields are left untouched
type MessagePatch struct {
	Content *string
	TagID   *uuid.UUID
}

func (p MessagePatch) Empty() bool {
	return p.Content == nil && p.TagID == nil
}

// MessageFilter is a conjunction of predicates over live messages.
// Zero-valued fields impose no constraint except Limit.
type MessageFilter struct {
	Limit int

	// Before is the upper bound coming from a cursor, inclusive unless BeforeStrict is set
	Before       *time.Time
	BeforeStrict bool
	TagNames     []string
	AuthorIDs    []uuid.UUID
	Start        *time.Time
	End          *time.Time
}

// ImportedMessage is a message row with an explicit creation time, used for bulk loads
type ImportedMessage struct {
	Content   string
	AuthorID  uuid.UUID
	TagID     uuid.UUID
	CreatedAt time.Time
}
