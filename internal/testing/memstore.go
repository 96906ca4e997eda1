package testing

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"message-board/internal/storage"

	"github.com/google/uuid"
)

// MemMessage is the stored state of a message in MemStore
type MemMessage struct {
	storage.MessageRef
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// MemStore is an in-memory replacement of storage.Store for service and handler tests.
// It mirrors the database semantics the services depend on: unique emails and tag names,
// soft deletes, inclusive cursor bound and transactional rollback.
type MemStore struct {
	mu       sync.Mutex
	roles    map[string]storage.Role
	users    map[uuid.UUID]storage.User
	tags     map[string]storage.Tag
	messages map[uuid.UUID]MemMessage
	last     time.Time

	// FailInsertMessage, when set, is returned by InsertMessage
	FailInsertMessage error
	// FailUpdateMessage, when set, is returned by UpdateMessage
	FailUpdateMessage error
}

func NewMemStore() *MemStore {
	s := &MemStore{
		roles:    make(map[string]storage.Role),
		users:    make(map[uuid.UUID]storage.User),
		tags:     make(map[string]storage.Tag),
		messages: make(map[uuid.UUID]MemMessage),
	}
	for _, name := range []string{"user", "admin"} {
		s.roles[name] = storage.Role{ID: uuid.New(), Name: name}
	}

	return s
}

// now returns strictly increasing timestamps with microsecond precision, as stored by PostgreSQL
func (s *MemStore) now() time.Time {
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// AddUser registers a user with role "user" and returns it
func (s *MemStore) AddUser(email string) storage.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := s.roles["user"]
	now := s.now()
	u := storage.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "x",
		IsActive:  true,
		RoleID:    &role.ID,
		Role:      role.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = u

	return u
}

// AddMessage stores a live message with explicit creation time, creating its tag when needed
func (s *MemStore) AddMessage(authorID uuid.UUID, tagName, content string, createdAt time.Time) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagID := s.insertTag(tagName)
	id := uuid.New()
	s.messages[id] = MemMessage{
		MessageRef: storage.MessageRef{ID: id, AuthorID: authorID, TagID: tagID},
		Content:    content,
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  createdAt.UTC(),
	}

	return id
}

// Message returns stored state of a message, including soft-deleted ones
func (s *MemStore) Message(id uuid.UUID) (MemMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	return m, ok
}

// MessageCount returns number of stored messages, including soft-deleted ones
func (s *MemStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.messages)
}

// TagNames returns names of all stored tags sorted alphabetically
func (s *MemStore) TagNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tags))
	for name := range s.tags {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (s *MemStore) RoleByName(_ context.Context, name string) (storage.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[name]
	if !ok {
		return storage.Role{}, storage.ErrRoleNotExist
	}
	return r, nil
}

// RemoveRole deletes a role, used to exercise missing default role
func (s *MemStore) RemoveRole(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.roles, name)
}

func (s *MemStore) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.userByEmail(email)
	return ok, nil
}

func (s *MemStore) CreateUser(_ context.Context, nu storage.NewUser) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userByEmail(nu.Email); ok {
		return uuid.Nil, storage.ErrUserExists
	}

	var role *storage.Role
	for _, r := range s.roles {
		if r.ID == nu.RoleID {
			r := r
			role = &r
		}
	}
	if role == nil {
		return uuid.Nil, storage.ErrRoleNotExist
	}

	now := s.now()
	u := storage.User{
		ID:        uuid.New(),
		Email:     nu.Email,
		Password:  nu.Password,
		IsActive:  true,
		RoleID:    &role.ID,
		Role:      role.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = u

	return u.ID, nil
}

func (s *MemStore) userByEmail(email string) (storage.User, bool) {
	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return storage.User{}, false
}

func (s *MemStore) UserByEmail(_ context.Context, email string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.userByEmail(email)
	if !ok {
		return storage.User{}, storage.ErrUserNotExist
	}
	return u, nil
}

func (s *MemStore) UserByID(_ context.Context, id uuid.UUID) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrUserNotExist
	}
	return u, nil
}

func (s *MemStore) AuthorByID(_ context.Context, id uuid.UUID) (storage.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.Author{}, storage.ErrUserNotExist
	}
	return storage.Author{ID: u.ID, Email: u.Email}, nil
}

func (s *MemStore) SetRefreshToken(_ context.Context, id uuid.UUID, hash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotExist
	}
	u.RefreshToken = hash
	u.UpdatedAt = s.now()
	s.users[id] = u

	return nil
}

func (s *MemStore) TagByName(_ context.Context, name string) (storage.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tagByName(name)
}

func (s *MemStore) InsertTag(_ context.Context, name string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertTag(name), nil
}

func (s *MemStore) tagByName(name string) (storage.Tag, error) {
	t, ok := s.tags[name]
	if !ok {
		return storage.Tag{}, storage.ErrTagNotExist
	}
	return t, nil
}

// insertTag returns id of the existing tag with the same name, like "on conflict do nothing"
func (s *MemStore) insertTag(name string) uuid.UUID {
	if t, ok := s.tags[name]; ok {
		return t.ID
	}

	now := s.now()
	t := storage.Tag{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.tags[name] = t

	return t.ID
}

func (s *MemStore) InsertMessage(_ context.Context, m storage.NewMessage) (storage.CreatedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertMessage(m)
}

func (s *MemStore) insertMessage(m storage.NewMessage) (storage.CreatedMessage, error) {
	if s.FailInsertMessage != nil {
		return storage.CreatedMessage{}, s.FailInsertMessage
	}
	if _, ok := s.users[m.AuthorID]; !ok {
		return storage.CreatedMessage{}, storage.ErrUserNotExist
	}
	if !s.tagExists(m.TagID) {
		return storage.CreatedMessage{}, storage.ErrTagNotExist
	}

	now := s.now()
	id := uuid.New()
	s.messages[id] = MemMessage{
		MessageRef: storage.MessageRef{ID: id, AuthorID: m.AuthorID, TagID: m.TagID},
		Content:    m.Content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return storage.CreatedMessage{ID: id, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *MemStore) tagExists(id uuid.UUID) bool {
	for _, t := range s.tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *MemStore) tagByID(id uuid.UUID) storage.Tag {
	for _, t := range s.tags {
		if t.ID == id {
			return t
		}
	}
	return storage.Tag{}
}

func (s *MemStore) MessageRef(_ context.Context, id uuid.UUID) (storage.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.DeletedAt != nil {
		return storage.MessageRef{}, storage.ErrMessageNotExist
	}
	return m.MessageRef, nil
}

func (s *MemStore) UpdateMessage(_ context.Context, id uuid.UUID, patch storage.MessagePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdateMessage != nil {
		return s.FailUpdateMessage
	}
	if patch.Empty() {
		return nil
	}

	m, ok := s.messages[id]
	if !ok || m.DeletedAt != nil {
		return nil
	}
	if patch.Content != nil {
		m.Content = *patch.Content
	}
	if patch.TagID != nil {
		if !s.tagExists(*patch.TagID) {
			return storage.ErrTagNotExist
		}
		m.TagID = *patch.TagID
	}
	m.UpdatedAt = s.now()
	s.messages[id] = m

	return nil
}

func (s *MemStore) SoftDeleteMessage(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok || m.DeletedAt != nil {
		return storage.ErrMessageNotExist
	}
	now := s.now()
	m.DeletedAt = &now
	s.messages[id] = m

	return nil
}

func (s *MemStore) ListMessages(_ context.Context, f storage.MessageFilter) ([]storage.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagNames := make(map[string]struct{}, len(f.TagNames))
	for _, name := range f.TagNames {
		tagNames[name] = struct{}{}
	}
	authors := make(map[uuid.UUID]struct{}, len(f.AuthorIDs))
	for _, id := range f.AuthorIDs {
		authors[id] = struct{}{}
	}

	out := make([]storage.Message, 0)
	for _, m := range s.messages {
		if m.DeletedAt != nil {
			continue
		}
		tag := s.tagByID(m.TagID)
		if _, ok := tagNames[tag.Name]; len(tagNames) > 0 && !ok {
			continue
		}
		if _, ok := authors[m.AuthorID]; len(authors) > 0 && !ok {
			continue
		}
		if f.Before != nil && (m.CreatedAt.After(*f.Before) || f.BeforeStrict && m.CreatedAt.Equal(*f.Before)) {
			continue
		}
		if f.Start != nil && m.CreatedAt.Before(*f.Start) {
			continue
		}
		if f.End != nil && m.CreatedAt.After(*f.End) {
			continue
		}

		author := s.users[m.AuthorID]
		out = append(out, storage.Message{
			ID:        m.ID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
			Author:    storage.Author{ID: author.ID, Email: author.Email},
			Tag:       storage.TagRef{ID: tag.ID, Name: tag.Name},
		})
	}

	// same order as the database: newest first, ties by id descending
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}

	return out, nil
}

// InTx runs fn with exclusive access to the store and restores tags and messages when fn fails
func (s *MemStore) InTx(_ context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := make(map[string]storage.Tag, len(s.tags))
	for k, v := range s.tags {
		tags[k] = v
	}
	messages := make(map[uuid.UUID]MemMessage, len(s.messages))
	for k, v := range s.messages {
		messages[k] = v
	}

	if err := fn(memTx{s: s}); err != nil {
		s.tags = tags
		s.messages = messages
		return err
	}

	return nil
}

// memTx runs on a MemStore already locked by InTx
type memTx struct {
	s *MemStore
}

func (t memTx) TagByName(_ context.Context, name string) (storage.Tag, error) {
	return t.s.tagByName(name)
}

func (t memTx) InsertTag(_ context.Context, name string) (uuid.UUID, error) {
	return t.s.insertTag(name), nil
}

func (t memTx) InsertMessage(_ context.Context, m storage.NewMessage) (storage.CreatedMessage, error) {
	return t.s.insertMessage(m)
}
