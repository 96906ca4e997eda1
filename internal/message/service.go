// Package message implements posting, editing, removal and cursor-paginated listing of short messages.
package message

import (
	"context"
	"errors"
	"time"

	"message-board/internal/storage"
	"message-board/internal/storage/zapadapter"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence used by Service, implemented by *storage.Store
type Store interface {
	tagStore
	AuthorByID(ctx context.Context, id uuid.UUID) (storage.Author, error)
	MessageRef(ctx context.Context, id uuid.UUID) (storage.MessageRef, error)
	UpdateMessage(ctx context.Context, id uuid.UUID, patch storage.MessagePatch) error
	SoftDeleteMessage(ctx context.Context, id uuid.UUID) error
	ListMessages(ctx context.Context, f storage.MessageFilter) ([]storage.Message, error)
	InTx(ctx context.Context, fn func(tx storage.Tx) error) error
}

// tagStore is satisfied by both Store and storage.Tx
type tagStore interface {
	TagByName(ctx context.Context, name string) (storage.Tag, error)
	InsertTag(ctx context.Context, name string) (uuid.UUID, error)
}

type Service struct {
	logger *zap.SugaredLogger
	store  Store
}

func NewService(logger *zap.SugaredLogger, store Store) *Service {
	return &Service{
		logger: logger,
		store:  store,
	}
}

// Page is one page of a listing
type Page struct {
	Data []storage.Message `json:"data"`
	Meta PageMeta          `json:"meta"`
}

type PageMeta struct {
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// resolveTag returns the tag with provided name, creating it when it does not exist yet
func resolveTag(ctx context.Context, ts tagStore, name string) (storage.TagRef, error) {
	tag, err := ts.TagByName(ctx, name)
	if err == nil {
		return storage.TagRef{ID: tag.ID, Name: tag.Name}, nil
	}
	if !errors.Is(err, storage.ErrTagNotExist) {
		return storage.TagRef{}, err
	}

	id, err := ts.InsertTag(ctx, name)
	if err != nil {
		return storage.TagRef{}, err
	}

	return storage.TagRef{ID: id, Name: name}, nil
}

// Create posts a message on behalf of authorID. Tag creation and message insert share one transaction.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, in CreateInput) (storage.Message, error) {
	logger := zapadapter.WithRequestID(ctx, s.logger)

	author, err := s.store.AuthorByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return storage.Message{}, ErrUserNotFound
		}
		logger.Errorf("s.store.AuthorByID: %v", err)
		return storage.Message{}, ErrCreateFailed
	}

	var (
		tag     storage.TagRef
		created storage.CreatedMessage
	)
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		tag, err = resolveTag(ctx, tx, in.TagName)
		if err != nil {
			return err
		}

		created, err = tx.InsertMessage(ctx, storage.NewMessage{
			Content:  in.Content,
			AuthorID: author.ID,
			TagID:    tag.ID,
		})
		return err
	})
	if err != nil {
		logger.Errorf("creating message: %v", err)
		return storage.Message{}, ErrCreateFailed
	}

	return storage.Message{
		ID:        created.ID,
		Content:   in.Content,
		CreatedAt: created.CreatedAt,
		UpdatedAt: created.UpdatedAt,
		Author:    author,
		Tag:       tag,
	}, nil
}

// authorize loads the live message and checks that userID wrote it
func (s *Service) authorize(ctx context.Context, userID, id uuid.UUID) (storage.MessageRef, error) {
	ref, err := s.store.MessageRef(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotExist) {
			return storage.MessageRef{}, ErrMessageNotFound
		}
		return storage.MessageRef{}, err
	}
	if ref.AuthorID != userID {
		return storage.MessageRef{}, ErrNotMessageAuthor
	}

	return ref, nil
}

// Update applies a partial change to a message written by userID.
// Tag resolution and the update run as separate statements.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in UpdateInput) error {
	logger := zapadapter.WithRequestID(ctx, s.logger)

	if _, err := s.authorize(ctx, userID, id); err != nil {
		if errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrNotMessageAuthor) {
			return err
		}
		logger.Errorf("s.authorize: %v", err)
		return ErrUpdateFailed
	}

	var patch storage.MessagePatch
	if in.Content != nil && *in.Content != "" {
		patch.Content = in.Content
	}

	if in.TagName != nil && *in.TagName != "" {
		tag, err := resolveTag(ctx, s.store, *in.TagName)
		if err != nil {
			logger.Errorf("resolveTag: %v", err)
			return ErrUpdateFailed
		}
		patch.TagID = &tag.ID
	}

	if patch.Empty() {
		return nil
	}

	if err := s.store.UpdateMessage(ctx, id, patch); err != nil {
		logger.Errorf("s.store.UpdateMessage: %v", err)
		return ErrUpdateFailed
	}

	return nil
}

// Remove soft-deletes a message written by userID
func (s *Service) Remove(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.authorize(ctx, userID, id); err != nil {
		return err
	}

	err := s.store.SoftDeleteMessage(ctx, id)
	if errors.Is(err, storage.ErrMessageNotExist) {
		return ErrMessageNotFound
	}

	return err
}

// List returns a page of live messages, newest first.
// One extra row is fetched: if present it is dropped from the page and its creation time becomes the next cursor.
func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	limit := q.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	filter := storage.MessageFilter{
		Limit:     limit + 1,
		TagNames:  q.TagNames,
		AuthorIDs: q.AuthorIDs,
		Start:     q.StartDate,
		End:       q.EndDate,
	}

	if q.Cursor != "" {
		before, err := DecodeCursor(q.Cursor)
		if err != nil {
			zapadapter.WithRequestID(ctx, s.logger).Warnf("Ignoring malformed cursor %q: %v", q.Cursor, err)
		} else {
			filter.Before = &before
		}
	}

	messages, err := s.store.ListMessages(ctx, filter)
	if err != nil {
		return Page{}, err
	}

	// The whole page and the surplus row share the cursor time, so the next cursor would equal
	// this one. Move past the tied group instead of serving the same page again.
	if filter.Before != nil && len(messages) > limit && messages[limit].CreatedAt.Equal(*filter.Before) {
		zapadapter.WithRequestID(ctx, s.logger).Warnf("More than %d messages created at %s, skipping the rest of them",
			limit, filter.Before.Format(time.RFC3339Nano))

		filter.BeforeStrict = true
		messages, err = s.store.ListMessages(ctx, filter)
		if err != nil {
			return Page{}, err
		}
	}

	page := Page{Data: messages}
	if page.Data == nil {
		page.Data = []storage.Message{}
	}

	if len(page.Data) > limit {
		next := page.Data[limit]
		page.Data = page.Data[:limit]

		cursor := EncodeCursor(next.CreatedAt)
		page.Meta.NextCursor = &cursor
	}
	page.Meta.HasNextPage = page.Meta.NextCursor != nil

	return page, nil
}
