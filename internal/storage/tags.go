package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

// TagByName returns tag with exactly matching (case-sensitive) name
func (s *Store) TagByName(ctx context.Context, name string) (Tag, error) {
	return tagByName(ctx, s.db, name)
}

// InsertTag creates tag with provided name and returns its id.
// If a tag with the same name already exists (e.g. created by a concurrent request)
// the id of the existing row is returned instead.
func (s *Store) InsertTag(ctx context.Context, name string) (uuid.UUID, error) {
	return insertTag(ctx, s.db, name)
}

func tagByName(ctx context.Context, q querier, name string) (Tag, error) {
	var (
		t  Tag
		id pgtype.UUID
	)
	sql := "select id, name, created_at, updated_at from tags where name = $1"
	err := q.QueryRow(ctx, sql, name).Scan(&id, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tag{}, ErrTagNotExist
		}
		return Tag{}, err
	}
	t.ID = fromPgUUID(id)

	return t, nil
}

func insertTag(ctx context.Context, q querier, name string) (uuid.UUID, error) {
	var id pgtype.UUID
	// "on conflict do nothing" waits for a concurrent insert of the same name to finish
	// instead of failing on tags_name_key and aborting the surrounding transaction
	sql := "insert into tags (name) values ($1) on conflict (name) do nothing returning id"
	err := q.QueryRow(ctx, sql, name).Scan(&id)
	if err == nil {
		return fromPgUUID(id), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	t, err := tagByName(ctx, q, name)
	if err != nil {
		return uuid.Nil, err
	}

	return t.ID, nil
}
