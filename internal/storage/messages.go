package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

// InsertMessage creates new message in database and returns its id and timestamps
func (s *Store) InsertMessage(ctx context.Context, m NewMessage) (CreatedMessage, error) {
	return insertMessage(ctx, s.db, m)
}

func insertMessage(ctx context.Context, q querier, m NewMessage) (CreatedMessage, error) {
	var (
		c  CreatedMessage
		id pgtype.UUID
	)
	sql := "insert into messages (content, author_id, tag_id) values ($1, $2, $3) returning id, created_at, updated_at"
	err := q.QueryRow(ctx, sql, m.Content, pgUUID(m.AuthorID), pgUUID(m.TagID)).Scan(&id, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.ForeignKeyViolation:
				switch pgErr.ConstraintName {
				case "messages_author_id_fkey":
					return CreatedMessage{}, ErrUserNotExist
				case "messages_tag_id_fkey":
					return CreatedMessage{}, ErrTagNotExist
				}
			}
		}
		return CreatedMessage{}, err
	}
	c.ID = fromPgUUID(id)

	return c, nil
}

// MessageRef returns id, author and tag of a live (not soft-deleted) message
func (s *Store) MessageRef(ctx context.Context, id uuid.UUID) (MessageRef, error) {
	var mid, author, tag pgtype.UUID
	sql := "select id, author_id, tag_id from messages where id = $1 and deleted_at is null"
	err := s.db.QueryRow(ctx, sql, pgUUID(id)).Scan(&mid, &author, &tag)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageRef{}, ErrMessageNotExist
		}
		return MessageRef{}, err
	}

	return MessageRef{
		ID:       fromPgUUID(mid),
		AuthorID: fromPgUUID(author),
		TagID:    fromPgUUID(tag),
	}, nil
}

// UpdateMessage applies patch to a live message. Soft-deleted rows are left untouched.
func (s *Store) UpdateMessage(ctx context.Context, id uuid.UUID, patch MessagePatch) error {
	if patch.Empty() {
		return nil
	}

	args := []interface{}{pgUUID(id)}
	set := []string{"updated_at = now()"}
	if patch.Content != nil {
		args = append(args, *patch.Content)
		set = append(set, "content = $"+strconv.Itoa(len(args)))
	}
	if patch.TagID != nil {
		args = append(args, pgUUID(*patch.TagID))
		set = append(set, "tag_id = $"+strconv.Itoa(len(args)))
	}

	sql := "update messages set " + strings.Join(set, ", ") + " where id = $1 and deleted_at is null"
	_, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrTagNotExist
		}
		return err
	}

	return nil
}

// SoftDeleteMessage marks message as deleted
func (s *Store) SoftDeleteMessage(ctx context.Context, id uuid.UUID) error {
	sql := "update messages set deleted_at = now() where id = $1 and deleted_at is null"
	ct, err := s.db.Exec(ctx, sql, pgUUID(id))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrMessageNotExist
	}

	return nil
}

// ListMessages returns live messages matching all filter predicates, newest first,
// with author and tag projections joined in
func (s *Store) ListMessages(ctx context.Context, f MessageFilter) ([]Message, error) {
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	where := []string{"messages.deleted_at is null"}
	if len(f.TagNames) > 0 {
		where = append(where, "tags.name = any("+arg(f.TagNames)+"::text[])")
	}
	if len(f.AuthorIDs) > 0 {
		where = append(where, "messages.author_id = any("+arg(uuidStrings(f.AuthorIDs))+"::uuid[])")
	}
	if f.Before != nil {
		op := " <= "
		if f.BeforeStrict {
			op = " < "
		}
		where = append(where, "messages.created_at"+op+arg(*f.Before))
	}
	if f.Start != nil {
		where = append(where, "messages.created_at >= "+arg(*f.Start))
	}
	if f.End != nil {
		where = append(where, "messages.created_at <= "+arg(*f.End))
	}

	sql := `select messages.id,
				   messages.content,
				   messages.created_at,
				   messages.updated_at,
				   users.id,
				   users.email,
				   tags.id,
				   tags.name
			  from messages
			  join users
				on users.id = messages.author_id
			  join tags
				on tags.id = messages.tag_id
			 where ` + strings.Join(where, "\n			   and ") + `
			 order by messages.created_at desc, messages.id desc
			 limit ` + arg(f.Limit)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	messages := make([]Message, 0, f.Limit)
	for rows.Next() {
		var (
			m                  Message
			id, author, tagRef pgtype.UUID
		)
		err = rows.Scan(&id, &m.Content, &m.CreatedAt, &m.UpdatedAt, &author, &m.Author.Email, &tagRef, &m.Tag.Name)
		if err != nil {
			return nil, err
		}
		m.ID = fromPgUUID(id)
		m.Author.ID = fromPgUUID(author)
		m.Tag.ID = fromPgUUID(tagRef)
		messages = append(messages, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return messages, nil
}
