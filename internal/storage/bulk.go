package storage

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type messageBulk struct {
	rows []ImportedMessage
	idx  int
}

func copyFromMessages(rows []ImportedMessage) pgx.CopyFromSource {
	return &messageBulk{
		rows: rows,
		idx:  -1,
	}
}

func (mb *messageBulk) Next() bool {
	mb.idx++
	return mb.idx < len(mb.rows)
}

func (mb *messageBulk) Values() ([]interface{}, error) {
	r := mb.rows[mb.idx]
	return []interface{}{r.Content, pgUUID(r.AuthorID), pgUUID(r.TagID), r.CreatedAt, r.CreatedAt}, nil
}

func (mb *messageBulk) Err() error {
	return nil
}

// ImportMessages bulk inserts messages keeping their creation time, returns number of copied rows
func (s *Store) ImportMessages(ctx context.Context, messages []ImportedMessage) (int64, error) {
	s.logger.Debugf("Importing %d messages", len(messages))

	columns := []string{"content", "author_id", "tag_id", "created_at", "updated_at"}
	return s.db.CopyFrom(ctx, pgx.Identifier{"messages"}, columns, copyFromMessages(messages))
}
