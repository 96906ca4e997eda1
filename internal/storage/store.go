package storage

import (
	"context"
	"errors"

	"message-board/internal/storage/zapadapter"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotExist    = errors.New("user does not exist")
	ErrRoleNotExist    = errors.New("role does not exist")
	ErrTagNotExist     = errors.New("tag does not exist")
	ErrMessageNotExist = errors.New("message does not exist")
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Tx is the set of operations available inside a transaction opened by Store.InTx
type Tx interface {
	TagByName(ctx context.Context, name string) (Tag, error)
	InsertTag(ctx context.Context, name string) (uuid.UUID, error)
	InsertMessage(ctx context.Context, m NewMessage) (CreatedMessage, error)
}

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	opts = append([]Option{LogLevel(cfg.LogLevel)}, opts...)
	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close closes all connections in the pool
func (s *Store) Close() {
	s.db.Close()
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// InTx runs fn inside a single transaction. The transaction is committed if fn returns nil
// and rolled back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	// error handling can be omitted for rollback according docs
	// see https://pkg.go.dev/github.com/jackc/pgx/v4?tab=doc#hdr-Transactions or any source comment on Rollback
	defer tx.Rollback(context.Background())

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

type txStore struct {
	q pgx.Tx
}

func (t *txStore) TagByName(ctx context.Context, name string) (Tag, error) {
	return tagByName(ctx, t.q, name)
}

func (t *txStore) InsertTag(ctx context.Context, name string) (uuid.UUID, error) {
	return insertTag(ctx, t.q, name)
}

func (t *txStore) InsertMessage(ctx context.Context, m NewMessage) (CreatedMessage, error) {
	return insertMessage(ctx, t.q, m)
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: [16]byte(id), Status: pgtype.Present}
}

func fromPgUUID(v pgtype.UUID) uuid.UUID {
	return uuid.UUID(v.Bytes)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
