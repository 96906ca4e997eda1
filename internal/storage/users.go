package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
)

// RoleByName returns role with provided name
func (s *Store) RoleByName(ctx context.Context, name string) (Role, error) {
	var (
		id   pgtype.UUID
		role Role
	)
	sql := "select id, name from roles where name = $1"
	err := s.db.QueryRow(ctx, sql, name).Scan(&id, &role.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotExist
		}
		return Role{}, err
	}
	role.ID = fromPgUUID(id)

	return role, nil
}

// EmailExists reports whether a user with provided email is registered
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	sql := "select exists(select 1 from users where email = $1)"
	err := s.db.QueryRow(ctx, sql, email).Scan(&exists)
	return exists, err
}

// CreateUser creates user and returns its id.
func (s *Store) CreateUser(ctx context.Context, u NewUser) (uuid.UUID, error) {
	s.logger.Debugf("Creating user (%s)", u.Email)

	var id pgtype.UUID
	sql := "insert into users (email, password, role_id) values ($1, $2, $3) returning id"
	err := s.db.QueryRow(ctx, sql, u.Email, u.Password, pgUUID(u.RoleID)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return uuid.Nil, ErrUserExists
			case pgerrcode.ForeignKeyViolation:
				return uuid.Nil, ErrRoleNotExist
			}
		}
		return uuid.Nil, err
	}

	s.logger.Debugf("Created user (%s) with id %s", u.Email, fromPgUUID(id))

	return fromPgUUID(id), nil
}

const userColumns = `users.id, users.email, users.password, users.refresh_token, users.is_active,
				  users.role_id, roles.name, users.created_at, users.updated_at`

// UserByEmail returns user with credentials and role name
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	sql := `select ` + userColumns + `
			 from users
			 left join roles
			   on roles.id = users.role_id
			where users.email = $1`
	return scanUser(s.db.QueryRow(ctx, sql, email))
}

// UserByID returns user with credentials and role name
func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (User, error) {
	sql := `select ` + userColumns + `
			 from users
			 left join roles
			   on roles.id = users.role_id
			where users.id = $1`
	return scanUser(s.db.QueryRow(ctx, sql, pgUUID(id)))
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u      User
		id     pgtype.UUID
		roleID pgtype.UUID
		role   pgtype.Text
	)
	err := row.Scan(&id, &u.Email, &u.Password, &u.RefreshToken, &u.IsActive, &roleID, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	u.ID = fromPgUUID(id)
	if roleID.Status == pgtype.Present {
		rid := fromPgUUID(roleID)
		u.RoleID = &rid
	}
	if role.Status == pgtype.Present {
		u.Role = role.String
	}

	return u, nil
}

// AuthorByID returns the id/email projection of a user
func (s *Store) AuthorByID(ctx context.Context, id uuid.UUID) (Author, error) {
	var (
		a   Author
		uid pgtype.UUID
	)
	sql := "select id, email from users where id = $1"
	err := s.db.QueryRow(ctx, sql, pgUUID(id)).Scan(&uid, &a.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Author{}, ErrUserNotExist
		}
		return Author{}, err
	}
	a.ID = fromPgUUID(uid)

	return a, nil
}

// SetRefreshToken stores hashed refresh token of the user, nil hash clears it
func (s *Store) SetRefreshToken(ctx context.Context, id uuid.UUID, hash *string) error {
	sql := "update users set refresh_token = $2, updated_at = now() where id = $1"
	ct, err := s.db.Exec(ctx, sql, pgUUID(id), hash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrUserNotExist
	}

	return nil
}
