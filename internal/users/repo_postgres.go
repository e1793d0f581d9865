package users

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/linksnap/internal/errx"
)

// DBTX is the subset of *pgxpool.Pool and pgx.Tx the repository uses.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var userColumns = []string{"id", "email", "username", "password_hash", "created_at"}

// PostgresRepository stores users in the users table. The unique indexes
// on lower(email) and lower(username) reject duplicates.
type PostgresRepository struct {
	db DBTX
	sb sq.StatementBuilderType
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	const op = "users.postgres.Create"

	query, args, err := r.sb.
		Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Email, user.Username, user.PasswordHash, user.CreatedAt).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return User{}, errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&user.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return User{}, errx.E(op, errx.Conflict, ErrUserExists)
		}
		return User{}, errx.E(op, errx.Unavailable, err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getOne(ctx, "users.postgres.GetByID", r.sb.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": id}))
}

// FindByLogin prefers an email match when an identifier matches one user's
// email and another user's username.
func (r *PostgresRepository) FindByLogin(ctx context.Context, identifier string) (User, error) {
	key := lookupKey(identifier)
	return r.getOne(ctx, "users.postgres.FindByLogin", r.sb.
		Select(userColumns...).
		From("users").
		Where(sq.Or{
			sq.Expr("lower(email) = ?", key),
			sq.Expr("lower(username) = ?", key),
		}).
		OrderByClause("lower(email) = ? DESC", key).
		Limit(1))
}

func (r *PostgresRepository) getOne(ctx context.Context, op string, b sq.SelectBuilder) (User, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return User{}, errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	var u User
	err = r.db.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, errx.E(op, errx.NotFound, ErrUserNotFound)
	}
	if err != nil {
		return User{}, errx.E(op, errx.Unavailable, err)
	}
	return u, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	const op = "users.postgres.Count"

	query, args, err := r.sb.Select("COUNT(*)").From("users").ToSql()
	if err != nil {
		return 0, errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	return n, nil
}
