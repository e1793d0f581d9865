package shortener

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
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var linkColumns = []string{
	"short_code", "original_url", "owner_id", "created_at",
	"click_count", "expires_at", "blob_id",
}

// PostgresRepository stores links in the links table. Uniqueness comes
// from the short_code primary key and clicks use an in-place increment.
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

func (r *PostgresRepository) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.postgres.Create"

	var blobID any
	if link.BlobID != "" {
		blobID = link.BlobID
	}

	query, args, err := r.sb.
		Insert("links").
		Columns(linkColumns...).
		Values(link.ShortCode, link.OriginalURL, link.OwnerID, link.CreatedAt,
			link.ClickCount, link.ExpiresAt, blobID).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&link.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Link{}, errx.E(op, errx.Conflict, ErrCodeTaken)
		}
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	return link, nil
}

func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.postgres.GetByCode"

	query, args, err := r.sb.
		Select(linkColumns...).
		From("links").
		Where(sq.Eq{"short_code": code}).
		ToSql()
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	link, err := scanLink(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	if err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	return link, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]Link, error) {
	const op = "shortener.postgres.ListByOwner"

	query, args, err := r.sb.
		Select(linkColumns...).
		From("links").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC", "short_code ASC").
		ToSql()
	if err != nil {
		return nil, errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	defer rows.Close()

	out := []Link{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	return out, nil
}

func (r *PostgresRepository) IncrementClicks(ctx context.Context, code string) error {
	const op = "shortener.postgres.IncrementClicks"

	query, args, err := r.sb.
		Update("links").
		Set("click_count", sq.Expr("click_count + 1")).
		Where(sq.Eq{"short_code": code}).
		ToSql()
	if err != nil {
		return errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, ErrLinkNotFound)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, code, ownerID string) error {
	const op = "shortener.postgres.Delete"

	query, args, err := r.sb.
		Delete("links").
		Where(sq.Eq{"short_code": code, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing deleted: tell a missing code apart from someone else's link.
	query, args, err = r.sb.
		Select("1").
		Prefix("SELECT EXISTS (").
		From("links").
		Where(sq.Eq{"short_code": code}).
		Suffix(")").
		ToSql()
	if err != nil {
		return errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	if exists {
		return errx.E(op, errx.Forbidden, ErrNotOwner)
	}
	return errx.E(op, errx.NotFound, ErrLinkNotFound)
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	const op = "shortener.postgres.Count"

	query, args, err := r.sb.Select("COUNT(*)").From("links").ToSql()
	if err != nil {
		return 0, errx.E(op, errx.Internal, fmt.Errorf("build query: %w", err))
	}

	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	return n, nil
}

func scanLink(row pgx.Row) (Link, error) {
	var (
		link   Link
		blobID *string
	)
	err := row.Scan(
		&link.ShortCode,
		&link.OriginalURL,
		&link.OwnerID,
		&link.CreatedAt,
		&link.ClickCount,
		&link.ExpiresAt,
		&blobID,
	)
	if err != nil {
		return Link{}, err
	}
	if blobID != nil {
		link.BlobID = *blobID
	}
	return link, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
