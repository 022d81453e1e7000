package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/campus-borrow-backend/internal/db"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// CreateOnce inserts n unless a notification with the same email, action type
	// and related id already exists. It reports whether a row was inserted.
	CreateOnce(ctx context.Context, n *Notification) (bool, error)
	ListByEmail(ctx context.Context, email string, limit int) ([]*Notification, error)
	UnreadCount(ctx context.Context, email string) (int, error)
	MarkRead(ctx context.Context, email, id string) error
	MarkAllRead(ctx context.Context, email string) (int64, error)
	DeleteAll(ctx context.Context, email string) (int64, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const returning = "RETURNING id, is_read, created_at, updated_at"

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, n *Notification) error {
	query, args, err := psql.Insert("notifications").
		Columns("user_email", "type", "title", "message", "action_type", "related_id").
		Values(n.UserEmail, n.Type, n.Title, n.Message, n.ActionType, n.RelatedID).
		Suffix(returning).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create notification query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return fmt.Errorf("create notification failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) CreateOnce(ctx context.Context, n *Notification) (bool, error) {
	const query = `
		INSERT INTO notifications (user_email, type, title, message, action_type, related_id)
		SELECT $1::varchar, $2::varchar, $3::varchar, $4::text, $5::varchar, $6::uuid
		WHERE NOT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_email = $1 AND action_type = $5 AND related_id = $6
		)
	` + returning

	err := db.Conn(ctx, r.pool).QueryRow(ctx, query,
		n.UserEmail, n.Type, n.Title, n.Message, n.ActionType, n.RelatedID,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt, &n.UpdatedAt)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case db.IsUniqueViolation(err):
		// A concurrent writer inserted the same notification first.
		return false, nil
	default:
		return false, fmt.Errorf("create notification once failed: %w", err)
	}
}

func (r *pgxRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*Notification, error) {
	query, args, err := psql.Select(
		"id", "user_email", "type", "title", "message", "action_type", "related_id",
		"is_read", "read_at", "created_at", "updated_at",
	).
		From("notifications").
		Where(squirrel.Eq{"user_email": email}).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list notifications query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications failed: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var action *string
		if err := rows.Scan(
			&n.ID, &n.UserEmail, &n.Type, &n.Title, &n.Message, &action, &n.RelatedID,
			&n.IsRead, &n.ReadAt, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification failed: %w", err)
		}
		if action != nil {
			n.ActionType = *action
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications failed: %w", err)
	}
	return out, nil
}

func (r *pgxRepository) UnreadCount(ctx context.Context, email string) (int, error) {
	query, args, err := psql.Select("count(*)").
		From("notifications").
		Where(squirrel.Eq{"user_email": email, "is_read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build unread count query failed: %w", err)
	}

	var count int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications failed: %w", err)
	}
	return count, nil
}

func (r *pgxRepository) MarkRead(ctx context.Context, email, id string) error {
	query, args, err := psql.Update("notifications").
		Set("is_read", true).
		Set("read_at", squirrel.Expr("COALESCE(read_at, now())")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "user_email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark read query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark notification read failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) MarkAllRead(ctx context.Context, email string) (int64, error) {
	query, args, err := psql.Update("notifications").
		Set("is_read", true).
		Set("read_at", squirrel.Expr("now()")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"user_email": email, "is_read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build mark all read query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read failed: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgxRepository) DeleteAll(ctx context.Context, email string) (int64, error) {
	query, args, err := psql.Delete("notifications").Where(squirrel.Eq{"user_email": email}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build clear notifications query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear notifications failed: %w", err)
	}
	return ct.RowsAffected(), nil
}
