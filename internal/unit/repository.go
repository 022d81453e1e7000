package unit

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/campus-borrow-backend/internal/db"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
)

type Repository interface {
	// InsertBatch inserts one available unit per code. Codes that already exist are
	// skipped; only the inserted units are returned.
	InsertBatch(ctx context.Context, itemID string, codes []string) ([]*Unit, error)
	GetByID(ctx context.Context, id string) (*Unit, error)
	GetByCode(ctx context.Context, code string) (*Unit, error)
	ListByItem(ctx context.Context, itemID string) ([]*Unit, error)
	Counts(ctx context.Context, itemID string) (Counts, error)

	// DeleteAvailable removes up to n available units, oldest first, and returns them.
	DeleteAvailable(ctx context.Context, itemID string, n int) ([]*Unit, error)
	DeleteByItem(ctx context.Context, itemID string) ([]*Unit, error)

	// Claim marks one available unit that no overlapping unreturned request references
	// as borrowed. It returns nil when no unit qualifies.
	Claim(ctx context.Context, itemID string, slot schedule.Slot) (*Unit, error)
	// Transition moves the unit to status `to` only if it is currently in `from`.
	// It reports whether the row changed.
	Transition(ctx context.Context, id string, from, to Status) (bool, error)
	// SetStatus changes the status of a unit that is not borrowed.
	SetStatus(ctx context.Context, id string, to Status) (*Unit, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var unitColumns = []string{"id", "item_id", "unit_code", "qr_path", "status", "created_at", "updated_at"}

const returning = "RETURNING id, item_id, unit_code, qr_path, status, created_at, updated_at"

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func scanUnit(row pgx.Row) (*Unit, error) {
	var u Unit
	if err := row.Scan(&u.ID, &u.ItemID, &u.Code, &u.QRPath, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func collect(rows pgx.Rows) ([]*Unit, error) {
	defer rows.Close()
	var out []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit failed: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units failed: %w", err)
	}
	return out, nil
}

func (r *pgxRepository) InsertBatch(ctx context.Context, itemID string, codes []string) ([]*Unit, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	builder := psql.Insert("item_units").Columns("item_id", "unit_code", "qr_path", "status")
	for _, code := range codes {
		builder = builder.Values(itemID, code, qrPath(itemID, code), StatusAvailable)
	}
	query, args, err := builder.Suffix("ON CONFLICT (unit_code) DO NOTHING " + returning).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert units query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert units failed: %w", err)
	}
	return collect(rows)
}

func (r *pgxRepository) getOne(ctx context.Context, where squirrel.Eq) (*Unit, error) {
	query, args, err := psql.Select(unitColumns...).From("item_units").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get unit query failed: %w", err)
	}

	u, err := scanUnit(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get unit failed: %w", err)
	}
	return u, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Unit, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *pgxRepository) GetByCode(ctx context.Context, code string) (*Unit, error) {
	return r.getOne(ctx, squirrel.Eq{"unit_code": code})
}

func (r *pgxRepository) ListByItem(ctx context.Context, itemID string) ([]*Unit, error) {
	query, args, err := psql.Select(unitColumns...).
		From("item_units").
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list units query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list units failed: %w", err)
	}
	return collect(rows)
}

func (r *pgxRepository) Counts(ctx context.Context, itemID string) (Counts, error) {
	const query = `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'available'),
			count(*) FILTER (WHERE status = 'borrowed'),
			count(*) FILTER (WHERE status = 'maintenance')
		FROM item_units
		WHERE item_id = $1
	`
	var c Counts
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, itemID).
		Scan(&c.Total, &c.Available, &c.Borrowed, &c.Maintenance); err != nil {
		return Counts{}, fmt.Errorf("count units failed: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) DeleteAvailable(ctx context.Context, itemID string, n int) ([]*Unit, error) {
	const query = `
		DELETE FROM item_units
		WHERE id IN (
			SELECT id FROM item_units
			WHERE item_id = $1 AND status = 'available'
			ORDER BY created_at, id
			LIMIT $2
			FOR UPDATE
		)
	` + returning
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, itemID, n)
	if err != nil {
		return nil, fmt.Errorf("delete available units failed: %w", err)
	}
	return collect(rows)
}

func (r *pgxRepository) DeleteByItem(ctx context.Context, itemID string) ([]*Unit, error) {
	query, args, err := psql.Delete("item_units").
		Where(squirrel.Eq{"item_id": itemID}).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete units query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete units failed: %w", err)
	}
	return collect(rows)
}

func (r *pgxRepository) Claim(ctx context.Context, itemID string, slot schedule.Slot) (*Unit, error) {
	// Find and flip in one statement. SKIP LOCKED lets concurrent claims
	// for the same item pick different units instead of queueing.
	const query = `
		UPDATE item_units
		SET status = 'borrowed', updated_at = now()
		WHERE id = (
			SELECT u.id FROM item_units u
			WHERE u.item_id = $1
			  AND u.status = 'available'
			  AND NOT EXISTS (
				SELECT 1 FROM requests r
				WHERE r.item_unit_id = u.id
				  AND r.returned = FALSE
				  AND r.date = $2
				  AND r.time_in < $4
				  AND r.time_out > $3
			  )
			ORDER BY u.created_at, u.id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		AND status = 'available'
	` + returning

	u, err := scanUnit(db.Conn(ctx, r.pool).QueryRow(ctx, query,
		itemID, slot.Date, slot.TimeIn.PgTime(), slot.TimeOut.PgTime(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim unit failed: %w", err)
	}
	return u, nil
}

func (r *pgxRepository) Transition(ctx context.Context, id string, from, to Status) (bool, error) {
	query, args, err := psql.Update("item_units").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build unit transition query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update unit status failed: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *pgxRepository) SetStatus(ctx context.Context, id string, to Status) (*Unit, error) {
	query, args, err := psql.Update("item_units").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.NotEq{"status": StatusBorrowed}).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build set unit status query failed: %w", err)
	}

	u, err := scanUnit(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("set unit status failed: %w", err)
	}

	// Nothing changed: either the unit is gone or it is out on loan.
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrUnitBorrowed
}
