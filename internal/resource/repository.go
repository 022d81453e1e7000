package resource

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
	Create(ctx context.Context, res *Resource) error
	GetByID(ctx context.Context, kind Kind, id string) (*Resource, error)
	// GetForUpdate reads the resource and locks its row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, kind Kind, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, res *Resource) error
	Delete(ctx context.Context, kind Kind, id string) error
	// HasOpenRequests reports whether any request still holds capacity on the resource.
	HasOpenRequests(ctx context.Context, kind Kind, id string) (bool, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var allowedSort = map[string]bool{"created_at": true, "name": true, "quantity": true}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, res *Resource) error {
	query, args, err := psql.Insert(res.Kind.Table()).
		Columns("name", "description", "quantity").
		Values(res.Name, res.Description, res.Quantity).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create resource query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).
		Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return fmt.Errorf("create %s failed: %w", res.Kind, err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, kind Kind, id string) (*Resource, error) {
	return r.get(ctx, kind, id, "")
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, kind Kind, id string) (*Resource, error) {
	return r.get(ctx, kind, id, "FOR UPDATE")
}

func (r *pgxRepository) get(ctx context.Context, kind Kind, id, lock string) (*Resource, error) {
	builder := psql.Select("id", "name", "description", "quantity", "created_at", "updated_at").
		From(kind.Table()).
		Where(squirrel.Eq{"id": id})
	if lock != "" {
		builder = builder.Suffix(lock)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get resource query failed: %w", err)
	}

	res := Resource{Kind: kind}
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&res.ID, &res.Name, &res.Description, &res.Quantity, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s failed: %w", kind, err)
	}
	return &res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	query := psql.Select(
		"id", "name", "description", "quantity", "created_at", "updated_at",
		"count(*) OVER() as total_count",
	).From(filter.Kind.Table())

	if filter.Keyword != "" {
		query = query.Where(squirrel.ILike{"name": "%" + filter.Keyword + "%"})
	}

	// Sorting
	orderBy := "created_at"
	if allowedSort[filter.SortBy] {
		orderBy = filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy+" "+orderDir, "id")

	// Pagination
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize
	query = query.Limit(uint64(filter.PageSize)).Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list resources query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s failed: %w", filter.Kind.Table(), err)
	}
	defer rows.Close()

	var result []*Resource
	var total int

	for rows.Next() {
		res := Resource{Kind: filter.Kind}
		if err := rows.Scan(
			&res.ID, &res.Name, &res.Description, &res.Quantity, &res.CreatedAt, &res.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan resource failed: %w", err)
		}
		result = append(result, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate resources failed: %w", err)
	}

	return result, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, res *Resource) error {
	query, args, err := psql.Update(res.Kind.Table()).
		Set("name", res.Name).
		Set("description", res.Description).
		Set("quantity", res.Quantity).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": res.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update resource query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update %s failed: %w", res.Kind, err)
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, kind Kind, id string) error {
	query, args, err := psql.Delete(kind.Table()).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete resource query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s failed: %w", kind, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) HasOpenRequests(ctx context.Context, kind Kind, id string) (bool, error) {
	var sub squirrel.SelectBuilder
	if kind == KindRoom {
		sub = psql.Select("1").From("room_requests").
			Where(squirrel.Eq{"room_id": id, "returned": false, "status": []string{"pending", "approved"}})
	} else {
		sub = psql.Select("1").From("requests").
			Where(squirrel.Eq{"item_id": id, "returned": false})
	}

	sql, args, err := sub.ToSql()
	if err != nil {
		return false, fmt.Errorf("build open requests query failed: %w", err)
	}
	query := "SELECT EXISTS (" + sql + ")"

	var exists bool
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open requests failed: %w", err)
	}
	return exists, nil
}
