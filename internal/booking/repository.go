package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/campus-borrow-backend/internal/db"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
	"github.com/nekogravitycat/campus-borrow-backend/internal/schedule"
	"github.com/nekogravitycat/campus-borrow-backend/internal/unit"
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, kind resource.Kind, id string) (*Request, error)
	// GetForUpdate reads the request and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, kind resource.Kind, id string) (*Request, error)
	List(ctx context.Context, filter Filter) ([]*Request, int, error)
	Delete(ctx context.Context, kind resource.Kind, id string) error

	// CountOverlapping counts requests that hold capacity on the resource and overlap slot.
	// excludeID, when set, leaves one request out of the count.
	CountOverlapping(ctx context.Context, kind resource.Kind, resourceID string, slot schedule.Slot, excludeID string) (int, error)

	MarkReturned(ctx context.Context, kind resource.Kind, id string, at time.Time) error
	UpdateStatus(ctx context.Context, kind resource.Kind, id string, status Status) error

	// ListOverdue returns open requests whose slot ended before localNow.
	ListOverdue(ctx context.Context, kind resource.Kind, localNow time.Time) ([]*Request, error)
	// ClaimOverdueSMS stamps overdue_sms_sent_at if it is still empty and reports whether
	// this caller won the claim.
	ClaimOverdueSMS(ctx context.Context, kind resource.Kind, id string, at time.Time) (bool, error)
	ResetOverdueSMS(ctx context.Context, kind resource.Kind, id string) error
}

// tableSpec describes where requests of one kind live.
type tableSpec struct {
	table       string
	resourceCol string
	resources   string
	hasUnit     bool
	hasStatus   bool
}

func specFor(kind resource.Kind) tableSpec {
	if kind == resource.KindRoom {
		return tableSpec{table: "room_requests", resourceCol: "room_id", resources: "rooms", hasStatus: true}
	}
	return tableSpec{table: "requests", resourceCol: "item_id", resources: "items", hasUnit: true}
}

// occupying restricts a query on alias rq to requests that still hold capacity.
func (t tableSpec) occupying() squirrel.Sqlizer {
	cond := squirrel.And{squirrel.Eq{"rq.returned": false}}
	if t.hasStatus {
		cond = append(cond, squirrel.Eq{"rq.status": []Status{StatusPending, StatusApproved}})
	}
	return cond
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) selectRequests(kind resource.Kind) squirrel.SelectBuilder {
	t := specFor(kind)

	unitCols := []string{"NULL::uuid", "NULL::text", "NULL::text"}
	statusCol := "''"
	if t.hasUnit {
		unitCols = []string{"rq.item_unit_id", "u.unit_code", "u.status"}
	}
	if t.hasStatus {
		statusCol = "rq.status"
	}

	cols := []string{"rq.id", "rq." + t.resourceCol}
	cols = append(cols, unitCols...)
	cols = append(cols,
		"rq.name", "rq.borrower_id", "rq.year", "rq.department", "rq.course", "rq.email", "rq.mobile",
		"rq.date", "rq.time_in", "rq.time_out", statusCol,
		"rq.returned", "rq.returned_at", "rq.overdue_sms_sent_at", "rq.created_at", "rq.updated_at",
		"res.name", "res.description", "res.quantity", "res.created_at", "res.updated_at",
	)

	q := psql.Select(cols...).
		From(t.table + " rq").
		Join(t.resources + " res ON res.id = rq." + t.resourceCol)
	if t.hasUnit {
		q = q.LeftJoin("item_units u ON u.id = rq.item_unit_id")
	}
	return q
}

func scanRequest(kind resource.Kind, row pgx.Row, extra ...any) (*Request, error) {
	var (
		req              = Request{Kind: kind}
		res              = resource.Resource{Kind: kind}
		unitCode, uState *string
		timeIn, timeOut  pgtype.Time
	)

	dest := []any{
		&req.ID, &req.ResourceID, &req.UnitID, &unitCode, &uState,
		&req.Name, &req.BorrowerID, &req.Year, &req.Department, &req.Course, &req.Email, &req.Mobile,
		&req.Slot.Date, &timeIn, &timeOut, &req.Status,
		&req.Returned, &req.ReturnedAt, &req.OverdueSMSSentAt, &req.CreatedAt, &req.UpdatedAt,
		&res.Name, &res.Description, &res.Quantity, &res.CreatedAt, &res.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	req.Slot.TimeIn = schedule.ClockFromPg(timeIn)
	req.Slot.TimeOut = schedule.ClockFromPg(timeOut)
	res.ID = req.ResourceID
	req.Resource = &res
	if req.UnitID != nil && unitCode != nil {
		req.Unit = &unit.Unit{ID: *req.UnitID, ItemID: req.ResourceID, Code: *unitCode}
		if uState != nil {
			req.Unit.Status = unit.Status(*uState)
		}
	}
	return &req, nil
}

func (r *pgxRepository) Create(ctx context.Context, req *Request) error {
	t := specFor(req.Kind)

	cols := []string{t.resourceCol, "name", "borrower_id", "year", "department", "course", "email", "mobile", "date", "time_in", "time_out"}
	vals := []any{
		req.ResourceID, req.Name, req.BorrowerID, req.Year, req.Department, req.Course, req.Email, req.Mobile,
		req.Slot.Date, req.Slot.TimeIn.PgTime(), req.Slot.TimeOut.PgTime(),
	}
	if t.hasUnit {
		cols = append(cols, "item_unit_id")
		vals = append(vals, req.UnitID)
	}
	if t.hasStatus {
		cols = append(cols, "status")
		vals = append(vals, req.Status)
	}

	query, args, err := psql.Insert(t.table).
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create request query failed: %w", err)
	}

	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return fmt.Errorf("create %s request failed: %w", req.Kind, err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, kind resource.Kind, id string) (*Request, error) {
	return r.get(ctx, kind, id, "")
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, kind resource.Kind, id string) (*Request, error) {
	return r.get(ctx, kind, id, "FOR UPDATE OF rq")
}

func (r *pgxRepository) get(ctx context.Context, kind resource.Kind, id, lock string) (*Request, error) {
	q := r.selectRequests(kind).Where(squirrel.Eq{"rq.id": id})
	if lock != "" {
		q = q.Suffix(lock)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get request query failed: %w", err)
	}

	req, err := scanRequest(kind, db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s request failed: %w", kind, err)
	}
	return req, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Request, int, error) {
	t := specFor(filter.Kind)
	query := r.selectRequests(filter.Kind).Column("count(*) OVER() as total_count")

	if filter.ResourceID != "" {
		query = query.Where(squirrel.Eq{"rq." + t.resourceCol: filter.ResourceID})
	}
	if filter.BorrowerID != "" {
		query = query.Where(squirrel.Eq{"rq.borrower_id": filter.BorrowerID})
	}
	if filter.Email != "" {
		query = query.Where(squirrel.Eq{"rq.email": filter.Email})
	}
	if filter.Returned != nil {
		query = query.Where(squirrel.Eq{"rq.returned": *filter.Returned})
	}
	if filter.Status != "" && t.hasStatus {
		query = query.Where(squirrel.Eq{"rq.status": filter.Status})
	}
	if filter.DateFrom != nil {
		query = query.Where(squirrel.GtOrEq{"rq.date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		query = query.Where(squirrel.LtOrEq{"rq.date": *filter.DateTo})
	}

	// Sorting
	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy("rq.date "+orderDir, "rq.time_in "+orderDir, "rq.id")

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
		return nil, 0, fmt.Errorf("build list requests query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s requests failed: %w", filter.Kind, err)
	}
	defer rows.Close()

	var out []*Request
	var total int
	for rows.Next() {
		req, err := scanRequest(filter.Kind, rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan request failed: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate requests failed: %w", err)
	}

	return out, total, nil
}

func (r *pgxRepository) Delete(ctx context.Context, kind resource.Kind, id string) error {
	query, args, err := psql.Delete(specFor(kind).table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete request query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s request failed: %w", kind, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) CountOverlapping(ctx context.Context, kind resource.Kind, resourceID string, slot schedule.Slot, excludeID string) (int, error) {
	// Logic:
	// 1. Same resource and calendar day
	// 2. Request still holds capacity
	// 3. Time overlaps: (ExistingIn < NewOut) AND (ExistingOut > NewIn)
	t := specFor(kind)
	q := psql.Select("count(*)").
		From(t.table + " rq").
		Where(squirrel.Eq{"rq." + t.resourceCol: resourceID, "rq.date": slot.Date}).
		Where(t.occupying()).
		Where(squirrel.Lt{"rq.time_in": slot.TimeOut.PgTime()}).
		Where(squirrel.Gt{"rq.time_out": slot.TimeIn.PgTime()})

	if excludeID != "" {
		q = q.Where(squirrel.NotEq{"rq.id": excludeID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count overlap query failed: %w", err)
	}

	var count int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count overlap failed: %w", err)
	}
	return count, nil
}

func (r *pgxRepository) MarkReturned(ctx context.Context, kind resource.Kind, id string, at time.Time) error {
	query, args, err := psql.Update(specFor(kind).table).
		Set("returned", true).
		Set("returned_at", at).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark returned query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark %s request returned failed: %w", kind, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) UpdateStatus(ctx context.Context, kind resource.Kind, id string, status Status) error {
	t := specFor(kind)
	if !t.hasStatus {
		return ErrStatusNotSupported
	}

	query, args, err := psql.Update(t.table).
		Set("status", status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update status query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s request status failed: %w", kind, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) ListOverdue(ctx context.Context, kind resource.Kind, localNow time.Time) ([]*Request, error) {
	today := schedule.Day(localNow)
	nowClock := pgtype.Time{
		Microseconds: int64(localNow.Sub(time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, localNow.Location())) / time.Microsecond),
		Valid:        true,
	}

	query, args, err := r.selectRequests(kind).
		Where(specFor(kind).occupying()).
		Where(squirrel.Or{
			squirrel.Lt{"rq.date": today},
			squirrel.And{
				squirrel.Eq{"rq.date": today},
				squirrel.Lt{"rq.time_out": nowClock},
			},
		}).
		OrderBy("rq.date", "rq.time_out", "rq.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build overdue query failed: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list overdue %s requests failed: %w", kind, err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("scan request failed: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overdue requests failed: %w", err)
	}
	return out, nil
}

func (r *pgxRepository) ClaimOverdueSMS(ctx context.Context, kind resource.Kind, id string, at time.Time) (bool, error) {
	query, args, err := psql.Update(specFor(kind).table).
		Set("overdue_sms_sent_at", at).
		Where(squirrel.Eq{"id": id, "overdue_sms_sent_at": nil, "returned": false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build claim sms query failed: %w", err)
	}

	ct, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("claim overdue sms failed: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *pgxRepository) ResetOverdueSMS(ctx context.Context, kind resource.Kind, id string) error {
	query, args, err := psql.Update(specFor(kind).table).
		Set("overdue_sms_sent_at", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset sms query failed: %w", err)
	}

	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("reset overdue sms failed: %w", err)
	}
	return nil
}
