package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/driving-school-backend/internal/conflict"
	"github.com/nekogravitycat/driving-school-backend/internal/window"
)

type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	Update(ctx context.Context, r *Reservation) error
	Delete(ctx context.Context, id string) error

	// ListRange returns every reservation of the vehicle dated within rng.
	ListRange(ctx context.Context, vehicleID string, rng window.Range) ([]conflict.Booking, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var reservationColumns = []string{
	"r.id", "r.vehicle_id", "r.instructor_id",
	"to_char(r.reserved_date, 'YYYY-MM-DD')",
	"to_char(r.start_time, 'HH24:MI')",
	"to_char(r.end_time, 'HH24:MI')",
	"r.purpose", "r.created_at", "r.updated_at",
}

func scanReservation(row pgx.Row, extra ...any) (*Reservation, error) {
	var res Reservation
	dest := []any{
		&res.ID, &res.VehicleID, &res.InstructorID, &res.Date, &res.StartTime, &res.EndTime,
		&res.Purpose, &res.CreatedAt, &res.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &res, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		switch pgErr.ConstraintName {
		case "vehicle_reservations_vehicle_id_fkey":
			return ErrVehicleNotFound
		case "vehicle_reservations_instructor_id_fkey":
			return ErrInstructorNotFound
		}
	}
	return err
}

func (r *pgxRepository) Create(ctx context.Context, res *Reservation) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.vehicle_reservations").
		Columns("vehicle_id", "instructor_id", "reserved_date", "start_time", "end_time", "purpose").
		Values(res.VehicleID, res.InstructorID,
			squirrel.Expr("?::date", res.Date),
			squirrel.Expr("?::time", res.StartTime),
			squirrel.Expr("?::time", res.EndTime),
			res.Purpose).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create reservation query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		if mapped := mapWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("create reservation failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(reservationColumns...).
		From("public.vehicle_reservations r").
		Where(squirrel.Eq{"r.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get reservation query failed: %w", err)
	}

	res, err := scanReservation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get reservation failed: %w", err)
	}
	return res, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(reservationColumns, "count(*) OVER() as total_count")...).
		From("public.vehicle_reservations r")

	if filter.VehicleID != "" {
		query = query.Where(squirrel.Eq{"r.vehicle_id": filter.VehicleID})
	}
	if filter.InstructorID != "" {
		query = query.Where(squirrel.Eq{"r.instructor_id": filter.InstructorID})
	}
	if filter.DateFrom != "" {
		query = query.Where(squirrel.Expr("r.reserved_date >= ?::date", filter.DateFrom))
	}
	if filter.DateTo != "" {
		query = query.Where(squirrel.Expr("r.reserved_date <= ?::date", filter.DateTo))
	}

	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy("r.reserved_date "+orderDir, "r.start_time "+orderDir)

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
		return nil, 0, fmt.Errorf("build list reservations query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations failed: %w", err)
	}
	defer rows.Close()

	var out []*Reservation
	var total int
	for rows.Next() {
		res, err := scanReservation(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan reservation failed: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reservations failed: %w", err)
	}

	return out, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, res *Reservation) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.vehicle_reservations").
		Set("vehicle_id", res.VehicleID).
		Set("instructor_id", res.InstructorID).
		Set("reserved_date", squirrel.Expr("?::date", res.Date)).
		Set("start_time", squirrel.Expr("?::time", res.StartTime)).
		Set("end_time", squirrel.Expr("?::time", res.EndTime)).
		Set("purpose", res.Purpose).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": res.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update reservation query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&res.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if mapped := mapWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("update reservation failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.vehicle_reservations").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete reservation query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete reservation failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) ListRange(ctx context.Context, vehicleID string, rng window.Range) ([]conflict.Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"id", "vehicle_id",
		"to_char(reserved_date, 'YYYY-MM-DD')",
		"to_char(start_time, 'HH24:MI')",
		"to_char(end_time, 'HH24:MI')",
	).
		From("public.vehicle_reservations").
		Where(squirrel.Eq{"vehicle_id": vehicleID}).
		Where(squirrel.Expr("reserved_date BETWEEN ?::date AND ?::date", rng.Start, rng.End)).
		OrderBy("reserved_date", "start_time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reservation window query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservation window failed: %w", err)
	}
	defer rows.Close()

	var bookings []conflict.Booking
	for rows.Next() {
		var b conflict.Booking
		if err := rows.Scan(&b.ID, &b.ResourceID, &b.Date, &b.StartTime, &b.EndTime); err != nil {
			return nil, fmt.Errorf("scan reservation window failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation window failed: %w", err)
	}
	return bookings, nil
}
