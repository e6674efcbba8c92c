package lesson

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
	Create(ctx context.Context, lesson *Lesson) error
	GetByID(ctx context.Context, id string) (*Lesson, error)
	List(ctx context.Context, filter Filter) ([]*Lesson, int, error)
	Update(ctx context.Context, lesson *Lesson) error
	Delete(ctx context.Context, id string) error

	// ListRange returns every lesson of the instructor dated within r, cancelled ones included.
	ListRange(ctx context.Context, instructorID string, r window.Range) ([]conflict.Booking, error)
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

// Dates and times are stored as DATE and TIME and read back in their wire format.
var lessonColumns = []string{
	"l.id", "l.student_id", "l.instructor_id",
	"to_char(l.lesson_date, 'YYYY-MM-DD')",
	"to_char(l.start_time, 'HH24:MI')",
	"to_char(l.end_time, 'HH24:MI')",
	"l.status", "l.hours", "l.notes", "l.created_at", "l.updated_at",
}

func scanLesson(row pgx.Row, extra ...any) (*Lesson, error) {
	var l Lesson
	dest := []any{
		&l.ID, &l.StudentID, &l.InstructorID, &l.Date, &l.StartTime, &l.EndTime,
		&l.Status, &l.Hours, &l.Notes, &l.CreatedAt, &l.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &l, nil
}

// mapWriteError translates foreign key violations into domain errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		switch pgErr.ConstraintName {
		case "lessons_student_id_fkey":
			return ErrStudentNotFound
		case "lessons_instructor_id_fkey":
			return ErrInstructorNotFound
		}
	}
	return err
}

func (r *pgxRepository) Create(ctx context.Context, l *Lesson) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Insert("public.lessons").
		Columns("student_id", "instructor_id", "lesson_date", "start_time", "end_time", "status", "hours", "notes").
		Values(l.StudentID, l.InstructorID,
			squirrel.Expr("?::date", l.Date),
			squirrel.Expr("?::time", l.StartTime),
			squirrel.Expr("?::time", l.EndTime),
			l.Status, l.Hours, l.Notes).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create lesson query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if mapped := mapWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("create lesson failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Lesson, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(lessonColumns...).
		From("public.lessons l").
		Where(squirrel.Eq{"l.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get lesson query failed: %w", err)
	}

	l, err := scanLesson(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lesson failed: %w", err)
	}
	return l, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Lesson, int, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query := psql.Select(append(lessonColumns, "count(*) OVER() as total_count")...).
		From("public.lessons l")

	if filter.StudentID != "" {
		query = query.Where(squirrel.Eq{"l.student_id": filter.StudentID})
	}
	if filter.InstructorID != "" {
		query = query.Where(squirrel.Eq{"l.instructor_id": filter.InstructorID})
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"l.status": filter.Status})
	}
	if filter.DateFrom != "" {
		query = query.Where(squirrel.Expr("l.lesson_date >= ?::date", filter.DateFrom))
	}
	if filter.DateTo != "" {
		query = query.Where(squirrel.Expr("l.lesson_date <= ?::date", filter.DateTo))
	}

	// Sorting
	orderBy := "l.lesson_date"
	switch filter.SortBy {
	case "created_at", "status":
		orderBy = "l." + filter.SortBy
	}
	orderDir := "DESC"
	if filter.SortOrder == "ASC" {
		orderDir = "ASC"
	}
	query = query.OrderBy(orderBy+" "+orderDir, "l.start_time "+orderDir)

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
		return nil, 0, fmt.Errorf("build list lessons query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list lessons failed: %w", err)
	}
	defer rows.Close()

	var lessons []*Lesson
	var total int
	for rows.Next() {
		l, err := scanLesson(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lesson failed: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate lessons failed: %w", err)
	}

	return lessons, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, l *Lesson) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Update("public.lessons").
		Set("instructor_id", l.InstructorID).
		Set("lesson_date", squirrel.Expr("?::date", l.Date)).
		Set("start_time", squirrel.Expr("?::time", l.StartTime)).
		Set("end_time", squirrel.Expr("?::time", l.EndTime)).
		Set("status", l.Status).
		Set("hours", l.Hours).
		Set("notes", l.Notes).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": l.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update lesson query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if mapped := mapWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("update lesson failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Delete("public.lessons").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lesson query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete lesson failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) ListRange(ctx context.Context, instructorID string, rng window.Range) ([]conflict.Booking, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select(
		"id", "instructor_id",
		"to_char(lesson_date, 'YYYY-MM-DD')",
		"to_char(start_time, 'HH24:MI')",
		"to_char(end_time, 'HH24:MI')",
		"status",
	).
		From("public.lessons").
		Where(squirrel.Eq{"instructor_id": instructorID}).
		Where(squirrel.Expr("lesson_date BETWEEN ?::date AND ?::date", rng.Start, rng.End)).
		OrderBy("lesson_date", "start_time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lesson window query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lesson window failed: %w", err)
	}
	defer rows.Close()

	var bookings []conflict.Booking
	for rows.Next() {
		var b conflict.Booking
		if err := rows.Scan(&b.ID, &b.ResourceID, &b.Date, &b.StartTime, &b.EndTime, &b.Status); err != nil {
			return nil, fmt.Errorf("scan lesson window failed: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lesson window failed: %w", err)
	}
	return bookings, nil
}
