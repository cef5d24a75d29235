package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	dialectPostgres = "postgres"
	defaultLimit    = 50
	maxLimit        = 100
)

// Repo is the event read model and host-write store over database/sql.
type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (domain.Event, error) {
	var e domain.Event
	var status string
	err := row.Scan(
		&e.ID, &e.HostID, &e.Title, &e.Type, &e.Description, &e.Date, &e.Location, &e.Image,
		&e.MinParticipants, &e.MaxParticipants, &e.JoiningFee, &status, &e.CreatedAt, &e.UpdatedAt,
		&e.EnrolledCount,
	)
	if err != nil {
		return domain.Event{}, err
	}
	e.Status = domain.EventStatus(status)
	return e, nil
}

func (r *Repo) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, getEventSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	if !e.Status.Valid() {
		return domain.Event{}, fmt.Errorf("get event: invalid status %q in db", e.Status)
	}
	return e, nil
}

func (r *Repo) CreateEvent(ctx context.Context, e domain.Event) error {
	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.ID, e.HostID, e.Title, e.Type, e.Description, e.Date, e.Location, e.Image,
		e.MinParticipants, e.MaxParticipants, e.JoiningFee, string(e.Status), e.CreatedAt, e.UpdatedAt,
	)
	return mapWriteErr("create event", err)
}

func (r *Repo) UpdateEvent(ctx context.Context, e domain.Event) error {
	res, err := r.db.ExecContext(ctx, updateEventSQL,
		e.ID,
		e.Title, e.Type, e.Description, e.Date, e.Location, e.Image,
		e.MinParticipants, e.MaxParticipants, e.JoiningFee, string(e.Status), e.UpdatedAt,
	)
	if err != nil {
		return mapWriteErr("update event", err)
	}
	return r.requireOneRow(ctx, res, e.ID)
}

func (r *Repo) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, deleteEventSQL, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return r.requireOneRow(ctx, res, id)
}

// ListEvents searches events. Type matches case-insensitively, location as a
// case-insensitive substring, Date as one UTC day. Status defaults to OPEN.
func (r *Repo) ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	query, args, err := buildListQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func buildListQuery(f domain.EventFilter) (string, []any, error) {
	status := f.Status
	if status == "" {
		status = domain.EventOpen
	}

	where := []goqu.Expression{goqu.I("e.status").Eq(string(status))}

	if t := strings.TrimSpace(f.Type); t != "" {
		where = append(where, goqu.L("LOWER(e.type)").Eq(strings.ToLower(t)))
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		where = append(where, goqu.I("e.location").ILike("%"+loc+"%"))
	}
	if f.Date != nil {
		day := f.Date.UTC().Truncate(24 * time.Hour)
		where = append(where,
			goqu.I("e.date").Gte(day),
			goqu.I("e.date").Lt(day.Add(24*time.Hour)),
		)
	}
	if f.StartDate != nil {
		where = append(where, goqu.I("e.date").Gte(f.StartDate.UTC()))
	}
	if f.EndDate != nil {
		where = append(where, goqu.I("e.date").Lte(f.EndDate.UTC()))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	ds := goqu.Dialect(dialectPostgres).
		From(goqu.T("events").As("e")).
		Prepared(true).
		Select(
			"e.id", "e.host_id", "e.title", "e.type", "e.description", "e.date", "e.location", "e.image",
			"e.min_participants", "e.max_participants", "e.joining_fee", "e.status", "e.created_at", "e.updated_at",
			goqu.L("(SELECT COUNT(*) FROM enrollments en WHERE en.event_id = e.id)").As("enrolled_count"),
		).
		Where(goqu.And(where...)).
		Order(goqu.I("e.date").Asc(), goqu.I("e.id").Asc()).
		Limit(uint(limit))

	return ds.ToSQL()
}

// requireOneRow explains a write that matched nothing: the row is either gone
// or became COMPLETED after the caller read it.
func (r *Repo) requireOneRow(ctx context.Context, res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, eventStatusSQL, id).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrEventNotFound
	case err != nil:
		return fmt.Errorf("recheck event: %w", err)
	case domain.EventStatus(status) == domain.EventCompleted:
		return domain.ErrEventCompleted
	default:
		return domain.ErrEventNotFound
	}
}

// mapWriteErr turns schema constraint violations into validation errors.
func mapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23514" {
		return domain.ErrValidationMeta("invalid event", map[string]string{"constraint": pqErr.Constraint})
	}
	return fmt.Errorf("%s: %w", op, err)
}
