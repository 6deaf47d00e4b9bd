package activitysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexislearn/admin-gateway/internal/activity"
	"github.com/lexislearn/admin-gateway/internal/serviceerr"
)

type Repository struct {
	db *pgxpool.Pool
}

var _ = activity.Repository(&Repository{})

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Insert(ctx context.Context, e activity.Event) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO activity_events (id, kind, email, subject, occurred_at) VALUES ($1, $2, $3, $4, $5);`,
		e.ID, string(e.Kind), e.Email, e.Subject, e.OccurredAt,
	); err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into activity_events: %w", err)
	}

	return nil
}

func (r *Repository) CountByKind(ctx context.Context, since time.Time) (map[activity.Kind]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT kind, COUNT(*) FROM activity_events WHERE occurred_at >= $1 GROUP BY kind;`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("executing sql query: %w", err)
	}

	counts := make(map[activity.Kind]int64)
	var (
		kind  string
		count int64
	)
	if _, err := pgx.ForEachRow(rows, []any{&kind, &count}, func() error {
		counts[activity.Kind(kind)] = count
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scanning rows: %w", err)
	}

	return counts, nil
}

func (r *Repository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `DELETE FROM activity_events WHERE occurred_at < $1;`, before)
	if err != nil {
		return 0, fmt.Errorf("executing sql query: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}

	return ct.RowsAffected(), nil
}

func handlePgError(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return serviceerr.ErrConflict, true
	}

	return err, false
}
