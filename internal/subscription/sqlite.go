package subscription

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"terminbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps subscriptions in a single SQLite file. SQLite is the
// serialization point for concurrent subscribe/unsubscribe on the same
// user_id: with one writer connection, the last write applies.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the subscription database at path.
func Open(path string, busyTimeout time.Duration, log logx.Logger) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Get(ctx context.Context, userID string) (Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, department_id, appointment_type, interval_minutes, created_at
		 FROM subscriptions WHERE user_id = ?`, userID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	return sub, err
}

func (s *sqliteStore) Put(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, department_id, appointment_type, interval_minutes, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     department_id    = excluded.department_id,
		     appointment_type = excluded.appointment_type,
		     interval_minutes = excluded.interval_minutes,
		     created_at       = excluded.created_at`,
		sub.UserID, sub.DepartmentID, sub.AppointmentType,
		int64(sub.Interval/time.Minute), sub.CreatedAt.UTC().Unix(),
	)
	return err
}

func (s *sqliteStore) Remove(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = ?`, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) ListAll(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, department_id, appointment_type, interval_minutes, created_at
		 FROM subscriptions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *sqliteStore) Expire(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	cut := cutoff.UTC().Unix()
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id FROM subscriptions WHERE created_at <= ?`, cut)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE created_at <= ?`, cut); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.log.Info("expired subscriptions removed", logx.Int("count", len(ids)))
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(r rowScanner) (Subscription, error) {
	var (
		sub     Subscription
		minutes int64
		created int64
	)
	if err := r.Scan(&sub.UserID, &sub.DepartmentID, &sub.AppointmentType, &minutes, &created); err != nil {
		return Subscription{}, err
	}
	sub.Interval = time.Duration(minutes) * time.Minute
	sub.CreatedAt = time.Unix(created, 0).UTC()
	return sub, nil
}
