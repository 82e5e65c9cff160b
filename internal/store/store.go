package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// busyTimeoutMillis is how long a statement waits for another connection's
// lock before failing with SQLITE_BUSY.
const busyTimeoutMillis = 5000

// Store is an append-only log of call outcomes in a single SQLite table.
// Every operation opens and closes its own connection; concurrent writers are
// serialized by SQLite's lock, waiting up to busyTimeoutMillis for it.
type Store struct {
	path string
}

// CallRecord is one persisted call outcome. Summary and RecordingURL are nil
// when the provider did not report them.
type CallRecord struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	Status       string  `json:"status"`
	Summary      *string `json:"summary"`
	RecordingURL *string `json:"recording_url"`
}

func New(path string) *Store {
	return &Store{path: path}
}

// Open returns a store whose table is guaranteed to exist.
func Open(ctx context.Context, path string) (*Store, error) {
	s := New(path)
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) dsn() string {
	sep := "?"
	if strings.Contains(s.path, "?") {
		sep = "&"
	}
	return s.path + sep + "_pragma=busy_timeout(" + strconv.Itoa(busyTimeoutMillis) + ")"
}

func (s *Store) withConn(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := sql.Open(driverName, s.dsn())
	if err != nil {
		return errors.Wrap(err, "open sqlite")
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	return fn(db)
}

// Initialize creates the calls table if it does not exist. Safe to call on
// every process start.
func (s *Store) Initialize(ctx context.Context) error {
	return s.withConn(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS calls (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT,
            email TEXT,
            phone TEXT,
            status TEXT,
            summary TEXT,
            recording_url TEXT
        );`)
		return errors.Wrap(err, "init schema")
	})
}

// Insert appends rec and sets rec.ID to the store-assigned identifier.
func (s *Store) Insert(ctx context.Context, rec *CallRecord) (int64, error) {
	if rec == nil {
		return 0, errors.New("nil call record")
	}
	var id int64
	err := s.withConn(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `INSERT INTO calls (name, email, phone, status, summary, recording_url) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.Name, rec.Email, rec.Phone, rec.Status, nullable(rec.Summary), nullable(rec.RecordingURL))
		if err != nil {
			return errors.Wrap(err, "insert call")
		}
		id, err = res.LastInsertId()
		return errors.Wrap(err, "last insert id")
	})
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// ListAll returns every call, most recent first.
func (s *Store) ListAll(ctx context.Context) ([]CallRecord, error) {
	var calls []CallRecord
	err := s.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT id, name, email, phone, status, summary, recording_url FROM calls ORDER BY id DESC`)
		if err != nil {
			return errors.Wrap(err, "list calls")
		}
		defer rows.Close()
		for rows.Next() {
			var c CallRecord
			var name, email, phone, status, summary, recording sql.NullString
			if err := rows.Scan(&c.ID, &name, &email, &phone, &status, &summary, &recording); err != nil {
				return errors.Wrap(err, "scan call")
			}
			c.Name, c.Email, c.Phone, c.Status = name.String, email.String, phone.String, status.String
			if summary.Valid {
				c.Summary = &summary.String
			}
			if recording.Valid {
				c.RecordingURL = &recording.String
			}
			calls = append(calls, c)
		}
		return rows.Err()
	})
	return calls, err
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	return s.withConn(ctx, func(db *sql.DB) error {
		var v int
		if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&v); err != nil {
			return errors.Wrap(err, "db health")
		}
		return nil
	})
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
