package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	_ "modernc.org/sqlite" // pure-Go sqlite driver, CGo-free

	"github.com/onanski/pmm/internal/canonical"
	"github.com/onanski/pmm/internal/hashid"
	"github.com/onanski/pmm/internal/types"
)

// sqliteMetrics holds OTel instruments for the sqlite ledger backend,
// grounded on the teacher's doltMetrics: instruments registered against
// the global delegating provider at init time, forwarding to the real
// provider once telemetry.Init runs.
var sqliteMetrics struct {
	appended   metric.Int64Counter
	retryCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/onanski/pmm/ledger")
	sqliteMetrics.appended, _ = m.Int64Counter("pmm.ledger.events_appended",
		metric.WithDescription("Events appended to the sqlite ledger"),
		metric.WithUnit("{event}"),
	)
	sqliteMetrics.retryCount, _ = m.Int64Counter("pmm.ledger.append_retry_count",
		metric.WithDescription("Appends retried due to a locked sqlite database"),
		metric.WithUnit("{retry}"),
	)
}

// isRetryableSQLiteError reports whether err is a transient "database is
// locked" condition a single-writer ledger can expect to clear on retry.
func isRetryableSQLiteError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func newAppendBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = appendRetryMaxElapsed
	return bo
}

const appendRetryMaxElapsed = 2 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	meta TEXT NOT NULL,
	prev_hash TEXT NOT NULL,
	hash TEXT NOT NULL
);
`

// SQLiteLog is the durable Log backend, grounded on the teacher's
// storage/sqlite conventions: one table per concern, a single
// autoincrementing id as the ordering key, everything else stored as
// canonical JSON text.
type SQLiteLog struct {
	db   *sql.DB
	mu   sync.Mutex
	subs []func(types.Event)
}

// OpenSQLiteLog opens (creating if necessary) a SQLite-backed ledger at
// path. Use ":memory:" for an ephemeral database with the same SQL
// semantics as the on-disk backend — useful for tests that want to
// exercise the real schema without touching a file.
func OpenSQLiteLog(path string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer ledger; spec.md §5 — one process owns the ledger
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

func (s *SQLiteLog) Close() error {
	return s.db.Close()
}

func (s *SQLiteLog) Append(ctx context.Context, kind, content string, meta map[string]interface{}) (int64, error) {
	metaJSON, err := canonical.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("ledger: encode meta: %w", err)
	}

	s.mu.Lock()

	prevHash, err := s.lastHashLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	hash := hashid.EventHash(prevHash, kind, content, string(metaJSON))

	var res sql.Result
	attempts := 0
	retryErr := backoff.Retry(func() error {
		attempts++
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO events (ts, kind, content, meta, prev_hash, hash) VALUES (strftime('%Y-%m-%dT%H:%M:%fZ','now'), ?, ?, ?, ?, ?)`,
			kind, content, string(metaJSON), prevHash, hash,
		)
		if execErr != nil && isRetryableSQLiteError(execErr) {
			return execErr
		}
		if execErr != nil {
			return backoff.Permanent(execErr)
		}
		return nil
	}, backoff.WithContext(newAppendBackoff(), ctx))
	if attempts > 1 {
		sqliteMetrics.retryCount.Add(ctx, int64(attempts-1))
	}
	if retryErr != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("ledger: insert event: %w", retryErr)
	}
	id, err := res.LastInsertId()
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("ledger: read inserted id: %w", err)
	}

	ev, err := s.getLocked(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	subs := append([]func(types.Event){}, s.subs...)
	s.mu.Unlock()

	sqliteMetrics.appended.Add(ctx, 1)
	for _, fn := range subs {
		if fn != nil {
			fn(*ev)
		}
	}
	return id, nil
}

func (s *SQLiteLog) lastHashLocked(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT hash FROM events ORDER BY id DESC LIMIT 1`)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("ledger: read last hash: %w", err)
	}
	return hash, nil
}

func (s *SQLiteLog) ReadAll(ctx context.Context) ([]types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ts, kind, content, meta, prev_hash, hash FROM events ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: read all: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteLog) Get(ctx context.Context, id int64) (*types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, id)
}

func (s *SQLiteLog) getLocked(ctx context.Context, id int64) (*types.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, ts, kind, content, meta, prev_hash, hash FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (types.Event, error) {
	var ev types.Event
	var metaJSON string
	if err := row.Scan(&ev.ID, &ev.Ts, &ev.Kind, &ev.Content, &metaJSON, &ev.PrevHash, &ev.Hash); err != nil {
		return types.Event{}, err
	}
	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &ev.Meta); err != nil {
			return types.Event{}, fmt.Errorf("ledger: decode meta: %w", err)
		}
	}
	return ev, nil
}

func (s *SQLiteLog) Subscribe(fn func(types.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.subs) {
			s.subs[idx] = nil
		}
	}
}

var _ Log = (*SQLiteLog)(nil)
