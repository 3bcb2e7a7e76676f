// Package sqlite keeps a catalog of recorded files and faults in a SQLite
// database next to the recordings.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/bft-labs/fieldlog/internal/domain"
	"github.com/bft-labs/fieldlog/internal/engine"
	"github.com/bft-labs/fieldlog/internal/ports"
	"github.com/bft-labs/fieldlog/pkg/log"
)

// Session is one catalogued recording file.
type Session struct {
	ID          string
	Device      string
	Name        string
	Counter     int
	Start       time.Time
	Bytes       int64
	Duration    time.Duration
	CloseReason string
	Closed      time.Time
}

// Fault is one catalogued write fault.
type Fault struct {
	At       time.Time
	Role     string
	Device   string
	Kind     domain.FaultKind
	Restarts int
	Marker   string
	Error    string
}

// Catalog implements engine.EventEmitter on a SQLite database. Event
// handlers log failures instead of returning them.
type Catalog struct {
	db     *sql.DB
	clock  ports.Clock
	logger log.Logger

	openStmt  *sql.Stmt
	closeStmt *sql.Stmt
	faultStmt *sql.Stmt
}

// Open opens or creates the catalog at path.
func Open(path string, clock ports.Clock, logger log.Logger) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog path: %w", domain.ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &Catalog{db: db, clock: clock, logger: logger}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	if err := c.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	_, err := c.db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		device TEXT NOT NULL,
		name TEXT NOT NULL,
		counter INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		close_reason TEXT NOT NULL DEFAULT '',
		closed_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS faults (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		role TEXT NOT NULL,
		device TEXT NOT NULL,
		kind TEXT NOT NULL,
		restarts INTEGER NOT NULL,
		marker TEXT NOT NULL,
		error TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`)
	return err
}

func (c *Catalog) prepareStatements() error {
	var err error
	c.openStmt, err = c.db.Prepare(`
		INSERT INTO sessions (id, device, name, counter, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare open statement: %w", err)
	}
	c.closeStmt, err = c.db.Prepare(`
		INSERT INTO sessions (id, device, name, counter, started_at, bytes, duration_ms, close_reason, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			bytes = excluded.bytes,
			duration_ms = excluded.duration_ms,
			close_reason = excluded.close_reason,
			closed_at = excluded.closed_at
	`)
	if err != nil {
		return fmt.Errorf("prepare close statement: %w", err)
	}
	c.faultStmt, err = c.db.Prepare(`
		INSERT INTO faults (at, role, device, kind, restarts, marker, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare fault statement: %w", err)
	}
	return nil
}

// OnStateChange implements engine.EventEmitter.
func (c *Catalog) OnStateChange(previous, current engine.State, reason string) {}

// OnWrite implements engine.EventEmitter.
func (c *Catalog) OnWrite(device string, n int) {}

// OnSessionOpened implements engine.EventEmitter.
func (c *Catalog) OnSessionOpened(s domain.FileSession) {
	_, err := c.openStmt.Exec(s.ID, s.Device, s.Name, s.Counter, s.Start.UnixMilli())
	if err != nil {
		c.logger.Warn("catalog insert failed", log.String("session", s.ID), log.Err(err))
	}
}

// OnSessionClosed implements engine.EventEmitter.
func (c *Catalog) OnSessionClosed(s domain.FileSession) {
	_, err := c.closeStmt.Exec(s.ID, s.Device, s.Name, s.Counter, s.Start.UnixMilli(),
		s.Bytes, s.Duration.Milliseconds(), s.CloseReason, c.clock.Now().UnixMilli())
	if err != nil {
		c.logger.Warn("catalog update failed", log.String("session", s.ID), log.Err(err))
	}
}

// OnFault implements engine.EventEmitter.
func (c *Catalog) OnFault(f domain.Fault) {
	role := "primary"
	if f.Backup {
		role = "backup"
	}
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	_, err := c.faultStmt.Exec(c.clock.Now().UnixMilli(), role, f.Device, string(f.Kind), f.Restarts, f.Marker, msg)
	if err != nil {
		c.logger.Warn("catalog fault insert failed", log.Err(err))
	}
}

// Sessions returns the most recent sessions, newest first. limit <= 0
// returns all of them.
func (c *Catalog) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, device, name, counter, started_at, bytes, duration_ms, close_reason, closed_at
		FROM sessions
		ORDER BY started_at DESC, device ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s                          Session
			started, durMS, closedAtMS int64
		)
		if err := rows.Scan(&s.ID, &s.Device, &s.Name, &s.Counter, &started, &s.Bytes, &durMS, &s.CloseReason, &closedAtMS); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Start = time.UnixMilli(started).UTC()
		s.Duration = time.Duration(durMS) * time.Millisecond
		if closedAtMS > 0 {
			s.Closed = time.UnixMilli(closedAtMS).UTC()
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Faults returns all catalogued faults in the order they happened.
func (c *Catalog) Faults(ctx context.Context) ([]Fault, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT at, role, device, kind, restarts, marker, error
		FROM faults
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query faults: %w", err)
	}
	defer rows.Close()

	var out []Fault
	for rows.Next() {
		var (
			f    Fault
			at   int64
			kind string
		)
		if err := rows.Scan(&at, &f.Role, &f.Device, &kind, &f.Restarts, &f.Marker, &f.Error); err != nil {
			return nil, fmt.Errorf("scan fault: %w", err)
		}
		f.At = time.UnixMilli(at).UTC()
		f.Kind = domain.FaultKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the database.
func (c *Catalog) Close() error {
	var errs []error
	for _, st := range []*sql.Stmt{c.openStmt, c.closeStmt, c.faultStmt} {
		if st != nil {
			errs = append(errs, st.Close())
		}
	}
	errs = append(errs, c.db.Close())
	return errors.Join(errs...)
}

var _ engine.EventEmitter = (*Catalog)(nil)
