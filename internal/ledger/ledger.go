// Package ledger keeps a history of apply runs in SQLite or MySQL.
//
// The ledger is write-only as far as applying goes: whether a target is
// already modified is always decided from its fingerprint, never from here.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/suprsokr/sidekick/internal/orchestrator"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// timeLayout is fixed width so stored times sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// MySQLConfig holds connection parameters for a MySQL database.
type MySQLConfig struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Name     string `toml:"name"`
}

// DSN renders c in go-sql-driver form.
func (c MySQLConfig) DSN() string {
	host, port := c.Host, c.Port
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&allowNativePasswords=true",
		c.User, c.Password, host, port, c.Name)
}

// Config selects and locates the ledger database.
type Config struct {
	Driver string `toml:"driver"`
	// Path is the SQLite database file.
	Path string `toml:"path"`
	// DSN overrides the connection string for either driver.
	DSN   string      `toml:"dsn"`
	MySQL MySQLConfig `toml:"mysql"`
	// Disabled turns the ledger off entirely.
	Disabled bool `toml:"disabled"`
}

func (c Config) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Driver == DriverMySQL {
		return c.MySQL.DSN()
	}
	return c.Path
}

// Ledger records runs and their outcomes.
type Ledger struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and creates the schema if needed.
func Open(ctx context.Context, c Config) (*Ledger, error) {
	driver := c.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverMySQL {
		return nil, fmt.Errorf("unknown ledger driver %q (want %s or %s)", driver, DriverSQLite, DriverMySQL)
	}
	c.Driver = driver
	dsn := c.dsn()
	if dsn == "" {
		return nil, fmt.Errorf("ledger %s: no database configured", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}

	l := &Ledger{db: db, driver: driver}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := l.applyPragmas(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := l.applySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Driver names the database driver in use.
func (l *Ledger) Driver() string { return l.driver }

// Close releases the database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) applyPragmas(ctx context.Context) error {
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := l.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("execute %q: %w", p, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		started VARCHAR(40) NOT NULL,
		finished VARCHAR(40) NOT NULL,
		tool_available INTEGER NOT NULL,
		applied INTEGER NOT NULL,
		already_applied INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outcomes (
		run_id VARCHAR(36) NOT NULL,
		seq INTEGER NOT NULL,
		grp VARCHAR(255) NOT NULL,
		name TEXT NOT NULL,
		step VARCHAR(255) NOT NULL,
		kind VARCHAR(32) NOT NULL,
		target TEXT NOT NULL,
		status VARCHAR(32) NOT NULL,
		reason VARCHAR(32) NOT NULL,
		detail TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

func (l *Ledger) applySchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply ledger schema: %w", err)
		}
	}
	return nil
}

// Record stores a run report in one transaction.
func (l *Ledger) Record(ctx context.Context, rep *orchestrator.Report) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	c := rep.Counts()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started, finished, tool_available, applied, already_applied, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, formatTime(rep.Started), formatTime(rep.Finished), boolInt(rep.ToolAvailable),
		c[orchestrator.StatusApplied], c[orchestrator.StatusAlreadyApplied],
		c[orchestrator.StatusSkipped], c[orchestrator.StatusFailed],
	); err != nil {
		return fmt.Errorf("insert run %s: %w", rep.RunID, err)
	}

	for i, o := range rep.Outcomes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, seq, grp, name, step, kind, target, status, reason, detail)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, i, o.Group, o.Name, o.Step, o.Kind, o.Target,
			o.Status.String(), o.Reason.String(), o.Detail,
		); err != nil {
			return fmt.Errorf("insert outcome %d of run %s: %w", i, rep.RunID, err)
		}
	}
	return tx.Commit()
}

// Run is one row of run history.
type Run struct {
	ID             string    `json:"id"`
	Started        time.Time `json:"started"`
	Finished       time.Time `json:"finished"`
	ToolAvailable  bool      `json:"tool_available"`
	Applied        int       `json:"applied"`
	AlreadyApplied int       `json:"already_applied"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
}

// Runs returns the most recent runs, newest first. limit <= 0 means all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, started, finished, tool_available, applied, already_applied, skipped, failed
		FROM runs ORDER BY started DESC, id DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
			tool              int
		)
		if err := rows.Scan(&r.ID, &started, &finished, &tool, &r.Applied, &r.AlreadyApplied, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.Started, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.Finished, err = parseTime(finished); err != nil {
			return nil, err
		}
		r.ToolAvailable = tool != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Outcomes returns a run's outcomes in the order they happened.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]orchestrator.Outcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT grp, name, step, kind, target, status, reason, detail
		 FROM outcomes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []orchestrator.Outcome
	for rows.Next() {
		var (
			o              orchestrator.Outcome
			status, reason string
		)
		if err := rows.Scan(&o.Group, &o.Name, &o.Step, &o.Kind, &o.Target, &status, &reason, &o.Detail); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if o.Status, err = orchestrator.ParseStatus(status); err != nil {
			return nil, err
		}
		if o.Reason, err = orchestrator.ParseReason(reason); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ledger time %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
