// Package store provides SQLite-backed persistence for tasks, forecast periods
// and the skill, staff and client directories.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"demand-matrix/internal/period"
	"demand-matrix/internal/resolve"
	"demand-matrix/internal/tasks"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store provides access to the demand database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Debug().Str("path", dbPath).Msg("Demand store opened")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE,
		role TEXT
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		client_id TEXT NOT NULL,
		required_skills TEXT NOT NULL,
		estimated_hours REAL NOT NULL,
		recurrence TEXT NOT NULL,
		one_time INTEGER NOT NULL DEFAULT 0,
		preferred_staff_id TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS forecast_periods (
		key TEXT PRIMARY KEY,
		label TEXT,
		demand TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_client_id ON tasks(client_id);
	CREATE INDEX IF NOT EXISTS idx_staff_name ON staff(name);
	CREATE INDEX IF NOT EXISTS idx_clients_name ON clients(name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Directory operations ---

// UpsertSkill stores a skill and returns its id; an empty id gets a fresh UUID.
func (s *Store) UpsertSkill(ctx context.Context, id, name string) (string, error) {
	return s.upsertNamed(ctx, "skills", id, name)
}

// UpsertClient stores a client and returns its id; an empty id gets a fresh UUID.
func (s *Store) UpsertClient(ctx context.Context, id, name string) (string, error) {
	return s.upsertNamed(ctx, "clients", id, name)
}

// UpsertStaff stores a staff member and returns its id; an empty id gets a fresh UUID.
func (s *Store) UpsertStaff(ctx context.Context, id, name, role string) (string, error) {
	id, name, err := newEntry(id, name)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO staff (id, name, role) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role`,
		id, name, nullString(role),
	)
	if err != nil {
		return "", fmt.Errorf("upsert staff %s: %w", id, err)
	}
	return id, nil
}

func (s *Store) upsertNamed(ctx context.Context, table, id, name string) (string, error) {
	id, name, err := newEntry(id, name)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, name,
	)
	if err != nil {
		return "", fmt.Errorf("upsert %s %s: %w", table, id, err)
	}
	return id, nil
}

func newEntry(id, name string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", errors.New("name is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.New().String()
	}
	return id, name, nil
}

// --- resolve.Lookup ---

func table(kind resolve.Kind) (string, error) {
	switch kind {
	case resolve.Skill:
		return "skills", nil
	case resolve.Staff:
		return "staff", nil
	case resolve.Client:
		return "clients", nil
	default:
		return "", fmt.Errorf("unknown identifier kind %q", kind)
	}
}

// LookupName returns the display name for id.
func (s *Store) LookupName(ctx context.Context, kind resolve.Kind, id string) (string, error) {
	tbl, err := table(kind)
	if err != nil {
		return "", err
	}

	var name string
	err = s.db.QueryRowContext(ctx, `SELECT name FROM `+tbl+` WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s %s: %w", kind, id, resolve.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query %s name: %w", kind, err)
	}
	return name, nil
}

// LookupID returns the id for a display name, compared case-insensitively.
func (s *Store) LookupID(ctx context.Context, kind resolve.Kind, name string) (string, error) {
	tbl, err := table(kind)
	if err != nil {
		return "", err
	}

	var id string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM `+tbl+` WHERE name = ? ORDER BY id LIMIT 1`, strings.TrimSpace(name)).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s %q: %w", kind, name, resolve.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query %s id: %w", kind, err)
	}
	return id, nil
}

// ListNames returns every id with its display name.
func (s *Store) ListNames(ctx context.Context, kind resolve.Kind) (map[string]string, error) {
	tbl, err := table(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM `+tbl)
	if err != nil {
		return nil, fmt.Errorf("query %s names: %w", kind, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan %s name: %w", kind, err)
		}
		out[id] = name
	}
	return out, rows.Err()
}

// --- Task operations ---

// UpsertTask stores a task definition; an empty id gets a fresh UUID.
// Client and staff names on the task are not stored; they live in their directories.
func (s *Store) UpsertTask(ctx context.Context, t tasks.Task) (string, error) {
	return upsertTask(ctx, s.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertTask(ctx context.Context, db execer, t tasks.Task) (string, error) {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.New().String()
	}

	skills, err := json.Marshal(t.RequiredSkills)
	if err != nil {
		return "", fmt.Errorf("encode skills of task %s: %w", t.ID, err)
	}
	rec, err := json.Marshal(t.Recurrence)
	if err != nil {
		return "", fmt.Errorf("encode recurrence of task %s: %w", t.ID, err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO tasks (id, name, client_id, required_skills, estimated_hours, recurrence, one_time, preferred_staff_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			client_id = excluded.client_id,
			required_skills = excluded.required_skills,
			estimated_hours = excluded.estimated_hours,
			recurrence = excluded.recurrence,
			one_time = excluded.one_time,
			preferred_staff_id = excluded.preferred_staff_id,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, t.ClientID, string(skills), t.EstimatedHours, string(rec), t.OneTime, nullString(t.PreferredStaffID), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return t.ID, nil
}

// DeleteTask removes a task. Deleting a missing task is not an error.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// ListTasks returns the task snapshot for scope, with client and staff names joined in.
// Rows whose JSON columns cannot be decoded are skipped with a warning.
func (s *Store) ListTasks(ctx context.Context, scope tasks.Scope) ([]tasks.Task, error) {
	query := `
	SELECT t.id, t.name, t.client_id, COALESCE(c.name, ''), t.required_skills, t.estimated_hours,
	       t.recurrence, t.one_time, COALESCE(t.preferred_staff_id, ''), COALESCE(st.name, ''), COALESCE(st.role, '')
	FROM tasks t
	LEFT JOIN clients c ON c.id = t.client_id
	LEFT JOIN staff st ON st.id = t.preferred_staff_id`

	var args []interface{}
	if len(scope.ClientIDs) > 0 {
		placeholders := make([]string, len(scope.ClientIDs))
		for i, id := range scope.ClientIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` WHERE t.client_id IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY t.client_id, t.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		var t tasks.Task
		var skills, rec string
		if err := rows.Scan(&t.ID, &t.Name, &t.ClientID, &t.ClientName, &skills, &t.EstimatedHours,
			&rec, &t.OneTime, &t.PreferredStaffID, &t.PreferredStaffName, &t.PreferredStaffRole); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if err := json.Unmarshal([]byte(skills), &t.RequiredSkills); err != nil {
			log.Warn().Str("task", t.ID).Err(err).Msg("Skipping task with unreadable skills")
			continue
		}
		if err := json.Unmarshal([]byte(rec), &t.Recurrence); err != nil {
			log.Warn().Str("task", t.ID).Err(err).Msg("Skipping task with unreadable recurrence")
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Forecast periods ---

// UpsertPeriod stores a forecast period keyed by its month.
func (s *Store) UpsertPeriod(ctx context.Context, fp period.ForecastPeriod) error {
	return upsertPeriod(ctx, s.db, fp)
}

func upsertPeriod(ctx context.Context, db execer, fp period.ForecastPeriod) error {
	p, err := period.ParseKey(fp.Key)
	if err != nil {
		return err
	}
	demand, err := json.Marshal(fp.Demand)
	if err != nil {
		return fmt.Errorf("encode demand of period %s: %w", p.Key, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO forecast_periods (key, label, demand) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET label = excluded.label, demand = excluded.demand`,
		p.Key, nullString(fp.Label), string(demand),
	)
	if err != nil {
		return fmt.Errorf("upsert period %s: %w", p.Key, err)
	}
	return nil
}

// ListPeriods returns the stored forecast periods in key order.
func (s *Store) ListPeriods(ctx context.Context) ([]period.ForecastPeriod, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, COALESCE(label, ''), COALESCE(demand, '') FROM forecast_periods ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	var out []period.ForecastPeriod
	for rows.Next() {
		var fp period.ForecastPeriod
		var demand string
		if err := rows.Scan(&fp.Key, &fp.Label, &demand); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		if demand != "" && demand != "null" {
			if err := json.Unmarshal([]byte(demand), &fp.Demand); err != nil {
				log.Warn().Str("period", fp.Key).Err(err).Msg("Ignoring unreadable period demand")
			}
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
