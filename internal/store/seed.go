package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"demand-matrix/internal/period"
	"demand-matrix/internal/tasks"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Entry is a directory record in a seed file.
type Entry struct {
	ID   string `yaml:"id,omitempty"`
	Name string `yaml:"name"`
	Role string `yaml:"role,omitempty"`
}

// Seed is the YAML import format: directories, task definitions and forecast periods.
type Seed struct {
	Skills  []Entry                 `yaml:"skills"`
	Staff   []Entry                 `yaml:"staff"`
	Clients []Entry                 `yaml:"clients"`
	Tasks   []tasks.Task            `yaml:"tasks"`
	Periods []period.ForecastPeriod `yaml:"periods"`
}

// ImportStats reports what an import wrote.
type ImportStats struct {
	Skills  int `json:"skills"`
	Staff   int `json:"staff"`
	Clients int `json:"clients"`
	Tasks   int `json:"tasks"`
	Periods int `json:"periods"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// Import writes a seed in a single transaction. Task client and staff references
// may use directory names from the same seed; they are stored as ids.
func (s *Store) Import(ctx context.Context, seed *Seed) (ImportStats, error) {
	var stats ImportStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	// Entries without an id reuse the id of an existing record with the same name.
	assign := func(tbl string, entries []Entry) (map[string]string, error) {
		byName := make(map[string]string, len(entries))
		for i := range entries {
			if strings.TrimSpace(entries[i].ID) == "" {
				var existing string
				err := tx.QueryRowContext(ctx, `SELECT id FROM `+tbl+` WHERE name = ? ORDER BY id LIMIT 1`, strings.TrimSpace(entries[i].Name)).Scan(&existing)
				switch {
				case err == nil:
					entries[i].ID = existing
				case errors.Is(err, sql.ErrNoRows):
					entries[i].ID = uuid.New().String()
				default:
					return nil, fmt.Errorf("look up %s %q: %w", tbl, entries[i].Name, err)
				}
			}
			byName[tasks.FoldName(entries[i].Name)] = entries[i].ID
		}
		return byName, nil
	}
	skills := append([]Entry(nil), seed.Skills...)
	staff := append([]Entry(nil), seed.Staff...)
	clients := append([]Entry(nil), seed.Clients...)
	if _, err := assign("skills", skills); err != nil {
		return stats, err
	}
	staffByName, err := assign("staff", staff)
	if err != nil {
		return stats, err
	}
	clientsByName, err := assign("clients", clients)
	if err != nil {
		return stats, err
	}

	for _, e := range skills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO skills (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			e.ID, strings.TrimSpace(e.Name)); err != nil {
			return stats, fmt.Errorf("import skill %q: %w", e.Name, err)
		}
		stats.Skills++
	}
	for _, e := range staff {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO staff (id, name, role) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role`,
			e.ID, strings.TrimSpace(e.Name), nullString(e.Role)); err != nil {
			return stats, fmt.Errorf("import staff %q: %w", e.Name, err)
		}
		stats.Staff++
	}
	for _, e := range clients {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clients (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			e.ID, strings.TrimSpace(e.Name)); err != nil {
			return stats, fmt.Errorf("import client %q: %w", e.Name, err)
		}
		stats.Clients++
	}

	for _, t := range seed.Tasks {
		if id, ok := clientsByName[tasks.FoldName(t.ClientID)]; ok {
			t.ClientID = id
		} else if id, ok := clientsByName[tasks.FoldName(t.ClientName)]; ok && t.ClientID == "" {
			t.ClientID = id
		}
		if id, ok := staffByName[tasks.FoldName(t.PreferredStaffID)]; ok {
			t.PreferredStaffID = id
		} else if id, ok := staffByName[tasks.FoldName(t.PreferredStaffName)]; ok && t.PreferredStaffID == "" {
			t.PreferredStaffID = id
		}
		if _, err := upsertTask(ctx, tx, t); err != nil {
			return stats, err
		}
		stats.Tasks++
	}

	for _, fp := range seed.Periods {
		if err := upsertPeriod(ctx, tx, fp); err != nil {
			return stats, err
		}
		stats.Periods++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit import: %w", err)
	}

	log.Info().
		Int("skills", stats.Skills).
		Int("staff", stats.Staff).
		Int("clients", stats.Clients).
		Int("tasks", stats.Tasks).
		Int("periods", stats.Periods).
		Msg("Seed imported")
	return stats, nil
}
