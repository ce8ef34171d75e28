// Package snapshot keeps the last task snapshot fetched from a task source on disk,
// so a matrix can still be built when the source is unreachable.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"demand-matrix/internal/tasks"

	"github.com/rs/zerolog/log"
)

// Store provides thread-safe storage of task snapshots, partitioned by source id.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*entry
}

type entry struct {
	fetchedAt time.Time
	tasks     []tasks.Task
}

// line is one JSONL record: a header carrying the fetch time, then one line per task.
type line struct {
	FetchedAt *time.Time  `json:"fetchedAt,omitempty"`
	Task      *tasks.Task `json:"task,omitempty"`
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string]*entry)}
}

// Replace stores ts as the snapshot of sourceID. Tasks are de-duplicated by id
// (last one wins) and kept in id order.
func (s *Store) Replace(sourceID string, ts []tasks.Task, fetchedAt time.Time) {
	byID := make(map[string]tasks.Task, len(ts))
	for _, t := range ts {
		byID[t.ID] = t
	}
	out := make([]tasks.Task, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[sourceID] = &entry{fetchedAt: fetchedAt.UTC(), tasks: out}
}

// Tasks returns a copy of the snapshot of sourceID.
func (s *Store) Tasks(sourceID string) []tasks.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.snapshots[sourceID]
	if !ok {
		return nil
	}
	return append([]tasks.Task(nil), e.tasks...)
}

// FetchedAt returns when the snapshot of sourceID was taken; zero if there is none.
func (s *Store) FetchedAt(sourceID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.snapshots[sourceID]; ok {
		return e.fetchedAt
	}
	return time.Time{}
}

// Count returns the number of tasks in the snapshot of sourceID.
func (s *Store) Count(sourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.snapshots[sourceID]; ok {
		return len(e.tasks)
	}
	return 0
}

// Load reads the snapshot of sourceID from its JSONL file in dir.
// A missing file is not an error.
func (s *Store) Load(dir, sourceID string) error {
	path := filepath.Join(dir, fmt.Sprintf("%s.jsonl", sourceID))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var fetchedAt time.Time
	var ts []tasks.Task
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var l line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("Skipping invalid JSON line in snapshot")
			continue
		}
		switch {
		case l.FetchedAt != nil:
			fetchedAt = *l.FetchedAt
		case l.Task != nil:
			ts = append(ts, *l.Task)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading snapshot: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(ts)).Time("fetchedAt", fetchedAt).Msg("Loaded task snapshot")
	s.Replace(sourceID, ts, fetchedAt)
	return nil
}

// Save writes the snapshot of sourceID to a JSONL file in dir, replacing it atomically.
func (s *Store) Save(dir, sourceID string) error {
	s.mu.RLock()
	e, ok := s.snapshots[sourceID]
	s.mu.RUnlock()

	if !ok {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.jsonl", sourceID))
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	fetchedAt := e.fetchedAt
	records := make([]line, 0, len(e.tasks)+1)
	records = append(records, line{FetchedAt: &fetchedAt})
	for i := range e.tasks {
		records = append(records, line{Task: &e.tasks[i]})
	}

	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode snapshot line: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(e.tasks)).Msg("Task snapshot saved")
	return nil
}
