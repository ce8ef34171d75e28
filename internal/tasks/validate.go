package tasks

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"demand-matrix/internal/diag"

	"github.com/rs/zerolog/log"
)

// ErrInvalidTask is wrapped by every structural validation failure.
var ErrInvalidTask = errors.New("invalid task")

// Validate checks the structural soundness of a task record.
func Validate(t Task) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: task %s has no name", ErrInvalidTask, t.ID)
	}
	if len(ParseIdentifiers(t.RequiredSkills)) == 0 {
		return fmt.Errorf("%w: task %s lists no required skills", ErrInvalidTask, t.ID)
	}
	if math.IsNaN(t.EstimatedHours) || math.IsInf(t.EstimatedHours, 0) {
		return fmt.Errorf("%w: task %s has non-finite estimated hours", ErrInvalidTask, t.ID)
	}
	if t.EstimatedHours < 0 {
		return fmt.Errorf("%w: task %s has negative estimated hours (%.2f)", ErrInvalidTask, t.ID, t.EstimatedHours)
	}
	return nil
}

// Normalize validates tasks and classifies their skill references.
// Invalid tasks are dropped with a diagnostic; the input slice is never modified.
func Normalize(raw []Task) ([]Task, []diag.Diagnostic) {
	valid := make([]Task, 0, len(raw))
	var diags []diag.Diagnostic

	for _, t := range raw {
		if err := Validate(t); err != nil {
			log.Warn().Str("task", t.ID).Err(err).Msg("Excluding task from demand computation")
			diags = append(diags, diag.Warn("validate", t.ID, "%v", err))
			continue
		}

		norm := t
		norm.Skills = dedupeIdentifiers(ParseIdentifiers(t.RequiredSkills))
		norm.Recurrence.Weekdays = append([]int(nil), t.Recurrence.Weekdays...)
		valid = append(valid, norm)
	}

	return valid, diags
}

func dedupeIdentifiers(ids []Identifier) []Identifier {
	seen := make(map[Identifier]bool, len(ids))
	out := make([]Identifier, 0, len(ids))
	for _, id := range ids {
		key := id
		if key.Kind == Named {
			key.Value = FoldName(key.Value)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, id)
	}
	return out
}
