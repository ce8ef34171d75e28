package matrix

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(testResolver(), Options{Clock: fixedNow})
}

func TestEngine_BuildMatrixTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := newTestEngine().BuildMatrix(ctx, sampleTasks(), months("2025-01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_BuildMatrixCancelledIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().BuildMatrix(ctx, sampleTasks(), months("2025-01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestEngine_FilterMatrixResolvesReferences(t *testing.T) {
	e := newTestEngine()
	built, err := e.BuildMatrix(context.Background(), sampleTasks(), months("2025-01", "2025-02"))
	require.NoError(t, err)

	res, err := e.FilterMatrix(context.Background(), built.Matrix, FilterRequest{
		Skills:  []string{auditSkillID},
		Clients: []string{"acme"},
		Staff:   []string{"Alice Moreau"},
	})
	require.NoError(t, err)
	require.True(t, res.Valid)

	assert.Equal(t, []string{"Audit"}, res.Matrix.Skills)
	require.NotEmpty(t, res.Matrix.DataPoints)
	for _, dp := range res.Matrix.DataPoints {
		for _, entry := range dp.Tasks {
			assert.Equal(t, acmeID, entry.ClientID)
			assert.Equal(t, staffAliceID, entry.PreferredStaffID)
		}
	}
}

func TestEngine_FilterMatrixShowOnlyUnassigned(t *testing.T) {
	e := newTestEngine()
	built, err := e.BuildMatrix(context.Background(), sampleTasks(), months("2025-02"))
	require.NoError(t, err)

	res, err := e.FilterMatrix(context.Background(), built.Matrix, FilterRequest{ShowOnlyPreferred: true})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, dp := range res.Matrix.DataPoints {
		for _, entry := range dp.Tasks {
			ids[entry.TaskID] = true
		}
	}
	assert.Equal(t, map[string]bool{"m1": true, "a1": true}, ids)
}

func TestEngine_DrillDown(t *testing.T) {
	e := newTestEngine()
	built, err := e.BuildMatrix(context.Background(), sampleTasks(), months("2025-01"))
	require.NoError(t, err)

	got, err := e.DrillDown(built.Matrix, "Tax", "2025-01")
	require.NoError(t, err)
	assert.InDelta(t, 16, got.DemandHours, tolerance)

	_, err = e.DrillDown(built.Matrix, "Tax", "2030-01")
	assert.ErrorIs(t, err, ErrCellNotFound)
}

func TestEngine_MonthlyDemandBySkill(t *testing.T) {
	e := newTestEngine()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	hours, warnings, err := e.MonthlyDemandBySkill(context.Background(), sampleTasks(), start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, hours, 2)
	assert.Equal(t, "Audit", hours[0].Skill)
	assert.InDelta(t, 4*30.44/7+6, hours[0].Hours, tolerance)
	assert.Equal(t, "Tax", hours[1].Skill)
	assert.InDelta(t, 16, hours[1].Hours, tolerance)
}

func TestEngine_MonthlyDemandBySkillRejectsEmptyWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := newTestEngine().MonthlyDemandBySkill(context.Background(), sampleTasks(), start, start)
	assert.Error(t, err)
}
