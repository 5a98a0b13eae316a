package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/internal/projectdb"
	"buildrag/pkg/types"
)

type fakeStore struct {
	project *types.Project
	tasks   []types.Task
	costs   []types.Cost
	safety  []types.SafetyRecord
	quality []types.QualityReport
	peers   []types.Project
	peerErr error
}

func (f *fakeStore) GetProject(_ context.Context, projectID string) (*types.Project, error) {
	if f.project == nil || f.project.ID != projectID {
		return nil, projectdb.ErrProjectNotFound
	}
	return f.project, nil
}

func (f *fakeStore) ListTasks(context.Context, string) ([]types.Task, error) { return f.tasks, nil }
func (f *fakeStore) ListCosts(context.Context, string) ([]types.Cost, error) { return f.costs, nil }

func (f *fakeStore) ListSafetyRecords(_ context.Context, _ string, _ time.Time) ([]types.SafetyRecord, error) {
	return f.safety, nil
}

func (f *fakeStore) ListQualityReports(context.Context, string) ([]types.QualityReport, error) {
	return f.quality, nil
}

func (f *fakeStore) PeerProjects(context.Context, string, string, int) ([]types.Project, error) {
	return f.peers, f.peerErr
}

func scheduleTasks() []types.Task {
	return []types.Task{
		{ID: "t-1", Name: "基础施工", Status: types.TaskStatusInProgress, PlannedProgress: 50, ActualProgress: 40, IsCritical: true, PlannedDays: 30},
		{ID: "t-2", Name: "土方开挖", Status: types.TaskStatusCompleted, PlannedProgress: 100, ActualProgress: 100, PlannedDays: 20},
		{ID: "t-3", Name: "主体结构", Status: types.TaskStatusInProgress, PlannedProgress: 30, ActualProgress: 15, IsCritical: true, PlannedDays: 60},
	}
}

func TestOverallSPIAveragesPerTask(t *testing.T) {
	spi, ok := OverallSPI(scheduleTasks())
	require.True(t, ok)
	// mean(0.8, 1.0, 0.5)
	assert.InDelta(t, 0.7667, spi, 0.0001)
}

func TestOverallSPISkipsUnplannedTasks(t *testing.T) {
	tasks := []types.Task{
		{PlannedProgress: 0, ActualProgress: 0},
		{PlannedProgress: 50, ActualProgress: 50},
	}
	spi, ok := OverallSPI(tasks)
	require.True(t, ok)
	assert.Equal(t, 1.0, spi)

	_, ok = OverallSPI(tasks[:1])
	assert.False(t, ok)
}

func TestAnalyzeProgressRedBelowThreshold(t *testing.T) {
	store := &fakeStore{
		project: &types.Project{ID: "p-1", Name: "某项目", Budget: 1000000, Progress: 40},
		tasks:   scheduleTasks(),
	}
	analysis, err := NewToolset(store).AnalyzeProgress(context.Background(), "p-1")
	require.NoError(t, err)

	assert.InDelta(t, 0.7667, analysis.Status.OverallSPI, 0.0001)
	assert.Equal(t, types.SectionRed, analysis.Status.RiskLevel)
	assert.Equal(t, 3, analysis.Status.TaskCount)
	assert.Equal(t, 1, analysis.Status.CompletedCount)
}

func TestAnalyzeProgressUnknownProject(t *testing.T) {
	_, err := NewToolset(&fakeStore{}).AnalyzeProgress(context.Background(), "missing")
	assert.ErrorIs(t, err, projectdb.ErrProjectNotFound)
}

func TestProgressColorBands(t *testing.T) {
	assert.Equal(t, types.SectionRed, ProgressColor(0.84))
	assert.Equal(t, types.SectionYellow, ProgressColor(0.85))
	assert.Equal(t, types.SectionYellow, ProgressColor(0.94))
	assert.Equal(t, types.SectionGreen, ProgressColor(0.95))
}

func TestDelayedTasksEachRuleBranch(t *testing.T) {
	tasks := []types.Task{
		{ID: "flagged", Status: types.TaskStatusDelayed, PlannedProgress: 50, ActualProgress: 50},
		{ID: "low-spi", Status: types.TaskStatusInProgress, PlannedProgress: 100, ActualProgress: 90},
		{ID: "variance", Status: types.TaskStatusInProgress, PlannedProgress: 6, ActualProgress: 0},
		{ID: "healthy", Status: types.TaskStatusInProgress, PlannedProgress: 50, ActualProgress: 49},
	}
	delayed := DelayedTasks(tasks)
	ids := make([]string, 0, len(delayed))
	for _, d := range delayed {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"flagged", "low-spi", "variance"}, ids)
}

func TestBottlenecksOnlyIncompleteCriticalBehind(t *testing.T) {
	tasks := []types.Task{
		{ID: "b-1", IsCritical: true, Status: types.TaskStatusInProgress, PlannedProgress: 50, ActualProgress: 30},
		{ID: "done", IsCritical: true, Status: types.TaskStatusCompleted, PlannedProgress: 100, ActualProgress: 90},
		{ID: "not-critical", Status: types.TaskStatusInProgress, PlannedProgress: 50, ActualProgress: 30},
		{ID: "on-track", IsCritical: true, Status: types.TaskStatusInProgress, PlannedProgress: 50, ActualProgress: 50},
	}
	bottlenecks := Bottlenecks(tasks)
	require.Len(t, bottlenecks, 1)
	assert.Equal(t, "b-1", bottlenecks[0].ID)
}

func TestPredictCompletionScalesByInverseSPI(t *testing.T) {
	tasks := []types.Task{
		{Status: types.TaskStatusInProgress, PlannedProgress: 100, ActualProgress: 50, PlannedDays: 40},
	}
	pred := PredictCompletion(tasks)
	require.False(t, pred.Insufficient)
	// remaining 20 planned days at SPI 0.5 takes twice as long.
	assert.Equal(t, 40.0, pred.EACDays)
	assert.Equal(t, 0.5, pred.AvgSPI)
}

func TestPredictCompletionInsufficientWithoutPlannedWork(t *testing.T) {
	pred := PredictCompletion([]types.Task{{PlannedProgress: 0}})
	assert.True(t, pred.Insufficient)
}

func TestResourceAllocationStrained(t *testing.T) {
	var tasks []types.Task
	for i := 0; i < 6; i++ {
		tasks = append(tasks, types.Task{Status: types.TaskStatusInProgress, IsCritical: i == 0})
	}
	status := ResourceAllocation(tasks)
	assert.Equal(t, 6, status.InProgress)
	assert.Equal(t, 1, status.CriticalActive)
	assert.Equal(t, "资源紧张", status.Status)

	assert.Equal(t, "正常", ResourceAllocation(tasks[:3]).Status)
}
