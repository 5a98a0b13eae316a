package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/pkg/types"
)

func TestAnalyzeProgressReport(t *testing.T) {
	store := &fakeStore{
		project: &types.Project{ID: "p-1", Budget: 1000000, Progress: 40},
		tasks: []types.Task{
			{ID: "t-1", Status: types.TaskStatusInProgress, PlannedProgress: 50, ActualProgress: 40, PlannedDays: 30},
			{ID: "t-2", Status: types.TaskStatusCompleted, PlannedProgress: 100, ActualProgress: 100, PlannedDays: 20},
			{ID: "t-3", Status: types.TaskStatusInProgress, PlannedProgress: 30, ActualProgress: 15, PlannedDays: 60},
		},
	}
	a := newAgents(store, newFakeRecorder(), nil)

	report, err := a.AnalyzeProgress(context.Background(), "p-1", AnalysisOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.7667, report.OverallSPI, 0.0001)
	// 0.75 <= 0.7667 < 0.85
	assert.Equal(t, types.RiskHigh, report.RiskLevel)
	assert.Len(t, report.DelayedTasks, 2)
	assert.False(t, report.Insufficient)
	assert.Positive(t, report.PredictedDays)
	assert.NotEmpty(t, report.Suggestions)
}

func TestAnalyzeCostReport(t *testing.T) {
	store := &fakeStore{
		project: &types.Project{ID: "p-1", Budget: 1000000, Progress: 40},
		costs: []types.Cost{
			{Category: types.CostMaterial, BudgetAmt: 400000, ActualAmt: 300000},
			{Category: types.CostLabor, BudgetAmt: 200000, ActualAmt: 200000},
		},
	}
	a := newAgents(store, newFakeRecorder(), nil)

	report, err := a.AnalyzeCost(context.Background(), "p-1", AnalysisOptions{})
	require.NoError(t, err)
	assert.Equal(t, 400000.0, report.EarnedValue)
	assert.Equal(t, 500000.0, report.ActualCost)
	assert.Equal(t, 0.8, report.CPI)
	assert.Equal(t, 1250000.0, report.PredictedFinalCost)
	assert.Equal(t, 0.25, report.PredictedOverrun)
	assert.True(t, report.WillExceedBudget)
	// 0.75 <= 0.8 < 0.85
	assert.Equal(t, types.RiskHigh, report.RiskLevel)
	assert.Equal(t, 300000.0, report.Breakdown[types.CostMaterial])
}

func TestAnalyzeSafetyReport(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		project: &types.Project{ID: "p-1"},
		safety: []types.SafetyRecord{
			{Passed: true, CheckDate: now.AddDate(0, 0, -1)},
			{Passed: false, DefectType: "临边防护缺失", DefectLevel: types.DefectHigh, CheckDate: now.AddDate(0, 0, -2)},
			{Passed: false, DefectType: "临边防护缺失", DefectLevel: types.DefectHigh, Closed: true, CheckDate: now.AddDate(0, 0, -5)},
		},
	}
	a := newAgents(store, newFakeRecorder(), nil)

	report, err := a.AnalyzeSafety(context.Background(), "p-1", AnalysisOptions{WindowDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, report.WindowDays)
	assert.InDelta(t, 33.3333, report.PassRate, 0.001)
	assert.Equal(t, 2, report.DefectsByLvl[types.DefectHigh])
	assert.Equal(t, 1, report.OpenDefects)
	assert.Equal(t, 1, report.ClosedDefects)
	// Two high defects in window.
	assert.Equal(t, types.RiskHigh, report.RiskLevel)
	assert.Equal(t, []string{"临边防护缺失"}, report.FrequentTypes)
}

func TestQuickScanLevelsAndAlerts(t *testing.T) {
	store := &fakeStore{
		project: &types.Project{ID: "p-1", Budget: 1000000, Progress: 25},
		tasks: []types.Task{
			{ID: "t-1", Status: types.TaskStatusInProgress, PlannedProgress: 100, ActualProgress: 50, PlannedDays: 30},
		},
		costs: []types.Cost{
			{Category: types.CostMaterial, ActualAmt: 500000},
		},
		safety: []types.SafetyRecord{{Passed: true, CheckDate: time.Now()}},
	}
	recorder := newFakeRecorder()
	a := newAgents(store, recorder, nil)

	scan, err := a.QuickScan(context.Background(), "p-1")
	require.NoError(t, err)

	assert.Equal(t, types.RiskHigh, scan.Levels[types.RiskCategoryProgress])
	assert.Equal(t, types.RiskHigh, scan.Levels[types.RiskCategoryCost])
	assert.Equal(t, types.RiskLow, scan.Levels[types.RiskCategorySafety])
	assert.Len(t, scan.Alerts, 2)
	assert.Equal(t, 0.5, scan.Metrics["overall_spi"])
	// Quick scan is lightweight and never writes the workflow log.
	assert.Empty(t, recorder.starts)
}

func TestQuickScanUnknownProject(t *testing.T) {
	a := newAgents(&fakeStore{}, newFakeRecorder(), nil)
	_, err := a.QuickScan(context.Background(), "missing")
	assert.Error(t, err)
}
