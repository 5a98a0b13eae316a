package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/pkg/types"
)

func TestWeeklyReportAllGreen(t *testing.T) {
	recorder := newFakeRecorder()
	a := newAgents(healthyStore(), recorder, nil)

	report, err := a.WeeklyReport(context.Background(), "p-1", WeeklyOptions{})
	require.NoError(t, err)

	require.Len(t, report.Sections, 3)
	assert.Equal(t, "进度", report.Sections[0].Name)
	assert.Equal(t, "成本", report.Sections[1].Name)
	assert.Equal(t, "安全", report.Sections[2].Name)
	assert.Equal(t, types.SectionGreen, report.OverallColor)
	assert.Equal(t, 100.0, report.OverallScore)
	assert.Equal(t, []string{"各维度受控,无需专项行动"}, report.ActionItems)

	call, ok := recorder.finalized[1]
	require.True(t, ok)
	assert.Equal(t, types.WorkflowCompleted, call.status)
}

func TestWeeklyReportRedProgressWeighting(t *testing.T) {
	store := healthyStore()
	store.tasks = []types.Task{
		{ID: "t-1", Status: types.TaskStatusInProgress, PlannedProgress: 100, ActualProgress: 60, PlannedDays: 30},
	}
	a := newAgents(store, newFakeRecorder(), nil)

	report, err := a.WeeklyReport(context.Background(), "p-1", WeeklyOptions{})
	require.NoError(t, err)

	assert.Equal(t, types.SectionRed, report.Sections[0].Color)
	// 0.4*40 + 0.35*100 + 0.25*100
	assert.Equal(t, 76.0, report.OverallScore)
	assert.Equal(t, types.SectionYellow, report.OverallColor)
	assert.NotEmpty(t, report.Sections[0].Issues)
	assert.NotEmpty(t, report.ActionItems)
}

func TestWeeklyReportRedSectionNeverGreenOverall(t *testing.T) {
	store := healthyStore()
	// Safety collapses; progress and cost stay green.
	store.safety = []types.SafetyRecord{
		{Passed: false, DefectLevel: types.DefectHigh, DefectType: "临边防护缺失", CheckDate: time.Now().AddDate(0, 0, -1)},
	}
	a := newAgents(store, newFakeRecorder(), nil)

	report, err := a.WeeklyReport(context.Background(), "p-1", WeeklyOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.SectionRed, report.Sections[2].Color)
	assert.NotEqual(t, types.SectionGreen, report.OverallColor)
}

func TestWeeklyReportSectionMetrics(t *testing.T) {
	a := newAgents(healthyStore(), newFakeRecorder(), nil)
	report, err := a.WeeklyReport(context.Background(), "p-1", WeeklyOptions{})
	require.NoError(t, err)

	assert.Contains(t, report.Sections[0].Metrics, "overall_spi")
	assert.Contains(t, report.Sections[1].Metrics, "cpi")
	assert.Contains(t, report.Sections[2].Metrics, "pass_rate")
	assert.NotEmpty(t, report.NextWeekPlan)
}

func TestRenderMarkdown(t *testing.T) {
	a := newAgents(healthyStore(), newFakeRecorder(), nil)
	report, err := a.WeeklyReport(context.Background(), "p-1", WeeklyOptions{})
	require.NoError(t, err)

	md := RenderMarkdown(report)
	assert.Contains(t, md, "# 项目周报 p-1")
	assert.Contains(t, md, "## 进度 [绿]")
	assert.Contains(t, md, "## 行动项")
	assert.Contains(t, md, "## 下周计划")
	assert.NotContains(t, md, "## 智能分析")
}

func TestRenderMarkdownWithInsights(t *testing.T) {
	insights := &fakeInsights{answer: "重点关注主体结构施工"}
	a := newAgents(healthyStore(), newFakeRecorder(), insights)

	report, err := a.WeeklyReport(context.Background(), "p-1", WeeklyOptions{IncludeAIInsights: true})
	require.NoError(t, err)

	md := RenderMarkdown(report)
	assert.Contains(t, md, "## 智能分析")
	assert.Contains(t, md, "重点关注主体结构施工")
}
