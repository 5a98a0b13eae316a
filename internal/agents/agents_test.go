package agents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/internal/projectdb"
	"buildrag/internal/rag"
	"buildrag/internal/tools"
	"buildrag/pkg/types"
)

type fakeStore struct {
	project *types.Project
	tasks   []types.Task
	costs   []types.Cost
	safety  []types.SafetyRecord
	peers   []types.Project
}

func (f *fakeStore) GetProject(_ context.Context, projectID string) (*types.Project, error) {
	if f.project == nil || f.project.ID != projectID {
		return nil, projectdb.ErrProjectNotFound
	}
	return f.project, nil
}

func (f *fakeStore) ListTasks(context.Context, string) ([]types.Task, error) { return f.tasks, nil }
func (f *fakeStore) ListCosts(context.Context, string) ([]types.Cost, error) { return f.costs, nil }

func (f *fakeStore) ListSafetyRecords(context.Context, string, time.Time) ([]types.SafetyRecord, error) {
	return f.safety, nil
}

func (f *fakeStore) ListQualityReports(context.Context, string) ([]types.QualityReport, error) {
	return nil, nil
}

func (f *fakeStore) PeerProjects(context.Context, string, string, int) ([]types.Project, error) {
	return f.peers, nil
}

type logCall struct {
	status  types.WorkflowStatus
	summary string
	errMsg  string
}

type fakeRecorder struct {
	mu        sync.Mutex
	startErr  error
	starts    []types.WorkflowType
	finalized map[int64]logCall
	nextID    int64
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{finalized: map[int64]logCall{}}
}

func (f *fakeRecorder) Start(_ context.Context, _ string, workflowType types.WorkflowType, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return 0, f.startErr
	}
	f.nextID++
	f.starts = append(f.starts, workflowType)
	return f.nextID, nil
}

func (f *fakeRecorder) Finalize(_ context.Context, id int64, status types.WorkflowStatus, summary, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized[id] = logCall{status: status, summary: summary, errMsg: errMsg}
	return nil
}

type fakeInsights struct {
	answer string
	err    error
	lastQ  string
}

func (f *fakeInsights) Ask(_ context.Context, req rag.Request) (*types.Answer, error) {
	f.lastQ = req.Query
	if f.err != nil {
		return nil, f.err
	}
	return &types.Answer{Answer: f.answer}, nil
}

// healthyStore seeds a project with no findings in any dimension.
func healthyStore() *fakeStore {
	return &fakeStore{
		project: &types.Project{ID: "p-1", Name: "某项目", Budget: 1000000, Progress: 50},
		tasks: []types.Task{
			{ID: "t-1", Status: types.TaskStatusInProgress, PlannedProgress: 50, ActualProgress: 50, PlannedDays: 30},
		},
		costs: []types.Cost{
			{Category: types.CostMaterial, BudgetAmt: 500000, ActualAmt: 480000},
		},
		safety: []types.SafetyRecord{{Passed: true, CheckDate: time.Now()}},
	}
}

func newAgents(store *fakeStore, recorder *fakeRecorder, insights insightClient) *Agents {
	return New(tools.NewToolset(store), recorder, insights)
}

func TestRunBracketsWithWorkflowLog(t *testing.T) {
	recorder := newFakeRecorder()
	a := newAgents(healthyStore(), recorder, nil)

	report, err := a.AnalyzeProgress(context.Background(), "p-1", AnalysisOptions{})
	require.NoError(t, err)
	require.NotNil(t, report)

	require.Equal(t, []types.WorkflowType{types.WorkflowProgress}, recorder.starts)
	call, ok := recorder.finalized[1]
	require.True(t, ok)
	assert.Equal(t, types.WorkflowCompleted, call.status)
	assert.NotEmpty(t, call.summary)
	assert.Empty(t, call.errMsg)
}

func TestUnknownProjectFinalizesFailed(t *testing.T) {
	recorder := newFakeRecorder()
	a := newAgents(&fakeStore{}, recorder, nil)

	_, err := a.AnalyzeProgress(context.Background(), "missing", AnalysisOptions{})
	require.ErrorIs(t, err, projectdb.ErrProjectNotFound)

	call, ok := recorder.finalized[1]
	require.True(t, ok)
	assert.Equal(t, types.WorkflowFailed, call.status)
	assert.Equal(t, "Project not found", call.errMsg)
	assert.Empty(t, call.summary)
}

func TestLogStartFailureDoesNotFailAnalysis(t *testing.T) {
	recorder := newFakeRecorder()
	recorder.startErr = assert.AnError
	a := newAgents(healthyStore(), recorder, nil)

	report, err := a.AnalyzeProgress(context.Background(), "p-1", AnalysisOptions{})
	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.Empty(t, recorder.finalized)
}

func TestAIInsightsSplitIntoLines(t *testing.T) {
	insights := &fakeInsights{answer: "1. 加快基础施工\n\n2. 复核材料采购计划\n"}
	a := newAgents(healthyStore(), newFakeRecorder(), insights)

	report, err := a.AnalyzeProgress(context.Background(), "p-1", AnalysisOptions{IncludeAIInsights: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"1. 加快基础施工", "2. 复核材料采购计划"}, report.AIInsights)
	assert.NotEmpty(t, insights.lastQ)
}

// Risk bands and tool traffic lights share one set of constants, so both
// must flip at exactly the same boundary values.
func TestRiskBandsAlignWithToolColors(t *testing.T) {
	const eps = 1e-9

	assert.Equal(t, types.RiskHigh, riskLevelFromSPI(tools.SPIRedThreshold-eps))
	assert.Equal(t, types.SectionRed, tools.ProgressColor(tools.SPIRedThreshold-eps))
	assert.Equal(t, types.RiskMedium, riskLevelFromSPI(tools.SPIRedThreshold))
	assert.Equal(t, types.SectionYellow, tools.ProgressColor(tools.SPIRedThreshold))
	assert.Equal(t, types.RiskLow, riskLevelFromSPI(tools.SPIYellowThreshold))
	assert.Equal(t, types.SectionGreen, tools.ProgressColor(tools.SPIYellowThreshold))

	assert.Equal(t, types.RiskHigh, riskLevelFromCPI(tools.CPIRedThreshold-eps))
	assert.Equal(t, types.SectionRed, tools.CostColor(tools.CPIRedThreshold-eps))
	assert.Equal(t, types.RiskLow, riskLevelFromCPI(tools.CPIYellowThreshold))
	assert.Equal(t, types.SectionGreen, tools.CostColor(tools.CPIYellowThreshold))

	assert.Equal(t, types.RiskHigh, riskLevelFromSafety(tools.SafetyStatus{PassRate: tools.SafetyRedPassRate - eps, DefectsByLvl: map[types.DefectLevel]int{}}))
	assert.Equal(t, types.SectionRed, tools.SafetyColor(tools.SafetyRedPassRate-eps))
	assert.Equal(t, types.RiskLow, riskLevelFromSafety(tools.SafetyStatus{PassRate: tools.SafetyYellowPassRate, DefectsByLvl: map[types.DefectLevel]int{}}))
	assert.Equal(t, types.SectionGreen, tools.SafetyColor(tools.SafetyYellowPassRate))
}

func TestAIInsightsFailureYieldsEmptyList(t *testing.T) {
	insights := &fakeInsights{err: assert.AnError}
	a := newAgents(healthyStore(), newFakeRecorder(), insights)

	report, err := a.AnalyzeProgress(context.Background(), "p-1", AnalysisOptions{IncludeAIInsights: true})
	require.NoError(t, err)
	assert.Empty(t, report.AIInsights)
}
