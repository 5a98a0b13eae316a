package tools

import (
	"context"
	"time"

	"buildrag/internal/logging"
	"buildrag/pkg/types"
)

// DefaultSafetyWindowDays is the inspection window when callers pass none.
const DefaultSafetyWindowDays = 30

const peerComparisonLimit = 5

// ProjectReader is the slice of the relational store the tools consume.
type ProjectReader interface {
	GetProject(ctx context.Context, projectID string) (*types.Project, error)
	ListTasks(ctx context.Context, projectID string) ([]types.Task, error)
	ListCosts(ctx context.Context, projectID string) ([]types.Cost, error)
	ListSafetyRecords(ctx context.Context, projectID string, since time.Time) ([]types.SafetyRecord, error)
	ListQualityReports(ctx context.Context, projectID string) ([]types.QualityReport, error)
	PeerProjects(ctx context.Context, projectType, excludeID string, limit int) ([]types.Project, error)
}

// ProgressAnalysis bundles every progress tool result for one project.
type ProgressAnalysis struct {
	Status      ProgressStatus       `json:"status"`
	Critical    []types.Task         `json:"critical_path"`
	Bottlenecks []types.Task         `json:"bottlenecks"`
	Prediction  CompletionPrediction `json:"prediction"`
	Resources   ResourceStatus       `json:"resources"`
	Suggestions []string             `json:"suggestions"`
}

// CostAnalysis bundles every cost tool result for one project.
type CostAnalysis struct {
	Status      CostStatus                     `json:"status"`
	Breakdown   map[types.CostCategory]float64 `json:"breakdown"`
	Overruns    []types.CostOverrun            `json:"overruns"`
	Peers       PeerComparison                 `json:"peers"`
	Suggestions []string                       `json:"suggestions"`
}

// SafetyAnalysis bundles every safety tool result for one project.
type SafetyAnalysis struct {
	Status      SafetyStatus        `json:"status"`
	Frequent    []FrequentDefect    `json:"frequent_types"`
	Open        []OpenDefect        `json:"open_defects"`
	Plan        []RectificationItem `json:"rectification_plan"`
	Suggestions []string            `json:"suggestions"`
}

// Toolset wires the pure tool functions to the relational store.
type Toolset struct {
	store  ProjectReader
	logger logging.Logger
	now    func() time.Time
}

// NewToolset creates a toolset over the given store.
func NewToolset(store ProjectReader) *Toolset {
	return &Toolset{
		store:  store,
		logger: logging.WithComponent("tools"),
		now:    time.Now,
	}
}

// AnalyzeProgress runs the full progress tool pass.
func (t *Toolset) AnalyzeProgress(ctx context.Context, projectID string) (*ProgressAnalysis, error) {
	project, err := t.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := t.store.ListTasks(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	spi, _ := OverallSPI(tasks)
	status := ProgressStatus{
		ProjectID:    project.ID,
		OverallSPI:   round4(spi),
		RiskLevel:    ProgressColor(spi),
		TaskCount:    len(tasks),
		DelayedTasks: DelayedTasks(tasks),
	}
	for i := range tasks {
		if tasks[i].Status == types.TaskStatusCompleted {
			status.CompletedCount++
		}
	}

	bottlenecks := Bottlenecks(tasks)
	return &ProgressAnalysis{
		Status:      status,
		Critical:    CriticalPathTasks(tasks),
		Bottlenecks: bottlenecks,
		Prediction:  PredictCompletion(tasks),
		Resources:   ResourceAllocation(tasks),
		Suggestions: ProgressSuggestions(status, bottlenecks),
	}, nil
}

// AnalyzeCost runs the full cost tool pass.
func (t *Toolset) AnalyzeCost(ctx context.Context, projectID string) (*CostAnalysis, error) {
	project, err := t.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	costs, err := t.store.ListCosts(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	peers, err := t.store.PeerProjects(ctx, project.ProjectType, project.ID, peerComparisonLimit)
	if err != nil {
		// Peer history is advisory; the analysis stands without it.
		t.logger.Warn("peer comparison unavailable", "project_id", project.ID, "error", err)
		peers = nil
	}

	status := CostOverview(project, costs)
	overruns := Overruns(costs)
	return &CostAnalysis{
		Status:      status,
		Breakdown:   CategoryBreakdown(costs),
		Overruns:    overruns,
		Peers:       ComparePeers(project, peers),
		Suggestions: CostSuggestions(status, overruns),
	}, nil
}

// AnalyzeSafety runs the full safety tool pass over the window.
func (t *Toolset) AnalyzeSafety(ctx context.Context, projectID string, windowDays int) (*SafetyAnalysis, error) {
	if windowDays <= 0 {
		windowDays = DefaultSafetyWindowDays
	}
	project, err := t.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	now := t.now().UTC()
	records, err := t.store.ListSafetyRecords(ctx, project.ID, now.AddDate(0, 0, -windowDays))
	if err != nil {
		return nil, err
	}

	status := SafetyOverview(project.ID, records, windowDays)
	frequent := FrequentTypes(records, now, windowDays)
	return &SafetyAnalysis{
		Status:      status,
		Frequent:    frequent,
		Open:        OpenDefects(records, now),
		Plan:        RectificationPlan(records, now),
		Suggestions: SafetySuggestions(status, frequent),
	}, nil
}
