package types

import (
	"time"
)

// RiskLevel ranks severity for risks, sections and whole projects.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

// Rank orders risk levels for comparisons; higher is worse.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	default:
		return 1
	}
}

// RiskCategory names the scan pass that produced a risk.
type RiskCategory string

const (
	RiskCategoryProgress RiskCategory = "progress"
	RiskCategoryCost     RiskCategory = "cost"
	RiskCategorySafety   RiskCategory = "safety"
)

// RiskItem is one typed risk produced by a scan pass.
type RiskItem struct {
	Category    RiskCategory `json:"category"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Probability float64      `json:"probability"`
	ImpactScore float64      `json:"impact_score"`
	RiskScore   float64      `json:"risk_score"`
	Level       RiskLevel    `json:"level"`
}

// MitigationAction is one entry of the risk mitigation plan.
type MitigationAction struct {
	Priority string    `json:"priority"`
	Deadline time.Time `json:"deadline"`
	Owner    string    `json:"owner"`
	Risk     RiskItem  `json:"risk"`
	Action   string    `json:"action"`
}

// Alert is raised for every critical or high risk.
type Alert struct {
	Level   RiskLevel    `json:"level"`
	Title   string       `json:"title"`
	Message string       `json:"message"`
	Source  RiskCategory `json:"source"`
}

// RiskReport is the structured result of a full risk analysis.
type RiskReport struct {
	ProjectID    string             `json:"project_id"`
	Risks        []RiskItem         `json:"risks"`
	LevelCounts  map[RiskLevel]int  `json:"level_counts"`
	OverallScore float64            `json:"overall_score"`
	OverallLevel RiskLevel          `json:"overall_level"`
	Alerts       []Alert            `json:"alerts"`
	TopRisks     []RiskItem         `json:"top_risks"`
	Mitigations  []MitigationAction `json:"mitigation_plan"`
	AIInsights   []string           `json:"ai_insights,omitempty"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// ProgressReport is the structured result of a progress analysis.
type ProgressReport struct {
	ProjectID     string     `json:"project_id"`
	OverallSPI    float64    `json:"overall_spi"`
	RiskLevel     RiskLevel  `json:"risk_level"`
	DelayedTasks  []Task     `json:"delayed_tasks"`
	Bottlenecks   []Task     `json:"bottlenecks"`
	PredictedDays float64    `json:"predicted_days,omitempty"`
	Insufficient  bool       `json:"insufficient_data,omitempty"`
	Suggestions   []string   `json:"suggestions"`
	AIInsights    []string   `json:"ai_insights,omitempty"`
	GeneratedAt   time.Time  `json:"generated_at"`
}

// CostReport is the structured result of a cost analysis.
type CostReport struct {
	ProjectID          string                   `json:"project_id"`
	CPI                float64                  `json:"cpi"`
	EarnedValue        float64                  `json:"earned_value"`
	ActualCost         float64                  `json:"actual_cost"`
	PredictedFinalCost float64                  `json:"predicted_final_cost"`
	PredictedOverrun   float64                  `json:"predicted_overrun_rate"`
	WillExceedBudget   bool                     `json:"will_exceed_budget"`
	RiskLevel          RiskLevel                `json:"risk_level"`
	Breakdown          map[CostCategory]float64 `json:"category_breakdown"`
	Overruns           []CostOverrun            `json:"overruns"`
	Suggestions        []string                 `json:"suggestions"`
	AIInsights         []string                 `json:"ai_insights,omitempty"`
	GeneratedAt        time.Time                `json:"generated_at"`
}

// CostOverrun describes one category running over budget.
type CostOverrun struct {
	Category    CostCategory `json:"category"`
	OverrunRate float64      `json:"overrun_rate"`
	Severity    RiskLevel    `json:"severity"`
}

// SafetyReport is the structured result of a safety analysis.
type SafetyReport struct {
	ProjectID     string              `json:"project_id"`
	WindowDays    int                 `json:"window_days"`
	PassRate      float64             `json:"pass_rate"`
	DefectsByLvl  map[DefectLevel]int `json:"defects_by_level"`
	OpenDefects   int                 `json:"open_defects"`
	ClosedDefects int                 `json:"closed_defects"`
	ClosureRate   float64             `json:"closure_rate"`
	RiskLevel     RiskLevel           `json:"risk_level"`
	FrequentTypes []string            `json:"frequent_types"`
	Suggestions   []string            `json:"suggestions"`
	AIInsights    []string            `json:"ai_insights,omitempty"`
	GeneratedAt   time.Time           `json:"generated_at"`
}

// SectionColor is the traffic-light status of one weekly-report section.
type SectionColor string

const (
	SectionGreen  SectionColor = "green"
	SectionYellow SectionColor = "yellow"
	SectionRed    SectionColor = "red"
)

// ReportSection is one dimension of the weekly report.
type ReportSection struct {
	Name       string       `json:"name"`
	Color      SectionColor `json:"color"`
	Highlights []string     `json:"highlights"`
	Issues     []string     `json:"issues"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// WeeklyReport aggregates progress, cost and safety for one week.
type WeeklyReport struct {
	ProjectID    string          `json:"project_id"`
	Sections     []ReportSection `json:"sections"`
	OverallColor SectionColor    `json:"overall_color"`
	OverallScore float64         `json:"overall_score"`
	ActionItems  []string        `json:"action_items"`
	NextWeekPlan []string        `json:"next_week_plan"`
	AIInsights   []string        `json:"ai_insights,omitempty"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// QuickScan is the lightweight per-dimension status snapshot.
type QuickScan struct {
	ProjectID string                     `json:"project_id"`
	Levels    map[RiskCategory]RiskLevel `json:"levels"`
	Alerts    []Alert                    `json:"alerts"`
	Metrics   map[string]float64         `json:"metrics"`
}

// WorkflowType names an agent workflow in the run log.
type WorkflowType string

const (
	WorkflowProgress WorkflowType = "progress_analysis"
	WorkflowCost     WorkflowType = "cost_analysis"
	WorkflowSafety   WorkflowType = "safety_analysis"
	WorkflowRisk     WorkflowType = "risk_analysis"
	WorkflowWeekly   WorkflowType = "weekly_report"
)

// WorkflowStatus is the lifecycle state of one agent run.
type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// WorkflowLogEntry is the durable record of one agent run.
type WorkflowLogEntry struct {
	ID            int64          `db:"id" json:"id"`
	ProjectID     string         `db:"project_id" json:"project_id"`
	WorkflowType  WorkflowType   `db:"workflow_type" json:"workflow_type"`
	StartTime     time.Time      `db:"start_time" json:"start_time"`
	EndTime       *time.Time     `db:"end_time" json:"end_time,omitempty"`
	Status        WorkflowStatus `db:"status" json:"status"`
	InputParams   string         `db:"input_params" json:"input_params"`
	OutputSummary string         `db:"output_summary" json:"output_summary,omitempty"`
	ErrorMessage  string         `db:"error_message" json:"error_message,omitempty"`
}
