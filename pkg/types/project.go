package types

import "time"

// TaskStatus tracks a project task through execution.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusDelayed    TaskStatus = "delayed"
)

// DefectLevel classifies a safety defect.
type DefectLevel string

const (
	DefectLow    DefectLevel = "low"
	DefectMedium DefectLevel = "medium"
	DefectHigh   DefectLevel = "high"
)

// CostCategory buckets project expenditures.
type CostCategory string

const (
	CostMaterial    CostCategory = "material"
	CostLabor       CostCategory = "labor"
	CostEquipment   CostCategory = "equipment"
	CostSubcontract CostCategory = "subcontract"
)

// Project is an immutable snapshot of one construction project row.
type Project struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ProjectType string    `db:"project_type" json:"project_type"`
	Status      string    `db:"status" json:"status"`
	Budget      float64   `db:"budget" json:"budget"`
	Progress    float64   `db:"progress" json:"progress"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
}

// Task is an immutable snapshot of one project task row.
type Task struct {
	ID              string     `db:"id" json:"id"`
	ProjectID       string     `db:"project_id" json:"project_id"`
	Name            string     `db:"name" json:"name"`
	Status          TaskStatus `db:"status" json:"status"`
	PlannedProgress float64    `db:"planned_progress" json:"planned_progress"`
	ActualProgress  float64    `db:"actual_progress" json:"actual_progress"`
	IsCritical      bool       `db:"is_critical" json:"is_critical"`
	PlannedDays     float64    `db:"planned_days" json:"planned_days"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         time.Time  `db:"end_date" json:"end_date"`
}

// SPI is the schedule performance index: actual over planned progress.
// A task with no planned progress yet reports 1.0.
func (t *Task) SPI() float64 {
	if t.PlannedProgress <= 0 {
		return 1.0
	}
	return t.ActualProgress / t.PlannedProgress
}

// Variance is the progress variance in percentage points.
func (t *Task) Variance() float64 {
	return t.ActualProgress - t.PlannedProgress
}

// Cost is an immutable snapshot of one cost row.
type Cost struct {
	ID         string       `db:"id" json:"id"`
	ProjectID  string       `db:"project_id" json:"project_id"`
	Category   CostCategory `db:"category" json:"category"`
	BudgetAmt  float64      `db:"budget_amount" json:"budget_amount"`
	ActualAmt  float64      `db:"actual_amount" json:"actual_amount"`
	RecordedAt time.Time    `db:"recorded_at" json:"recorded_at"`
}

// VarianceRate is (actual-budget)/budget; zero when no budget is set.
func (c *Cost) VarianceRate() float64 {
	if c.BudgetAmt <= 0 {
		return 0
	}
	return (c.ActualAmt - c.BudgetAmt) / c.BudgetAmt
}

// SafetyRecord is an immutable snapshot of one inspection row.
type SafetyRecord struct {
	ID          string      `db:"id" json:"id"`
	ProjectID   string      `db:"project_id" json:"project_id"`
	CheckDate   time.Time   `db:"check_date" json:"check_date"`
	Passed      bool        `db:"passed" json:"passed"`
	DefectType  string      `db:"defect_type" json:"defect_type"`
	DefectLevel DefectLevel `db:"defect_level" json:"defect_level"`
	Closed      bool        `db:"closed" json:"closed"`
	ClosedAt    *time.Time  `db:"closed_at" json:"closed_at,omitempty"`
}

// DaysOpen reports how long a defect has been (or was) open.
func (s *SafetyRecord) DaysOpen(now time.Time) int {
	end := now
	if s.Closed && s.ClosedAt != nil {
		end = *s.ClosedAt
	}
	d := int(end.Sub(s.CheckDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// QualityReport is an immutable snapshot of one quality inspection row.
type QualityReport struct {
	ID         string    `db:"id" json:"id"`
	ProjectID  string    `db:"project_id" json:"project_id"`
	ReportDate time.Time `db:"report_date" json:"report_date"`
	PassRate   float64   `db:"pass_rate" json:"pass_rate"`
	Summary    string    `db:"summary" json:"summary"`
}
