// Package tools holds the deterministic analytics facades over the relational
// store. Every function here is read-only and safe to call from concurrent
// workflows. The traffic-light bands are defined here, next to the color
// logic that applies them; the agents package reuses the same constants.
package tools

import (
	"math"

	"buildrag/pkg/types"
)

// Traffic-light thresholds on the schedule performance index.
const (
	SPIRedThreshold    = 0.85
	SPIYellowThreshold = 0.95
)

// Delayed-task rule parameters.
const (
	delayedSPIThreshold      = 0.95
	delayedVarianceThreshold = -5.0
)

// resourceParallelLimit is the in-progress task count above which resource
// allocation is reported as strained.
const resourceParallelLimit = 5

// ProgressStatus is the schedule snapshot of one project.
type ProgressStatus struct {
	ProjectID      string             `json:"project_id"`
	OverallSPI     float64            `json:"overall_spi"`
	RiskLevel      types.SectionColor `json:"risk_level"`
	TaskCount      int                `json:"task_count"`
	CompletedCount int                `json:"completed_count"`
	DelayedTasks   []types.Task       `json:"delayed_tasks"`
}

// CompletionPrediction estimates remaining schedule from current velocity.
type CompletionPrediction struct {
	EACDays      float64 `json:"eac_days"`
	AvgSPI       float64 `json:"avg_spi"`
	Insufficient bool    `json:"insufficient_data"`
}

// ResourceStatus summarizes parallel task load.
type ResourceStatus struct {
	InProgress     int    `json:"in_progress"`
	CriticalActive int    `json:"critical_active"`
	Status         string `json:"status"`
}

// OverallSPI is the mean per-task SPI over tasks that have a planned value.
// The second return is false when no task qualifies.
func OverallSPI(tasks []types.Task) (float64, bool) {
	var sum float64
	var n int
	for i := range tasks {
		if tasks[i].PlannedProgress <= 0 {
			continue
		}
		sum += tasks[i].SPI()
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ProgressColor maps an SPI to the traffic-light level.
func ProgressColor(spi float64) types.SectionColor {
	switch {
	case spi < SPIRedThreshold:
		return types.SectionRed
	case spi < SPIYellowThreshold:
		return types.SectionYellow
	default:
		return types.SectionGreen
	}
}

// DelayedTasks returns tasks flagged as delayed, behind schedule or with a
// variance worse than -5 percentage points.
func DelayedTasks(tasks []types.Task) []types.Task {
	var delayed []types.Task
	for i := range tasks {
		t := tasks[i]
		if t.Status == types.TaskStatusDelayed ||
			(t.PlannedProgress > 0 && t.SPI() < delayedSPIThreshold) ||
			t.Variance() < delayedVarianceThreshold {
			delayed = append(delayed, t)
		}
	}
	return delayed
}

// CriticalPathTasks returns the tasks marked critical-path.
func CriticalPathTasks(tasks []types.Task) []types.Task {
	var critical []types.Task
	for i := range tasks {
		if tasks[i].IsCritical {
			critical = append(critical, tasks[i])
		}
	}
	return critical
}

// Bottlenecks returns incomplete critical-path tasks running behind schedule.
func Bottlenecks(tasks []types.Task) []types.Task {
	var out []types.Task
	for i := range tasks {
		t := tasks[i]
		if t.IsCritical && t.Status != types.TaskStatusCompleted &&
			t.PlannedProgress > 0 && t.SPI() < delayedSPIThreshold {
			out = append(out, t)
		}
	}
	return out
}

// PredictCompletion estimates remaining days as planned remaining work scaled
// by the inverse average SPI. With no usable SPI the prediction is flagged
// insufficient instead of guessed.
func PredictCompletion(tasks []types.Task) CompletionPrediction {
	avgSPI, ok := OverallSPI(tasks)
	if !ok || avgSPI <= 0 {
		return CompletionPrediction{Insufficient: true}
	}
	var plannedRemaining float64
	for i := range tasks {
		t := tasks[i]
		if t.Status == types.TaskStatusCompleted {
			continue
		}
		remaining := 1 - t.ActualProgress/100
		if remaining < 0 {
			remaining = 0
		}
		plannedRemaining += t.PlannedDays * remaining
	}
	return CompletionPrediction{
		EACDays: math.Round(plannedRemaining/avgSPI*10) / 10,
		AvgSPI:  avgSPI,
	}
}

// ResourceAllocation reports parallel in-progress load.
func ResourceAllocation(tasks []types.Task) ResourceStatus {
	var inProgress, criticalActive int
	for i := range tasks {
		if tasks[i].Status != types.TaskStatusInProgress {
			continue
		}
		inProgress++
		if tasks[i].IsCritical {
			criticalActive++
		}
	}
	status := "正常"
	if inProgress > resourceParallelLimit {
		status = "资源紧张"
	}
	return ResourceStatus{InProgress: inProgress, CriticalActive: criticalActive, Status: status}
}

// ProgressSuggestions renders fixed-template advice from the snapshot.
func ProgressSuggestions(status ProgressStatus, bottlenecks []types.Task) []string {
	var out []string
	if status.RiskLevel == types.SectionRed {
		out = append(out, "整体进度严重滞后,建议立即召开专题会议,重排关键线路计划")
	}
	if len(bottlenecks) > 0 {
		out = append(out, "关键线路存在瓶颈任务,建议优先增配资源予以保障")
	}
	if len(status.DelayedTasks) > 0 {
		out = append(out, "对滞后任务逐项制定赶工措施并明确责任人")
	}
	if len(out) == 0 {
		out = append(out, "进度受控,保持当前施工组织")
	}
	return out
}
