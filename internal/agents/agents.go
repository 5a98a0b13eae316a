// Package agents orchestrates the analytics workflows: risk analysis, the
// weekly report and the per-dimension analyses. Every run is bracketed by a
// workflow-log record; observability failures never surface to callers.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"buildrag/internal/logging"
	"buildrag/internal/rag"
	"buildrag/internal/tools"
	"buildrag/pkg/types"
)

// Critical cutoffs below the tools traffic-light bands. The high and medium
// boundaries reuse the bands defined in the tools package; only the critical
// escalation is an agent concern.
const (
	spiCriticalThreshold = 0.75
	cpiCriticalThreshold = 0.75
)

// High-severity open-defect counts that escalate the safety dimension.
const (
	highDefectsCriticalCount = 5
	highDefectsHighCount     = 2
)

// Risk level weights for overall scoring.
const (
	weightCritical = 1.0
	weightHigh     = 0.7
	weightMedium   = 0.4
	weightLow      = 0.1
)

// overallScoreScale is the weighted-score sum that maps to 100. The cap keeps
// the score in [0,100] while staying monotone in added risks.
const overallScoreScale = 2.0

// overallMediumScore is the normalized score above which a risk set without
// high risks still reports medium.
const overallMediumScore = 0.4

// Mitigation deadlines in days per priority.
const (
	deadlineP0 = 1
	deadlineP1 = 3
	deadlineP2 = 7
	deadlineP3 = 14
)

const topRiskCount = 5

// insightTopK bounds retrieval when asking the pipeline for AI insights.
const insightTopK = 3

// workflowRecorder is the slice of the workflow log the agents use.
type workflowRecorder interface {
	Start(ctx context.Context, projectID string, workflowType types.WorkflowType, inputParams string) (int64, error)
	Finalize(ctx context.Context, id int64, status types.WorkflowStatus, summary, errMsg string) error
}

// insightClient is the slice of the QA pipeline the agents use.
type insightClient interface {
	Ask(ctx context.Context, req rag.Request) (*types.Answer, error)
}

// Agents bundles the workflow orchestrators over one toolset.
type Agents struct {
	tools    *tools.Toolset
	log      workflowRecorder
	insights insightClient
	logger   logging.Logger
	now      func() time.Time
}

// New creates the agent set. The insight client may be nil; AI insights are
// then silently skipped.
func New(toolset *tools.Toolset, log workflowRecorder, insights insightClient) *Agents {
	return &Agents{
		tools:    toolset,
		log:      log,
		insights: insights,
		logger:   logging.WithComponent("agents"),
		now:      time.Now,
	}
}

// run brackets one agent invocation with a workflow-log record. Log failures
// are swallowed; the analysis error is returned untouched.
func (a *Agents) run(ctx context.Context, projectID string, workflowType types.WorkflowType, params any, fn func(ctx context.Context) (string, error)) error {
	var logID int64
	if a.log != nil {
		id, err := a.log.Start(ctx, projectID, workflowType, encodeParams(params))
		if err != nil {
			a.logger.Warn("workflow log start failed", "workflow", workflowType, "error", err)
		} else {
			logID = id
		}
	}

	summary, err := fn(ctx)

	if a.log != nil && logID != 0 {
		status := types.WorkflowCompleted
		var errMsg string
		if err != nil {
			status = types.WorkflowFailed
			errMsg = err.Error()
			summary = ""
		}
		if ferr := a.log.Finalize(ctx, logID, status, summary, errMsg); ferr != nil {
			a.logger.Warn("workflow log finalize failed", "workflow", workflowType, "error", ferr)
		}
	}
	return err
}

func encodeParams(params any) string {
	if params == nil {
		return "{}"
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// aiInsights asks the QA pipeline for advice grounded on the structured
// result. Any failure yields an empty list, never an error.
func (a *Agents) aiInsights(ctx context.Context, projectID, query string, result any) []string {
	if a.insights == nil {
		return nil
	}
	answer, err := a.insights.Ask(ctx, rag.Request{
		Query:        query,
		TopK:         insightTopK,
		ProjectID:    projectID,
		ExtraContext: encodeParams(result),
		SkipCache:    true,
	})
	if err != nil || answer == nil {
		a.logger.Warn("ai insights unavailable", "project_id", projectID, "error", err)
		return nil
	}
	var lines []string
	for _, line := range strings.Split(answer.Answer, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func levelWeight(level types.RiskLevel) float64 {
	switch level {
	case types.RiskCritical:
		return weightCritical
	case types.RiskHigh:
		return weightHigh
	case types.RiskMedium:
		return weightMedium
	default:
		return weightLow
	}
}

func riskLevelFromSPI(spi float64) types.RiskLevel {
	switch {
	case spi < spiCriticalThreshold:
		return types.RiskCritical
	case spi < tools.SPIRedThreshold:
		return types.RiskHigh
	case spi < tools.SPIYellowThreshold:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func riskLevelFromCPI(cpi float64) types.RiskLevel {
	switch {
	case cpi < cpiCriticalThreshold:
		return types.RiskCritical
	case cpi < tools.CPIRedThreshold:
		return types.RiskHigh
	case cpi < tools.CPIYellowThreshold:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func riskLevelFromSafety(status tools.SafetyStatus) types.RiskLevel {
	highOpen := status.DefectsByLvl[types.DefectHigh]
	switch {
	case highOpen >= highDefectsCriticalCount:
		return types.RiskCritical
	case highOpen >= highDefectsHighCount || status.PassRate < tools.SafetyRedPassRate:
		return types.RiskHigh
	case status.PassRate < tools.SafetyYellowPassRate:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// colorToRisk maps a tool traffic light to the agent risk scale.
func colorToRisk(color types.SectionColor) types.RiskLevel {
	switch color {
	case types.SectionRed:
		return types.RiskHigh
	case types.SectionYellow:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func summarize(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
