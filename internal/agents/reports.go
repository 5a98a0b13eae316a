package agents

import (
	"context"

	"buildrag/pkg/types"
)

// AnalysisOptions tunes one dimension analysis run.
type AnalysisOptions struct {
	WindowDays        int  `json:"window_days,omitempty"`
	IncludeAIInsights bool `json:"include_ai_insights,omitempty"`
}

// AnalyzeProgress runs the progress workflow and types its result.
func (a *Agents) AnalyzeProgress(ctx context.Context, projectID string, opts AnalysisOptions) (*types.ProgressReport, error) {
	var report *types.ProgressReport
	err := a.run(ctx, projectID, types.WorkflowProgress, opts, func(ctx context.Context) (string, error) {
		analysis, err := a.tools.AnalyzeProgress(ctx, projectID)
		if err != nil {
			return "", err
		}
		report = &types.ProgressReport{
			ProjectID:     projectID,
			OverallSPI:    analysis.Status.OverallSPI,
			RiskLevel:     riskLevelFromSPI(analysis.Status.OverallSPI),
			DelayedTasks:  analysis.Status.DelayedTasks,
			Bottlenecks:   analysis.Bottlenecks,
			PredictedDays: analysis.Prediction.EACDays,
			Insufficient:  analysis.Prediction.Insufficient,
			Suggestions:   analysis.Suggestions,
			GeneratedAt:   a.now().UTC(),
		}
		if opts.IncludeAIInsights {
			report.AIInsights = a.aiInsights(ctx, projectID,
				"请基于以下进度分析结果给出赶工建议", report)
		}
		return summarize("spi=%.2f level=%s", report.OverallSPI, report.RiskLevel), nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// AnalyzeCost runs the cost workflow and types its result.
func (a *Agents) AnalyzeCost(ctx context.Context, projectID string, opts AnalysisOptions) (*types.CostReport, error) {
	var report *types.CostReport
	err := a.run(ctx, projectID, types.WorkflowCost, opts, func(ctx context.Context) (string, error) {
		analysis, err := a.tools.AnalyzeCost(ctx, projectID)
		if err != nil {
			return "", err
		}
		report = &types.CostReport{
			ProjectID:          projectID,
			CPI:                analysis.Status.CPI,
			EarnedValue:        analysis.Status.EarnedValue,
			ActualCost:         analysis.Status.ActualCost,
			PredictedFinalCost: analysis.Status.PredictedFinalCost,
			PredictedOverrun:   analysis.Status.PredictedOverrun,
			WillExceedBudget:   analysis.Status.WillExceedBudget,
			RiskLevel:          riskLevelFromCPI(analysis.Status.CPI),
			Breakdown:          analysis.Breakdown,
			Overruns:           analysis.Overruns,
			Suggestions:        analysis.Suggestions,
			GeneratedAt:        a.now().UTC(),
		}
		if opts.IncludeAIInsights {
			report.AIInsights = a.aiInsights(ctx, projectID,
				"请基于以下成本分析结果给出成本管控建议", report)
		}
		return summarize("cpi=%.2f level=%s", report.CPI, report.RiskLevel), nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// AnalyzeSafety runs the safety workflow and types its result.
func (a *Agents) AnalyzeSafety(ctx context.Context, projectID string, opts AnalysisOptions) (*types.SafetyReport, error) {
	var report *types.SafetyReport
	err := a.run(ctx, projectID, types.WorkflowSafety, opts, func(ctx context.Context) (string, error) {
		analysis, err := a.tools.AnalyzeSafety(ctx, projectID, opts.WindowDays)
		if err != nil {
			return "", err
		}
		frequent := make([]string, 0, len(analysis.Frequent))
		for _, f := range analysis.Frequent {
			frequent = append(frequent, f.DefectType)
		}
		report = &types.SafetyReport{
			ProjectID:     projectID,
			WindowDays:    analysis.Status.WindowDays,
			PassRate:      analysis.Status.PassRate,
			DefectsByLvl:  analysis.Status.DefectsByLvl,
			OpenDefects:   analysis.Status.OpenDefects,
			ClosedDefects: analysis.Status.ClosedDefects,
			ClosureRate:   analysis.Status.ClosureRate,
			RiskLevel:     riskLevelFromSafety(analysis.Status),
			FrequentTypes: frequent,
			Suggestions:   analysis.Suggestions,
			GeneratedAt:   a.now().UTC(),
		}
		if opts.IncludeAIInsights {
			report.AIInsights = a.aiInsights(ctx, projectID,
				"请基于以下安全分析结果给出隐患治理建议", report)
		}
		return summarize("pass_rate=%.1f level=%s", report.PassRate, report.RiskLevel), nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// QuickScan produces a lightweight per-dimension status without a workflow
// log record.
func (a *Agents) QuickScan(ctx context.Context, projectID string) (*types.QuickScan, error) {
	progress, err := a.tools.AnalyzeProgress(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cost, err := a.tools.AnalyzeCost(ctx, projectID)
	if err != nil {
		return nil, err
	}
	safety, err := a.tools.AnalyzeSafety(ctx, projectID, 0)
	if err != nil {
		return nil, err
	}

	scan := &types.QuickScan{
		ProjectID: projectID,
		Levels: map[types.RiskCategory]types.RiskLevel{
			types.RiskCategoryProgress: colorToRisk(progress.Status.RiskLevel),
			types.RiskCategoryCost:     colorToRisk(cost.Status.RiskLevel),
			types.RiskCategorySafety:   colorToRisk(safety.Status.RiskLevel),
		},
		Metrics: map[string]float64{
			"overall_spi":  progress.Status.OverallSPI,
			"cpi":          cost.Status.CPI,
			"pass_rate":    safety.Status.PassRate,
			"open_defects": float64(safety.Status.OpenDefects),
		},
	}

	if progress.Status.RiskLevel == types.SectionRed {
		scan.Alerts = append(scan.Alerts, types.Alert{
			Level:   types.RiskHigh,
			Title:   "进度预警",
			Message: summarize("整体SPI %.2f", progress.Status.OverallSPI),
			Source:  types.RiskCategoryProgress,
		})
	}
	if cost.Status.RiskLevel == types.SectionRed {
		scan.Alerts = append(scan.Alerts, types.Alert{
			Level:   types.RiskHigh,
			Title:   "成本预警",
			Message: summarize("CPI %.2f", cost.Status.CPI),
			Source:  types.RiskCategoryCost,
		})
	}
	if safety.Status.RiskLevel == types.SectionRed {
		scan.Alerts = append(scan.Alerts, types.Alert{
			Level:   types.RiskHigh,
			Title:   "安全预警",
			Message: summarize("合格率 %.1f%%", safety.Status.PassRate),
			Source:  types.RiskCategorySafety,
		})
	}
	return scan, nil
}
