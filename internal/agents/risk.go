package agents

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"buildrag/internal/tools"
	"buildrag/pkg/types"
)

// Scan item probabilities per assigned level.
const (
	probCritical = 0.9
	probHigh     = 0.7
	probMedium   = 0.5
)

// Scan item impact scores per category.
const (
	impactSchedule = 0.9
	impactCost     = 0.85
	impactSafety   = 1.0
)

// delayedRatioThreshold flags a project when this share of tasks is delayed.
const delayedRatioThreshold = 0.3

// RiskOptions tunes one risk analysis run.
type RiskOptions struct {
	HistoricalDays    int  `json:"historical_days,omitempty"`
	IncludeAIInsights bool `json:"include_ai_insights,omitempty"`
}

// AnalyzeRisk runs the three scan passes concurrently and aggregates their
// findings into a ranked, mitigated risk report.
func (a *Agents) AnalyzeRisk(ctx context.Context, projectID string, opts RiskOptions) (*types.RiskReport, error) {
	var report *types.RiskReport
	err := a.run(ctx, projectID, types.WorkflowRisk, opts, func(ctx context.Context) (string, error) {
		var progressRisks, costRisks, safetyRisks []types.RiskItem

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			analysis, err := a.tools.AnalyzeProgress(gctx, projectID)
			if err != nil {
				return err
			}
			progressRisks = progressScan(analysis)
			return nil
		})
		g.Go(func() error {
			analysis, err := a.tools.AnalyzeCost(gctx, projectID)
			if err != nil {
				return err
			}
			costRisks = costScan(analysis)
			return nil
		})
		g.Go(func() error {
			analysis, err := a.tools.AnalyzeSafety(gctx, projectID, opts.HistoricalDays)
			if err != nil {
				return err
			}
			safetyRisks = safetyScan(analysis)
			return nil
		})
		if err := g.Wait(); err != nil {
			return "", err
		}

		// Merge in declaration order so the report is deterministic.
		risks := make([]types.RiskItem, 0, len(progressRisks)+len(costRisks)+len(safetyRisks))
		risks = append(risks, progressRisks...)
		risks = append(risks, costRisks...)
		risks = append(risks, safetyRisks...)

		report = a.buildRiskReport(projectID, risks)
		if opts.IncludeAIInsights {
			report.AIInsights = a.aiInsights(ctx, projectID,
				"请针对以下项目风险分析结果给出管控建议", report)
		}
		return summarize("risks=%d overall=%s score=%.1f",
			len(report.Risks), report.OverallLevel, report.OverallScore), nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func newRisk(category types.RiskCategory, level types.RiskLevel, title, description string, impact float64) types.RiskItem {
	prob := probMedium
	switch level {
	case types.RiskCritical:
		prob = probCritical
	case types.RiskHigh:
		prob = probHigh
	}
	return types.RiskItem{
		Category:    category,
		Title:       title,
		Description: description,
		Probability: prob,
		ImpactScore: impact,
		RiskScore:   prob * impact,
		Level:       level,
	}
}

func progressScan(analysis *tools.ProgressAnalysis) []types.RiskItem {
	var risks []types.RiskItem

	spi := analysis.Status.OverallSPI
	if level := riskLevelFromSPI(spi); level != types.RiskLow {
		risks = append(risks, newRisk(types.RiskCategoryProgress, level,
			"整体进度滞后",
			summarize("整体SPI为%.2f,进度绩效低于计划水平", spi),
			impactSchedule))
	}
	if n := len(analysis.Bottlenecks); n > 0 {
		level := types.RiskMedium
		if n >= 2 {
			level = types.RiskHigh
		}
		risks = append(risks, newRisk(types.RiskCategoryProgress, level,
			"关键线路存在瓶颈",
			summarize("%d项关键任务进度落后,可能拖累总工期", n),
			impactSchedule))
	}
	if analysis.Status.TaskCount > 0 {
		ratio := float64(len(analysis.Status.DelayedTasks)) / float64(analysis.Status.TaskCount)
		if ratio > delayedRatioThreshold {
			risks = append(risks, newRisk(types.RiskCategoryProgress, types.RiskMedium,
				"滞后任务面广",
				summarize("%.0f%%的任务处于滞后状态", ratio*100),
				impactSchedule*0.8))
		}
	}
	return risks
}

func costScan(analysis *tools.CostAnalysis) []types.RiskItem {
	var risks []types.RiskItem

	cpi := analysis.Status.CPI
	if level := riskLevelFromCPI(cpi); level != types.RiskLow {
		risks = append(risks, newRisk(types.RiskCategoryCost, level,
			"成本绩效偏低",
			summarize("CPI为%.2f,实际支出超出挣值", cpi),
			impactCost))
	}
	if analysis.Status.WillExceedBudget {
		level := types.RiskMedium
		if analysis.Status.PredictedOverrun >= 0.2 {
			level = types.RiskHigh
		}
		risks = append(risks, newRisk(types.RiskCategoryCost, level,
			"预计超出预算",
			summarize("按当前绩效预测完工成本超出预算%.1f%%", analysis.Status.PredictedOverrun*100),
			impactCost))
	}
	for _, o := range analysis.Overruns {
		if o.Severity != types.RiskCritical && o.Severity != types.RiskHigh {
			continue
		}
		risks = append(risks, newRisk(types.RiskCategoryCost, o.Severity,
			"类别超支: "+string(o.Category),
			summarize("类别%s超支%.1f%%", o.Category, o.OverrunRate*100),
			impactCost*0.8))
	}
	return risks
}

func safetyScan(analysis *tools.SafetyAnalysis) []types.RiskItem {
	var risks []types.RiskItem

	if level := riskLevelFromSafety(analysis.Status); level != types.RiskLow {
		risks = append(risks, newRisk(types.RiskCategorySafety, level,
			"安全检查不达标",
			summarize("窗口期合格率%.1f%%,高级别隐患%d项",
				analysis.Status.PassRate, analysis.Status.DefectsByLvl[types.DefectHigh]),
			impactSafety))
	}
	var urgent int
	for _, d := range analysis.Open {
		if d.Urgency == tools.UrgencyCritical {
			urgent++
		}
	}
	if urgent > 0 {
		risks = append(risks, newRisk(types.RiskCategorySafety, types.RiskHigh,
			"紧急隐患未闭环",
			summarize("%d项高级别隐患超期未整改", urgent),
			impactSafety))
	}
	return risks
}

// buildRiskReport aggregates scan findings: level counts, capped weighted
// score, overall level, alerts, top risks and the mitigation plan.
func (a *Agents) buildRiskReport(projectID string, risks []types.RiskItem) *types.RiskReport {
	counts := make(map[types.RiskLevel]int)
	var weighted float64
	for i := range risks {
		counts[risks[i].Level]++
		weighted += risks[i].RiskScore * levelWeight(risks[i].Level)
	}
	score := math.Min(100, weighted/overallScoreScale*100)

	report := &types.RiskReport{
		ProjectID:    projectID,
		Risks:        risks,
		LevelCounts:  counts,
		OverallScore: math.Round(score*10) / 10,
		OverallLevel: overallLevel(counts, score/100),
		GeneratedAt:  a.now().UTC(),
	}

	for i := range risks {
		r := risks[i]
		if r.Level != types.RiskCritical && r.Level != types.RiskHigh {
			continue
		}
		report.Alerts = append(report.Alerts, types.Alert{
			Level:   r.Level,
			Title:   r.Title,
			Message: r.Description,
			Source:  r.Category,
		})
	}

	report.TopRisks = topRisks(risks)
	report.Mitigations = a.buildMitigations(report.TopRisks)
	return report
}

func overallLevel(counts map[types.RiskLevel]int, normalized float64) types.RiskLevel {
	critical := counts[types.RiskCritical]
	high := counts[types.RiskHigh]
	switch {
	case critical >= 2 || (critical >= 1 && high >= 2):
		return types.RiskCritical
	case critical >= 1 || high >= 3:
		return types.RiskHigh
	case high >= 1 || normalized > overallMediumScore:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func topRisks(risks []types.RiskItem) []types.RiskItem {
	ranked := make([]types.RiskItem, len(risks))
	copy(ranked, risks)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RiskScore != ranked[j].RiskScore {
			return ranked[i].RiskScore > ranked[j].RiskScore
		}
		return ranked[i].Level.Rank() > ranked[j].Level.Rank()
	})
	if len(ranked) > topRiskCount {
		ranked = ranked[:topRiskCount]
	}
	return ranked
}

func (a *Agents) buildMitigations(risks []types.RiskItem) []types.MitigationAction {
	now := a.now().UTC()
	out := make([]types.MitigationAction, 0, len(risks))
	for _, r := range risks {
		priority, days := "P3", deadlineP3
		switch r.Level {
		case types.RiskCritical:
			priority, days = "P0", deadlineP0
		case types.RiskHigh:
			priority, days = "P1", deadlineP1
		case types.RiskMedium:
			priority, days = "P2", deadlineP2
		}
		out = append(out, types.MitigationAction{
			Priority: priority,
			Deadline: now.AddDate(0, 0, days),
			Owner:    mitigationOwner(r.Category),
			Risk:     r,
			Action:   mitigationAction(r),
		})
	}
	return out
}

func mitigationOwner(category types.RiskCategory) string {
	switch category {
	case types.RiskCategoryProgress:
		return "项目经理"
	case types.RiskCategoryCost:
		return "商务经理"
	default:
		return "安全总监"
	}
}

func mitigationAction(r types.RiskItem) string {
	switch r.Category {
	case types.RiskCategoryProgress:
		return "组织进度专题会议,重排关键线路并落实赶工资源"
	case types.RiskCategoryCost:
		return "复核超支类别的单价与用量,收紧非必要支出审批"
	default:
		return "对未闭环隐患限期整改,并开展专项安全检查"
	}
}
