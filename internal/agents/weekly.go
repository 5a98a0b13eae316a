package agents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"buildrag/internal/tools"
	"buildrag/pkg/types"
)

// Section weights for the overall weekly score.
const (
	sectionWeightProgress = 0.40
	sectionWeightCost     = 0.35
	sectionWeightSafety   = 0.25
)

// Traffic-light scores per section color.
const (
	scoreGreen  = 100.0
	scoreYellow = 70.0
	scoreRed    = 40.0
)

// Overall color bands on the weighted score.
const (
	overallGreenScore  = 90.0
	overallYellowScore = 70.0
)

// WeeklyOptions tunes one weekly report run.
type WeeklyOptions struct {
	IncludeAIInsights bool `json:"include_ai_insights,omitempty"`
}

// WeeklyReport collects the three dimension sections concurrently and scores
// them into one traffic-light report.
func (a *Agents) WeeklyReport(ctx context.Context, projectID string, opts WeeklyOptions) (*types.WeeklyReport, error) {
	var report *types.WeeklyReport
	err := a.run(ctx, projectID, types.WorkflowWeekly, opts, func(ctx context.Context) (string, error) {
		var progress *tools.ProgressAnalysis
		var cost *tools.CostAnalysis
		var safety *tools.SafetyAnalysis

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			progress, err = a.tools.AnalyzeProgress(gctx, projectID)
			return err
		})
		g.Go(func() (err error) {
			cost, err = a.tools.AnalyzeCost(gctx, projectID)
			return err
		})
		g.Go(func() (err error) {
			safety, err = a.tools.AnalyzeSafety(gctx, projectID, 0)
			return err
		})
		if err := g.Wait(); err != nil {
			return "", err
		}

		report = a.buildWeeklyReport(projectID, progress, cost, safety)
		if opts.IncludeAIInsights {
			report.AIInsights = a.aiInsights(ctx, projectID,
				"请基于以下项目周报数据给出下周工作重点建议", report)
		}
		return summarize("overall=%s score=%.0f", report.OverallColor, report.OverallScore), nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// buildWeeklyReport assembles sections in declaration order and applies the
// weighted traffic-light scoring.
func (a *Agents) buildWeeklyReport(projectID string, progress *tools.ProgressAnalysis, cost *tools.CostAnalysis, safety *tools.SafetyAnalysis) *types.WeeklyReport {
	sections := []types.ReportSection{
		progressSection(progress),
		costSection(cost),
		safetySection(safety),
	}

	score := sectionWeightProgress*colorScore(sections[0].Color) +
		sectionWeightCost*colorScore(sections[1].Color) +
		sectionWeightSafety*colorScore(sections[2].Color)

	overall := types.SectionRed
	switch {
	case score >= overallGreenScore:
		overall = types.SectionGreen
	case score >= overallYellowScore:
		overall = types.SectionYellow
	}
	// One red dimension rules out a green week.
	if overall == types.SectionGreen {
		for _, s := range sections {
			if s.Color == types.SectionRed {
				overall = types.SectionYellow
				break
			}
		}
	}

	report := &types.WeeklyReport{
		ProjectID:    projectID,
		Sections:     sections,
		OverallColor: overall,
		OverallScore: math.Round(score*10) / 10,
		GeneratedAt:  a.now().UTC(),
	}
	report.ActionItems = actionItems(sections)
	report.NextWeekPlan = nextWeekPlan(progress, safety)
	return report
}

func colorScore(color types.SectionColor) float64 {
	switch color {
	case types.SectionGreen:
		return scoreGreen
	case types.SectionYellow:
		return scoreYellow
	default:
		return scoreRed
	}
}

func progressSection(analysis *tools.ProgressAnalysis) types.ReportSection {
	section := types.ReportSection{
		Name:  "进度",
		Color: analysis.Status.RiskLevel,
		Metrics: map[string]float64{
			"overall_spi":     analysis.Status.OverallSPI,
			"delayed_tasks":   float64(len(analysis.Status.DelayedTasks)),
			"completed_tasks": float64(analysis.Status.CompletedCount),
		},
	}
	if analysis.Status.RiskLevel == types.SectionGreen {
		section.Highlights = append(section.Highlights,
			summarize("进度受控,整体SPI %.2f", analysis.Status.OverallSPI))
	} else {
		section.Issues = append(section.Issues,
			summarize("整体SPI %.2f,%d项任务滞后", analysis.Status.OverallSPI, len(analysis.Status.DelayedTasks)))
	}
	if n := len(analysis.Bottlenecks); n > 0 {
		section.Issues = append(section.Issues, summarize("关键线路瓶颈任务%d项", n))
	}
	if analysis.Status.CompletedCount > 0 {
		section.Highlights = append(section.Highlights,
			summarize("本期完成任务%d项", analysis.Status.CompletedCount))
	}
	return section
}

func costSection(analysis *tools.CostAnalysis) types.ReportSection {
	section := types.ReportSection{
		Name:  "成本",
		Color: analysis.Status.RiskLevel,
		Metrics: map[string]float64{
			"cpi":          analysis.Status.CPI,
			"actual_cost":  analysis.Status.ActualCost,
			"earned_value": analysis.Status.EarnedValue,
		},
	}
	if analysis.Status.RiskLevel == types.SectionGreen {
		section.Highlights = append(section.Highlights,
			summarize("成本受控,CPI %.2f", analysis.Status.CPI))
	} else {
		section.Issues = append(section.Issues,
			summarize("CPI %.2f,预计完工成本%.0f", analysis.Status.CPI, analysis.Status.PredictedFinalCost))
	}
	for _, o := range analysis.Overruns {
		if o.Severity == types.RiskCritical || o.Severity == types.RiskHigh {
			section.Issues = append(section.Issues,
				summarize("类别%s超支%.1f%%", o.Category, o.OverrunRate*100))
		}
	}
	return section
}

func safetySection(analysis *tools.SafetyAnalysis) types.ReportSection {
	section := types.ReportSection{
		Name:  "安全",
		Color: analysis.Status.RiskLevel,
		Metrics: map[string]float64{
			"pass_rate":    analysis.Status.PassRate,
			"open_defects": float64(analysis.Status.OpenDefects),
			"closure_rate": analysis.Status.ClosureRate,
		},
	}
	if analysis.Status.RiskLevel == types.SectionGreen {
		section.Highlights = append(section.Highlights,
			summarize("安全检查合格率%.1f%%", analysis.Status.PassRate))
	} else {
		section.Issues = append(section.Issues,
			summarize("安全检查合格率%.1f%%,未闭环隐患%d项",
				analysis.Status.PassRate, analysis.Status.OpenDefects))
	}
	return section
}

func actionItems(sections []types.ReportSection) []string {
	var items []string
	for _, s := range sections {
		for _, issue := range s.Issues {
			items = append(items, s.Name+": "+issue)
		}
	}
	if len(items) == 0 {
		items = append(items, "各维度受控,无需专项行动")
	}
	return items
}

func nextWeekPlan(progress *tools.ProgressAnalysis, safety *tools.SafetyAnalysis) []string {
	var plan []string
	if len(progress.Bottlenecks) > 0 {
		plan = append(plan, "优先保障关键线路瓶颈任务的资源投入")
	}
	if len(progress.Status.DelayedTasks) > 0 {
		plan = append(plan, "对滞后任务逐项落实赶工措施")
	}
	if safety.Status.OpenDefects > 0 {
		plan = append(plan, "按整改计划完成未闭环隐患销项")
	}
	plan = append(plan, "保持周例会与日常巡检节奏")
	return plan
}

// RenderMarkdown renders a weekly report for human readers.
func RenderMarkdown(report *types.WeeklyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 项目周报 %s\n\n", report.ProjectID)
	fmt.Fprintf(&b, "**总体状态**: %s (%.1f分)\n\n", colorLabel(report.OverallColor), report.OverallScore)

	for _, s := range report.Sections {
		fmt.Fprintf(&b, "## %s [%s]\n\n", s.Name, colorLabel(s.Color))
		for _, h := range s.Highlights {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		for _, issue := range s.Issues {
			fmt.Fprintf(&b, "- ⚠ %s\n", issue)
		}
		b.WriteString("\n")
	}

	b.WriteString("## 行动项\n\n")
	for _, item := range report.ActionItems {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	b.WriteString("\n## 下周计划\n\n")
	for _, item := range report.NextWeekPlan {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	if len(report.AIInsights) > 0 {
		b.WriteString("\n## 智能分析\n\n")
		for _, line := range report.AIInsights {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

func colorLabel(color types.SectionColor) string {
	switch color {
	case types.SectionGreen:
		return "绿"
	case types.SectionYellow:
		return "黄"
	default:
		return "红"
	}
}
