package tools

import (
	"math"
	"sort"

	"buildrag/pkg/types"
)

// Traffic-light thresholds on the cost performance index.
const (
	CPIRedThreshold    = 0.85
	CPIYellowThreshold = 0.95
)

// Overrun severity thresholds on the category overrun rate.
const (
	overrunCriticalRate = 0.30
	overrunHighRate     = 0.15
	overrunMediumRate   = 0.05
)

// CostStatus is the earned-value snapshot of one project.
type CostStatus struct {
	ProjectID          string             `json:"project_id"`
	Budget             float64            `json:"budget"`
	EarnedValue        float64            `json:"earned_value"`
	ActualCost         float64            `json:"actual_cost"`
	CPI                float64            `json:"cpi"`
	PredictedFinalCost float64            `json:"predicted_final_cost"`
	PredictedOverrun   float64            `json:"predicted_overrun_rate"`
	WillExceedBudget   bool               `json:"will_exceed_budget"`
	RiskLevel          types.SectionColor `json:"risk_level"`
}

// PeerComparison compares a project budget to completed peers of its type.
type PeerComparison struct {
	PeerCount     int     `json:"peer_count"`
	AvgPeerBudget float64 `json:"avg_peer_budget"`
	BudgetDelta   float64 `json:"budget_delta_rate"`
}

// CostOverview computes the earned-value metrics. Earned value is budget
// scaled by reported progress; CPI is earned over actual. With no actual
// spend yet CPI reports 1.0 and the forecast equals the budget.
func CostOverview(project *types.Project, costs []types.Cost) CostStatus {
	var actual float64
	for i := range costs {
		actual += costs[i].ActualAmt
	}
	earned := project.Budget * project.Progress / 100

	cpi := 1.0
	if actual > 0 {
		cpi = earned / actual
	}
	eac := project.Budget
	if cpi > 0 {
		eac = project.Budget / cpi
	}
	overrun := 0.0
	if project.Budget > 0 {
		overrun = (eac - project.Budget) / project.Budget
	}

	return CostStatus{
		ProjectID:          project.ID,
		Budget:             project.Budget,
		EarnedValue:        earned,
		ActualCost:         actual,
		CPI:                round4(cpi),
		PredictedFinalCost: math.Round(eac),
		PredictedOverrun:   round4(overrun),
		WillExceedBudget:   eac > project.Budget,
		RiskLevel:          CostColor(cpi),
	}
}

// CostColor maps a CPI to the traffic-light level.
func CostColor(cpi float64) types.SectionColor {
	switch {
	case cpi < CPIRedThreshold:
		return types.SectionRed
	case cpi < CPIYellowThreshold:
		return types.SectionYellow
	default:
		return types.SectionGreen
	}
}

// CategoryBreakdown sums actual spend per cost category.
func CategoryBreakdown(costs []types.Cost) map[types.CostCategory]float64 {
	breakdown := make(map[types.CostCategory]float64)
	for i := range costs {
		breakdown[costs[i].Category] += costs[i].ActualAmt
	}
	return breakdown
}

// Overruns finds categories running over budget, ranked worst first.
func Overruns(costs []types.Cost) []types.CostOverrun {
	type pair struct{ budget, actual float64 }
	byCategory := make(map[types.CostCategory]*pair)
	for i := range costs {
		c := costs[i]
		p, ok := byCategory[c.Category]
		if !ok {
			p = &pair{}
			byCategory[c.Category] = p
		}
		p.budget += c.BudgetAmt
		p.actual += c.ActualAmt
	}

	var out []types.CostOverrun
	for category, p := range byCategory {
		if p.budget <= 0 {
			continue
		}
		rate := (p.actual - p.budget) / p.budget
		if rate <= 0 {
			continue
		}
		out = append(out, types.CostOverrun{
			Category:    category,
			OverrunRate: round4(rate),
			Severity:    overrunSeverity(rate),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OverrunRate != out[j].OverrunRate {
			return out[i].OverrunRate > out[j].OverrunRate
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func overrunSeverity(rate float64) types.RiskLevel {
	switch {
	case rate >= overrunCriticalRate:
		return types.RiskCritical
	case rate >= overrunHighRate:
		return types.RiskHigh
	case rate >= overrunMediumRate:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// ComparePeers measures the project budget against completed peers of the
// same type. Delta is relative to the peer average.
func ComparePeers(project *types.Project, peers []types.Project) PeerComparison {
	if len(peers) == 0 {
		return PeerComparison{}
	}
	var sum float64
	for i := range peers {
		sum += peers[i].Budget
	}
	avg := sum / float64(len(peers))
	delta := 0.0
	if avg > 0 {
		delta = (project.Budget - avg) / avg
	}
	return PeerComparison{
		PeerCount:     len(peers),
		AvgPeerBudget: math.Round(avg),
		BudgetDelta:   round4(delta),
	}
}

// CostSuggestions renders fixed-template advice from the snapshot.
func CostSuggestions(status CostStatus, overruns []types.CostOverrun) []string {
	var out []string
	if status.RiskLevel == types.SectionRed {
		out = append(out, "成本绩效严重偏离,建议冻结非必要支出并重新审批采购计划")
	}
	if status.WillExceedBudget {
		out = append(out, "按当前绩效预计超出预算,需启动成本专项管控")
	}
	for _, o := range overruns {
		if o.Severity == types.RiskCritical || o.Severity == types.RiskHigh {
			out = append(out, "类别 "+string(o.Category)+" 超支明显,建议复核单价与用量")
		}
	}
	if len(out) == 0 {
		out = append(out, "成本受控,保持当前支出节奏")
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
