package tools

import (
	"sort"
	"time"

	"buildrag/pkg/types"
)

// Urgency labels for open defects.
const (
	UrgencyCritical = "紧急"
	UrgencyMajor    = "重要"
	UrgencyNormal   = "一般"
)

// Open-defect urgency rule parameters.
const (
	urgentDaysOpen = 7
	majorDaysOpen  = 14
)

// Rectification deadline buckets in days.
const (
	rectifyPhaseUrgent = 3
	rectifyPhaseMajor  = 7
	rectifyPhaseNormal = 14
)

// Traffic-light thresholds on safety pass rate (percent).
const (
	SafetyRedPassRate    = 85.0
	SafetyYellowPassRate = 95.0
)

// SafetyStatus is the inspection snapshot over one window.
type SafetyStatus struct {
	ProjectID     string                    `json:"project_id"`
	WindowDays    int                       `json:"window_days"`
	CheckCount    int                       `json:"check_count"`
	PassRate      float64                   `json:"pass_rate"`
	DefectsByLvl  map[types.DefectLevel]int `json:"defects_by_level"`
	OpenDefects   int                       `json:"open_defects"`
	ClosedDefects int                       `json:"closed_defects"`
	ClosureRate   float64                   `json:"closure_rate"`
	RiskLevel     types.SectionColor        `json:"risk_level"`
}

// FrequentDefect is one recurring defect type with its window trend.
type FrequentDefect struct {
	DefectType string `json:"defect_type"`
	Count      int    `json:"count"`
	Trend      string `json:"trend"`
}

// OpenDefect is one unresolved defect annotated with urgency.
type OpenDefect struct {
	Record   types.SafetyRecord `json:"record"`
	DaysOpen int                `json:"days_open"`
	Urgency  string             `json:"urgency"`
}

// RectificationItem is one entry of the phased rectification plan.
type RectificationItem struct {
	Record       types.SafetyRecord `json:"record"`
	Urgency      string             `json:"urgency"`
	DeadlineDays int                `json:"deadline_days"`
	Deadline     time.Time          `json:"deadline"`
}

// SafetyOverview aggregates inspection results over the window. With no
// checks the pass rate reports 100 and the level is green.
func SafetyOverview(projectID string, records []types.SafetyRecord, windowDays int) SafetyStatus {
	status := SafetyStatus{
		ProjectID:    projectID,
		WindowDays:   windowDays,
		DefectsByLvl: make(map[types.DefectLevel]int),
		PassRate:     100,
		ClosureRate:  100,
	}
	var passed int
	for i := range records {
		r := records[i]
		status.CheckCount++
		if r.Passed {
			passed++
			continue
		}
		status.DefectsByLvl[r.DefectLevel]++
		if r.Closed {
			status.ClosedDefects++
		} else {
			status.OpenDefects++
		}
	}
	if status.CheckCount > 0 {
		status.PassRate = round4(float64(passed) / float64(status.CheckCount) * 100)
	}
	if total := status.OpenDefects + status.ClosedDefects; total > 0 {
		status.ClosureRate = round4(float64(status.ClosedDefects) / float64(total) * 100)
	}
	status.RiskLevel = SafetyColor(status.PassRate)
	return status
}

// SafetyColor maps a pass rate to the traffic-light level.
func SafetyColor(passRate float64) types.SectionColor {
	switch {
	case passRate < SafetyRedPassRate:
		return types.SectionRed
	case passRate < SafetyYellowPassRate:
		return types.SectionYellow
	default:
		return types.SectionGreen
	}
}

// FrequentTypes counts failed inspections per defect type, most frequent
// first. The trend compares the second half of the window to the first.
func FrequentTypes(records []types.SafetyRecord, now time.Time, windowDays int) []FrequentDefect {
	counts := make(map[string]int)
	firstHalf := make(map[string]int)
	secondHalf := make(map[string]int)
	mid := now.AddDate(0, 0, -windowDays/2)

	for i := range records {
		r := records[i]
		if r.Passed || r.DefectType == "" {
			continue
		}
		counts[r.DefectType]++
		if r.CheckDate.Before(mid) {
			firstHalf[r.DefectType]++
		} else {
			secondHalf[r.DefectType]++
		}
	}

	out := make([]FrequentDefect, 0, len(counts))
	for defectType, count := range counts {
		trend := "平稳"
		switch {
		case secondHalf[defectType] > firstHalf[defectType]:
			trend = "上升"
		case secondHalf[defectType] < firstHalf[defectType]:
			trend = "下降"
		}
		out = append(out, FrequentDefect{DefectType: defectType, Count: count, Trend: trend})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].DefectType < out[j].DefectType
	})
	return out
}

// OpenDefects lists unresolved defects, most urgent and oldest first.
func OpenDefects(records []types.SafetyRecord, now time.Time) []OpenDefect {
	var out []OpenDefect
	for i := range records {
		r := records[i]
		if r.Passed || r.Closed {
			continue
		}
		days := r.DaysOpen(now)
		out = append(out, OpenDefect{
			Record:   r,
			DaysOpen: days,
			Urgency:  defectUrgency(r.DefectLevel, days),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Urgency != out[j].Urgency {
			return urgencyRank(out[i].Urgency) > urgencyRank(out[j].Urgency)
		}
		return out[i].DaysOpen > out[j].DaysOpen
	})
	return out
}

func defectUrgency(level types.DefectLevel, daysOpen int) string {
	switch {
	case level == types.DefectHigh && daysOpen > urgentDaysOpen:
		return UrgencyCritical
	case level == types.DefectHigh || daysOpen > majorDaysOpen:
		return UrgencyMajor
	default:
		return UrgencyNormal
	}
}

func urgencyRank(urgency string) int {
	switch urgency {
	case UrgencyCritical:
		return 3
	case UrgencyMajor:
		return 2
	default:
		return 1
	}
}

// RectificationPlan buckets open defects into three deadline phases.
func RectificationPlan(records []types.SafetyRecord, now time.Time) []RectificationItem {
	open := OpenDefects(records, now)
	out := make([]RectificationItem, 0, len(open))
	for _, d := range open {
		days := rectifyPhaseNormal
		switch d.Urgency {
		case UrgencyCritical:
			days = rectifyPhaseUrgent
		case UrgencyMajor:
			days = rectifyPhaseMajor
		}
		out = append(out, RectificationItem{
			Record:       d.Record,
			Urgency:      d.Urgency,
			DeadlineDays: days,
			Deadline:     now.AddDate(0, 0, days),
		})
	}
	return out
}

// SafetySuggestions renders fixed-template advice from the snapshot.
func SafetySuggestions(status SafetyStatus, frequent []FrequentDefect) []string {
	var out []string
	if status.RiskLevel == types.SectionRed {
		out = append(out, "安全检查合格率偏低,建议组织全面安全整顿")
	}
	if status.OpenDefects > 0 {
		out = append(out, "存在未闭环隐患,按整改计划限期销项")
	}
	for _, f := range frequent {
		if f.Trend == "上升" {
			out = append(out, "隐患类型 "+f.DefectType+" 呈上升趋势,建议针对性开展专项检查")
			break
		}
	}
	if len(out) == 0 {
		out = append(out, "安全态势平稳,保持日常巡检频次")
	}
	return out
}
