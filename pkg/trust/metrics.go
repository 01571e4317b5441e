// Package trust implements the deterministic, closed-form trust scoring
// and reputation evolution pipeline: performance metrics in, a
// six-dimension trust vector and composite score out.
package trust

import "time"

// PnL is an agent's accumulated profit-and-loss snapshot.
type PnL struct {
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalExpenses float64 `json:"totalExpenses"`
	NetProfit     float64 `json:"netProfit"`
}

// Recompute enforces the netProfit invariant.
func (p *PnL) Recompute() {
	p.NetProfit = p.TotalRevenue - p.TotalExpenses
}

// Performance is the recognized set of performance metrics for an agent.
// Pointer fields distinguish "absent" (nil, formulas fall back to a
// documented default) from an explicit zero value, since partial updates
// only touch the metrics they name.
type Performance struct {
	Reliability             *float64   `json:"reliability,omitempty"`
	Uptime                  *float64   `json:"uptime,omitempty"`
	Consistency             *float64   `json:"consistency,omitempty"`
	TaskSuccessRate         *float64   `json:"taskSuccessRate,omitempty"`
	TaskComplexityScore     *float64   `json:"taskComplexityScore,omitempty"`
	BudgetEfficiency        *float64   `json:"budgetEfficiency,omitempty"`
	CooperationScore        *float64   `json:"cooperationScore,omitempty"`
	InformationSharingScore *float64   `json:"informationSharingScore,omitempty"`
	ComplianceHistory       *float64   `json:"complianceHistory,omitempty"`
	RiskExposure            *float64   `json:"riskExposure,omitempty"`
	PolicyViolations        *int       `json:"policyViolations,omitempty"`
	ROI                     *float64   `json:"roi,omitempty"`
	PnL                     *PnL       `json:"pnl,omitempty"`
	LastUpdated             *time.Time `json:"lastUpdated,omitempty"`
}

// DefaultPerformance returns the baseline snapshot assigned to a freshly
// registered identity that supplied no performance data.
func DefaultPerformance(now time.Time) Performance {
	return Performance{
		Reliability:         f64p(1.0),
		Uptime:              f64p(1.0),
		Consistency:         f64p(1.0),
		TaskSuccessRate:     f64p(1.0),
		TaskComplexityScore: f64p(0.0),
		BudgetEfficiency:    f64p(1.0),
		CooperationScore:    f64p(1.0),
		ComplianceHistory:   f64p(1.0),
		RiskExposure:        f64p(0.05),
		PolicyViolations:    intp(0),
		ROI:                 f64p(0.0),
		PnL:                 &PnL{},
		LastUpdated:         &now,
	}
}

// Clone deep-copies a Performance value so callers never mutate a
// previously frozen snapshot in place.
func (p Performance) Clone() Performance {
	out := p
	if p.Reliability != nil {
		out.Reliability = f64p(*p.Reliability)
	}
	if p.Uptime != nil {
		out.Uptime = f64p(*p.Uptime)
	}
	if p.Consistency != nil {
		out.Consistency = f64p(*p.Consistency)
	}
	if p.TaskSuccessRate != nil {
		out.TaskSuccessRate = f64p(*p.TaskSuccessRate)
	}
	if p.TaskComplexityScore != nil {
		out.TaskComplexityScore = f64p(*p.TaskComplexityScore)
	}
	if p.BudgetEfficiency != nil {
		out.BudgetEfficiency = f64p(*p.BudgetEfficiency)
	}
	if p.CooperationScore != nil {
		out.CooperationScore = f64p(*p.CooperationScore)
	}
	if p.InformationSharingScore != nil {
		out.InformationSharingScore = f64p(*p.InformationSharingScore)
	}
	if p.ComplianceHistory != nil {
		out.ComplianceHistory = f64p(*p.ComplianceHistory)
	}
	if p.RiskExposure != nil {
		out.RiskExposure = f64p(*p.RiskExposure)
	}
	if p.PolicyViolations != nil {
		out.PolicyViolations = intp(*p.PolicyViolations)
	}
	if p.ROI != nil {
		out.ROI = f64p(*p.ROI)
	}
	if p.PnL != nil {
		pnl := *p.PnL
		out.PnL = &pnl
	}
	if p.LastUpdated != nil {
		t := *p.LastUpdated
		out.LastUpdated = &t
	}
	return out
}

// Merge overlays non-nil fields of updates onto a clone of p, recomputes
// the PnL invariant, and returns the result. p itself is never mutated.
func (p Performance) Merge(updates Performance) Performance {
	out := p.Clone()

	if updates.Reliability != nil {
		out.Reliability = f64p(*updates.Reliability)
	}
	if updates.Uptime != nil {
		out.Uptime = f64p(*updates.Uptime)
	}
	if updates.Consistency != nil {
		out.Consistency = f64p(*updates.Consistency)
	}
	if updates.TaskSuccessRate != nil {
		out.TaskSuccessRate = f64p(*updates.TaskSuccessRate)
	}
	if updates.TaskComplexityScore != nil {
		out.TaskComplexityScore = f64p(*updates.TaskComplexityScore)
	}
	if updates.BudgetEfficiency != nil {
		out.BudgetEfficiency = f64p(*updates.BudgetEfficiency)
	}
	if updates.CooperationScore != nil {
		out.CooperationScore = f64p(*updates.CooperationScore)
	}
	if updates.InformationSharingScore != nil {
		out.InformationSharingScore = f64p(*updates.InformationSharingScore)
	}
	if updates.ComplianceHistory != nil {
		out.ComplianceHistory = f64p(*updates.ComplianceHistory)
	}
	if updates.RiskExposure != nil {
		out.RiskExposure = f64p(*updates.RiskExposure)
	}
	if updates.PolicyViolations != nil {
		out.PolicyViolations = intp(*updates.PolicyViolations)
	}
	if updates.ROI != nil {
		out.ROI = f64p(*updates.ROI)
	}
	if updates.PnL != nil {
		merged := *out.PnL
		if updates.PnL.TotalRevenue != 0 {
			merged.TotalRevenue = updates.PnL.TotalRevenue
		}
		if updates.PnL.TotalExpenses != 0 {
			merged.TotalExpenses = updates.PnL.TotalExpenses
		}
		out.PnL = &merged
	}
	out.PnL.Recompute()

	return out
}

func (p Performance) reliability() float64         { return orDefault(p.Reliability, 1.0) }
func (p Performance) uptime() float64               { return orDefault(p.Uptime, 1.0) }
func (p Performance) taskSuccessRate() float64       { return orDefault(p.TaskSuccessRate, 1.0) }
func (p Performance) taskComplexityScore() float64   { return orDefault(p.TaskComplexityScore, 0.0) }
func (p Performance) budgetEfficiency() float64      { return orDefault(p.BudgetEfficiency, 1.0) }
func (p Performance) cooperationScore() float64      { return orDefault(p.CooperationScore, 1.0) }
func (p Performance) complianceHistory() float64     { return orDefault(p.ComplianceHistory, 1.0) }
func (p Performance) riskExposure() float64          { return orDefault(p.RiskExposure, 0.05) }
func (p Performance) roi() float64                   { return orDefault(p.ROI, 0.0) }

func (p Performance) policyViolations() int {
	if p.PolicyViolations == nil {
		return 0
	}
	return *p.PolicyViolations
}

// consistency defaults to reliability when absent, per the scoring spec.
func (p Performance) consistency() float64 {
	if p.Consistency != nil {
		return *p.Consistency
	}
	return p.reliability()
}

// informationSharingScore defaults to cooperationScore when absent.
func (p Performance) informationSharingScore() float64 {
	if p.InformationSharingScore != nil {
		return *p.InformationSharingScore
	}
	return p.cooperationScore()
}

func f64p(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
