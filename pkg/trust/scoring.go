package trust

import (
	"math"
	"time"
)

// ScoringEngineVersion is stamped onto every computed TrustProfile so
// downstream consumers can detect when the formulas they were scored
// under have changed.
const ScoringEngineVersion = "1.0.0"

// Dimensions is the six-axis trust vector, each clamped to [0,1].
type Dimensions struct {
	Reliability float64 `json:"reliability"`
	Efficiency  float64 `json:"efficiency"`
	Cooperation float64 `json:"cooperation"`
	Compliance  float64 `json:"compliance"`
	RiskSafety  float64 `json:"riskSafety"`
	Competence  float64 `json:"competence"`
}

// Contexts holds the five domain-specific linear projections of Dimensions.
type Contexts struct {
	Financial     float64 `json:"financial"`
	Collaborative float64 `json:"collaborative"`
	Compliance    float64 `json:"compliance"`
	Technical     float64 `json:"technical"`
	Security      float64 `json:"security"`
}

// ProfileMetadata records the provenance of a computed TrustProfile.
type ProfileMetadata struct {
	DataPoints   int    `json:"dataPoints"`
	EngineVersion string `json:"engineVersion"`
}

// TrustProfile is the full output of ComputeTrustScore.
type TrustProfile struct {
	Composite  float64         `json:"composite"`
	Dimensions Dimensions      `json:"dimensions"`
	Contexts   Contexts        `json:"contexts"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   ProfileMetadata `json:"metadata"`
}

// ComputeTrustScore is a pure function of the current performance snapshot
// and, optionally, chronologically-ordered prior snapshots. It never
// mutates its inputs and is safe to call from any goroutine.
func ComputeTrustScore(perf Performance, history []Performance, now time.Time) TrustProfile {
	d := computeDimensions(perf, history)
	c := computeContexts(d)
	composite := round4(0.15*d.Reliability + 0.15*d.Efficiency + 0.20*d.Cooperation +
		0.20*d.Compliance + 0.15*d.RiskSafety + 0.15*d.Competence)

	return TrustProfile{
		Composite:  composite,
		Dimensions: d,
		Contexts:   c,
		Timestamp:  now,
		Metadata: ProfileMetadata{
			DataPoints:    len(history),
			EngineVersion: ScoringEngineVersion,
		},
	}
}

func computeDimensions(perf Performance, history []Performance) Dimensions {
	reliability := clamp01(0.6*perf.uptime() + 0.4*perf.consistency())
	efficiency := clamp01(0.3*clamp01(perf.roi()/100) + 0.7*perf.budgetEfficiency())
	cooperation := clamp01(0.7*perf.cooperationScore() + 0.3*perf.informationSharingScore())
	compliance := clamp01(0.8*math.Max(0, 1-0.2*float64(perf.policyViolations())) + 0.2*perf.complianceHistory())

	riskSafety := clamp01((1 - perf.riskExposure()) * riskTrendFactor(perf, history))
	competence := clamp01(0.8*perf.taskSuccessRate() + 0.2*perf.taskComplexityScore())

	return Dimensions{
		Reliability: round4(reliability),
		Efficiency:  round4(efficiency),
		Cooperation: round4(cooperation),
		Compliance:  round4(compliance),
		RiskSafety:  round4(riskSafety),
		Competence:  round4(competence),
	}
}

// riskTrendFactor penalizes a worsening risk trajectory: 0.9 if history is
// present and the current riskExposure exceeds the most recent prior
// snapshot's, 1.0 otherwise.
func riskTrendFactor(perf Performance, history []Performance) float64 {
	if len(history) == 0 {
		return 1.0
	}
	prior := history[len(history)-1]
	if perf.riskExposure() > prior.riskExposure() {
		return 0.9
	}
	return 1.0
}

func computeContexts(d Dimensions) Contexts {
	return Contexts{
		Financial:     round4(0.6*d.Efficiency + 0.3*d.RiskSafety + 0.1*d.Compliance),
		Collaborative: round4(0.7*d.Cooperation + 0.2*d.Reliability + 0.1*d.Competence),
		Compliance:    round4(0.7*d.Compliance + 0.2*d.RiskSafety + 0.1*d.Reliability),
		Technical:     round4(0.6*d.Competence + 0.3*d.Efficiency + 0.1*d.Reliability),
		Security:      round4(0.5*d.Compliance + 0.4*d.RiskSafety + 0.1*d.Reliability),
	}
}

// Context looks up a named context projection by its spec name
// ("financial", "collaborative", "compliance", "technical", "security").
// The bool is false for an unrecognized name.
func (c Contexts) Context(name string) (float64, bool) {
	switch name {
	case "financial":
		return c.Financial, true
	case "collaborative":
		return c.Collaborative, true
	case "compliance":
		return c.Compliance, true
	case "technical":
		return c.Technical, true
	case "security":
		return c.Security, true
	default:
		return 0, false
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
