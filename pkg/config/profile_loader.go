package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mindburn-labs/agentrust/core/pkg/governance"
)

// GovernanceProfile is a deployment-scoped override document. It can only
// tighten spec.md §4.5/§4.6's default tier thresholds and strictness
// parameters, never loosen them; ApplyTo rejects a document that would.
type GovernanceProfile struct {
	Name       string               `yaml:"name"`
	Thresholds []ThresholdOverride  `yaml:"thresholds,omitempty"`
	Strictness []StrictnessOverride `yaml:"strictness,omitempty"`
}

// ThresholdOverride raises a named tier's MinComposite bar.
type ThresholdOverride struct {
	Tier         string  `yaml:"tier"`
	MinComposite float64 `yaml:"min_composite"`
}

// StrictnessOverride tightens a named strictness level's tolerance row.
type StrictnessOverride struct {
	Level            string  `yaml:"level"`
	RiskTolerance    float64 `yaml:"risk_tolerance"`
	SafetyMargin     float64 `yaml:"safety_margin"`
	MinConfirmations int     `yaml:"min_confirmations"`
}

// LoadGovernanceProfile reads and parses a YAML governance profile
// override document from path.
func LoadGovernanceProfile(path string) (*GovernanceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load governance profile %q: %w", path, err)
	}

	var profile GovernanceProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse governance profile %q: %w", path, err)
	}
	return &profile, nil
}

// ApplyTo installs the profile's overrides into the governance package's
// live tier and strictness tables. Threshold overrides are validated and
// applied first, then strictness overrides; each kind is rejected as a
// whole if any of its overrides would loosen a row. A rejected strictness
// batch does not undo threshold overrides that were already applied.
func (p *GovernanceProfile) ApplyTo() error {
	thresholds := make([]governance.ThresholdOverride, 0, len(p.Thresholds))
	for _, t := range p.Thresholds {
		thresholds = append(thresholds, governance.ThresholdOverride{
			Tier:         governance.TierName(t.Tier),
			MinComposite: t.MinComposite,
		})
	}

	strictness := make([]governance.StrictnessOverride, 0, len(p.Strictness))
	for _, s := range p.Strictness {
		strictness = append(strictness, governance.StrictnessOverride{
			Level:            governance.StrictnessLevel(s.Level),
			RiskTolerance:    s.RiskTolerance,
			SafetyMargin:     s.SafetyMargin,
			MinConfirmations: s.MinConfirmations,
		})
	}

	if len(thresholds) > 0 {
		if err := governance.ApplyOverrides(thresholds); err != nil {
			return err
		}
	}
	if len(strictness) > 0 {
		if err := governance.ApplyStrictnessOverrides(strictness); err != nil {
			return err
		}
	}
	return nil
}
