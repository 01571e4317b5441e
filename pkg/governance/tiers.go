// Package governance maps a trust score onto a discrete authority tier
// and gates proposed actions against that tier through a pre-execution
// validator.
package governance

import (
	"fmt"
	"sync"
	"time"
)

// Permission is a coarse-grained capability an authority tier may grant.
type Permission string

const (
	PermissionRead   Permission = "R"
	PermissionWrite  Permission = "W"
	PermissionExec   Permission = "X"
	PermissionCommit Permission = "COMMIT"
	PermissionGovern Permission = "GOVERN"
	PermissionAdmin  Permission = "ADMIN"
	PermissionSudo   Permission = "SUDO"
)

// DelegationScope bounds how far an identity may delegate authority.
type DelegationScope string

const (
	ScopeUnrestricted   DelegationScope = "UNRESTRICTED"
	ScopeCrossDomain    DelegationScope = "CROSS_DOMAIN"
	ScopeDomainSpecific DelegationScope = "DOMAIN_SPECIFIC"
	ScopeSupervisedOnly DelegationScope = "SUPERVISED_ONLY"
	ScopeNone           DelegationScope = "NONE"
)

// TierName names one of the five discrete authority tiers.
type TierName string

const (
	TierEliteAuthority       TierName = "ELITE_AUTHORITY"
	TierHighTrust            TierName = "HIGH_TRUST"
	TierStandardOperational  TierName = "STANDARD_OPERATIONAL"
	TierRestricted           TierName = "RESTRICTED"
	TierProbationary         TierName = "PROBATIONARY"
)

// BudgetLimits caps spend at three granularities.
type BudgetLimits struct {
	Ceiling          float64 `json:"ceiling"`
	Daily            float64 `json:"daily"`
	SingleTransaction float64 `json:"singleTransaction"`
}

// DelegationLimits bounds how authority may be passed on.
type DelegationLimits struct {
	Max              int             `json:"max"`
	Scope            DelegationScope `json:"scope"`
	AllowsLowerTrust bool            `json:"allowsLowerTrust"`
	AutoApproveAt    float64         `json:"autoApproveAt"`
}

// tierDefinition is the static, immutable row of the tier table.
type tierDefinition struct {
	Name           TierName
	MinComposite   float64
	Permissions    []Permission
	Budget         BudgetLimits
	Delegation     DelegationLimits
	Strictness     StrictnessLevel
}

// tierTable is ordered highest threshold first so Classify can short-circuit
// on the first row the score qualifies for.
var tierTable = []tierDefinition{
	{
		Name:         TierEliteAuthority,
		MinComposite: 0.90,
		Permissions:  []Permission{PermissionRead, PermissionWrite, PermissionExec, PermissionCommit, PermissionGovern, PermissionAdmin, PermissionSudo},
		Budget:       BudgetLimits{Ceiling: 1_000_000, Daily: 50_000, SingleTransaction: 10_000},
		Delegation:   DelegationLimits{Max: 50, Scope: ScopeUnrestricted, AllowsLowerTrust: true, AutoApproveAt: 0.85},
		Strictness:   StrictnessLax,
	},
	{
		Name:         TierHighTrust,
		MinComposite: 0.70,
		Permissions:  []Permission{PermissionRead, PermissionWrite, PermissionExec, PermissionCommit, PermissionGovern},
		Budget:       BudgetLimits{Ceiling: 100_000, Daily: 10_000, SingleTransaction: 2_500},
		Delegation:   DelegationLimits{Max: 20, Scope: ScopeCrossDomain, AllowsLowerTrust: true, AutoApproveAt: 0.90},
		Strictness:   StrictnessStandard,
	},
	{
		Name:         TierStandardOperational,
		MinComposite: 0.40,
		Permissions:  []Permission{PermissionRead, PermissionWrite, PermissionExec},
		Budget:       BudgetLimits{Ceiling: 10_000, Daily: 1_000, SingleTransaction: 500},
		Delegation:   DelegationLimits{Max: 5, Scope: ScopeDomainSpecific, AllowsLowerTrust: false, AutoApproveAt: 0.95},
		Strictness:   StrictnessStrict,
	},
	{
		Name:         TierRestricted,
		MinComposite: 0.20,
		Permissions:  []Permission{PermissionRead, PermissionExec},
		Budget:       BudgetLimits{Ceiling: 1_000, Daily: 100, SingleTransaction: 100},
		Delegation:   DelegationLimits{Max: 1, Scope: ScopeSupervisedOnly, AllowsLowerTrust: false, AutoApproveAt: 1.0},
		Strictness:   StrictnessHighFriction,
	},
	{
		Name:         TierProbationary,
		MinComposite: negativeInfinity,
		Permissions:  []Permission{PermissionRead},
		Budget:       BudgetLimits{},
		Delegation:   DelegationLimits{Max: 0, Scope: ScopeNone, AllowsLowerTrust: false, AutoApproveAt: 1.0},
		Strictness:   StrictnessMandatoryHumanInTheLoop,
	},
}

const negativeInfinity = -1e18

// tierTableMu guards tierTable against concurrent ApplyOverrides calls.
// Classify takes the read lock so a deployment-time override never races
// an in-flight classification.
var tierTableMu sync.RWMutex

// ThresholdOverride tightens a single tier's MinComposite requirement for
// a deployment. It is additive and deployment-scoped: loosening a tier
// (lowering its bar) is rejected.
type ThresholdOverride struct {
	Tier         TierName
	MinComposite float64
}

// ApplyOverrides tightens one or more tier thresholds. Every override is
// validated before any is applied: an override that would loosen a tier
// (request a MinComposite below the table's current value) fails the
// whole batch, and an unknown tier name fails it too.
func ApplyOverrides(overrides []ThresholdOverride) error {
	tierTableMu.Lock()
	defer tierTableMu.Unlock()

	for _, o := range overrides {
		idx := indexOfTier(o.Tier)
		if idx < 0 {
			return fmt.Errorf("governance: unknown tier %q in override", o.Tier)
		}
		if o.MinComposite < tierTable[idx].MinComposite {
			return fmt.Errorf("governance: override for tier %q would loosen MinComposite from %v to %v",
				o.Tier, tierTable[idx].MinComposite, o.MinComposite)
		}
	}

	for _, o := range overrides {
		idx := indexOfTier(o.Tier)
		tierTable[idx].MinComposite = o.MinComposite
	}
	return nil
}

func indexOfTier(name TierName) int {
	for i, row := range tierTable {
		if row.Name == name {
			return i
		}
	}
	return -1
}

// GovernanceProfile is the materialized, deep-copied result of classifying
// a trust score into a tier, stamped with provenance.
type GovernanceProfile struct {
	Tier               TierName         `json:"tier"`
	Permissions        []Permission     `json:"permissions"`
	Budget             BudgetLimits     `json:"budget"`
	Delegation         DelegationLimits `json:"delegation"`
	Strictness         StrictnessLevel  `json:"strictness"`
	AppliedAt          time.Time        `json:"appliedAt"`
	TrustScoreSnapshot float64          `json:"trustScoreSnapshot"`
	Context            string           `json:"context,omitempty"`
}

// Classify maps a composite (or, if context is non-empty, a context
// projection) trust score to its governance profile. context is purely
// informational here — callers resolve the projection value themselves
// and pass it in as score; context is stamped onto the result for
// traceability and is reserved for future per-context tier overrides.
func Classify(score float64, context string, now time.Time) GovernanceProfile {
	tierTableMu.RLock()
	defer tierTableMu.RUnlock()

	def := tierTable[len(tierTable)-1]
	for _, row := range tierTable {
		if score >= row.MinComposite {
			def = row
			break
		}
	}

	permissions := make([]Permission, len(def.Permissions))
	copy(permissions, def.Permissions)

	return GovernanceProfile{
		Tier:               def.Name,
		Permissions:        permissions,
		Budget:             def.Budget,
		Delegation:         def.Delegation,
		Strictness:         def.Strictness,
		AppliedAt:          now,
		TrustScoreSnapshot: score,
		Context:            context,
	}
}

// HasPermission reports whether the profile grants p.
func (g GovernanceProfile) HasPermission(p Permission) bool {
	for _, have := range g.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// ceilingFor returns the budget ceiling of the tier score classifies
// into, used by monotonicity tests to assert tier(s1).ceiling <= tier(s2).ceiling for
// s1 <= s2.
func ceilingFor(score float64) float64 {
	return Classify(score, "", time.Time{}).Budget.Ceiling
}
