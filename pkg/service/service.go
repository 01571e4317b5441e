// Package service wires the identity registry, activity ledger, trust
// graph, and governance layers into the substrate's public operations:
// registerAgent, validateIdentitySignature, getTrustScore,
// updateReputation, getActivityHistory, recordAction, getTrustGraph,
// forecastSynergy, forecastSystemicRisk, and discoverOpportunities, plus
// getGovernanceProfile, validateProposal, and verifyLedger.
package service

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/mindburn-labs/agentrust/core/pkg/governance"
	"github.com/mindburn-labs/agentrust/core/pkg/graph"
	"github.com/mindburn-labs/agentrust/core/pkg/identity"
	"github.com/mindburn-labs/agentrust/core/pkg/ledger"
	"github.com/mindburn-labs/agentrust/core/pkg/observability"
	"github.com/mindburn-labs/agentrust/core/pkg/registry"
	"github.com/mindburn-labs/agentrust/core/pkg/trust"
)

// Substrate composes the registry, ledger, graph, and validator behind
// the operations named in the governing specification. It owns no
// storage directly; every dependency is handed in at construction so the
// caller controls backend selection (file, Postgres, Redis, S3, ...).
type Substrate struct {
	Registry   *registry.Registry
	Ledger     *ledger.Ledger
	Validator  *governance.Validator
	Provider   *observability.Provider
	clock      func() time.Time
}

// New wires a Substrate from already-constructed dependencies.
func New(reg *registry.Registry, l *ledger.Ledger, v *governance.Validator, p *observability.Provider) *Substrate {
	l.AttachRegistry(reg)
	return &Substrate{Registry: reg, Ledger: l, Validator: v, Provider: p, clock: time.Now}
}

// WithClock overrides the substrate's notion of "now", for deterministic tests.
func (s *Substrate) WithClock(clock func() time.Time) *Substrate {
	s.clock = clock
	return s
}

// RegisterAgentParams is the input to RegisterAgent.
type RegisterAgentParams struct {
	PublicKey    string
	OriginSystem string
	ID           string
	Metadata     *identity.Metadata
	Performance  *trust.Performance
	Force        bool
}

// RegisterAgent binds a new agent identity to the registry.
func (s *Substrate) RegisterAgent(p RegisterAgentParams) (identity.Identity, error) {
	return s.Registry.RegisterIdentity(registry.RegisterParams{
		PublicKey:    p.PublicKey,
		OriginSystem: p.OriginSystem,
		ID:           p.ID,
		Metadata:     p.Metadata,
		Performance:  p.Performance,
		Force:        p.Force,
	})
}

// ValidateIdentitySignatureParams is the input to ValidateIdentitySignature.
type ValidateIdentitySignatureParams struct {
	AgentID      string
	PublicKey    string
	Message      []byte
	Signature    string
	Timestamp    *time.Time
	OriginSystem string
}

// ValidateIdentitySignature runs the full pre-execution identity check:
// resolution, rate limiting, revocation, origin match, replay, signature.
func (s *Substrate) ValidateIdentitySignature(p ValidateIdentitySignatureParams) registry.ValidateActionResult {
	return s.Registry.Validate(registry.ValidateActionParams{
		AgentID:      p.AgentID,
		PublicKey:    p.PublicKey,
		Message:      p.Message,
		Signature:    p.Signature,
		Timestamp:    p.Timestamp,
		OriginSystem: p.OriginSystem,
	})
}

// GetTrustScore returns the current trust profile for agentID.
func (s *Substrate) GetTrustScore(agentID string) (trust.TrustProfile, error) {
	ident, ok := s.Registry.GetIdentityByID(agentID)
	if !ok {
		return trust.TrustProfile{}, fmt.Errorf("IDENTITY_NOT_FOUND: no identity %q", agentID)
	}
	return ident.TrustProfile, nil
}

// UpdateReputation folds recentActions through reputation evolution,
// recomputes the trust profile, and persists the updated identity.
func (s *Substrate) UpdateReputation(agentID string, updates trust.Performance, reason string, recentActions []trust.ActionOutcome) (identity.Identity, error) {
	now := s.clock()
	return s.Registry.MigrateIdentity(agentID, func(i identity.Identity) identity.Identity {
		return i.UpdatePerformance(updates, reason, recentActions, now)
	}, reason)
}

// GetActivityHistory returns ledger entries, optionally filtered to a
// single agentID. An empty agentID returns the full ledger.
func (s *Substrate) GetActivityHistory(agentID string) []ledger.LedgerEntry {
	entries := s.Ledger.Entries()
	if agentID == "" {
		return entries
	}
	var filtered []ledger.LedgerEntry
	for _, e := range entries {
		if e.AgentID == agentID {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// RecordActionParams is the input to RecordAction.
type RecordActionParams struct {
	AgentID      string
	PublicKey    string
	PrivateKey   *rsa.PrivateKey
	Signature    string
	ActionType   string
	Details      map[string]interface{}
	OriginSystem string
}

// RecordAction appends a new hash-chained, signed entry to the activity
// ledger, routing signature verification through the attached registry.
func (s *Substrate) RecordAction(p RecordActionParams) (ledger.LedgerEntry, error) {
	return s.Ledger.AddEntry(ledger.AddEntryParams{
		AgentID:      p.AgentID,
		PublicKey:    p.PublicKey,
		PrivateKey:   p.PrivateKey,
		Signature:    p.Signature,
		ActionType:   p.ActionType,
		Details:      p.Details,
		OriginSystem: p.OriginSystem,
	})
}

// GetTrustGraph rebuilds the trust graph from the full ledger snapshot,
// attaching each node's current trust profile from the registry.
func (s *Substrate) GetTrustGraph() *graph.Graph {
	return graph.BuildFromEntries(s.Ledger.Entries(), s.Registry)
}

// ForecastSynergy projects the collaboration outlook between agents a and b.
func (s *Substrate) ForecastSynergy(a, b string) graph.SynergyForecast {
	return s.GetTrustGraph().ForecastSynergy(a, b)
}

// ForecastSystemicRisk aggregates risk clusters and central-node exposure
// into a system-wide risk report.
func (s *Substrate) ForecastSystemicRisk() graph.SystemicRiskReport {
	return s.GetTrustGraph().ForecastSystemicRisk()
}

// DiscoverOpportunities finds high-potential pairs with no collaboration
// history, returning the top topK ranked by forecasted synergy.
func (s *Substrate) DiscoverOpportunities(topK int) []graph.HiddenSynergy {
	return s.GetTrustGraph().DiscoverOpportunities(topK)
}

// GetGovernanceProfile classifies an agent's current trust score (or a
// named context projection of it) into its governance tier.
func (s *Substrate) GetGovernanceProfile(agentID, context string) (governance.GovernanceProfile, error) {
	profile, err := s.GetTrustScore(agentID)
	if err != nil {
		return governance.GovernanceProfile{}, err
	}

	score := profile.Composite
	if context != "" {
		if v, ok := profile.Contexts.Context(context); ok {
			score = v
		}
	}
	return governance.Classify(score, context, s.clock()), nil
}

// ValidateProposal gates a proposed action for agentID through the
// pre-execution validator, using its current tier's strictness and
// single-transaction budget.
func (s *Substrate) ValidateProposal(agentID string, proposal governance.Proposal, context string) (governance.Decision, error) {
	trustProfile, err := s.GetTrustScore(agentID)
	if err != nil {
		return governance.Decision{}, err
	}
	gp, err := s.GetGovernanceProfile(agentID, context)
	if err != nil {
		return governance.Decision{}, err
	}
	decision := s.Validator.Validate(proposal, trustProfile.Composite, gp.Strictness, gp.Budget.SingleTransaction, context)
	return decision, nil
}

// VerifyLedger checks the full hash chain's integrity.
func (s *Substrate) VerifyLedger() ledger.VerifyResult {
	return s.Ledger.VerifyChain()
}
