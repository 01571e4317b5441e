package governance

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// StrictnessLevel names a row of the validator's tolerance table.
type StrictnessLevel string

const (
	StrictnessLax                     StrictnessLevel = "LAX"
	StrictnessStandard                StrictnessLevel = "STANDARD"
	StrictnessStrict                  StrictnessLevel = "STRICT"
	StrictnessHighFriction            StrictnessLevel = "HIGH_FRICTION"
	StrictnessMandatoryHumanInTheLoop StrictnessLevel = "MANDATORY_HUMAN_IN_THE_LOOP"
)

// strictnessParams is one row of the strictness table (spec.md §4.6).
type strictnessParams struct {
	RiskTolerance      float64
	SafetyMargin       float64
	PolicyIntensity    float64
	ConsensusRequired  bool
	MinConfirmations   int
	HumanApprovalReq   bool
}

var strictnessTable = map[StrictnessLevel]strictnessParams{
	StrictnessLax:                     {RiskTolerance: 0.9, SafetyMargin: 1.05, PolicyIntensity: 0.1, ConsensusRequired: false, MinConfirmations: 0, HumanApprovalReq: false},
	StrictnessStandard:                {RiskTolerance: 0.6, SafetyMargin: 1.00, PolicyIntensity: 0.5, ConsensusRequired: false, MinConfirmations: 0, HumanApprovalReq: false},
	StrictnessStrict:                  {RiskTolerance: 0.3, SafetyMargin: 0.85, PolicyIntensity: 0.8, ConsensusRequired: true, MinConfirmations: 1, HumanApprovalReq: false},
	StrictnessHighFriction:            {RiskTolerance: 0.1, SafetyMargin: 0.70, PolicyIntensity: 1.0, ConsensusRequired: true, MinConfirmations: 3, HumanApprovalReq: false},
	StrictnessMandatoryHumanInTheLoop: {RiskTolerance: 0.0, SafetyMargin: 0.50, PolicyIntensity: 1.0, ConsensusRequired: true, MinConfirmations: 5, HumanApprovalReq: true},
}

// strictnessRank orders levels from loosest to tightest so monotonicity
// ("stricter than") comparisons are well-defined.
var strictnessRank = map[StrictnessLevel]int{
	StrictnessLax:                     0,
	StrictnessStandard:                1,
	StrictnessStrict:                  2,
	StrictnessHighFriction:            3,
	StrictnessMandatoryHumanInTheLoop: 4,
}

// StricterThan reports whether a is a stricter gate than b.
func StricterThan(a, b StrictnessLevel) bool {
	return strictnessRank[a] > strictnessRank[b]
}

var strictnessTableMu sync.RWMutex

// StrictnessOverride tightens one row of the strictness table for a
// deployment. RiskTolerance, SafetyMargin and MinConfirmations are all
// compared against the current row and, once accepted, written over it
// as given, zero values included. PolicyIntensity, ConsensusRequired and
// HumanApprovalReq cannot be overridden.
type StrictnessOverride struct {
	Level            StrictnessLevel
	RiskTolerance    float64
	SafetyMargin     float64
	MinConfirmations int
}

// ApplyStrictnessOverrides tightens strictnessTable rows. Loosening a row
// (raising RiskTolerance, raising SafetyMargin, or lowering
// MinConfirmations below its current value) is rejected for the whole
// batch, as is an unrecognized level.
func ApplyStrictnessOverrides(overrides []StrictnessOverride) error {
	strictnessTableMu.Lock()
	defer strictnessTableMu.Unlock()

	for _, o := range overrides {
		cur, ok := strictnessTable[o.Level]
		if !ok {
			return fmt.Errorf("governance: unknown strictness level %q in override", o.Level)
		}
		if o.RiskTolerance > cur.RiskTolerance {
			return fmt.Errorf("governance: override for %q would loosen risk tolerance from %v to %v", o.Level, cur.RiskTolerance, o.RiskTolerance)
		}
		if o.SafetyMargin > cur.SafetyMargin {
			return fmt.Errorf("governance: override for %q would loosen safety margin from %v to %v", o.Level, cur.SafetyMargin, o.SafetyMargin)
		}
		if o.MinConfirmations < cur.MinConfirmations {
			return fmt.Errorf("governance: override for %q would loosen min confirmations from %v to %v", o.Level, cur.MinConfirmations, o.MinConfirmations)
		}
	}

	for _, o := range overrides {
		cur := strictnessTable[o.Level]
		cur.RiskTolerance = o.RiskTolerance
		cur.SafetyMargin = o.SafetyMargin
		cur.MinConfirmations = o.MinConfirmations
		strictnessTable[o.Level] = cur
	}
	return nil
}

// Proposal is a candidate action submitted to the validator.
type Proposal struct {
	Type          string
	ImpactScore   float64
	RiskScore     float64
	Cost          *float64
	PolicyTags    []string
	Confirmations int
	HumanApproved bool
}

// ValidationResult is the outcome of one admission check.
type ValidationResult struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Decision is the validator's final admit/reject verdict.
type Decision struct {
	Allowed           bool               `json:"allowed"`
	StrictnessLevel   StrictnessLevel    `json:"strictnessLevel"`
	ValidationResults []ValidationResult `json:"validationResults"`
	Reason            string             `json:"reason,omitempty"`
}

// policyRule is one progressive intensity gate, expressed as a compiled
// CEL predicate over (intensity, tags, impactScore) that evaluates to
// true when the rule is VIOLATED.
type policyRule struct {
	name string
	expr string
}

var policyRules = []policyRule{
	{name: "high_privilege_impact", expr: `policyIntensity > 0.4 && "HIGH_PRIVILEGE" in tags && impactScore > 0.7`},
	{name: "infrastructure_blocked", expr: `policyIntensity > 0.7 && "INFRASTRUCTURE" in tags`},
	{name: "too_many_tags", expr: `policyIntensity > 0.7 && size(tags) > 3`},
	{name: "sensitive_data_blocked", expr: `policyIntensity > 0.9 && "SENSITIVE_DATA" in tags`},
}

// Validator is the pre-execution admission gate: it evaluates a Proposal
// against an identity's current trust score and governance strictness.
type Validator struct {
	env      *cel.Env
	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewValidator compiles the progressive policy rules once at construction.
func NewValidator() (*Validator, error) {
	env, err := cel.NewEnv(
		cel.Variable("policyIntensity", cel.DoubleType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("impactScore", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL environment: %w", err)
	}

	v := &Validator{env: env, programs: make(map[string]cel.Program)}
	for _, rule := range policyRules {
		ast, issues := env.Compile(rule.expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compiling policy rule %q: %w", rule.name, issues.Err())
		}
		prg, err := env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
		if err != nil {
			return nil, fmt.Errorf("building program for rule %q: %w", rule.name, err)
		}
		v.programs[rule.name] = prg
	}
	return v, nil
}

// Validate admits or rejects proposal given the identity's trust score and
// resolved governance strictness. context is reserved for a future
// getGovernanceProfile(trustScore, context) call and is otherwise unused.
func (v *Validator) Validate(proposal Proposal, trustScore float64, strictness StrictnessLevel, singleTransactionLimit float64, context string) Decision {
	strictnessTableMu.RLock()
	params, ok := strictnessTable[strictness]
	if !ok {
		params = strictnessTable[StrictnessMandatoryHumanInTheLoop]
		strictness = StrictnessMandatoryHumanInTheLoop
	}
	strictnessTableMu.RUnlock()

	var results []ValidationResult
	allowed := true
	var reasons []string

	// 1. Risk
	if proposal.RiskScore > params.RiskTolerance {
		allowed = false
		reason := fmt.Sprintf("risk score %.3f exceeds tolerance %.3f", proposal.RiskScore, params.RiskTolerance)
		results = append(results, ValidationResult{Check: "risk", Passed: false, Reason: reason})
		reasons = append(reasons, reason)
	} else {
		results = append(results, ValidationResult{Check: "risk", Passed: true})
	}

	// 2. Economics
	if proposal.Cost != nil {
		limit := singleTransactionLimit * params.SafetyMargin
		if *proposal.Cost > limit {
			allowed = false
			reason := fmt.Sprintf("cost %.2f exceeds adjusted limit %.2f", *proposal.Cost, limit)
			results = append(results, ValidationResult{Check: "economics", Passed: false, Reason: reason})
			reasons = append(reasons, reason)
		} else {
			results = append(results, ValidationResult{Check: "economics", Passed: true})
		}
	}

	// 3. Policies
	policyPassed, policyReasons := v.checkPolicies(proposal, params.PolicyIntensity)
	if !policyPassed {
		allowed = false
		reasons = append(reasons, policyReasons...)
	}
	results = append(results, ValidationResult{Check: "policies", Passed: policyPassed, Reason: joinReasons(policyReasons)})

	// 4. Consensus
	consensusRequired := params.ConsensusRequired || proposal.ImpactScore > 0.8*trustScore
	if consensusRequired {
		requiredConfirmations := params.MinConfirmations
		if proposal.ImpactScore > 0.7 && requiredConfirmations < 2 {
			requiredConfirmations = 2
		}
		if proposal.Confirmations < requiredConfirmations {
			allowed = false
			reason := fmt.Sprintf("only %d of %d required confirmations", proposal.Confirmations, requiredConfirmations)
			results = append(results, ValidationResult{Check: "consensus", Passed: false, Reason: reason})
			reasons = append(reasons, reason)
		} else if params.HumanApprovalReq && !proposal.HumanApproved {
			allowed = false
			reason := "strictness requires human approval"
			results = append(results, ValidationResult{Check: "consensus", Passed: false, Reason: reason})
			reasons = append(reasons, reason)
		} else {
			results = append(results, ValidationResult{Check: "consensus", Passed: true})
		}
	} else {
		results = append(results, ValidationResult{Check: "consensus", Passed: true})
	}

	return Decision{
		Allowed:           allowed,
		StrictnessLevel:   strictness,
		ValidationResults: results,
		Reason:            joinReasons(reasons),
	}
}

func (v *Validator) checkPolicies(proposal Proposal, intensity float64) (bool, []string) {
	input := map[string]any{
		"policyIntensity": intensity,
		"tags":            toAnySlice(proposal.PolicyTags),
		"impactScore":     proposal.ImpactScore,
	}

	var violated []string
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, rule := range policyRules {
		prg := v.programs[rule.name]
		out, _, err := prg.Eval(input)
		if err != nil {
			violated = append(violated, fmt.Sprintf("policy rule %q failed to evaluate: %v", rule.name, err))
			continue
		}
		if fails, ok := out.Value().(bool); ok && fails {
			violated = append(violated, fmt.Sprintf("policy rule %q violated", rule.name))
		}
	}
	return len(violated) == 0, violated
}

func toAnySlice(tags []string) []any {
	out := make([]any, len(tags))
	for i, t := range tags {
		out[i] = t
	}
	return out
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}
