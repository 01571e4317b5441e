// Package observability provides agentrust-specific instrumentation helpers.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// agentrust semantic convention attributes.
var (
	// Identity attributes
	AttrAgentID       = attribute.Key("agentrust.agent.id")
	AttrOriginSystem  = attribute.Key("agentrust.agent.origin_system")
	AttrSchemaVersion = attribute.Key("agentrust.identity.schema_version")

	// Validation attributes
	AttrValidationReason = attribute.Key("agentrust.validation.reason")
	AttrValidationValid  = attribute.Key("agentrust.validation.valid")

	// Trust scoring attributes
	AttrTrustComposite = attribute.Key("agentrust.trust.composite")
	AttrTrustContext   = attribute.Key("agentrust.trust.context")

	// Governance attributes
	AttrGovernanceTier       = attribute.Key("agentrust.governance.tier")
	AttrGovernanceStrictness = attribute.Key("agentrust.governance.strictness")
	AttrGovernanceAllowed    = attribute.Key("agentrust.governance.allowed")

	// Ledger attributes
	AttrLedgerIndex      = attribute.Key("agentrust.ledger.index")
	AttrLedgerActionType = attribute.Key("agentrust.ledger.action_type")
	AttrLedgerHash       = attribute.Key("agentrust.ledger.hash")

	// Crypto attributes
	AttrCryptoAlgorithm = attribute.Key("agentrust.crypto.algorithm")
	AttrCryptoOperation = attribute.Key("agentrust.crypto.operation")
)

// ValidationOperation creates attributes for an identity validation call.
func ValidationOperation(agentID, originSystem, reason string, valid bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAgentID.String(agentID),
		AttrOriginSystem.String(originSystem),
		AttrValidationReason.String(reason),
		AttrValidationValid.Bool(valid),
	}
}

// TrustScoreOperation creates attributes for a trust-scoring computation.
func TrustScoreOperation(agentID string, composite float64, context string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAgentID.String(agentID),
		AttrTrustComposite.Float64(composite),
		AttrTrustContext.String(context),
	}
}

// GovernanceOperation creates attributes for a governance admission decision.
func GovernanceOperation(agentID, tier, strictness string, allowed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAgentID.String(agentID),
		AttrGovernanceTier.String(tier),
		AttrGovernanceStrictness.String(strictness),
		AttrGovernanceAllowed.Bool(allowed),
	}
}

// LedgerAppendOperation creates attributes for a ledger append.
func LedgerAppendOperation(agentID, actionType, hash string, index int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAgentID.String(agentID),
		AttrLedgerActionType.String(actionType),
		AttrLedgerHash.String(hash),
		AttrLedgerIndex.Int(index),
	}
}

// CryptoOperation creates attributes for a cryptographic operation.
func CryptoOperation(algorithm, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCryptoAlgorithm.String(algorithm),
		AttrCryptoOperation.String(operation),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records err, if any, onto the current span.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
