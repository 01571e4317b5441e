// Package observability provides OpenTelemetry tracing and metrics, a
// queryable audit timeline, and SLI/SLO tracking for the agent trust and
// governance substrate.
//
// # Tracing and metrics
//
// Initialize the provider at application startup:
//
//	provider, err := observability.New(ctx, observability.DefaultConfig())
//	defer provider.Shutdown(ctx)
//
// Track an operation end-to-end (span + RED metrics) with TrackOperation:
//
//	ctx, done := provider.TrackOperation(ctx, "validateAction",
//		observability.ValidationOperation(agentID, originSystem, "", false)...)
//	valid, reason, err := registry.ValidateAction(...)
//	done(err)
//
// # Audit timeline
//
//	timeline := observability.NewAuditTimeline()
//	timeline.Record(observability.TimelineEntry{
//		EntryType: observability.EntryTypeDecision,
//		RunID:     agentID,
//		Summary:   "governance decision: ALLOWED",
//	})
//
// # SLIs and SLOs
//
//	tracker := observability.NewSLOTracker()
//	tracker.SetTarget(&observability.SLOTarget{
//		SLOID: "validate-action", Operation: "validateAction",
//		LatencyP99: 50 * time.Millisecond, SuccessRate: 0.999, WindowHours: 24,
//	})
//	tracker.Record(observability.SLOObservation{Operation: "validateAction", Success: true})
package observability
