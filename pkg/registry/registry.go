// Package registry implements the keyed Identity Registry: registration,
// lookup, revocation, schema migration, and the validateAction
// pre-execution identity check (replay protection, revocation, origin and
// signature verification).
package registry

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/time/rate"

	"github.com/mindburn-labs/agentrust/core/pkg/identity"
	"github.com/mindburn-labs/agentrust/core/pkg/trust"
)

// Reason codes returned by registerIdentity / validateAction / migrateIdentity.
const (
	ReasonMissingRequired  = "MISSING_REQUIRED"
	ReasonOriginConflict   = "ORIGIN_CONFLICT"
	ReasonIdentityNotFound = "IDENTITY_NOT_FOUND"
	ReasonIdentityRevoked  = "IDENTITY_REVOKED"
	ReasonOriginMismatch   = "ORIGIN_MISMATCH"
	ReasonInvalidTimestamp = "INVALID_TIMESTAMP"
	ReasonReplayDetected   = "REPLAY_DETECTED"
	ReasonInvalidSignature = "INVALID_SIGNATURE"
	ReasonRateLimited      = "RATE_LIMITED"
)

var originNormalizer = cases.Fold()

func normalizeOrigin(s string) string {
	return originNormalizer.String(s)
}

// RegisterParams is the input to RegisterIdentity.
type RegisterParams struct {
	PublicKey    string
	OriginSystem string
	ID           string
	Metadata     *identity.Metadata
	Performance  *trust.Performance
	Force        bool
}

// ValidateActionParams is the input to ValidateAction. The identity is
// resolved by AgentID when it is set, otherwise by PublicKey.
type ValidateActionParams struct {
	AgentID      string
	PublicKey    string
	Message      []byte
	Signature    string
	Timestamp    *time.Time
	OriginSystem string
}

// ValidateActionResult is the outcome of ValidateAction.
type ValidateActionResult struct {
	Valid    bool
	Reason   string
	Identity *identity.Identity
}

// Registry is the keyed, persisted store of Identities plus replay-timestamp
// tracking. A single mutex serializes all writes; reads of already-resolved
// identities need no external locking.
type Registry struct {
	mu    sync.Mutex
	store Store
	doc   storeDocument
	byKey map[string]string // normalized publicKey -> id, for origin-conflict + lookup-by-key

	replay      ReplayStore
	limiters    map[string]*rate.Limiter
	limiterRate rate.Limit
	limiterBurst int

	clock func() time.Time
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithReplayStore overrides the default in-memory replay store.
func WithReplayStore(rs ReplayStore) Option {
	return func(r *Registry) { r.replay = rs }
}

// WithClock overrides the registry's notion of "now", for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithRateLimit overrides the per-identity validateAction token bucket.
// Defaults to 20 actions/sec with a burst of 40.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(reg *Registry) {
		reg.limiterRate = r
		reg.limiterBurst = burst
	}
}

// New creates a Registry backed by store, loading any existing document.
func New(store Store, opts ...Option) (*Registry, error) {
	doc, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading identity store: %w", err)
	}
	applyMigrations(&doc)

	r := &Registry{
		store:        store,
		doc:          doc,
		byKey:        make(map[string]string),
		limiters:     make(map[string]*rate.Limiter),
		limiterRate:  rate.Limit(20),
		limiterBurst: 40,
		clock:        time.Now,
	}
	for id, ident := range doc.Identities {
		r.byKey[normalizedKeyFingerprint(ident.PublicKey)] = id
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.replay == nil {
		r.replay = NewMemoryReplayStore(doc.LastActionTimestamps)
	}

	return r, nil
}

func normalizedKeyFingerprint(publicKeyPEM string) string {
	return identity.DeriveID(publicKeyPEM)
}

// applyMigrations stamps any identity missing a schemaVersion and bumps
// the store-level meta forward. Per spec.md §4.1, this runs once on load.
func applyMigrations(doc *storeDocument) {
	if doc.Meta.SchemaVersion >= CurrentMetaSchemaVersion {
		for id, ident := range doc.Identities {
			if ident.SchemaVersion == 0 {
				doc.Identities[id] = ident.Migrate(func(i identity.Identity) identity.Identity {
					return i
				}, "stamped missing schemaVersion on load", time.Now())
			}
		}
		return
	}
	for id, ident := range doc.Identities {
		doc.Identities[id] = ident.Migrate(func(i identity.Identity) identity.Identity {
			return i
		}, "store schema migration", time.Now())
	}
	doc.Meta.SchemaVersion = CurrentMetaSchemaVersion
}

// RegisterIdentity constructs and stores a fresh Identity.
func (r *Registry) RegisterIdentity(p RegisterParams) (identity.Identity, error) {
	if p.PublicKey == "" || p.OriginSystem == "" {
		return identity.Identity{}, fmt.Errorf("%s: publicKey and originSystem are required", ReasonMissingRequired)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fingerprint := normalizedKeyFingerprint(p.PublicKey)
	if existingID, ok := r.byKey[fingerprint]; ok && !p.Force {
		existing := r.doc.Identities[existingID]
		if normalizeOrigin(existing.OriginSystem) != normalizeOrigin(p.OriginSystem) {
			return identity.Identity{}, fmt.Errorf("%s: publicKey already bound to origin %q", ReasonOriginConflict, existing.OriginSystem)
		}
	}

	now := r.clock()
	ident, err := identity.New(p.PublicKey, p.OriginSystem, identity.NewOptions{
		ID:          p.ID,
		Metadata:    p.Metadata,
		Performance: p.Performance,
	}, now)
	if err != nil {
		return identity.Identity{}, err
	}

	r.doc.Identities[ident.ID] = ident
	r.byKey[fingerprint] = ident.ID
	if err := r.persist(); err != nil {
		return identity.Identity{}, err
	}
	return ident, nil
}

// GetIdentityByID looks up an identity by its id.
func (r *Registry) GetIdentityByID(id string) (identity.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.doc.Identities[id]
	return ident, ok
}

// GetIdentityByPublicKey looks up an identity by its PEM public key.
func (r *Registry) GetIdentityByPublicKey(publicKey string) (identity.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[normalizedKeyFingerprint(publicKey)]
	if !ok {
		return identity.Identity{}, false
	}
	ident, ok := r.doc.Identities[id]
	return ident, ok
}

// TrustSnapshot satisfies graph.IdentityLookup: it lets the trust graph
// builder attach each node's current trust profile without importing the
// registry package directly.
func (r *Registry) TrustSnapshot(agentID string) (trust.TrustProfile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.doc.Identities[agentID]
	if !ok {
		return trust.TrustProfile{}, false
	}
	return ident.TrustProfile, true
}

// RevokeIdentity marks an identity revoked, terminal.
func (r *Registry) RevokeIdentity(id, reason string) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.doc.Identities[id]
	if !ok {
		return identity.Identity{}, fmt.Errorf("%s: no identity %q", ReasonIdentityNotFound, id)
	}

	revoked := ident.Revoke(reason, r.clock())
	r.doc.Identities[id] = revoked
	if err := r.persist(); err != nil {
		return identity.Identity{}, err
	}
	return revoked, nil
}

// MigrateIdentity applies transform to a clone of the stored identity and
// writes the result back, appending a SCHEMA_MIGRATION history entry.
func (r *Registry) MigrateIdentity(id string, transform func(identity.Identity) identity.Identity, details string) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.doc.Identities[id]
	if !ok {
		return identity.Identity{}, fmt.Errorf("%s: no identity %q", ReasonIdentityNotFound, id)
	}

	migrated := ident.Migrate(transform, details, r.clock())
	r.doc.Identities[id] = migrated
	if err := r.persist(); err != nil {
		return identity.Identity{}, err
	}
	return migrated, nil
}

// EnsureRegistered implements spec.md §4.7 step 4: an identity unknown to
// the registry is transparently auto-registered under the given
// publicKey/originSystem rather than failing the in-flight ledger append.
func (r *Registry) EnsureRegistered(publicKey, originSystem string) error {
	r.mu.Lock()
	_, known := r.byKey[normalizedKeyFingerprint(publicKey)]
	r.mu.Unlock()
	if known {
		return nil
	}

	_, err := r.RegisterIdentity(RegisterParams{PublicKey: publicKey, OriginSystem: originSystem})
	return err
}

// Validate implements spec.md §4.1's check ordering: identity resolution,
// rate limit, revocation, origin match, replay, signature.
func (r *Registry) Validate(p ValidateActionParams) ValidateActionResult {
	r.mu.Lock()
	ident, found := r.resolve(p.AgentID, p.PublicKey)
	r.mu.Unlock()

	if !found {
		return ValidateActionResult{Valid: false, Reason: ReasonIdentityNotFound}
	}

	if !r.allow(ident.ID) {
		return ValidateActionResult{Valid: false, Reason: ReasonRateLimited, Identity: &ident}
	}

	if ident.Revoked {
		return ValidateActionResult{Valid: false, Reason: ReasonIdentityRevoked, Identity: &ident}
	}

	if p.OriginSystem != "" && normalizeOrigin(p.OriginSystem) != normalizeOrigin(ident.OriginSystem) {
		return ValidateActionResult{Valid: false, Reason: ReasonOriginMismatch, Identity: &ident}
	}

	var newTimestampMillis int64
	if p.Timestamp != nil {
		newTimestampMillis = epochMillis(*p.Timestamp)
		if last, ok := r.replay.Get(ident.ID); ok && newTimestampMillis <= last {
			return ValidateActionResult{Valid: false, Reason: ReasonReplayDetected, Identity: &ident}
		}
	}

	valid, err := ident.VerifySignature(p.Message, p.Signature)
	if err != nil || !valid {
		return ValidateActionResult{Valid: false, Reason: ReasonInvalidSignature, Identity: &ident}
	}

	if p.Timestamp != nil {
		if err := r.replay.Set(ident.ID, newTimestampMillis); err != nil {
			return ValidateActionResult{Valid: false, Reason: ReasonInvalidSignature, Identity: &ident}
		}
	}

	r.mu.Lock()
	if err := r.persist(); err != nil {
		r.mu.Unlock()
		return ValidateActionResult{Valid: false, Reason: ReasonInvalidSignature, Identity: &ident}
	}
	r.mu.Unlock()

	return ValidateActionResult{Valid: true, Identity: &ident}
}

// ValidateAction adapts Validate onto the narrower signature the ledger
// package's Registry interface expects, so *Registry satisfies it
// structurally without either package importing the other.
func (r *Registry) ValidateAction(agentID, publicKey, message, signature string, timestamp *time.Time, originSystem string) (bool, string, error) {
	result := r.Validate(ValidateActionParams{
		AgentID:      agentID,
		PublicKey:    publicKey,
		Message:      []byte(message),
		Signature:    signature,
		Timestamp:    timestamp,
		OriginSystem: originSystem,
	})
	return result.Valid, result.Reason, nil
}

func (r *Registry) resolve(agentID, publicKey string) (identity.Identity, bool) {
	if agentID != "" {
		ident, ok := r.doc.Identities[agentID]
		return ident, ok
	}
	if publicKey != "" {
		id, ok := r.byKey[normalizedKeyFingerprint(publicKey)]
		if !ok {
			return identity.Identity{}, false
		}
		ident, ok := r.doc.Identities[id]
		return ident, ok
	}
	return identity.Identity{}, false
}

func (r *Registry) allow(id string) bool {
	r.mu.Lock()
	limiter, ok := r.limiters[id]
	if !ok {
		limiter = rate.NewLimiter(r.limiterRate, r.limiterBurst)
		r.limiters[id] = limiter
	}
	r.mu.Unlock()
	return limiter.Allow()
}

// persist must be called with r.mu held.
func (r *Registry) persist() error {
	if ms, ok := r.replay.(*MemoryReplayStore); ok {
		r.doc.LastActionTimestamps = ms.Snapshot()
	}
	return r.store.Save(r.doc)
}
