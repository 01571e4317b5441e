// Package identity defines the agent identity record: its immutable
// attributes, performance snapshot, and derived trust profile, plus the
// copy-on-write operations that evolve it (updatePerformance, upgrade,
// revoke, schema migration).
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	agentcrypto "github.com/mindburn-labs/agentrust/core/pkg/crypto"
	"github.com/mindburn-labs/agentrust/core/pkg/trust"
)

// CurrentSchemaVersion is the on-wire identity shape version this package
// produces. Registry store migrations stamp older records up to it.
const CurrentSchemaVersion = 1

// VersionHistoryEntry records one lifecycle event in an identity's history.
// VersionHistory only ever grows; entries are never edited or removed.
type VersionHistoryEntry struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// Metadata is the identity's copy-on-write administrative record.
type Metadata struct {
	CreationTimestamp time.Time             `json:"creationTimestamp"`
	IdentityVersion   string                `json:"identityVersion"`
	VersionHistory    []VersionHistoryEntry `json:"versionHistory"`
}

// Clone deep-copies Metadata, including its history slice.
func (m Metadata) Clone() Metadata {
	out := m
	out.VersionHistory = make([]VersionHistoryEntry, len(m.VersionHistory))
	copy(out.VersionHistory, m.VersionHistory)
	return out
}

const (
	ActionIdentityInitialized = "IDENTITY_INITIALIZED"
	ActionMetricsUpdated      = "METRICS_UPDATED"
	ActionSchemaMigration     = "SCHEMA_MIGRATION"
)

// Identity is the agent's persistent, cryptographically rooted record.
// Every mutating operation returns a new value; the receiver is never
// changed in place, matching the copy-on-write discipline the rest of the
// module assumes when holding a reference to a previously observed
// snapshot.
type Identity struct {
	ID               string             `json:"id"`
	PublicKey        string             `json:"publicKey"`
	OriginSystem     string             `json:"originSystem"`
	Metadata         Metadata           `json:"metadata"`
	Performance      trust.Performance  `json:"performance"`
	TrustProfile     trust.TrustProfile `json:"trustProfile"`
	TrustScore       float64            `json:"trustScore"`
	Revoked          bool               `json:"revoked"`
	RevocationReason string             `json:"revocationReason,omitempty"`
	RevocationAt     *time.Time         `json:"revocationTimestamp,omitempty"`
	SchemaVersion    int                `json:"schemaVersion"`
}

// NewOptions carries the optional constructor arguments of registerIdentity.
type NewOptions struct {
	ID          string
	Metadata    *Metadata
	Performance *trust.Performance
}

// New constructs a fresh Identity bound to publicKey and originSystem.
func New(publicKey, originSystem string, opts NewOptions, now time.Time) (Identity, error) {
	if publicKey == "" || originSystem == "" {
		return Identity{}, fmt.Errorf("publicKey and originSystem are required")
	}

	id := opts.ID
	if id == "" {
		id = DeriveID(publicKey)
	}

	metadata := Metadata{}
	if opts.Metadata != nil {
		metadata = opts.Metadata.Clone()
	} else {
		metadata = Metadata{
			CreationTimestamp: now,
			IdentityVersion:   "1.0.0",
			VersionHistory: []VersionHistoryEntry{
				{Version: "1.0.0", Timestamp: now, Action: ActionIdentityInitialized, Details: "identity registered"},
			},
		}
	}

	var performance trust.Performance
	if opts.Performance != nil {
		performance = opts.Performance.Clone()
	} else {
		performance = trust.DefaultPerformance(now)
	}

	profile := trust.ComputeTrustScore(performance, nil, now)

	return Identity{
		ID:            id,
		PublicKey:     publicKey,
		OriginSystem:  originSystem,
		Metadata:      metadata,
		Performance:   performance,
		TrustProfile:  profile,
		TrustScore:    profile.Composite,
		SchemaVersion: CurrentSchemaVersion,
	}, nil
}

// DeriveID computes the default `did:agent:<hex>` fingerprint of a
// PEM-encoded public key.
func DeriveID(publicKeyPEM string) string {
	sum := sha256.Sum256([]byte(publicKeyPEM))
	return "did:agent:" + hex.EncodeToString(sum[:])
}

// clone returns a deep copy of i, sharing nothing mutable with the
// receiver.
func (i Identity) clone() Identity {
	out := i
	out.Metadata = i.Metadata.Clone()
	out.Performance = i.Performance.Clone()
	return out
}

// UpdatePerformance merges updates over the current performance snapshot,
// optionally folds recentActions through reputation evolution, recomputes
// the trust profile, and appends a version-history entry via upgrade. The
// receiver is left unmodified.
func (i Identity) UpdatePerformance(updates trust.Performance, reason string, recentActions []trust.ActionOutcome, now time.Time) Identity {
	merged := i.Performance.Merge(updates)
	if len(recentActions) > 0 {
		merged = trust.Evolve(merged, recentActions, now)
	}
	t := now
	merged.LastUpdated = &t

	profile := trust.ComputeTrustScore(merged, []trust.Performance{i.Performance}, now)

	next := i.clone()
	next.Performance = merged
	next.TrustProfile = profile
	next.TrustScore = profile.Composite

	return next.upgrade(reason, fmt.Sprintf("Metrics updated: %s", reason), now)
}

// upgrade appends exactly one version-history entry and bumps the patch
// component of identityVersion, returning a new Identity.
func (i Identity) upgrade(action, details string, now time.Time) Identity {
	next := i.clone()

	v, err := semver.NewVersion(next.Metadata.IdentityVersion)
	var bumped string
	if err != nil {
		bumped = "1.0.0"
	} else {
		nv := v.IncPatch()
		bumped = nv.String()
	}

	next.Metadata.IdentityVersion = bumped
	next.Metadata.VersionHistory = append(next.Metadata.VersionHistory, VersionHistoryEntry{
		Version:   bumped,
		Timestamp: now,
		Action:    action,
		Details:   details,
	})
	return next
}

// Revoke returns a new Identity with the terminal revoked flag set.
func (i Identity) Revoke(reason string, now time.Time) Identity {
	next := i.clone()
	next.Revoked = true
	next.RevocationReason = reason
	t := now
	next.RevocationAt = &t
	return next
}

// VerifySignature checks an RSA-PSS/SHA-256 signature of message against
// this identity's stored public key.
func (i Identity) VerifySignature(message []byte, signatureHex string) (bool, error) {
	return agentcrypto.Verify(i.PublicKey, signatureHex, message)
}

// Migrate applies transform to a deep clone of i, constructs a fresh
// schema-current Identity from the result, and appends a SCHEMA_MIGRATION
// history entry. transform may mutate the Identity it is given; it
// operates on a private clone.
func (i Identity) Migrate(transform func(Identity) Identity, details string, now time.Time) Identity {
	cloned := i.clone()
	migrated := transform(cloned)
	migrated.SchemaVersion = CurrentSchemaVersion
	return migrated.upgrade(ActionSchemaMigration, details, now)
}
