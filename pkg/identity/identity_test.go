package identity

import (
	"testing"
	"time"

	"github.com/mindburn-labs/agentrust/core/pkg/trust"
)

func TestNew_DerivesIDFromPublicKey(t *testing.T) {
	now := time.Now()
	ident, err := New("pem-public-key-bytes", "acme", NewOptions{}, now)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	want := DeriveID("pem-public-key-bytes")
	if ident.ID != want {
		t.Errorf("expected derived id %q, got %q", want, ident.ID)
	}
	if ident.Metadata.IdentityVersion != "1.0.0" {
		t.Errorf("expected initial identityVersion 1.0.0, got %s", ident.Metadata.IdentityVersion)
	}
	if len(ident.Metadata.VersionHistory) != 1 || ident.Metadata.VersionHistory[0].Action != ActionIdentityInitialized {
		t.Errorf("expected single IDENTITY_INITIALIZED history entry, got %+v", ident.Metadata.VersionHistory)
	}
	if ident.TrustScore <= 0 {
		t.Errorf("expected a populated trust score on construction, got %v", ident.TrustScore)
	}
}

func TestNew_RejectsMissingRequiredFields(t *testing.T) {
	if _, err := New("", "acme", NewOptions{}, time.Now()); err == nil {
		t.Error("expected error for missing publicKey")
	}
	if _, err := New("pk", "", NewOptions{}, time.Now()); err == nil {
		t.Error("expected error for missing originSystem")
	}
}

func TestNew_OverridesID(t *testing.T) {
	ident, err := New("pk", "acme", NewOptions{ID: "custom-id"}, time.Now())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if ident.ID != "custom-id" {
		t.Errorf("expected custom id to be respected, got %s", ident.ID)
	}
}

func TestUpdatePerformance_BumpsVersionAndHistory(t *testing.T) {
	now := time.Now()
	ident, _ := New("pk", "acme", NewOptions{}, now)

	newROI := 50.0
	updated := ident.UpdatePerformance(trust.Performance{ROI: &newROI}, "roi improved", nil, now.Add(time.Hour))

	if updated.Metadata.IdentityVersion != "1.0.1" {
		t.Errorf("expected patch bump to 1.0.1, got %s", updated.Metadata.IdentityVersion)
	}
	if len(updated.Metadata.VersionHistory) != 2 {
		t.Errorf("expected 2 history entries after one update, got %d", len(updated.Metadata.VersionHistory))
	}
	if *updated.Performance.ROI != 50.0 {
		t.Errorf("expected merged ROI 50.0, got %v", *updated.Performance.ROI)
	}

	// original must be untouched (copy-on-write)
	if ident.Metadata.IdentityVersion != "1.0.0" {
		t.Errorf("expected original identity unmodified, got version %s", ident.Metadata.IdentityVersion)
	}
}

func TestUpdatePerformance_RecomputesTrustScore(t *testing.T) {
	now := time.Now()
	ident, _ := New("pk", "acme", NewOptions{}, now)

	worse := 0.0
	updated := ident.UpdatePerformance(trust.Performance{ComplianceHistory: &worse}, "compliance drop", nil, now.Add(time.Hour))

	if updated.TrustScore >= ident.TrustScore {
		t.Errorf("expected trust score to drop after compliance history hit zero: before=%v after=%v", ident.TrustScore, updated.TrustScore)
	}
}

func TestRevoke_SetsTerminalFlag(t *testing.T) {
	ident, _ := New("pk", "acme", NewOptions{}, time.Now())
	revoked := ident.Revoke("policy violation", time.Now())

	if !revoked.Revoked {
		t.Error("expected revoked=true")
	}
	if revoked.RevocationReason != "policy violation" {
		t.Errorf("expected revocation reason recorded, got %s", revoked.RevocationReason)
	}
	if ident.Revoked {
		t.Error("expected original identity to remain unrevoked (copy-on-write)")
	}
}

func TestMigrate_BumpsSchemaAndAppendsHistory(t *testing.T) {
	ident, _ := New("pk", "acme", NewOptions{}, time.Now())
	ident.SchemaVersion = 0

	migrated := ident.Migrate(func(i Identity) Identity {
		i.SchemaVersion = 0 // pre-migration shape
		return i
	}, "stamped missing schemaVersion", time.Now())

	if migrated.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("expected schema version stamped to current, got %d", migrated.SchemaVersion)
	}

	last := migrated.Metadata.VersionHistory[len(migrated.Metadata.VersionHistory)-1]
	if last.Action != ActionSchemaMigration {
		t.Errorf("expected last history entry to be SCHEMA_MIGRATION, got %s", last.Action)
	}
	if migrated.ID != ident.ID {
		t.Error("expected migration to preserve identity id")
	}
}
