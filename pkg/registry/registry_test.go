package registry

import (
	"path/filepath"
	"testing"
	"time"

	agentcrypto "github.com/mindburn-labs/agentrust/core/pkg/crypto"
	"github.com/mindburn-labs/agentrust/core/pkg/identity"
)

type testAgent struct {
	signer    *agentcrypto.RSASigner
	publicKey string
}

func newTestAgent(t *testing.T) testAgent {
	t.Helper()
	signer, err := agentcrypto.NewRSASigner("test")
	if err != nil {
		t.Fatalf("failed to generate signer: %v", err)
	}
	return testAgent{signer: signer, publicKey: signer.PublicKey()}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "identities.json"))
	reg, err := New(store)
	if err != nil {
		t.Fatalf("New registry failed: %v", err)
	}
	return reg
}

func TestRegisterIdentity_RejectsMissingFields(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.RegisterIdentity(RegisterParams{OriginSystem: "acme"}); err == nil {
		t.Error("expected error for missing publicKey")
	}
}

func TestRegisterIdentity_RejectsOriginConflictWithoutForce(t *testing.T) {
	reg := newTestRegistry(t)
	agent := newTestAgent(t)

	if _, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "acme"}); err != nil {
		t.Fatalf("initial register failed: %v", err)
	}

	_, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "other-corp"})
	if err == nil {
		t.Fatal("expected ORIGIN_CONFLICT without force")
	}

	if _, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "other-corp", Force: true}); err != nil {
		t.Errorf("expected force re-registration to succeed, got %v", err)
	}
}

func TestRegisterIdentity_SameOriginNormalizedCaseInsensitive(t *testing.T) {
	reg := newTestRegistry(t)
	agent := newTestAgent(t)

	if _, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "Acme"}); err != nil {
		t.Fatalf("initial register failed: %v", err)
	}
	if _, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "ACME"}); err != nil {
		t.Errorf("expected case-folded origin match to avoid conflict, got %v", err)
	}
}

func TestValidateAction_EndToEndReplayScenario(t *testing.T) {
	reg := newTestRegistry(t)
	agent := newTestAgent(t)

	ident, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "acme"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	message := []byte("do the thing")
	sig, err := agent.signer.Sign(message)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	t0 := time.Now()
	result := reg.Validate(ValidateActionParams{
		AgentID:   ident.ID,
		Message:   message,
		Signature: sig,
		Timestamp: &t0,
	})
	if !result.Valid {
		t.Fatalf("expected first validation to succeed, got reason %s", result.Reason)
	}

	replay := reg.Validate(ValidateActionParams{
		AgentID:   ident.ID,
		Message:   message,
		Signature: sig,
		Timestamp: &t0,
	})
	if replay.Valid || replay.Reason != ReasonReplayDetected {
		t.Errorf("expected REPLAY_DETECTED on resubmission, got valid=%v reason=%s", replay.Valid, replay.Reason)
	}
}

func TestValidateAction_UnknownIdentity(t *testing.T) {
	reg := newTestRegistry(t)
	result := reg.Validate(ValidateActionParams{AgentID: "did:agent:ghost", Message: []byte("x"), Signature: "ff"})
	if result.Valid || result.Reason != ReasonIdentityNotFound {
		t.Errorf("expected IDENTITY_NOT_FOUND, got valid=%v reason=%s", result.Valid, result.Reason)
	}
}

func TestValidateAction_RevokedIdentityAlwaysFails(t *testing.T) {
	reg := newTestRegistry(t)
	agent := newTestAgent(t)

	ident, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "acme"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := reg.RevokeIdentity(ident.ID, "compromised key"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	message := []byte("do the thing")
	sig, _ := agent.signer.Sign(message)

	for i := 0; i < 2; i++ {
		result := reg.Validate(ValidateActionParams{AgentID: ident.ID, Message: message, Signature: sig})
		if result.Valid || result.Reason != ReasonIdentityRevoked {
			t.Errorf("iteration %d: expected IDENTITY_REVOKED, got valid=%v reason=%s", i, result.Valid, result.Reason)
		}
	}
}

func TestValidateAction_OriginMismatch(t *testing.T) {
	reg := newTestRegistry(t)
	agent := newTestAgent(t)

	ident, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "acme"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	message := []byte("do the thing")
	sig, _ := agent.signer.Sign(message)

	result := reg.Validate(ValidateActionParams{AgentID: ident.ID, Message: message, Signature: sig, OriginSystem: "other-corp"})
	if result.Valid || result.Reason != ReasonOriginMismatch {
		t.Errorf("expected ORIGIN_MISMATCH, got valid=%v reason=%s", result.Valid, result.Reason)
	}
}

func TestValidateAction_InvalidSignatureRejected(t *testing.T) {
	reg := newTestRegistry(t)
	agent := newTestAgent(t)
	other := newTestAgent(t)

	ident, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "acme"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	message := []byte("do the thing")
	wrongSig, _ := other.signer.Sign(message)

	result := reg.Validate(ValidateActionParams{AgentID: ident.ID, Message: message, Signature: wrongSig})
	if result.Valid || result.Reason != ReasonInvalidSignature {
		t.Errorf("expected INVALID_SIGNATURE, got valid=%v reason=%s", result.Valid, result.Reason)
	}
}

func TestMigrateIdentity_AppendsSchemaMigrationHistory(t *testing.T) {
	reg := newTestRegistry(t)
	agent := newTestAgent(t)

	ident, err := reg.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "acme"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	migrated, err := reg.MigrateIdentity(ident.ID, func(i identity.Identity) identity.Identity { return i }, "backfill test")
	if err != nil {
		t.Fatalf("MigrateIdentity failed: %v", err)
	}
	last := migrated.Metadata.VersionHistory[len(migrated.Metadata.VersionHistory)-1]
	if last.Action != identity.ActionSchemaMigration {
		t.Errorf("expected last history entry SCHEMA_MIGRATION, got %s", last.Action)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identities.json")
	agent := newTestAgent(t)

	reg1, err := New(NewFileStore(path))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ident, err := reg1.RegisterIdentity(RegisterParams{PublicKey: agent.publicKey, OriginSystem: "acme"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	reg2, err := New(NewFileStore(path))
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	reloaded, ok := reg2.GetIdentityByID(ident.ID)
	if !ok {
		t.Fatal("expected identity to persist across registry instances")
	}
	if reloaded.OriginSystem != "acme" {
		t.Errorf("expected originSystem acme, got %s", reloaded.OriginSystem)
	}
}
