package ledger

import (
	"strings"
	"testing"
	"time"
)

const delegationSchema = `{
	"type": "object",
	"required": ["delegate", "scope"],
	"properties": {
		"delegate": {"type": "string", "minLength": 1},
		"scope": {"type": "string", "enum": ["read", "write", "admin"]}
	}
}`

func TestNewJSONSchemaValidator_CompilesValidSchema(t *testing.T) {
	v, err := NewJSONSchemaValidator("DELEGATION", delegationSchema)
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator failed: %v", err)
	}
	if v.schema == nil {
		t.Fatal("expected compiled schema, got nil")
	}
}

func TestNewJSONSchemaValidator_RejectsMalformedSchema(t *testing.T) {
	_, err := NewJSONSchemaValidator("DELEGATION", `{"type": "not-a-real-type"`)
	if err == nil {
		t.Fatal("expected error compiling malformed schema document")
	}
}

func TestJSONSchemaValidator_AcceptsConformingPayload(t *testing.T) {
	v, err := NewJSONSchemaValidator("DELEGATION", delegationSchema)
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator failed: %v", err)
	}

	err = v.Validate(map[string]interface{}{
		"delegate": "agent-77",
		"scope":    "write",
	})
	if err != nil {
		t.Fatalf("expected conforming payload to pass, got: %v", err)
	}
}

func TestJSONSchemaValidator_RejectsMissingRequiredField(t *testing.T) {
	v, err := NewJSONSchemaValidator("DELEGATION", delegationSchema)
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator failed: %v", err)
	}

	err = v.Validate(map[string]interface{}{
		"delegate": "agent-77",
	})
	if err == nil {
		t.Fatal("expected error for payload missing required scope field")
	}
}

func TestJSONSchemaValidator_RejectsOutOfEnumValue(t *testing.T) {
	v, err := NewJSONSchemaValidator("DELEGATION", delegationSchema)
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator failed: %v", err)
	}

	err = v.Validate(map[string]interface{}{
		"delegate": "agent-77",
		"scope":    "superadmin",
	})
	if err == nil {
		t.Fatal("expected error for scope value outside enum")
	}
}

func TestLedger_AddEntry_RejectsSchemaViolationForRegisteredActionType(t *testing.T) {
	v, err := NewJSONSchemaValidator("DELEGATION", delegationSchema)
	if err != nil {
		t.Fatalf("NewJSONSchemaValidator failed: %v", err)
	}

	l := New(time.Now())
	l.RegisterSchema("DELEGATION", v)
	signer := mustSigner(t)

	entries := l.Entries()
	draft := LedgerEntry{
		Index:      len(entries),
		Timestamp:  l.clock(),
		AgentID:    "agent-1",
		ActionType: "DELEGATION",
		Details:    map[string]interface{}{"delegate": "agent-77"},
	}
	hash, err := computeHash(draft)
	if err != nil {
		t.Fatalf("computeHash failed: %v", err)
	}
	sig, err := signer.Sign([]byte(hash))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	_, err = l.AddEntry(AddEntryParams{
		AgentID:    "agent-1",
		PublicKey:  signer.PublicKey(),
		Signature:  sig,
		ActionType: "DELEGATION",
		Details:    map[string]interface{}{"delegate": "agent-77"},
	})
	if err == nil {
		t.Fatal("expected AddEntry to reject a payload missing required scope field")
	}
	if !strings.Contains(err.Error(), ReasonSchemaViolation) {
		t.Fatalf("expected error to carry %s, got: %v", ReasonSchemaViolation, err)
	}
	if len(l.Entries()) != 0 {
		t.Fatal("expected rejected entry not to be appended")
	}
}

func TestLedger_AddEntry_PassesThroughUnregisteredActionType(t *testing.T) {
	l := New(time.Now())
	signer := mustSigner(t)

	e := appendSigned(t, l, signer, "agent-1", "COLLABORATION", map[string]interface{}{
		"anything": "goes",
	})
	if e.ActionType != "COLLABORATION" {
		t.Fatalf("expected entry to be appended, got %+v", e)
	}
}
