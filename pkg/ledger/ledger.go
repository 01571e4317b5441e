// Package ledger implements the append-only, hash-chained, per-entry-signed
// Activity Ledger: each entry's hash covers the previous entry's hash, and
// each entry carries its own RSA-PSS/SHA-256 signature.
package ledger

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	agentcrypto "github.com/mindburn-labs/agentrust/core/pkg/crypto"
)

// Registry is the narrow surface the ledger needs from an identity
// registry to route signature verification through it, inheriting replay
// and revocation semantics. Any type satisfying this interface — in
// practice *registry.Registry — can be attached; the ledger package never
// imports the registry package, avoiding a cycle.
type Registry interface {
	ValidateAction(agentID, publicKey, message, signature string, timestamp *time.Time, originSystem string) (valid bool, reason string, err error)
	EnsureRegistered(publicKey, originSystem string) error
}

// Reason codes for addEntry/verifyChain failures.
const (
	ReasonMissingRequired        = "MISSING_REQUIRED"
	ReasonInvalidSignature       = "INVALID_SIGNATURE"
	ReasonHashMismatch           = "HASH_MISMATCH"
	ReasonChainLinkBroken        = "CHAIN_LINK_BROKEN"
	ReasonGenesisPrevHashNotNull = "GENESIS_PREVHASH_NOT_NULL"
	ReasonSchemaViolation        = "SCHEMA_VIOLATION"
)

// LedgerEntry is a frozen, hash-chained, signed record of one agent action.
type LedgerEntry struct {
	Index      int                    `json:"index"`
	Timestamp  time.Time              `json:"timestamp"`
	AgentID    string                 `json:"agentId"`
	ActionType string                 `json:"actionType"`
	Details    map[string]interface{} `json:"details"`
	PrevHash   *string                `json:"prevHash"`
	Hash       string                 `json:"hash"`
	Signature  string                 `json:"signature"`
	PublicKey  string                 `json:"publicKey"`
}

// hashInput is the exact field order spec.md §4.7 canonicalizes for
// hashing: (index, timestamp, agentId, actionType, details, prevHash).
type hashInput struct {
	Index      int                    `json:"index"`
	Timestamp  time.Time              `json:"timestamp"`
	AgentID    string                 `json:"agentId"`
	ActionType string                 `json:"actionType"`
	Details    map[string]interface{} `json:"details"`
	PrevHash   *string                `json:"prevHash"`
}

func computeHash(e LedgerEntry) (string, error) {
	input := hashInput{
		Index:      e.Index,
		Timestamp:  e.Timestamp,
		AgentID:    e.AgentID,
		ActionType: e.ActionType,
		Details:    e.Details,
		PrevHash:   e.PrevHash,
	}
	canonical, err := agentcrypto.CanonicalMarshal(input)
	if err != nil {
		return "", fmt.Errorf("canonicalizing entry: %w", err)
	}
	return agentcrypto.HashBytes(canonical), nil
}

// Ledger is the in-memory append-only chain. A single mutex serializes
// appends; readers of a Get/Entries snapshot need no lock beyond the one
// taken internally.
type Ledger struct {
	mu        sync.Mutex
	createdAt time.Time
	entries   []LedgerEntry
	clock     func() time.Time
	registry  Registry
	schemas   map[string]PayloadValidator
}

// PayloadValidator checks an actionType's details payload before it is
// hashed and appended. A registered validator that rejects a payload fails
// the append with ReasonSchemaViolation.
type PayloadValidator interface {
	Validate(details map[string]interface{}) error
}

// New creates an empty ledger.
func New(now time.Time) *Ledger {
	return &Ledger{
		createdAt: now,
		entries:   make([]LedgerEntry, 0),
		clock:     func() time.Time { return now },
		schemas:   make(map[string]PayloadValidator),
	}
}

// WithClock overrides the ledger's notion of "now", for deterministic tests.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// AttachRegistry routes future signature verification through r instead of
// verifying locally, engaging replay and revocation checks.
func (l *Ledger) AttachRegistry(r Registry) *Ledger {
	l.registry = r
	return l
}

// RegisterSchema installs a payload validator for actionType. Unregistered
// action types pass through unchecked.
func (l *Ledger) RegisterSchema(actionType string, v PayloadValidator) {
	l.schemas[actionType] = v
}

// AddEntryParams is the input to AddEntry. At least one of Signature or
// PrivateKey must be supplied: a caller-provided signature is verified
// (and PrivateKey, if also set, is ignored); otherwise the ledger signs
// the draft hash with PrivateKey.
type AddEntryParams struct {
	AgentID      string
	PublicKey    string
	PrivateKey   *rsa.PrivateKey
	Signature    string
	ActionType   string
	Details      map[string]interface{}
	OriginSystem string
}

// AddEntry builds, hashes, signs (or verifies a supplied signature for),
// and appends a new entry. On any failure the entry is not stored.
func (l *Ledger) AddEntry(p AddEntryParams) (LedgerEntry, error) {
	if p.AgentID == "" || p.ActionType == "" {
		return LedgerEntry{}, fmt.Errorf("%s: agentId and actionType are required", ReasonMissingRequired)
	}

	if v, ok := l.schemas[p.ActionType]; ok {
		if err := v.Validate(p.Details); err != nil {
			return LedgerEntry{}, fmt.Errorf("%s: %w", ReasonSchemaViolation, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var prevHash *string
	if len(l.entries) > 0 {
		h := l.entries[len(l.entries)-1].Hash
		prevHash = &h
	}

	draft := LedgerEntry{
		Index:      len(l.entries),
		Timestamp:  l.clock(),
		AgentID:    p.AgentID,
		ActionType: p.ActionType,
		Details:    p.Details,
		PrevHash:   prevHash,
		PublicKey:  p.PublicKey,
	}

	hash, err := computeHash(draft)
	if err != nil {
		return LedgerEntry{}, err
	}
	draft.Hash = hash

	signature, err := l.resolveSignature(draft, p)
	if err != nil {
		return LedgerEntry{}, err
	}
	draft.Signature = signature

	l.entries = append(l.entries, draft)
	return draft, nil
}

func (l *Ledger) resolveSignature(draft LedgerEntry, p AddEntryParams) (string, error) {
	if p.Signature != "" {
		if err := l.verifySignature(draft.AgentID, p.PublicKey, draft.Hash, p.Signature, p.OriginSystem); err != nil {
			return "", err
		}
		return p.Signature, nil
	}

	if p.PrivateKey == nil {
		return "", fmt.Errorf("%s: a signature or a privateKey is required", ReasonMissingRequired)
	}
	sig, err := agentcrypto.SignWithKey(p.PrivateKey, []byte(draft.Hash))
	if err != nil {
		return "", fmt.Errorf("%s: %w", ReasonInvalidSignature, err)
	}
	// A self-generated signature still has to clear the same registry gate
	// as a caller-supplied one: an attached registry must see every append,
	// so a revoked or replaying identity cannot bypass it just by signing
	// locally.
	if err := l.verifySignature(draft.AgentID, p.PublicKey, draft.Hash, sig, p.OriginSystem); err != nil {
		return "", err
	}
	return sig, nil
}

func (l *Ledger) verifySignature(agentID, publicKey, hash, signature, originSystem string) error {
	if l.registry != nil {
		if err := l.registry.EnsureRegistered(publicKey, originSystem); err != nil {
			return fmt.Errorf("%s: %w", ReasonInvalidSignature, err)
		}
		valid, reason, err := l.registry.ValidateAction(agentID, publicKey, hash, signature, nil, originSystem)
		if err != nil {
			return fmt.Errorf("%s: %w", ReasonInvalidSignature, err)
		}
		if !valid {
			return fmt.Errorf("%s: %s", ReasonInvalidSignature, reason)
		}
		return nil
	}

	valid, err := agentcrypto.Verify(publicKey, signature, []byte(hash))
	if err != nil {
		return fmt.Errorf("%s: %w", ReasonInvalidSignature, err)
	}
	if !valid {
		return fmt.Errorf("%s: signature does not verify", ReasonInvalidSignature)
	}
	return nil
}

// VerifyResult is the outcome of VerifyChain.
type VerifyResult struct {
	Valid  bool
	Index  int
	Reason string
}

// VerifyChain walks the entries and checks, per entry: the stored hash
// matches a recomputation, the prevHash linkage holds, and the signature
// verifies under the stored publicKey. Verification always runs locally —
// it never consults an attached registry, so a loaded-from-disk ledger can
// be verified standalone.
func (l *Ledger) VerifyChain() VerifyResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if i == 0 {
			if e.PrevHash != nil {
				return VerifyResult{Valid: false, Index: i, Reason: ReasonGenesisPrevHashNotNull}
			}
		} else {
			prev := l.entries[i-1]
			if e.PrevHash == nil || *e.PrevHash != prev.Hash {
				return VerifyResult{Valid: false, Index: i, Reason: ReasonChainLinkBroken}
			}
		}

		recomputed, err := computeHash(e)
		if err != nil || recomputed != e.Hash {
			return VerifyResult{Valid: false, Index: i, Reason: ReasonHashMismatch}
		}

		valid, err := agentcrypto.Verify(e.PublicKey, e.Signature, []byte(e.Hash))
		if err != nil || !valid {
			return VerifyResult{Valid: false, Index: i, Reason: ReasonInvalidSignature}
		}
	}

	return VerifyResult{Valid: true}
}

// Entries returns a defensive copy of the ledger's entries in append order.
func (l *Ledger) Entries() []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Get retrieves the entry at index, or false if out of range.
func (l *Ledger) Get(index int) (LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.entries) {
		return LedgerEntry{}, false
	}
	return l.entries[index], true
}

// Length returns the number of entries.
func (l *Ledger) Length() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CreatedAt returns the ledger's creation timestamp.
func (l *Ledger) CreatedAt() time.Time {
	return l.createdAt
}

// fileFormat is the normative on-wire shape of a persisted ledger: a
// createdAt timestamp plus the entries in append order, UTF-8, pretty
// printed with 2-space indentation.
type fileFormat struct {
	CreatedAt time.Time     `json:"createdAt"`
	Entries   []LedgerEntry `json:"entries"`
}

// SaveToFile writes the ledger to path in the normative on-wire shape.
func (l *Ledger) SaveToFile(path string) error {
	l.mu.Lock()
	doc := fileFormat{CreatedAt: l.createdAt, Entries: l.entries}
	l.mu.Unlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing ledger file: %w", err)
	}
	return nil
}

// LoadFromFile reads a ledger previously written by SaveToFile. Loading
// does not verify the chain; call VerifyChain explicitly.
func LoadFromFile(path string) (*Ledger, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ledger file: %w", err)
	}

	var doc fileFormat
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling ledger file: %w", err)
	}

	entries := doc.Entries
	if entries == nil {
		entries = make([]LedgerEntry, 0)
	}
	return &Ledger{
		createdAt: doc.CreatedAt,
		entries:   entries,
		clock:     time.Now,
		schemas:   make(map[string]PayloadValidator),
	}, nil
}
