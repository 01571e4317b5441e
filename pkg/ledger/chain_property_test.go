//go:build property
// +build property

package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestChainIntegrity_ArbitraryAppendSequences verifies that any sequence
// of validly signed appends leaves the chain verifiable end to end.
// Property: VerifyChain().Valid == true after N valid AddEntry calls.
func TestChainIntegrity_ArbitraryAppendSequences(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	signer := mustSigner(t)

	properties.Property("a chain built from N validly signed appends always verifies", prop.ForAll(
		func(actionTypes []string) bool {
			if len(actionTypes) == 0 {
				return true
			}

			l := New(time.Now())
			for i, at := range actionTypes {
				if at == "" {
					at = "UNSPECIFIED"
				}
				appendSigned(t, l, signer, "agent-1", at, map[string]interface{}{"seq": i})
			}

			return l.VerifyChain().Valid
		},
		gen.SliceOfN(20, gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestChainIntegrity_CorruptedHashDetected verifies that overwriting the
// last two hex characters of the final persisted entry's hash breaks
// verification on reload.
// Property: corrupting the last on-disk entry hash makes VerifyChain().Valid == false.
func TestChainIntegrity_CorruptedHashDetected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	signer := mustSigner(t)

	properties.Property("corrupting the last on-disk entry hash breaks chain verification", prop.ForAll(
		func(n int) bool {
			if n < 2 {
				return true
			}

			l := New(time.Now())
			for i := 0; i < n; i++ {
				appendSigned(t, l, signer, "agent-1", "ACTION", map[string]interface{}{"seq": i})
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "ledger.json")
			if err := l.SaveToFile(path); err != nil {
				return false
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return false
			}
			target := l.Entries()[n-1].Hash
			corrupted := strings.Replace(string(raw), target, target[:len(target)-2]+"ff", 1)
			if corrupted == string(raw) {
				return true // hash string didn't appear verbatim; nothing to corrupt
			}
			if err := os.WriteFile(path, []byte(corrupted), 0o644); err != nil {
				return false
			}

			loaded, err := LoadFromFile(path)
			if err != nil {
				return true // malformed JSON also counts as detected corruption
			}
			return !loaded.VerifyChain().Valid
		},
		gen.IntRange(2, 15),
	))

	properties.TestingRun(t)
}
