package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mindburn-labs/agentrust/core/pkg/identity"
)

// CurrentMetaSchemaVersion is the store-level schema version stamped into
// newly created identity stores.
const CurrentMetaSchemaVersion = 1

// storeMeta carries store-wide bookkeeping, independent of any single
// identity's own schemaVersion.
type storeMeta struct {
	SchemaVersion int `json:"schemaVersion"`
}

// storeDocument is the normative on-wire shape of the identity store.
type storeDocument struct {
	Identities           map[string]identity.Identity `json:"identities"`
	Meta                 storeMeta                    `json:"meta"`
	LastActionTimestamps map[string]int64             `json:"lastActionTimestamps"`
}

func newEmptyDocument() storeDocument {
	return storeDocument{
		Identities:           make(map[string]identity.Identity),
		Meta:                 storeMeta{SchemaVersion: CurrentMetaSchemaVersion},
		LastActionTimestamps: make(map[string]int64),
	}
}

// Store persists the whole identity store document. Implementations own
// their own durability; the Registry never partially writes.
type Store interface {
	Load() (storeDocument, error)
	Save(doc storeDocument) error
}

// FileStore persists the store as a single pretty-printed JSON file, the
// normative on-wire shape of spec.md §6.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore rooted at path. The file need not exist
// yet; Load returns an empty document in that case.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (storeDocument, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return newEmptyDocument(), nil
	}
	if err != nil {
		return storeDocument{}, fmt.Errorf("reading identity store: %w", err)
	}

	var doc storeDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return storeDocument{}, fmt.Errorf("unmarshaling identity store: %w", err)
	}
	if doc.Identities == nil {
		doc.Identities = make(map[string]identity.Identity)
	}
	if doc.LastActionTimestamps == nil {
		doc.LastActionTimestamps = make(map[string]int64)
	}
	return doc, nil
}

func (s *FileStore) Save(doc storeDocument) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling identity store: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("writing identity store: %w", err)
	}
	return nil
}

// PostgresStore persists the store as a single JSONB-encoded document in
// one row, for deployments wanting transactional writes without modeling
// every nested field relationally. Tested against go-sqlmock.
type PostgresStore struct {
	db  *sql.DB
	key string
}

const pgStoreSchema = `
CREATE TABLE IF NOT EXISTS identity_store (
	store_key TEXT PRIMARY KEY,
	document_json JSONB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// NewPostgresStore wraps db, keying the single persisted document under
// key (multiple registries can share one table).
func NewPostgresStore(db *sql.DB, key string) *PostgresStore {
	return &PostgresStore{db: db, key: key}
}

// Init creates the backing table if it does not already exist.
func (s *PostgresStore) Init() error {
	_, err := s.db.Exec(pgStoreSchema)
	return err
}

func (s *PostgresStore) Load() (storeDocument, error) {
	var raw []byte
	err := s.db.QueryRow("SELECT document_json FROM identity_store WHERE store_key = $1", s.key).Scan(&raw)
	if err == sql.ErrNoRows {
		return newEmptyDocument(), nil
	}
	if err != nil {
		return storeDocument{}, fmt.Errorf("loading identity store row: %w", err)
	}

	var doc storeDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return storeDocument{}, fmt.Errorf("unmarshaling identity store row: %w", err)
	}
	if doc.Identities == nil {
		doc.Identities = make(map[string]identity.Identity)
	}
	if doc.LastActionTimestamps == nil {
		doc.LastActionTimestamps = make(map[string]int64)
	}
	return doc, nil
}

func (s *PostgresStore) Save(doc storeDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling identity store row: %w", err)
	}

	query := `
		INSERT INTO identity_store (store_key, document_json, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (store_key) DO UPDATE
		SET document_json = $2, updated_at = $3
	`
	_, err = s.db.Exec(query, s.key, raw, time.Now().UTC())
	return err
}
