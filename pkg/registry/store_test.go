package registry

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/mindburn-labs/agentrust/core/pkg/identity"
)

func fixedTime() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func sqlErrNoRows() error {
	return sql.ErrNoRows
}

func mustMarshal(t *testing.T, doc storeDocument) []byte {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return b
}

func TestFileStore_LoadMissingFileReturnsEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "does-not-exist.json"))

	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Identities) != 0 {
		t.Errorf("expected empty identities map, got %d entries", len(doc.Identities))
	}
	if doc.Meta.SchemaVersion != CurrentMetaSchemaVersion {
		t.Errorf("expected fresh document stamped with current schema version, got %d", doc.Meta.SchemaVersion)
	}
}

func TestFileStore_SaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identities.json")
	store := NewFileStore(path)

	doc := newEmptyDocument()
	ident, err := identity.New("pk", "acme", identity.NewOptions{}, fixedTime())
	if err != nil {
		t.Fatalf("identity.New failed: %v", err)
	}
	doc.Identities[ident.ID] = ident
	doc.LastActionTimestamps[ident.ID] = 12345

	if err := store.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := loaded.Identities[ident.ID]; !ok {
		t.Error("expected identity to round-trip")
	}
	if loaded.LastActionTimestamps[ident.ID] != 12345 {
		t.Errorf("expected replay timestamp to round-trip, got %d", loaded.LastActionTimestamps[ident.ID])
	}
}

func TestPostgresStore_LoadEmptyWhenNoRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT document_json FROM identity_store WHERE store_key = $1")).
		WithArgs("default").
		WillReturnError(sqlErrNoRows())

	store := NewPostgresStore(db, "default")
	doc, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Identities) != 0 {
		t.Errorf("expected empty document, got %d identities", len(doc.Identities))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestPostgresStore_SaveUpsertsDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO identity_store")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresStore(db, "default")
	doc := newEmptyDocument()
	if err := store.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestPostgresStore_LoadUnmarshalsStoredDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	ident, err := identity.New("pk", "acme", identity.NewOptions{}, fixedTime())
	if err != nil {
		t.Fatalf("identity.New failed: %v", err)
	}
	doc := newEmptyDocument()
	doc.Identities[ident.ID] = ident

	rows := sqlmock.NewRows([]string{"document_json"}).AddRow(mustMarshal(t, doc))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document_json FROM identity_store WHERE store_key = $1")).
		WithArgs("default").
		WillReturnRows(rows)

	store := NewPostgresStore(db, "default")
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := loaded.Identities[ident.ID]; !ok {
		t.Error("expected identity decoded from JSONB column")
	}
}
