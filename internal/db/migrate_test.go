package db

import (
	"strings"
	"testing"
)

func TestMigrationNames_Ordered(t *testing.T) {
	names, err := MigrationNames()
	if err != nil {
		t.Fatalf("MigrationNames: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
}

// The store relies on these constraints for dedup and create-on-first-touch.
func TestInitMigration_DeclaresUniqueKeys(t *testing.T) {
	raw, err := migrations.ReadFile("migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(raw)
	for _, want := range []string{
		"external_id     TEXT        NOT NULL UNIQUE",
		"posting_id   BIGINT          NOT NULL UNIQUE REFERENCES postings (id)",
		"CREATE TABLE IF NOT EXISTS scrape_audit",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("migration missing %q", want)
		}
	}
}
