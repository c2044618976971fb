package database

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_notes.up.sql":        {Data: []byte("CREATE TABLE notes();")},
		"002_add_notes.down.sql":      {Data: []byte("DROP TABLE notes;")},
		"001_create_questions.up.sql": {Data: []byte("CREATE TABLE questions();")},
		"003_only_down.down.sql":      {Data: []byte("SELECT 1;")},
		"README.md":                   {Data: []byte("ignored")},
	}

	migrations, err := ReadMigrations(fsys)
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[1].Version != "002" {
		t.Errorf("migrations not sorted: %s, %s", migrations[0].Version, migrations[1].Version)
	}
	if migrations[1].Title != "add notes" {
		t.Errorf("Title = %q, want %q", migrations[1].Title, "add notes")
	}
	if migrations[1].DownSQL == "" {
		t.Error("down migration was not attached")
	}
	if migrations[0].Checksum != calculateChecksum("CREATE TABLE questions();") {
		t.Error("checksum mismatch")
	}
}

func TestValidateChecksums(t *testing.T) {
	migrations := []Migration{{Version: "001", Title: "init", Checksum: "abc"}}

	if err := validateChecksums(migrations, map[string]string{"001": "abc"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateChecksums(migrations, map[string]string{}); err != nil {
		t.Errorf("pending migrations must not fail validation: %v", err)
	}

	err := validateChecksums(migrations, map[string]string{"001": "def"})
	if err == nil || !strings.Contains(err.Error(), "001") {
		t.Errorf("expected mismatch error mentioning 001, got %v", err)
	}
}
