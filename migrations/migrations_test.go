package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsHaveUpAndDown(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("no migrations embedded")
	}
	for _, name := range files {
		bs, err := fs.ReadFile(FS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		body := string(bs)
		if !strings.Contains(body, "-- migrate:up") || !strings.Contains(body, "-- migrate:down") {
			t.Fatalf("%s: missing dbmate up/down sections", name)
		}
	}
}

func TestProfilesTableRejectsNonPositiveIDs(t *testing.T) {
	bs, err := fs.ReadFile(FS, "20250301120000_create_dietary_profiles.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(bs)
	for _, want := range []string{
		"UNIQUE (athlete_id)",
		"athlete_id > 0",
		"diet_type_id IS NULL OR diet_type_id > 0",
		"0 < ALL (intolerant_food_ids)",
		"0 < ALL (preferred_food_ids)",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("migration: missing %q", want)
		}
	}
}
