package postgres

import (
	"testing"
	"testing/fstest"
)

func mapFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys["sql/migrations/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestLoadMigrationsFromFS(t *testing.T) {
	fsys := mapFS(map[string]string{
		"0002_second.up.sql":   "CREATE TABLE b (id TEXT);",
		"0002_second.down.sql": "DROP TABLE b;",
		"0001_first.up.sql":    "CREATE TABLE a (id TEXT);",
		"0001_first.down.sql":  "DROP TABLE a;",
	})

	migrations, err := loadMigrationsFromFS(fsys)
	if err != nil {
		t.Fatalf("loadMigrationsFromFS failed: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("expected versions sorted ascending, got %d, %d", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Name != "first" {
		t.Errorf("expected name first, got %s", migrations[0].Name)
	}
	if migrations[0].UpSQL == "" || migrations[0].DownSQL == "" {
		t.Error("expected both up and down SQL to be loaded")
	}
}

func TestLoadMigrationsFromFS_MissingDown(t *testing.T) {
	fsys := mapFS(map[string]string{
		"0001_first.up.sql": "CREATE TABLE a (id TEXT);",
	})

	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for migration without down file")
	}
}

func TestLoadMigrationsFromFS_InvalidName(t *testing.T) {
	fsys := mapFS(map[string]string{
		"first.up.sql":        "CREATE TABLE a (id TEXT);",
		"0001_first.down.sql": "DROP TABLE a;",
	})

	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for invalid migration file name")
	}
}

func TestLoadMigrationsFromFS_DuplicateUp(t *testing.T) {
	fsys := mapFS(map[string]string{
		"0001_first.up.sql":   "CREATE TABLE a (id TEXT);",
		"0001_other.up.sql":   "CREATE TABLE b (id TEXT);",
		"0001_first.down.sql": "DROP TABLE a;",
	})

	if _, err := loadMigrationsFromFS(fsys); err == nil {
		t.Fatal("expected error for conflicting migration names")
	}
}

func TestEmbeddedMigrationsAreWellFormed(t *testing.T) {
	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		t.Fatalf("embedded migrations are broken: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
}
