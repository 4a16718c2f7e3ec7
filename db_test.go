package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/robalobadob/cardgame/internal/players"
)

func TestOpenDBCreatesDirectoryAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "cardgame.db")
	db, err := openDB(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := players.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := players.NewStore(db)
	if _, err := st.Insert(context.Background(), "Alice", 10, 1); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal mode, got %q", mode)
	}
}
