package memory

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"
)

func TestNewStoreWithoutDatabaseURLIsInMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("NewStore() = %T, want *InMemoryStore", store)
	}
}

func TestInMemoryTranscriptIsPerSessionAndOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	turns := []TurnRecord{
		{SessionID: "a", Role: "assistant", Content: "Hi, what do you sell?"},
		{SessionID: "b", Role: "user", Content: "other session"},
		{SessionID: "a", Role: "user", Content: "Shoes"},
		{SessionID: "a", Role: "assistant", Content: "Great."},
	}
	for _, turn := range turns {
		if err := store.SaveTurn(ctx, turn); err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	got, err := store.Transcript(ctx, "a", 0)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(Transcript) = %d, want 3", len(got))
	}
	if got[0].Content != "Hi, what do you sell?" || got[2].Content != "Great." {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].ID == "" || got[1].CreatedAt.IsZero() {
		t.Fatalf("SaveTurn did not fill id/created_at: %+v", got[1])
	}

	tail, err := store.Transcript(ctx, "a", 2)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(tail) != 2 || tail[0].Content != "Shoes" {
		t.Fatalf("Transcript(limit=2) = %+v, want last two turns", tail)
	}

	none, err := store.Transcript(ctx, "missing", 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("Transcript(missing) = %v, %v; want empty", none, err)
	}
}

func TestInMemoryTranscriptSortsLateSaves(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	_ = store.SaveTurn(ctx, TurnRecord{SessionID: "a", Content: "second", CreatedAt: base.Add(time.Second)})
	_ = store.SaveTurn(ctx, TurnRecord{SessionID: "a", Content: "first", CreatedAt: base})

	got, err := store.Transcript(ctx, "a", 0)
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(got) != 2 || got[0].Content != "first" {
		t.Fatalf("Transcript() = %+v, want chronological order", got)
	}
}

func TestEmbeddedMigrationsAreGooseAnnotated(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no embedded migrations")
	}
	for _, e := range entries {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", e.Name(), err)
		}
		text := string(data)
		if !strings.Contains(text, "-- +goose Up") || !strings.Contains(text, "-- +goose Down") {
			t.Fatalf("migration %s lacks goose annotations", e.Name())
		}
	}
}
