package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	if err := m.Seed(context.Background(), SeedDefaults{RoomCount: 2, DefaultDuration: 3600, FreeHints: 3}); err != nil {
		t.Fatalf("should be able to seed: %v", err)
	}
	return m
}

func TestSeedIsIdempotent(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	room, err := m.GetRoom(ctx, 0)
	if err != nil {
		t.Fatalf("seeded room should exist: %v", err)
	}
	room.Name = "renamed"
	room.TimeRemaining = 100
	if err := m.SaveRoom(ctx, room); err != nil {
		t.Fatalf("should be able to save: %v", err)
	}

	// a second seed must not overwrite existing rooms
	if err := m.Seed(ctx, SeedDefaults{RoomCount: 2, DefaultDuration: 3600, FreeHints: 3}); err != nil {
		t.Fatalf("second seed should not error: %v", err)
	}
	room, _ = m.GetRoom(ctx, 0)
	if room.Name != "renamed" || room.TimeRemaining != 100 {
		t.Fatalf("seed overwrote existing room: %+v", room)
	}

	langs, _ := m.ListLanguages(ctx)
	if len(langs) != 2 {
		t.Fatalf("expected the two obligatory languages, got %d", len(langs))
	}
	cats, _ := m.ListCategories(ctx, 0)
	if len(cats) != 4 {
		t.Fatalf("expected 4 default categories, got %d", len(cats))
	}
}

func TestGetRoomNotFound(t *testing.T) {
	m := seeded(t)
	if _, err := m.GetRoom(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHintUsageLifecycle(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	for i, hintID := range []string{"hint-a", ""} {
		err := m.AppendHintUsage(ctx, HintUsageRecord{
			RoomID: 0, HintID: hintID, HintText: "text", Language: "en", SentAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("append %d should work: %v", i, err)
		}
	}

	recs, err := m.ListHintUsage(ctx, 0)
	if err != nil {
		t.Fatalf("should be able to list usage: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID == "" || recs[1].ID == "" {
		t.Fatal("records should get ids assigned")
	}
	if recs[1].HintID != "" {
		t.Fatal("ad hoc record must keep an empty hint reference")
	}

	if err := m.ClearHintUsage(ctx, 0); err != nil {
		t.Fatalf("should be able to clear usage: %v", err)
	}
	recs, _ = m.ListHintUsage(ctx, 0)
	if len(recs) != 0 {
		t.Fatalf("expected empty history, got %d", len(recs))
	}
	// clearing again is fine
	if err := m.ClearHintUsage(ctx, 0); err != nil {
		t.Fatalf("second clear should not error: %v", err)
	}
}

func TestHintUsageStats(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		m.AppendHintUsage(ctx, HintUsageRecord{RoomID: 0, HintText: "popular", Language: "en", SentAt: now})
	}
	m.AppendHintUsage(ctx, HintUsageRecord{RoomID: 0, HintText: "rare", Language: "en", SentAt: now})
	m.AppendHintUsage(ctx, HintUsageRecord{RoomID: 1, HintText: "other room", Language: "en", SentAt: now})
	m.AppendHintUsage(ctx, HintUsageRecord{RoomID: 0, HintText: "ancient", Language: "en", SentAt: now.AddDate(0, 0, -60)})

	room := 0
	stats, err := m.HintUsageStats(ctx, &room, 30)
	if err != nil {
		t.Fatalf("should be able to compute stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 stats rows, got %d", len(stats))
	}
	if stats[0].HintText != "popular" || stats[0].Count != 3 {
		t.Fatalf("expected popular first with count 3, got %+v", stats[0])
	}

	all, _ := m.HintUsageStats(ctx, nil, 30)
	if len(all) != 3 {
		t.Fatalf("expected 3 rows without a room filter, got %d", len(all))
	}
}

func TestHintCatalog(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	roomID := 0

	created, err := m.CreateHint(ctx, Hint{
		RoomID: &roomID, Text: map[string]string{"es": "pista", "en": "hint"}, Category: "General",
	})
	if err != nil {
		t.Fatalf("should be able to create hint: %v", err)
	}
	if created.ID == "" {
		t.Fatal("hint should get an id")
	}

	hints, _ := m.ListHints(ctx, 0)
	if len(hints) != 1 {
		t.Fatalf("expected 1 hint, got %d", len(hints))
	}
	// hints for another room stay invisible
	hints, _ = m.ListHints(ctx, 1)
	if len(hints) != 0 {
		t.Fatalf("hint leaked into another room: %d", len(hints))
	}

	updated, err := m.UpdateHint(ctx, Hint{ID: created.ID, Text: map[string]string{"es": "nueva"}, Category: "Pieza Uno"})
	if err != nil {
		t.Fatalf("should be able to update hint: %v", err)
	}
	if updated.Category != "Pieza Uno" || updated.Text["es"] != "nueva" {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := m.UpdateHint(ctx, Hint{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.DeleteHint(ctx, created.ID); err != nil {
		t.Fatalf("should be able to delete: %v", err)
	}
	if err := m.DeleteHint(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestReorderHints(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	roomID := 0

	a, _ := m.CreateHint(ctx, Hint{RoomID: &roomID, Text: map[string]string{"es": "a"}, Category: "General"})
	b, _ := m.CreateHint(ctx, Hint{RoomID: &roomID, Text: map[string]string{"es": "b"}, Category: "General"})

	if err := m.ReorderHints(ctx, 0, []string{b.ID, a.ID}); err != nil {
		t.Fatalf("should be able to reorder: %v", err)
	}
	hints, _ := m.ListHints(ctx, 0)
	if hints[0].ID != b.ID {
		t.Fatalf("expected %s first after reorder, got %s", b.ID, hints[0].ID)
	}
}

func TestCategories(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	if err := m.CreateCategory(ctx, 0, "Bonus"); err != nil {
		t.Fatalf("should be able to create category: %v", err)
	}
	if err := m.CreateCategory(ctx, 0, "Bonus"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// same name in another room is fine
	if err := m.CreateCategory(ctx, 1, "Bonus"); err != nil {
		t.Fatalf("category names are per-room: %v", err)
	}

	roomID := 0
	m.CreateHint(ctx, Hint{RoomID: &roomID, Text: map[string]string{"es": "x"}, Category: "Bonus"})
	if err := m.RenameCategory(ctx, 0, "Bonus", "Extra"); err != nil {
		t.Fatalf("should be able to rename category: %v", err)
	}
	hints, _ := m.ListHints(ctx, 0)
	if hints[0].Category != "Extra" {
		t.Fatalf("rename must carry hints along, got %q", hints[0].Category)
	}

	if err := m.RenameCategory(ctx, 0, "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.DeleteCategory(ctx, 0, "Extra"); err != nil {
		t.Fatalf("should be able to delete category: %v", err)
	}
	if err := m.DeleteCategory(ctx, 0, "Extra"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMessages(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	msg, err := m.CreateMessage(ctx, 0, "en", "Hurry up!")
	if err != nil {
		t.Fatalf("should be able to create message: %v", err)
	}
	if _, err := m.CreateMessage(ctx, 0, "en", "Hurry up!"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	msgs, _ := m.ListMessages(ctx, 0)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if err := m.DeleteMessage(ctx, 1, msg.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting via the wrong room must fail, got %v", err)
	}
	if err := m.DeleteMessage(ctx, 0, msg.ID); err != nil {
		t.Fatalf("should be able to delete message: %v", err)
	}
}

func TestLanguages(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	if err := m.CreateLanguage(ctx, Language{Code: "fr", Name: "Français"}); err != nil {
		t.Fatalf("should be able to create language: %v", err)
	}
	if err := m.CreateLanguage(ctx, Language{Code: "fr", Name: "Français"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	lang, err := m.UpdateLanguage(ctx, "fr", "French", "🇫🇷")
	if err != nil {
		t.Fatalf("should be able to update language: %v", err)
	}
	if lang.Name != "French" || lang.Flag != "🇫🇷" {
		t.Fatalf("update not applied: %+v", lang)
	}
	if _, err := m.UpdateLanguage(ctx, "xx", "x", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := m.DeleteLanguage(ctx, "fr"); err != nil {
		t.Fatalf("should be able to delete language: %v", err)
	}
	if err := m.DeleteLanguage(ctx, "fr"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
