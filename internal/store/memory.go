package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used for tests and storeless runs.
type Memory struct {
	mu         sync.RWMutex
	rooms      map[int]RoomRecord
	usage      map[int][]HintUsageRecord
	hints      map[string]Hint
	categories map[int]Category
	messages   map[int]RoomMessage
	languages  map[string]Language
	nextCatID  int
	nextMsgID  int
}

func NewMemory() *Memory {
	return &Memory{
		rooms:      make(map[int]RoomRecord),
		usage:      make(map[int][]HintUsageRecord),
		hints:      make(map[string]Hint),
		categories: make(map[int]Category),
		messages:   make(map[int]RoomMessage),
		languages:  make(map[string]Language),
		nextCatID:  1,
		nextMsgID:  1,
	}
}

func (m *Memory) GetRoom(_ context.Context, id int) (RoomRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return RoomRecord{}, ErrNotFound
	}
	return room, nil
}

func (m *Memory) SaveRoom(_ context.Context, room RoomRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.UpdatedAt = time.Now().UTC()
	m.rooms[room.ID] = room
	return nil
}

func (m *Memory) ListRooms(_ context.Context) ([]RoomRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomRecord, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Seed(_ context.Context, defaults SeedDefaults) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < defaults.RoomCount; i++ {
		if _, ok := m.rooms[i]; ok {
			continue
		}
		m.rooms[i] = RoomRecord{
			ID:             i,
			Name:           fmt.Sprintf("Sala %d", i+1),
			TimeRemaining:  defaults.DefaultDuration,
			HintsRemaining: defaults.FreeHints,
			FreeHintsCount: defaults.FreeHints,
			UpdatedAt:      time.Now().UTC(),
		}
		for pos, name := range []string{"Pieza Uno", "Pieza Dos", "Pieza Tres", "General"} {
			m.categories[m.nextCatID] = Category{ID: m.nextCatID, RoomID: i, Name: name, Position: pos}
			m.nextCatID++
		}
	}
	for _, lang := range []Language{
		{Code: "es", Name: "Español", Flag: "🇪🇸", IsDefault: true},
		{Code: "en", Name: "English", Flag: "🇺🇸", IsDefault: true},
	} {
		if _, ok := m.languages[lang.Code]; !ok {
			m.languages[lang.Code] = lang
		}
	}
	return nil
}

func (m *Memory) AppendHintUsage(_ context.Context, rec HintUsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.usage[rec.RoomID] = append(m.usage[rec.RoomID], rec)
	return nil
}

func (m *Memory) ListHintUsage(_ context.Context, roomID int) ([]HintUsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]HintUsageRecord, len(m.usage[roomID]))
	copy(out, m.usage[roomID])
	return out, nil
}

func (m *Memory) ClearHintUsage(_ context.Context, roomID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.usage, roomID)
	return nil
}

func (m *Memory) HintUsageStats(_ context.Context, roomID *int, days int) ([]HintUsageStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	byText := make(map[string]*HintUsageStat)
	for id, recs := range m.usage {
		if roomID != nil && *roomID != id {
			continue
		}
		for _, rec := range recs {
			if rec.SentAt.Before(cutoff) {
				continue
			}
			st := byText[rec.HintText]
			if st == nil {
				st = &HintUsageStat{HintID: rec.HintID, HintText: rec.HintText}
				byText[rec.HintText] = st
			}
			st.Count++
			if rec.SentAt.After(st.LastSent) {
				st.LastSent = rec.SentAt
			}
		}
	}
	out := make([]HintUsageStat, 0, len(byText))
	for _, st := range byText {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (m *Memory) ListHints(_ context.Context, roomID int) ([]Hint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Hint, 0)
	for _, h := range m.hints {
		if h.RoomID == nil || *h.RoomID == roomID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ListAllHints(_ context.Context) ([]Hint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Hint, 0, len(m.hints))
	for _, h := range m.hints {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) ListCategoryNames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, h := range m.hints {
		if !seen[h.Category] {
			seen[h.Category] = true
			out = append(out, h.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) CreateHint(_ context.Context, hint Hint) (Hint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hint.ID == "" {
		hint.ID = uuid.NewString()
	}
	hint.CreatedAt = time.Now().UTC()
	m.hints[hint.ID] = hint
	return hint, nil
}

func (m *Memory) UpdateHint(_ context.Context, hint Hint) (Hint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.hints[hint.ID]
	if !ok {
		return Hint{}, ErrNotFound
	}
	existing.Text = hint.Text
	existing.Category = hint.Category
	m.hints[hint.ID] = existing
	return existing, nil
}

func (m *Memory) DeleteHint(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hints[id]; !ok {
		return ErrNotFound
	}
	delete(m.hints, id)
	return nil
}

func (m *Memory) ReorderHints(_ context.Context, roomID int, orderedIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pos, id := range orderedIDs {
		h, ok := m.hints[id]
		if !ok {
			continue
		}
		if h.RoomID != nil && *h.RoomID != roomID {
			continue
		}
		h.Position = pos
		m.hints[id] = h
	}
	return nil
}

func (m *Memory) ListCategories(_ context.Context, roomID int) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Category, 0)
	for _, c := range m.categories {
		if c.RoomID == roomID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) CreateCategory(_ context.Context, roomID int, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxPos := -1
	for _, c := range m.categories {
		if c.RoomID == roomID {
			if c.Name == name {
				return ErrDuplicate
			}
			if c.Position > maxPos {
				maxPos = c.Position
			}
		}
	}
	m.categories[m.nextCatID] = Category{ID: m.nextCatID, RoomID: roomID, Name: name, Position: maxPos + 1}
	m.nextCatID++
	return nil
}

func (m *Memory) RenameCategory(_ context.Context, roomID int, oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.RoomID == roomID && c.Name == newName {
			return ErrDuplicate
		}
	}
	for id, c := range m.categories {
		if c.RoomID == roomID && c.Name == oldName {
			c.Name = newName
			m.categories[id] = c
			// keep catalogued hints pointing at the renamed category
			for hid, h := range m.hints {
				if h.Category == oldName && (h.RoomID == nil || *h.RoomID == roomID) {
					h.Category = newName
					m.hints[hid] = h
				}
			}
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) DeleteCategory(_ context.Context, roomID int, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.categories {
		if c.RoomID == roomID && c.Name == name {
			delete(m.categories, id)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) ReorderCategories(_ context.Context, roomID int, orderedIDs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pos, id := range orderedIDs {
		c, ok := m.categories[id]
		if !ok || c.RoomID != roomID {
			continue
		}
		c.Position = pos
		m.categories[id] = c
	}
	return nil
}

func (m *Memory) ListMessages(_ context.Context, roomID int) ([]RoomMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomMessage, 0)
	for _, msg := range m.messages {
		if msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateMessage(_ context.Context, roomID int, language, message string) (RoomMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.messages {
		if existing.RoomID == roomID && existing.Language == language && existing.Message == message {
			return RoomMessage{}, ErrDuplicate
		}
	}
	msg := RoomMessage{ID: m.nextMsgID, RoomID: roomID, Language: language, Message: message}
	m.messages[msg.ID] = msg
	m.nextMsgID++
	return msg, nil
}

func (m *Memory) DeleteMessage(_ context.Context, roomID, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok || msg.RoomID != roomID {
		return ErrNotFound
	}
	delete(m.messages, messageID)
	return nil
}

func (m *Memory) ListLanguages(_ context.Context) ([]Language, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Language, 0, len(m.languages))
	for _, l := range m.languages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) CreateLanguage(_ context.Context, lang Language) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.languages[lang.Code]; ok {
		return ErrDuplicate
	}
	m.languages[lang.Code] = lang
	return nil
}

func (m *Memory) UpdateLanguage(_ context.Context, code, name, flag string) (Language, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lang, ok := m.languages[code]
	if !ok {
		return Language{}, ErrNotFound
	}
	lang.Name = name
	lang.Flag = flag
	m.languages[code] = lang
	return lang, nil
}

func (m *Memory) DeleteLanguage(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.languages[code]; !ok {
		return ErrNotFound
	}
	delete(m.languages, code)
	return nil
}
