package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NoobAuthor/gamemaster/internal/store"
)

// roomState holds the authoritative session for one room. The mutex keeps
// per-room command ordering: a command completes (including persistence and
// its broadcast) before the next command on the same room begins. Commands on
// different rooms interleave freely.
type roomState struct {
	mu sync.Mutex
	RoomSession
}

// Coordinator owns every RoomSession. State lives in memory; the store is
// written on each committed transition and read only at boot.
type Coordinator struct {
	store    store.Store
	defaults Defaults

	mu     sync.RWMutex
	rooms  map[int]*roomState
	events Events
}

func NewCoordinator(st store.Store, defaults Defaults) *Coordinator {
	return &Coordinator{
		store:    st,
		defaults: defaults,
		rooms:    make(map[int]*roomState),
	}
}

// SetEvents wires the broadcast router. Must be called before commands run.
func (c *Coordinator) SetEvents(ev Events) { c.events = ev }

// Load seeds missing rooms and pulls all room records into memory.
func (c *Coordinator) Load(ctx context.Context, roomCount int) error {
	err := c.store.Seed(ctx, store.SeedDefaults{
		RoomCount:       roomCount,
		DefaultDuration: c.defaults.Duration,
		FreeHints:       c.defaults.FreeHints,
	})
	if err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}
	records, err := c.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rooms: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range records {
		c.rooms[rec.ID] = &roomState{RoomSession: fromRecord(rec)}
	}
	return nil
}

func (c *Coordinator) room(id int) (*roomState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rs := c.rooms[id]
	if rs == nil {
		return nil, ErrRoomNotFound
	}
	return rs, nil
}

// Rooms returns snapshots of every room, ordered by id.
func (c *Coordinator) Rooms() []RoomSession {
	c.mu.RLock()
	states := make([]*roomState, 0, len(c.rooms))
	for _, rs := range c.rooms {
		states = append(states, rs)
	}
	c.mu.RUnlock()
	out := make([]RoomSession, 0, len(states))
	for _, rs := range states {
		rs.mu.Lock()
		out = append(out, rs.RoomSession)
		rs.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Room returns the current snapshot for one room.
func (c *Coordinator) Room(id int) (RoomSession, error) {
	rs, err := c.room(id)
	if err != nil {
		return RoomSession{}, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.RoomSession, nil
}

// Rename sets the room's display name. The name must be non-empty after
// trimming.
func (c *Coordinator) Rename(ctx context.Context, id int, name string) (RoomSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoomSession{}, ErrEmptyName
	}
	return c.transition(ctx, id, func(room *RoomSession) {
		room.Name = name
	})
}

// SetRunning starts or stops the countdown. Starting a room at zero time is a
// no-op on the run state but still persists and broadcasts.
func (c *Coordinator) SetRunning(ctx context.Context, id int, running bool) (RoomSession, error) {
	return c.transition(ctx, id, func(room *RoomSession) {
		if running && room.TimeRemaining == 0 {
			return
		}
		room.IsRunning = running
	})
}

// UpdateRoom applies a console-pushed snapshot (manual time adjustments and
// the like), clamped to the session invariants.
func (c *Coordinator) UpdateRoom(ctx context.Context, updated RoomSession) (RoomSession, error) {
	return c.transition(ctx, updated.ID, func(room *RoomSession) {
		if name := strings.TrimSpace(updated.Name); name != "" {
			room.Name = name
		}
		room.TimeRemaining = max(0, updated.TimeRemaining)
		room.FreeHintsCount = max(0, updated.FreeHintsCount)
		room.HintsRemaining = min(max(0, updated.HintsRemaining), room.FreeHintsCount)
		room.IsRunning = updated.IsRunning && room.TimeRemaining > 0
		room.LastMessage = updated.LastMessage
	})
}

// Reset restores the room to its configured defaults and clears the room's
// hint usage history. History is session-scoped, not room-lifetime-scoped.
func (c *Coordinator) Reset(ctx context.Context, id int) (RoomSession, error) {
	rs, err := c.room(id)
	if err != nil {
		return RoomSession{}, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := c.store.ClearHintUsage(ctx, id); err != nil {
		return RoomSession{}, fmt.Errorf("failed to clear hint history: %w", err)
	}
	room := rs.RoomSession
	room.TimeRemaining = c.defaults.Duration
	room.IsRunning = false
	room.HintsRemaining = room.FreeHintsCount
	room.LastMessage = ""
	if err := c.store.SaveRoom(ctx, toRecord(room)); err != nil {
		return RoomSession{}, fmt.Errorf("failed to persist room %d: %w", id, err)
	}
	rs.RoomSession = room
	if c.events != nil {
		c.events.RoomChanged(room)
		c.events.RoomReset(id)
	}
	return room, nil
}

// SendHint logs the hint, applies the budget and penalty accounting, and
// broadcasts. An empty hintID marks the hint as ad hoc.
//
// Accounting: a remaining free hint is consumed with no penalty, catalogued or
// not. With the budget at zero a catalogued hint costs PenaltySeconds (floored
// at zero time); an ad hoc hint costs nothing.
func (c *Coordinator) SendHint(ctx context.Context, id int, hintID, hint, language string) (RoomSession, HintOutcome, error) {
	rs, err := c.room(id)
	if err != nil {
		return RoomSession{}, "", err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	err = c.store.AppendHintUsage(ctx, store.HintUsageRecord{
		RoomID:   id,
		HintID:   hintID,
		HintText: hint,
		Language: language,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		return RoomSession{}, "", fmt.Errorf("failed to log hint usage: %w", err)
	}

	room := rs.RoomSession
	var outcome HintOutcome
	custom := hintID == ""
	switch {
	case room.HintsRemaining > 0:
		room.HintsRemaining--
		outcome = OutcomeConsumedFreeHint
	case custom:
		outcome = OutcomeNoPenaltyCustomHint
	default:
		room.TimeRemaining = max(0, room.TimeRemaining-c.defaults.PenaltySeconds)
		if room.TimeRemaining == 0 {
			room.IsRunning = false
		}
		outcome = OutcomePenaltyApplied
	}

	if err := c.store.SaveRoom(ctx, toRecord(room)); err != nil {
		return RoomSession{}, "", fmt.Errorf("failed to persist room %d: %w", id, err)
	}
	rs.RoomSession = room
	if c.events != nil {
		c.events.RoomChanged(room)
		c.events.HintSent(id, hintID, hint, language, outcome.PenaltyApplied())
	}
	return room, outcome, nil
}

// SendMessage sets the room's last quick message and broadcasts it to the
// room's display.
func (c *Coordinator) SendMessage(ctx context.Context, id int, message, language string) (RoomSession, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return RoomSession{}, ErrEmptyMessage
	}
	room, err := c.transition(ctx, id, func(room *RoomSession) {
		room.LastMessage = message
	})
	if err != nil {
		return RoomSession{}, err
	}
	if c.events != nil {
		c.events.MessageSent(id, message, language)
	}
	return room, nil
}

// HintHistory returns the append-only usage log for one room.
func (c *Coordinator) HintHistory(ctx context.Context, id int) ([]store.HintUsageRecord, error) {
	if _, err := c.room(id); err != nil {
		return nil, err
	}
	recs, err := c.store.ListHintUsage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load hint history: %w", err)
	}
	return recs, nil
}

// ClearHintHistory drops the usage log for one room.
func (c *Coordinator) ClearHintHistory(ctx context.Context, id int) error {
	if _, err := c.room(id); err != nil {
		return err
	}
	if err := c.store.ClearHintUsage(ctx, id); err != nil {
		return fmt.Errorf("failed to clear hint history: %w", err)
	}
	return nil
}

// Tick advances every running room by one second. A persistence failure on
// one room is logged and skipped; it never aborts the sweep.
func (c *Coordinator) Tick(ctx context.Context) {
	c.mu.RLock()
	states := make([]*roomState, 0, len(c.rooms))
	for _, rs := range c.rooms {
		states = append(states, rs)
	}
	c.mu.RUnlock()

	for _, rs := range states {
		rs.mu.Lock()
		if !rs.IsRunning || rs.TimeRemaining == 0 {
			rs.mu.Unlock()
			continue
		}
		room := rs.RoomSession
		room.TimeRemaining--
		if room.TimeRemaining == 0 {
			room.IsRunning = false
		}
		if err := c.store.SaveRoom(ctx, toRecord(room)); err != nil {
			log.Error().Err(err).Int("room", room.ID).Msg("tick persist failed")
			rs.mu.Unlock()
			continue
		}
		rs.RoomSession = room
		// emit before releasing the room lock so a concurrent command
		// cannot slip a fresher broadcast in front of this one
		if c.events != nil {
			c.events.TimeSync(room.ID, room.TimeRemaining, room.IsRunning)
			if room.TimeRemaining == 0 {
				c.events.RoomChanged(room)
			}
		}
		rs.mu.Unlock()
	}
}

// transition runs a mutation under the room lock, persists the result, then
// commits it to memory and broadcasts room-changed. A failed persist leaves
// the in-memory session untouched.
func (c *Coordinator) transition(ctx context.Context, id int, mutate func(*RoomSession)) (RoomSession, error) {
	rs, err := c.room(id)
	if err != nil {
		return RoomSession{}, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	room := rs.RoomSession
	mutate(&room)
	if err := c.store.SaveRoom(ctx, toRecord(room)); err != nil {
		return RoomSession{}, fmt.Errorf("failed to persist room %d: %w", id, err)
	}
	rs.RoomSession = room
	if c.events != nil {
		c.events.RoomChanged(room)
	}
	return room, nil
}

func fromRecord(rec store.RoomRecord) RoomSession {
	return RoomSession{
		ID:             rec.ID,
		Name:           rec.Name,
		TimeRemaining:  rec.TimeRemaining,
		IsRunning:      rec.IsRunning && rec.TimeRemaining > 0,
		HintsRemaining: rec.HintsRemaining,
		FreeHintsCount: rec.FreeHintsCount,
		LastMessage:    rec.LastMessage,
	}
}

func toRecord(room RoomSession) store.RoomRecord {
	return store.RoomRecord{
		ID:             room.ID,
		Name:           room.Name,
		TimeRemaining:  room.TimeRemaining,
		IsRunning:      room.IsRunning,
		HintsRemaining: room.HintsRemaining,
		FreeHintsCount: room.FreeHintsCount,
		LastMessage:    room.LastMessage,
	}
}
