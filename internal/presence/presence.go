package presence

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotDisplay is returned when a cast-status update arrives on a connection
// that is not a display. Callers log and ignore it; it is never fatal.
var ErrNotDisplay = errors.New("cast status update on non-display connection")

type Role string

const (
	RoleUnaffiliated Role = "unaffiliated"
	RoleConsole      Role = "console"
	RoleDisplay      Role = "display"
)

// Connection is the presence record for one live socket. Owned exclusively by
// the Tracker; looked up by connection id, never attached to the transport.
type Connection struct {
	ID              string
	Role            Role
	RoomID          int
	IsCasting       bool
	DetectionMethod string
	LastCastUpdate  time.Time
}

// Status is the aggregate display state for a room. A display window being
// open does not mean it is casting; Connected is true only while at least one
// display explicitly reports casting.
type Status struct {
	Connected      bool `json:"connected"`
	CastingClients int  `json:"castingClients"`
	DisplayWindows int  `json:"displayWindows"`
}

// Events receives aggregate cast-state changes per room.
type Events interface {
	CastStatusChanged(roomID int, connected bool, at time.Time)
}

// Tracker owns every ConnectionPresence record.
type Tracker struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	events Events
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]*Connection)}
}

// SetEvents wires the broadcast router.
func (t *Tracker) SetEvents(ev Events) { t.events = ev }

// Connect registers a new, unaffiliated connection.
func (t *Tracker) Connect(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[id] = &Connection{ID: id, Role: RoleUnaffiliated}
}

// JoinConsole affiliates the connection with a room as a game-master console,
// leaving any prior room. Returns the previous room so the transport can drop
// its socket-room membership.
func (t *Tracker) JoinConsole(id string, roomID int) (prevRoom int, hadPrev bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.conns[id]
	if c == nil {
		c = &Connection{ID: id}
		t.conns[id] = c
	}
	hadPrev = c.Role != RoleUnaffiliated && c.RoomID != roomID
	prevRoom = c.RoomID
	c.Role = RoleConsole
	c.RoomID = roomID
	c.IsCasting = false
	return prevRoom, hadPrev
}

// JoinDisplay marks the connection as a display window for a room. The window
// is not considered casting until it explicitly reports so.
func (t *Tracker) JoinDisplay(id string, roomID int) (prevRoom int, hadPrev bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.conns[id]
	if c == nil {
		c = &Connection{ID: id}
		t.conns[id] = c
	}
	hadPrev = c.Role != RoleUnaffiliated && c.RoomID != roomID
	prevRoom = c.RoomID
	c.Role = RoleDisplay
	c.RoomID = roomID
	c.IsCasting = false
	return prevRoom, hadPrev
}

// SetCastStatus records a display's own casting state and emits the room's
// new aggregate state, which may differ from this connection's.
func (t *Tracker) SetCastStatus(id string, casting bool, method string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	t.mu.Lock()
	c := t.conns[id]
	if c == nil || c.Role != RoleDisplay {
		t.mu.Unlock()
		return ErrNotDisplay
	}
	c.IsCasting = casting
	c.DetectionMethod = method
	c.LastCastUpdate = at
	roomID := c.RoomID
	aggregate := t.castingLocked(roomID)
	t.mu.Unlock()

	if t.events != nil {
		t.events.CastStatusChanged(roomID, aggregate, at)
	}
	return nil
}

// Disconnect drops the presence record. When a casting display leaves, the
// room aggregate is recomputed and a change is emitted only if it flipped.
func (t *Tracker) Disconnect(id string) {
	t.mu.Lock()
	c := t.conns[id]
	delete(t.conns, id)
	if c == nil || c.Role != RoleDisplay {
		t.mu.Unlock()
		return
	}
	roomID := c.RoomID
	after := t.castingLocked(roomID)
	before := after || c.IsCasting
	t.mu.Unlock()

	if before != after {
		log.Info().Int("room", roomID).Bool("casting", after).Msg("display disconnect changed cast status")
		if t.events != nil {
			t.events.CastStatusChanged(roomID, after, time.Now().UTC())
		}
	}
}

// Status is the polling read used by the HTTP fallback endpoint.
func (t *Tracker) Status(roomID int) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var st Status
	for _, c := range t.conns {
		if c.Role != RoleDisplay || c.RoomID != roomID {
			continue
		}
		st.DisplayWindows++
		if c.IsCasting {
			st.CastingClients++
		}
	}
	st.Connected = st.CastingClients > 0
	return st
}

func (t *Tracker) castingLocked(roomID int) bool {
	for _, c := range t.conns {
		if c.Role == RoleDisplay && c.RoomID == roomID && c.IsCasting {
			return true
		}
	}
	return false
}
