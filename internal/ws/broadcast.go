package ws

import (
	"fmt"
	"time"

	socketio "github.com/googollee/go-socket.io"

	"github.com/NoobAuthor/gamemaster/internal/session"
)

// Router maps coordinator and presence events to their wire topic and fan-out
// scope. Timer and room-identity changes go to every client so multi-device
// game-master setups stay in sync; hint and message content stays inside the
// room so one room's puzzle hints never reach another room's screen.
type Router struct {
	io *socketio.Server
}

func NewRouter(io *socketio.Server) *Router {
	return &Router{io: io}
}

func roomKey(roomID int) string {
	return fmt.Sprintf("room-%d", roomID)
}

type timeSyncPayload struct {
	RoomID        int  `json:"roomId"`
	TimeRemaining int  `json:"timeRemaining"`
	IsRunning     bool `json:"isRunning"`
}

type hintPayload struct {
	RoomID             int    `json:"roomId"`
	HintID             string `json:"hintId"`
	Hint               string `json:"hint"`
	Language           string `json:"language"`
	TimePenaltyApplied bool   `json:"timePenaltyApplied"`
}

type messagePayload struct {
	RoomID   int    `json:"roomId"`
	Message  string `json:"message"`
	Language string `json:"language"`
}

type castStatusPayload struct {
	RoomID    int       `json:"roomId"`
	Connected bool      `json:"connected"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *Router) RoomChanged(room session.RoomSession) {
	r.io.BroadcastToNamespace("/", "room-changed", room)
}

func (r *Router) TimeSync(roomID, timeRemaining int, isRunning bool) {
	r.io.BroadcastToNamespace("/", "time-sync", timeSyncPayload{
		RoomID:        roomID,
		TimeRemaining: timeRemaining,
		IsRunning:     isRunning,
	})
}

func (r *Router) RoomReset(roomID int) {
	r.io.BroadcastToNamespace("/", "room-reset", roomID)
}

func (r *Router) HintSent(roomID int, hintID, hint, language string, penaltyApplied bool) {
	r.io.BroadcastToRoom("/", roomKey(roomID), "hint-broadcast", hintPayload{
		RoomID:             roomID,
		HintID:             hintID,
		Hint:               hint,
		Language:           language,
		TimePenaltyApplied: penaltyApplied,
	})
}

func (r *Router) MessageSent(roomID int, message, language string) {
	r.io.BroadcastToRoom("/", roomKey(roomID), "message-broadcast", messagePayload{
		RoomID:   roomID,
		Message:  message,
		Language: language,
	})
}

func (r *Router) CastStatusChanged(roomID int, connected bool, at time.Time) {
	r.io.BroadcastToRoom("/", roomKey(roomID), "chromecast-status-change", castStatusPayload{
		RoomID:    roomID,
		Connected: connected,
		Timestamp: at,
	})
}
