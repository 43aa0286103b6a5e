package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/NoobAuthor/gamemaster/internal/presence"
	"github.com/NoobAuthor/gamemaster/internal/session"
)

type Server struct {
	coord   *session.Coordinator
	tracker *presence.Tracker
}

func New(coord *session.Coordinator, tracker *presence.Tracker) *Server {
	return &Server{coord: coord, tracker: tracker}
}

type hintAck struct {
	RoomID    int       `json:"roomId"`
	HintID    string    `json:"hintId"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine
// and wires the broadcast router into the coordinator and presence tracker.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	router := NewRouter(io)
	srv.coord.SetEvents(router)
	srv.tracker.SetEvents(router)

	io.OnConnect("/", func(s socketio.Conn) error {
		srv.tracker.Connect(s.ID())
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		s.Emit("initial-state", map[string]any{"rooms": srv.coord.Rooms()})
		return nil
	})

	io.OnEvent("/", "join-as-console", func(s socketio.Conn, roomID int) {
		prev, hadPrev := srv.tracker.JoinConsole(s.ID(), roomID)
		if hadPrev {
			s.Leave(roomKey(prev))
		}
		s.Join(roomKey(roomID))
		log.Info().Str("sid", s.ID()).Int("room", roomID).Msg("join-as-console")
	})

	io.OnEvent("/", "join-as-display", func(s socketio.Conn, roomID int) {
		prev, hadPrev := srv.tracker.JoinDisplay(s.ID(), roomID)
		if hadPrev {
			s.Leave(roomKey(prev))
		}
		s.Join(roomKey(roomID))
		// window open, not yet casting; wait for cast-status-update
		log.Info().Str("sid", s.ID()).Int("room", roomID).Msg("join-as-display")
	})

	io.OnEvent("/", "cast-status-update", func(s socketio.Conn, payload struct {
		RoomID          int    `json:"roomId"`
		IsCasting       bool   `json:"isCasting"`
		DetectionMethod string `json:"detectionMethod"`
		Timestamp       string `json:"timestamp"`
	}) {
		at, _ := time.Parse(time.RFC3339, payload.Timestamp)
		err := srv.tracker.SetCastStatus(s.ID(), payload.IsCasting, payload.DetectionMethod, at)
		if errors.Is(err, presence.ErrNotDisplay) {
			log.Warn().Str("sid", s.ID()).Int("room", payload.RoomID).Msg("cast-status-update from non-display connection")
			return
		}
		log.Info().Int("room", payload.RoomID).Bool("casting", payload.IsCasting).Msg("cast-status-update")
	})

	io.OnEvent("/", "update-room", func(s socketio.Conn, updated session.RoomSession) map[string]any {
		room, err := srv.coord.UpdateRoom(context.Background(), updated)
		if err != nil {
			return srv.err(s, "update_failed", err)
		}
		log.Info().Int("room", room.ID).Msg("update-room")
		return map[string]any{"room": room}
	})

	io.OnEvent("/", "send-hint", func(s socketio.Conn, payload struct {
		RoomID   int    `json:"roomId"`
		HintID   string `json:"hintId"`
		Hint     string `json:"hint"`
		Language string `json:"language"`
	}) map[string]any {
		room, outcome, err := srv.coord.SendHint(context.Background(), payload.RoomID, payload.HintID, payload.Hint, payload.Language)
		if err != nil {
			s.Emit("hint-error", map[string]any{"roomId": payload.RoomID, "message": err.Error()})
			return map[string]any{"error": err.Error()}
		}
		log.Info().Int("room", payload.RoomID).Str("outcome", string(outcome)).Msg("send-hint")
		s.Emit("hint-ack", hintAck{
			RoomID:    payload.RoomID,
			HintID:    payload.HintID,
			Success:   true,
			Timestamp: time.Now().UTC(),
		})
		return map[string]any{"room": room, "outcome": string(outcome)}
	})

	io.OnEvent("/", "send-message", func(s socketio.Conn, payload struct {
		RoomID   int    `json:"roomId"`
		Message  string `json:"message"`
		Language string `json:"language"`
	}) map[string]any {
		room, err := srv.coord.SendMessage(context.Background(), payload.RoomID, payload.Message, payload.Language)
		if err != nil {
			return srv.err(s, "message_failed", err)
		}
		log.Info().Int("room", payload.RoomID).Msg("send-message")
		return map[string]any{"room": room}
	})

	io.OnEvent("/", "reset-room", func(s socketio.Conn, roomID int) map[string]any {
		room, err := srv.coord.Reset(context.Background(), roomID)
		if err != nil {
			return srv.err(s, "reset_failed", err)
		}
		log.Info().Int("room", roomID).Msg("reset-room")
		return map[string]any{"room": room}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})

	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		srv.tracker.Disconnect(s.ID())
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) err(s socketio.Conn, code string, err error) map[string]any {
	s.Emit("error", map[string]any{"code": code, "message": err.Error()})
	return map[string]any{"error": err.Error()}
}
