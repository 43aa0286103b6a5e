package session

import (
	"errors"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrEmptyName    = errors.New("room name must not be empty")
	ErrEmptyMessage = errors.New("message must not be empty")
)

// RoomSession is the client-facing snapshot of one room. Field names match
// the real-time wire contract.
type RoomSession struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	TimeRemaining  int    `json:"timeRemaining"`
	IsRunning      bool   `json:"isRunning"`
	HintsRemaining int    `json:"hintsRemaining"`
	FreeHintsCount int    `json:"freeHintsCount"`
	LastMessage    string `json:"lastMessage"`
}

// HintOutcome reports how a hint send was accounted for.
type HintOutcome string

const (
	// OutcomeConsumedFreeHint means one free hint was spent, no time penalty.
	OutcomeConsumedFreeHint HintOutcome = "consumedFreeHint"
	// OutcomePenaltyApplied means the budget was exhausted and time was deducted.
	OutcomePenaltyApplied HintOutcome = "penaltyApplied"
	// OutcomeNoPenaltyCustomHint means an ad hoc hint was sent with the budget
	// at zero; custom hints are exempt from the penalty.
	OutcomeNoPenaltyCustomHint HintOutcome = "noPenaltyCustomHint"
)

// PenaltyApplied reports whether the outcome cost game time.
func (o HintOutcome) PenaltyApplied() bool {
	return o == OutcomePenaltyApplied
}

// Events receives coordinator state changes. The broadcast router maps each
// event to its wire topic and fan-out scope.
type Events interface {
	RoomChanged(room RoomSession)
	TimeSync(roomID, timeRemaining int, isRunning bool)
	RoomReset(roomID int)
	HintSent(roomID int, hintID, hint, language string, penaltyApplied bool)
	MessageSent(roomID int, message, language string)
}

// Defaults are the values a room is seeded with and restored to on reset.
type Defaults struct {
	Duration       int // seconds
	FreeHints      int
	PenaltySeconds int
}
