package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// RoomRecord is the durable shape of a room session.
type RoomRecord struct {
	ID             int
	Name           string
	TimeRemaining  int
	IsRunning      bool
	HintsRemaining int
	FreeHintsCount int
	LastMessage    string
	UpdatedAt      time.Time
}

// HintUsageRecord is one append-only log entry for a sent hint.
// HintID is empty for ad hoc hints.
type HintUsageRecord struct {
	ID       string
	RoomID   int
	HintID   string
	HintText string
	Language string
	SentAt   time.Time
}

// Hint is a catalogued hint with per-language translations.
// RoomID nil means the hint is shared across rooms.
type Hint struct {
	ID        string
	RoomID    *int
	Text      map[string]string
	Category  string
	Position  int
	CreatedBy string
	CreatedAt time.Time
}

type Category struct {
	ID       int
	RoomID   int
	Name     string
	Position int
}

// RoomMessage is a quick-message preset for a room and language.
type RoomMessage struct {
	ID       int
	RoomID   int
	Language string
	Message  string
}

type Language struct {
	Code      string
	Name      string
	Flag      string
	IsDefault bool
}

// HintUsageStat aggregates how often a hint was sent recently.
type HintUsageStat struct {
	HintID   string
	HintText string
	Count    int
	LastSent time.Time
}

// SeedDefaults describes the initial state for rooms created at first boot.
type SeedDefaults struct {
	RoomCount       int
	DefaultDuration int
	FreeHints       int
}

// Store is the durable backing for rooms, the hint catalog and usage history.
type Store interface {
	// Rooms
	GetRoom(ctx context.Context, id int) (RoomRecord, error)
	SaveRoom(ctx context.Context, room RoomRecord) error
	ListRooms(ctx context.Context) ([]RoomRecord, error)
	// Seed creates missing default rooms, categories and languages. Idempotent.
	Seed(ctx context.Context, defaults SeedDefaults) error

	// Hint usage history
	AppendHintUsage(ctx context.Context, rec HintUsageRecord) error
	ListHintUsage(ctx context.Context, roomID int) ([]HintUsageRecord, error)
	ClearHintUsage(ctx context.Context, roomID int) error
	HintUsageStats(ctx context.Context, roomID *int, days int) ([]HintUsageStat, error)

	// Hint catalog
	ListHints(ctx context.Context, roomID int) ([]Hint, error)
	ListAllHints(ctx context.Context) ([]Hint, error)
	// ListCategoryNames returns the distinct category names in use across
	// the whole hint catalog.
	ListCategoryNames(ctx context.Context) ([]string, error)
	CreateHint(ctx context.Context, hint Hint) (Hint, error)
	UpdateHint(ctx context.Context, hint Hint) (Hint, error)
	DeleteHint(ctx context.Context, id string) error
	ReorderHints(ctx context.Context, roomID int, orderedIDs []string) error

	// Categories
	ListCategories(ctx context.Context, roomID int) ([]Category, error)
	CreateCategory(ctx context.Context, roomID int, name string) error
	RenameCategory(ctx context.Context, roomID int, oldName, newName string) error
	DeleteCategory(ctx context.Context, roomID int, name string) error
	ReorderCategories(ctx context.Context, roomID int, orderedIDs []int) error

	// Quick messages
	ListMessages(ctx context.Context, roomID int) ([]RoomMessage, error)
	CreateMessage(ctx context.Context, roomID int, language, message string) (RoomMessage, error)
	DeleteMessage(ctx context.Context, roomID, messageID int) error

	// Languages
	ListLanguages(ctx context.Context) ([]Language, error)
	CreateLanguage(ctx context.Context, lang Language) error
	UpdateLanguage(ctx context.Context, code, name, flag string) (Language, error)
	DeleteLanguage(ctx context.Context, code string) error
}
