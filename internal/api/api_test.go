package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/NoobAuthor/gamemaster/internal/config"
	"github.com/NoobAuthor/gamemaster/internal/presence"
	"github.com/NoobAuthor/gamemaster/internal/session"
	"github.com/NoobAuthor/gamemaster/internal/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		RoomCount:           3,
		DefaultDuration:     3600,
		DefaultFreeHints:    3,
		HintPenaltySeconds:  120,
		ObligatoryLanguages: []string{"es", "en"},
	}
	st := store.NewMemory()
	coord := session.NewCoordinator(st, session.Defaults{
		Duration:       cfg.DefaultDuration,
		FreeHints:      cfg.DefaultFreeHints,
		PenaltySeconds: cfg.HintPenaltySeconds,
	})
	if err := coord.Load(context.Background(), cfg.RoomCount); err != nil {
		t.Fatalf("should be able to load rooms: %v", err)
	}

	r := gin.New()
	New(cfg, st, coord, presence.NewTracker()).Register(r)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetConfig(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		ObligatoryLanguages []string `json:"obligatoryLanguages"`
		HintPenaltySeconds  int      `json:"hintPenaltySeconds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.ObligatoryLanguages) != 2 || resp.HintPenaltySeconds != 120 {
		t.Fatalf("unexpected config payload: %+v", resp)
	}
}

func TestListAndGetRooms(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/rooms", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rooms []session.RoomSession
	if err := json.Unmarshal(w.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(rooms) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(rooms))
	}

	if w := do(t, r, http.MethodGet, "/api/rooms/99", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown room, got %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/rooms/abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}
}

func TestRenameRoom(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPut, "/api/rooms/0/name", `{"name":"Control"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var room session.RoomSession
	json.Unmarshal(w.Body.Bytes(), &room)
	if room.Name != "Control" {
		t.Fatalf("expected renamed room, got %q", room.Name)
	}

	if w := do(t, r, http.MethodPut, "/api/rooms/0/name", `{"name":"   "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", w.Code)
	}
}

func TestHintCRUDOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/rooms/0/hints", `{"text":"mira la caja","category":"General"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID   string            `json:"id"`
		Text map[string]string `json:"text"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == "" {
		t.Fatal("created hint should carry an id")
	}
	// a bare string fills the obligatory languages, marking the second as pending
	if created.Text["es"] != "mira la caja" || created.Text["en"] != "[en] mira la caja" {
		t.Fatalf("unexpected text expansion: %+v", created.Text)
	}

	if w := do(t, r, http.MethodPost, "/api/rooms/0/hints", `{"text":"","category":"General"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", w.Code)
	}

	w = do(t, r, http.MethodPut, "/api/hints/"+created.ID, `{"text":{"es":"otra","en":"another"},"category":"Pieza Uno"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodDelete, "/api/hints/"+created.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := do(t, r, http.MethodDelete, "/api/hints/"+created.ID, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", w.Code)
	}
}

func TestLegacyCrossRoomHintReads(t *testing.T) {
	r := newTestRouter(t)

	do(t, r, http.MethodPost, "/api/rooms/0/hints", `{"text":"una","category":"General"}`)
	do(t, r, http.MethodPost, "/api/rooms/1/hints", `{"text":"dos","category":"Pieza Uno"}`)

	w := do(t, r, http.MethodGet, "/api/hints", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var hints []struct {
		ID       string `json:"id"`
		RoomID   *int   `json:"roomId"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hints); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(hints) != 2 {
		t.Fatalf("expected hints from every room, got %d", len(hints))
	}

	w = do(t, r, http.MethodGet, "/api/hints/categories", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var names []string
	if err := json.Unmarshal(w.Body.Bytes(), &names); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(names) != 2 || names[0] != "General" || names[1] != "Pieza Uno" {
		t.Fatalf("expected distinct sorted category names, got %v", names)
	}
}

func TestCategoryDuplicateConflicts(t *testing.T) {
	r := newTestRouter(t)

	if w := do(t, r, http.MethodPost, "/api/rooms/0/categories", `{"name":"Bonus"}`); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/rooms/0/categories", `{"name":"Bonus"}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate category, got %d", w.Code)
	}
}

func TestMessagesGroupedByLanguage(t *testing.T) {
	r := newTestRouter(t)

	do(t, r, http.MethodPost, "/api/rooms/0/messages", `{"language":"es","message":"Vamos!"}`)
	do(t, r, http.MethodPost, "/api/rooms/0/messages", `{"language":"en","message":"Hurry!"}`)

	w := do(t, r, http.MethodGet, "/api/rooms/0/messages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var grouped map[string][]struct {
		ID      int    `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &grouped); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(grouped["es"]) != 1 || len(grouped["en"]) != 1 {
		t.Fatalf("messages not grouped by language: %+v", grouped)
	}
}

func TestMessagesFilteredByLanguage(t *testing.T) {
	r := newTestRouter(t)

	do(t, r, http.MethodPost, "/api/rooms/0/messages", `{"language":"es","message":"Vamos!"}`)
	do(t, r, http.MethodPost, "/api/rooms/0/messages", `{"language":"en","message":"Hurry!"}`)

	w := do(t, r, http.MethodGet, "/api/rooms/0/messages/es", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var msgs []struct {
		Language string `json:"language"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Language != "es" || msgs[0].Message != "Vamos!" {
		t.Fatalf("expected only the spanish message, got %+v", msgs)
	}

	// unknown language yields an empty list, not an error
	if w := do(t, r, http.MethodGet, "/api/rooms/0/messages/fr", ""); w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Fatalf("expected empty list, got %d %s", w.Code, w.Body.String())
	}
}

func TestObligatoryLanguageCannotBeDeleted(t *testing.T) {
	r := newTestRouter(t)

	if w := do(t, r, http.MethodDelete, "/api/languages/es", ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for obligatory language, got %d", w.Code)
	}

	do(t, r, http.MethodPost, "/api/languages", `{"code":"fr","name":"Français"}`)
	if w := do(t, r, http.MethodDelete, "/api/languages/fr", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting optional language, got %d", w.Code)
	}
}

func TestChromecastStatusDefaultsToDisconnected(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/chromecast-status/0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Connected      bool `json:"connected"`
		CastingClients int  `json:"castingClients"`
		DisplayWindows int  `json:"displayWindows"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Connected || resp.CastingClients != 0 || resp.DisplayWindows != 0 {
		t.Fatalf("expected an idle status, got %+v", resp)
	}
}
