package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/NoobAuthor/gamemaster/internal/config"
	"github.com/NoobAuthor/gamemaster/internal/presence"
	"github.com/NoobAuthor/gamemaster/internal/session"
	"github.com/NoobAuthor/gamemaster/internal/store"
)

// Handler exposes the HTTP surface: thin wrappers around the store for the
// hint/category/message/language catalogs, plus coordinator commands and the
// presence polling fallback.
type Handler struct {
	cfg     config.Config
	store   store.Store
	coord   *session.Coordinator
	tracker *presence.Tracker
}

func New(cfg config.Config, st store.Store, coord *session.Coordinator, tracker *presence.Tracker) *Handler {
	return &Handler{cfg: cfg, store: st, coord: coord, tracker: tracker}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/config", h.getConfig)
	api.GET("/health", h.getHealth)

	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id", h.getRoom)
	api.PUT("/rooms/:id/name", h.renameRoom)
	api.POST("/rooms/:id/reset", h.resetRoom)
	api.GET("/rooms/:id/history", h.getHintHistory)
	api.DELETE("/rooms/:id/history", h.clearHintHistory)

	// legacy cross-room reads kept for older console builds
	api.GET("/hints", h.listAllHints)
	api.GET("/hints/categories", h.listCategoryNames)

	api.GET("/rooms/:id/hints", h.listHints)
	api.POST("/rooms/:id/hints", h.createHint)
	api.PUT("/rooms/:id/hints/reorder", h.reorderHints)
	api.PUT("/hints/:id", h.updateHint)
	api.DELETE("/hints/:id", h.deleteHint)

	api.GET("/rooms/:id/categories", h.listCategories)
	api.POST("/rooms/:id/categories", h.createCategory)
	api.PUT("/rooms/:id/categories/reorder", h.reorderCategories)
	api.PUT("/rooms/:id/categories/:name", h.renameCategory)
	api.DELETE("/rooms/:id/categories/:name", h.deleteCategory)

	api.GET("/rooms/:id/messages", h.listMessages)
	api.GET("/rooms/:id/messages/:language", h.listMessagesByLanguage)
	api.POST("/rooms/:id/messages", h.createMessage)
	api.DELETE("/rooms/:id/messages/:messageId", h.deleteMessage)

	api.GET("/languages", h.listLanguages)
	api.POST("/languages", h.createLanguage)
	api.PUT("/languages/:code", h.updateLanguage)
	api.DELETE("/languages/:code", h.deleteLanguage)

	api.GET("/analytics/hints", h.hintAnalytics)
	api.GET("/chromecast-status/:id", h.chromecastStatus)
}

func (h *Handler) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"obligatoryLanguages": h.cfg.ObligatoryLanguages,
		"defaultFreeHints":    h.cfg.DefaultFreeHints,
		"hintPenaltySeconds":  h.cfg.HintPenaltySeconds,
		"defaultRoomDuration": h.cfg.DefaultDuration,
	})
}

func (h *Handler) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

func (h *Handler) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Rooms())
}

func (h *Handler) getRoom(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	room, err := h.coord.Room(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) renameRoom(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	room, err := h.coord.Rename(c.Request.Context(), id, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) resetRoom(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	room, err := h.coord.Reset(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type usageResponse struct {
	ID       string    `json:"id"`
	RoomID   int       `json:"roomId"`
	HintID   string    `json:"hintId,omitempty"`
	HintText string    `json:"hintText"`
	Language string    `json:"language"`
	SentAt   time.Time `json:"sentAt"`
}

func (h *Handler) getHintHistory(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	recs, err := h.coord.HintHistory(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]usageResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, usageResponse{
			ID: rec.ID, RoomID: rec.RoomID, HintID: rec.HintID,
			HintText: rec.HintText, Language: rec.Language, SentAt: rec.SentAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) clearHintHistory(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	if err := h.coord.ClearHintHistory(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type hintResponse struct {
	ID        string            `json:"id"`
	RoomID    *int              `json:"roomId"`
	Text      map[string]string `json:"text"`
	Category  string            `json:"category"`
	Position  int               `json:"position"`
	CreatedBy string            `json:"createdBy"`
	CreatedAt time.Time         `json:"createdAt"`
}

func hintToResponse(hint store.Hint) hintResponse {
	return hintResponse{
		ID: hint.ID, RoomID: hint.RoomID, Text: hint.Text, Category: hint.Category,
		Position: hint.Position, CreatedBy: hint.CreatedBy, CreatedAt: hint.CreatedAt,
	}
}

func (h *Handler) listAllHints(c *gin.Context) {
	hints, err := h.store.ListAllHints(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]hintResponse, 0, len(hints))
	for _, hint := range hints {
		out = append(out, hintToResponse(hint))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) listCategoryNames(c *gin.Context) {
	names, err := h.store.ListCategoryNames(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

func (h *Handler) listHints(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	hints, err := h.store.ListHints(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]hintResponse, 0, len(hints))
	for _, hint := range hints {
		out = append(out, hintToResponse(hint))
	}
	c.JSON(http.StatusOK, out)
}

type hintRequest struct {
	Text     any    `json:"text"`
	Category string `json:"category"`
}

// hintText accepts either a per-language map or a single string; a bare
// string fills the obligatory languages, marking translations as pending.
func (h *Handler) hintText(raw any) (map[string]string, bool) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil, false
		}
		text := make(map[string]string)
		for i, code := range h.cfg.ObligatoryLanguages {
			if i == 0 {
				text[code] = v
				continue
			}
			text[code] = "[" + code + "] " + v
		}
		return text, true
	case map[string]any:
		text := make(map[string]string)
		for code, t := range v {
			s, ok := t.(string)
			if !ok {
				return nil, false
			}
			text[code] = s
		}
		return text, len(text) > 0
	default:
		return nil, false
	}
}

func (h *Handler) createHint(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req hintRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	text, ok := h.hintText(req.Text)
	if !ok || req.Category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text and category are required"})
		return
	}
	hint, err := h.store.CreateHint(c.Request.Context(), store.Hint{
		RoomID:    &id,
		Text:      text,
		Category:  req.Category,
		CreatedBy: "gamemaster",
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, hintToResponse(hint))
}

func (h *Handler) updateHint(c *gin.Context) {
	var req hintRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	text, ok := h.hintText(req.Text)
	if !ok || req.Category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text and category are required"})
		return
	}
	hint, err := h.store.UpdateHint(c.Request.Context(), store.Hint{
		ID:       c.Param("id"),
		Text:     text,
		Category: req.Category,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, hintToResponse(hint))
}

func (h *Handler) deleteHint(c *gin.Context) {
	if err := h.store.DeleteHint(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) reorderHints(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req struct {
		OrderedIDs []string `json:"orderedIds"`
	}
	if err := c.BindJSON(&req); err != nil || req.OrderedIDs == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderedIds array is required"})
		return
	}
	if err := h.store.ReorderHints(c.Request.Context(), id, req.OrderedIDs); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) listCategories(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	h.respondCategories(c, http.StatusOK, id)
}

func (h *Handler) createCategory(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category name is required"})
		return
	}
	if err := h.store.CreateCategory(c.Request.Context(), id, req.Name); err != nil {
		fail(c, err)
		return
	}
	h.respondCategories(c, http.StatusCreated, id)
}

func (h *Handler) renameCategory(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req struct {
		NewName string `json:"newName"`
	}
	if err := c.BindJSON(&req); err != nil || req.NewName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new category name is required"})
		return
	}
	if err := h.store.RenameCategory(c.Request.Context(), id, c.Param("name"), req.NewName); err != nil {
		fail(c, err)
		return
	}
	h.respondCategories(c, http.StatusOK, id)
}

func (h *Handler) deleteCategory(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	if err := h.store.DeleteCategory(c.Request.Context(), id, c.Param("name")); err != nil {
		fail(c, err)
		return
	}
	h.respondCategories(c, http.StatusOK, id)
}

func (h *Handler) reorderCategories(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req struct {
		OrderedCategoryIDs []int `json:"orderedCategoryIds"`
	}
	if err := c.BindJSON(&req); err != nil || req.OrderedCategoryIDs == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderedCategoryIds array is required"})
		return
	}
	if err := h.store.ReorderCategories(c.Request.Context(), id, req.OrderedCategoryIDs); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) respondCategories(c *gin.Context, status int, roomID int) {
	categories, err := h.store.ListCategories(c.Request.Context(), roomID)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(categories))
	for _, cat := range categories {
		out = append(out, gin.H{"id": cat.ID, "name": cat.Name, "position": cat.Position})
	}
	c.JSON(status, gin.H{"success": true, "categories": out})
}

func (h *Handler) listMessages(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	messages, err := h.store.ListMessages(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	grouped := make(map[string][]gin.H)
	for _, msg := range messages {
		grouped[msg.Language] = append(grouped[msg.Language], gin.H{"id": msg.ID, "message": msg.Message})
	}
	c.JSON(http.StatusOK, grouped)
}

func (h *Handler) listMessagesByLanguage(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	language := c.Param("language")
	messages, err := h.store.ListMessages(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(messages))
	for _, msg := range messages {
		if msg.Language == language {
			out = append(out, gin.H{"id": msg.ID, "language": msg.Language, "message": msg.Message})
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createMessage(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	var req struct {
		Language string `json:"language"`
		Message  string `json:"message"`
	}
	if err := c.BindJSON(&req); err != nil || req.Language == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language and message are required"})
		return
	}
	msg, err := h.store.CreateMessage(c.Request.Context(), id, req.Language, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": msg.ID})
}

func (h *Handler) deleteMessage(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	msgID, err := strconv.Atoi(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	if err := h.store.DeleteMessage(c.Request.Context(), id, msgID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) listLanguages(c *gin.Context) {
	languages, err := h.store.ListLanguages(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(languages))
	for _, l := range languages {
		out = append(out, gin.H{"code": l.Code, "name": l.Name, "flag": l.Flag, "isDefault": l.IsDefault})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createLanguage(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
		Name string `json:"name"`
		Flag string `json:"flag"`
	}
	if err := c.BindJSON(&req); err != nil || req.Code == "" || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language code and name are required"})
		return
	}
	err := h.store.CreateLanguage(c.Request.Context(), store.Language{
		Code: req.Code, Name: req.Name, Flag: req.Flag,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": req.Code, "name": req.Name, "flag": req.Flag})
}

func (h *Handler) updateLanguage(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
		Flag string `json:"flag"`
	}
	if err := c.BindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language name is required"})
		return
	}
	lang, err := h.store.UpdateLanguage(c.Request.Context(), c.Param("code"), req.Name, req.Flag)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": lang.Code, "name": lang.Name, "flag": lang.Flag, "isDefault": lang.IsDefault})
}

func (h *Handler) deleteLanguage(c *gin.Context) {
	code := c.Param("code")
	for _, obligatory := range h.cfg.ObligatoryLanguages {
		if code == obligatory {
			c.JSON(http.StatusForbidden, gin.H{"error": "cannot delete obligatory language"})
			return
		}
	}
	if err := h.store.DeleteLanguage(c.Request.Context(), code); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) hintAnalytics(c *gin.Context) {
	var room *int
	if raw := c.Query("roomId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid roomId"})
			return
		}
		room = &id
	}
	days := 30
	if raw := c.Query("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}
	stats, err := h.store.HintUsageStats(c.Request.Context(), room, days)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(stats))
	for _, st := range stats {
		out = append(out, gin.H{"hintId": st.HintID, "hintText": st.HintText, "count": st.Count, "lastSent": st.LastSent})
	}
	c.JSON(http.StatusOK, out)
}

// chromecastStatus is the polling fallback for the push channel. Connected
// means at least one display is actively casting, not merely open.
func (h *Handler) chromecastStatus(c *gin.Context) {
	id, ok := roomID(c)
	if !ok {
		return
	}
	st := h.tracker.Status(id)
	c.JSON(http.StatusOK, gin.H{
		"roomId":         id,
		"connected":      st.Connected,
		"casting":        st.Connected,
		"castingClients": st.CastingClients,
		"displayWindows": st.DisplayWindows,
		"timestamp":      time.Now().UTC(),
	})
}

func roomID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return id, true
}

func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrRoomNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrEmptyName), errors.Is(err, session.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
