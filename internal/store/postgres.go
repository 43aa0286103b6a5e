package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the durable Store implementation backed by pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		time_remaining INTEGER NOT NULL DEFAULT 3600,
		is_running BOOLEAN NOT NULL DEFAULT FALSE,
		hints_remaining INTEGER NOT NULL DEFAULT 3,
		free_hints_count INTEGER NOT NULL DEFAULT 3,
		last_message TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS hints (
		id TEXT PRIMARY KEY,
		room_id INTEGER REFERENCES rooms (id),
		category TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL DEFAULT 'system',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS hint_translations (
		hint_id TEXT NOT NULL REFERENCES hints (id) ON DELETE CASCADE,
		language_code TEXT NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (hint_id, language_code)
	)`,
	`CREATE TABLE IF NOT EXISTS hint_categories (
		id SERIAL PRIMARY KEY,
		room_id INTEGER NOT NULL REFERENCES rooms (id),
		name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		UNIQUE (room_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS room_messages (
		id SERIAL PRIMARY KEY,
		room_id INTEGER NOT NULL REFERENCES rooms (id),
		language TEXT NOT NULL,
		message TEXT NOT NULL,
		UNIQUE (room_id, language, message)
	)`,
	`CREATE TABLE IF NOT EXISTS hint_usage (
		id TEXT PRIMARY KEY,
		room_id INTEGER NOT NULL REFERENCES rooms (id),
		hint_id TEXT,
		hint_text TEXT NOT NULL,
		language TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS languages (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		flag TEXT NOT NULL DEFAULT '',
		is_default BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	p := &Postgres{pool: pool}
	for _, q := range schema {
		if _, err := pool.Exec(ctx, q); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return p, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) GetRoom(ctx context.Context, id int) (RoomRecord, error) {
	var r RoomRecord
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, time_remaining, is_running, hints_remaining, free_hints_count, last_message, updated_at
		 FROM rooms WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.TimeRemaining, &r.IsRunning, &r.HintsRemaining, &r.FreeHintsCount, &r.LastMessage, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoomRecord{}, ErrNotFound
	}
	if err != nil {
		return RoomRecord{}, fmt.Errorf("failed to get room: %w", err)
	}
	return r, nil
}

func (p *Postgres) SaveRoom(ctx context.Context, room RoomRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO rooms (id, name, time_remaining, is_running, hints_remaining, free_hints_count, last_message, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			time_remaining = EXCLUDED.time_remaining,
			is_running = EXCLUDED.is_running,
			hints_remaining = EXCLUDED.hints_remaining,
			free_hints_count = EXCLUDED.free_hints_count,
			last_message = EXCLUDED.last_message,
			updated_at = now()`,
		room.ID, room.Name, room.TimeRemaining, room.IsRunning, room.HintsRemaining, room.FreeHintsCount, room.LastMessage)
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

func (p *Postgres) ListRooms(ctx context.Context) ([]RoomRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, time_remaining, is_running, hints_remaining, free_hints_count, last_message, updated_at
		 FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()
	var out []RoomRecord
	for rows.Next() {
		var r RoomRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.TimeRemaining, &r.IsRunning, &r.HintsRemaining, &r.FreeHintsCount, &r.LastMessage, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) Seed(ctx context.Context, defaults SeedDefaults) error {
	for i := 0; i < defaults.RoomCount; i++ {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO rooms (id, name, time_remaining, hints_remaining, free_hints_count)
			 VALUES ($1, $2, $3, $4, $4) ON CONFLICT (id) DO NOTHING`,
			i, fmt.Sprintf("Sala %d", i+1), defaults.DefaultDuration, defaults.FreeHints)
		if err != nil {
			return fmt.Errorf("failed to seed room %d: %w", i, err)
		}
		for pos, name := range []string{"Pieza Uno", "Pieza Dos", "Pieza Tres", "General"} {
			_, err := p.pool.Exec(ctx,
				`INSERT INTO hint_categories (room_id, name, position) VALUES ($1, $2, $3)
				 ON CONFLICT (room_id, name) DO NOTHING`, i, name, pos)
			if err != nil {
				return fmt.Errorf("failed to seed categories: %w", err)
			}
		}
	}
	for _, lang := range []Language{
		{Code: "es", Name: "Español", Flag: "🇪🇸", IsDefault: true},
		{Code: "en", Name: "English", Flag: "🇺🇸", IsDefault: true},
	} {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO languages (code, name, flag, is_default) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (code) DO NOTHING`, lang.Code, lang.Name, lang.Flag, lang.IsDefault)
		if err != nil {
			return fmt.Errorf("failed to seed languages: %w", err)
		}
	}
	return nil
}

func (p *Postgres) AppendHintUsage(ctx context.Context, rec HintUsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	var hintID *string
	if rec.HintID != "" {
		hintID = &rec.HintID
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO hint_usage (id, room_id, hint_id, hint_text, language, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.RoomID, hintID, rec.HintText, rec.Language, rec.SentAt)
	if err != nil {
		return fmt.Errorf("failed to log hint usage: %w", err)
	}
	return nil
}

func (p *Postgres) ListHintUsage(ctx context.Context, roomID int) ([]HintUsageRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, room_id, COALESCE(hint_id, ''), hint_text, language, sent_at
		 FROM hint_usage WHERE room_id = $1 ORDER BY sent_at`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hint usage: %w", err)
	}
	defer rows.Close()
	var out []HintUsageRecord
	for rows.Next() {
		var rec HintUsageRecord
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.HintID, &rec.HintText, &rec.Language, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan hint usage: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) ClearHintUsage(ctx context.Context, roomID int) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM hint_usage WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("failed to clear hint usage: %w", err)
	}
	return nil
}

func (p *Postgres) HintUsageStats(ctx context.Context, roomID *int, days int) ([]HintUsageStat, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	query := `SELECT COALESCE(hint_id, ''), hint_text, COUNT(*), MAX(sent_at)
		 FROM hint_usage WHERE sent_at >= $1`
	args := []any{cutoff}
	if roomID != nil {
		query += ` AND room_id = $2`
		args = append(args, *roomID)
	}
	query += ` GROUP BY hint_id, hint_text ORDER BY COUNT(*) DESC`
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage stats: %w", err)
	}
	defer rows.Close()
	var out []HintUsageStat
	for rows.Next() {
		var st HintUsageStat
		if err := rows.Scan(&st.HintID, &st.HintText, &st.Count, &st.LastSent); err != nil {
			return nil, fmt.Errorf("failed to scan usage stat: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (p *Postgres) ListHints(ctx context.Context, roomID int) ([]Hint, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, room_id, category, position, created_by, created_at
		 FROM hints WHERE is_active AND (room_id = $1 OR room_id IS NULL)
		 ORDER BY position, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hints: %w", err)
	}
	defer rows.Close()
	var out []Hint
	for rows.Next() {
		var h Hint
		if err := rows.Scan(&h.ID, &h.RoomID, &h.Category, &h.Position, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hint: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		text, err := p.hintText(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Text = text
	}
	return out, nil
}

func (p *Postgres) ListAllHints(ctx context.Context) ([]Hint, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, room_id, category, position, created_by, created_at
		 FROM hints WHERE is_active ORDER BY category, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hints: %w", err)
	}
	defer rows.Close()
	var out []Hint
	for rows.Next() {
		var h Hint
		if err := rows.Scan(&h.ID, &h.RoomID, &h.Category, &h.Position, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hint: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		text, err := p.hintText(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Text = text
	}
	return out, nil
}

func (p *Postgres) ListCategoryNames(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT category FROM hints WHERE is_active ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to list category names: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (p *Postgres) hintText(ctx context.Context, hintID string) (map[string]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT language_code, text FROM hint_translations WHERE hint_id = $1`, hintID)
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	defer rows.Close()
	text := make(map[string]string)
	for rows.Next() {
		var code, t string
		if err := rows.Scan(&code, &t); err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		text[code] = t
	}
	return text, rows.Err()
}

func (p *Postgres) CreateHint(ctx context.Context, hint Hint) (Hint, error) {
	if hint.ID == "" {
		hint.ID = uuid.NewString()
	}
	hint.CreatedAt = time.Now().UTC()
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Hint{}, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	_, err = tx.Exec(ctx,
		`INSERT INTO hints (id, room_id, category, position, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		hint.ID, hint.RoomID, hint.Category, hint.Position, hint.CreatedBy, hint.CreatedAt)
	if err != nil {
		return Hint{}, fmt.Errorf("failed to insert hint: %w", err)
	}
	for code, text := range hint.Text {
		if _, err := tx.Exec(ctx,
			`INSERT INTO hint_translations (hint_id, language_code, text) VALUES ($1, $2, $3)`,
			hint.ID, code, text); err != nil {
			return Hint{}, fmt.Errorf("failed to insert translation: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Hint{}, fmt.Errorf("failed to commit hint: %w", err)
	}
	return hint, nil
}

func (p *Postgres) UpdateHint(ctx context.Context, hint Hint) (Hint, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Hint{}, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	tag, err := tx.Exec(ctx,
		`UPDATE hints SET category = $2 WHERE id = $1 AND is_active`, hint.ID, hint.Category)
	if err != nil {
		return Hint{}, fmt.Errorf("failed to update hint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Hint{}, ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM hint_translations WHERE hint_id = $1`, hint.ID); err != nil {
		return Hint{}, fmt.Errorf("failed to replace translations: %w", err)
	}
	for code, text := range hint.Text {
		if _, err := tx.Exec(ctx,
			`INSERT INTO hint_translations (hint_id, language_code, text) VALUES ($1, $2, $3)`,
			hint.ID, code, text); err != nil {
			return Hint{}, fmt.Errorf("failed to insert translation: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Hint{}, fmt.Errorf("failed to commit hint: %w", err)
	}
	return hint, nil
}

func (p *Postgres) DeleteHint(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE hints SET is_active = FALSE WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ReorderHints(ctx context.Context, roomID int, orderedIDs []string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	for pos, id := range orderedIDs {
		if _, err := tx.Exec(ctx,
			`UPDATE hints SET position = $1 WHERE id = $2 AND (room_id = $3 OR room_id IS NULL)`,
			pos, id, roomID); err != nil {
			return fmt.Errorf("failed to reorder hints: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ListCategories(ctx context.Context, roomID int) ([]Category, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, room_id, name, position FROM hint_categories WHERE room_id = $1 ORDER BY position, id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.RoomID, &c.Name, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateCategory(ctx context.Context, roomID int, name string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO hint_categories (room_id, name, position)
		 VALUES ($1, $2, (SELECT COALESCE(MAX(position), -1) + 1 FROM hint_categories WHERE room_id = $1))`,
		roomID, name)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (p *Postgres) RenameCategory(ctx context.Context, roomID int, oldName, newName string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	tag, err := tx.Exec(ctx,
		`UPDATE hint_categories SET name = $3 WHERE room_id = $1 AND name = $2`, roomID, oldName, newName)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to rename category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE hints SET category = $3 WHERE category = $2 AND (room_id = $1 OR room_id IS NULL)`,
		roomID, oldName, newName); err != nil {
		return fmt.Errorf("failed to move hints to renamed category: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) DeleteCategory(ctx context.Context, roomID int, name string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM hint_categories WHERE room_id = $1 AND name = $2`, roomID, name)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ReorderCategories(ctx context.Context, roomID int, orderedIDs []int) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	for pos, id := range orderedIDs {
		if _, err := tx.Exec(ctx,
			`UPDATE hint_categories SET position = $1 WHERE id = $2 AND room_id = $3`,
			pos, id, roomID); err != nil {
			return fmt.Errorf("failed to reorder categories: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ListMessages(ctx context.Context, roomID int) ([]RoomMessage, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, room_id, language, message FROM room_messages WHERE room_id = $1 ORDER BY id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()
	var out []RoomMessage
	for rows.Next() {
		var msg RoomMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Language, &msg.Message); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateMessage(ctx context.Context, roomID int, language, message string) (RoomMessage, error) {
	msg := RoomMessage{RoomID: roomID, Language: language, Message: message}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO room_messages (room_id, language, message) VALUES ($1, $2, $3) RETURNING id`,
		roomID, language, message).Scan(&msg.ID)
	if isUniqueViolation(err) {
		return RoomMessage{}, ErrDuplicate
	}
	if err != nil {
		return RoomMessage{}, fmt.Errorf("failed to create message: %w", err)
	}
	return msg, nil
}

func (p *Postgres) DeleteMessage(ctx context.Context, roomID, messageID int) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM room_messages WHERE id = $1 AND room_id = $2`, messageID, roomID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListLanguages(ctx context.Context) ([]Language, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT code, name, flag, is_default FROM languages ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	defer rows.Close()
	var out []Language
	for rows.Next() {
		var l Language
		if err := rows.Scan(&l.Code, &l.Name, &l.Flag, &l.IsDefault); err != nil {
			return nil, fmt.Errorf("failed to scan language: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateLanguage(ctx context.Context, lang Language) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO languages (code, name, flag, is_default) VALUES ($1, $2, $3, $4)`,
		lang.Code, lang.Name, lang.Flag, lang.IsDefault)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create language: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateLanguage(ctx context.Context, code, name, flag string) (Language, error) {
	var l Language
	err := p.pool.QueryRow(ctx,
		`UPDATE languages SET name = $2, flag = $3 WHERE code = $1 RETURNING code, name, flag, is_default`,
		code, name, flag).Scan(&l.Code, &l.Name, &l.Flag, &l.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return Language{}, ErrNotFound
	}
	if err != nil {
		return Language{}, fmt.Errorf("failed to update language: %w", err)
	}
	return l, nil
}

func (p *Postgres) DeleteLanguage(ctx context.Context, code string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM languages WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete language: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
