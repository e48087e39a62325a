// Package store persists farmer profiles and conversation history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agribot/internal/domain"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.ProfileStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS farmers (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		phone       TEXT NOT NULL UNIQUE,
		name        TEXT,
		location    TEXT,
		crops       TEXT,
		language    TEXT DEFAULT 'en',
		active      INTEGER DEFAULT 1,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_active DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_farmers_phone ON farmers(phone);

	CREATE TABLE IF NOT EXISTS conversations (
		id           TEXT PRIMARY KEY,
		farmer_phone TEXT NOT NULL REFERENCES farmers(phone),
		kind         TEXT NOT NULL,
		user_message TEXT,
		ai_response  TEXT,
		metadata     TEXT,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_farmer ON conversations(farmer_phone, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetOrCreateFarmer returns the profile for a phone number, creating a blank
// one on first contact. last_active is bumped on every call.
func (s *SQLiteStore) GetOrCreateFarmer(ctx context.Context, phone string) (*domain.FarmerProfile, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO farmers (phone, created_at, last_active) VALUES (?, ?, ?)
		 ON CONFLICT(phone) DO UPDATE SET last_active = excluded.last_active`,
		phone, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert farmer: %w", err)
	}

	var f domain.FarmerProfile
	var name, location, crops, language sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT id, phone, name, location, crops, language, active, created_at, last_active
		 FROM farmers WHERE phone = ?`, phone,
	).Scan(&f.ID, &f.Phone, &name, &location, &crops, &language, &f.Active, &f.CreatedAt, &f.LastActive)
	if err != nil {
		return nil, fmt.Errorf("load farmer: %w", err)
	}
	f.Name = name.String
	f.Location = location.String
	f.Language = language.String
	f.Crops = splitCrops(crops.String)
	return &f, nil
}

// UpdateFarmer applies the non-nil fields of upd to the farmer's profile.
func (s *SQLiteStore) UpdateFarmer(ctx context.Context, phone string, upd domain.FarmerUpdate) error {
	var sets []string
	var args []any

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Location != nil {
		sets = append(sets, "location = ?")
		args = append(args, *upd.Location)
	}
	if upd.Language != nil {
		sets = append(sets, "language = ?")
		args = append(args, *upd.Language)
	}
	if upd.Crops != nil {
		sets = append(sets, "crops = ?")
		args = append(args, strings.Join(upd.Crops, ","))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, phone)
	res, err := s.db.ExecContext(ctx,
		`UPDATE farmers SET `+strings.Join(sets, ", ")+` WHERE phone = ?`, args...,
	)
	if err != nil {
		return fmt.Errorf("update farmer: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("farmer not found: %s", phone)
	}
	return nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.ID == "" {
		turn.ID = newTurnID()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	var metadata sql.NullString
	if turn.Metadata != nil {
		data, err := json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("marshal turn metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	// last_active is maintained by GetOrCreateFarmer alone; appending a
	// turn never touches the profile row.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, farmer_phone, kind, user_message, ai_response, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.FarmerPhone, string(turn.Kind), turn.UserMessage, turn.AIResponse, metadata, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit turns for a farmer, ordered oldest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, phone string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, farmer_phone, kind, user_message, ai_response, metadata, created_at
		 FROM conversations WHERE farmer_phone = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, phone, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to oldest-first for context assembly.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SearchTurns returns recent turns whose user message or reply contains the
// query, newest first. An empty query returns the newest turns overall.
func (s *SQLiteStore) SearchTurns(ctx context.Context, query string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if query == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, farmer_phone, kind, user_message, ai_response, metadata, created_at
			 FROM conversations ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
		)
	} else {
		pattern := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, farmer_phone, kind, user_message, ai_response, metadata, created_at
			 FROM conversations
			 WHERE user_message LIKE ? OR ai_response LIKE ?
			 ORDER BY created_at DESC, id DESC LIMIT ?`, pattern, pattern, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTurns(rows)
}

// Stats reports usage counts for the status command and web surface.
type Stats struct {
	Farmers       int `json:"farmers"`
	ActiveFarmers int `json:"active_farmers"`
	Turns         int `json:"turns"`
	TurnsLast24h  int `json:"turns_last_24h"`
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM farmers`).Scan(&st.Farmers); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM farmers WHERE active = 1`).Scan(&st.ActiveFarmers); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&st.Turns); err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE created_at >= ?`, cutoff).Scan(&st.TurnsLast24h); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanTurns(rows *sql.Rows) ([]domain.ConversationTurn, error) {
	var turns []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		var kind string
		var metadata sql.NullString
		if err := rows.Scan(&t.ID, &t.FarmerPhone, &kind, &t.UserMessage, &t.AIResponse, &metadata, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kind = domain.TurnKind(kind)
		if metadata.Valid && metadata.String != "" {
			var m domain.TurnMetadata
			if err := json.Unmarshal([]byte(metadata.String), &m); err == nil {
				t.Metadata = &m
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func newTurnID() string {
	return ulid.Make().String()
}

func splitCrops(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
