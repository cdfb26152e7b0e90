package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
	"github.com/zhouzirui/eddez/backend/internal/model/user"
)

//go:embed migrations.sql
var migrations embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLStore implements Store on database/sql for Postgres and SQLite.
// Queries are written with ? placeholders and rebound per driver.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL connects, applies the schema and seeds an empty knowledge base.
func OpenSQL(ctx context.Context, driver, dsn string, seed []knowledge.Item) (*SQLStore, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	store := &SQLStore{db: db, driver: driver}
	if err := store.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := store.seedKnowledge(ctx, seed); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) seedKnowledge(ctx context.Context, seed []knowledge.Item) error {
	if len(seed) == 0 {
		return nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_items").Scan(&count); err != nil {
		return fmt.Errorf("count knowledge: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.ReplaceKnowledge(ctx, seed)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) ListSessions(ctx context.Context, userID string) ([]chat.Session, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT id, title, messages, created_at FROM chat_sessions WHERE user_id = ? ORDER BY created_at DESC, id"), userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]chat.Session, 0)
	for rows.Next() {
		var (
			session   chat.Session
			raw       string
			createdAt int64
		)
		if err := rows.Scan(&session.ID, &session.Title, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &session.Messages); err != nil {
			return nil, fmt.Errorf("decode session %s messages: %w", session.ID, err)
		}
		session.CreatedAt = time.UnixMilli(createdAt).UTC()
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLStore) SaveSession(ctx context.Context, userID string, session chat.Session) error {
	if userID == "" {
		return ErrUserRequired
	}
	messages := session.Messages
	if messages == nil {
		messages = []chat.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode session messages: %w", err)
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO chat_sessions (user_id, id, title, messages, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, id) DO UPDATE SET title = excluded.title, messages = excluded.messages`),
		userID, session.ID, session.Title, string(raw), createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	if _, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM chat_sessions WHERE user_id = ? AND id = ?"), userID, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSettings(ctx context.Context, userID string) (settings.UserSettings, error) {
	var prefs settings.UserSettings
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT tone, language, theme FROM user_settings WHERE user_id = ?"), userID).
		Scan(&prefs.Tone, &prefs.Language, &prefs.Theme)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Default(), nil
	}
	if err != nil {
		return settings.UserSettings{}, fmt.Errorf("query settings: %w", err)
	}
	return prefs, nil
}

func (s *SQLStore) SaveSettings(ctx context.Context, userID string, prefs settings.UserSettings) error {
	if userID == "" {
		return ErrUserRequired
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO user_settings (user_id, tone, language, theme)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET tone = excluded.tone, language = excluded.language, theme = excluded.theme`),
		userID, string(prefs.Tone), string(prefs.Language), string(prefs.Theme))
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func (s *SQLStore) ListKnowledge(ctx context.Context) ([]knowledge.Item, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, topic, content, button_name, button_url FROM knowledge_items ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer rows.Close()

	items := make([]knowledge.Item, 0)
	for rows.Next() {
		var item knowledge.Item
		if err := rows.Scan(&item.ID, &item.Topic, &item.Content, &item.ButtonName, &item.ButtonURL); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLStore) ReplaceKnowledge(ctx context.Context, items []knowledge.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin knowledge tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM knowledge_items"); err != nil {
		return fmt.Errorf("clear knowledge: %w", err)
	}
	insert := s.rebind("INSERT INTO knowledge_items (position, id, topic, content, button_name, button_url) VALUES (?, ?, ?, ?, ?, ?)")
	for idx, item := range items {
		if _, err := tx.ExecContext(ctx, insert, idx, item.ID, item.Topic, item.Content, item.ButtonName, item.ButtonURL); err != nil {
			return fmt.Errorf("insert knowledge %d: %w", idx, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit knowledge: %w", err)
	}
	return nil
}

func (s *SQLStore) CreateUser(ctx context.Context, account user.Account) error {
	email := user.NormalizeEmail(account.Email)
	if email == "" {
		return ErrUserRequired
	}
	if _, err := s.FindUser(ctx, email); err == nil {
		return ErrUserExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	_, err := s.db.ExecContext(ctx, s.rebind("INSERT INTO users (email, name, role, password_hash, created_at) VALUES (?, ?, ?, ?, ?)"),
		email, account.Name, string(account.Role), account.PasswordHash, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) FindUser(ctx context.Context, email string) (user.Account, error) {
	var account user.Account
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT email, name, role, password_hash FROM users WHERE email = ?"), user.NormalizeEmail(email)).
		Scan(&account.Email, &account.Name, &account.Role, &account.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return user.Account{}, ErrNotFound
	}
	if err != nil {
		return user.Account{}, fmt.Errorf("query user: %w", err)
	}
	return account, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT email, name, role FROM users ORDER BY created_at, email")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.Email, &u.Name, &u.Role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
