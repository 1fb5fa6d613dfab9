package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ovoronin/talkline-server/internal/store"
)

// Schema is applied on startup. CREATE IF NOT EXISTS keeps it idempotent
// across restarts; real migrations are overkill for two tables.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_online     BOOLEAN NOT NULL DEFAULT 0,
	last_seen     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id             TEXT PRIMARY KEY,
	sender_id      TEXT NOT NULL,
	receiver_id    TEXT NOT NULL,
	body           TEXT NOT NULL,
	media_url      TEXT,
	media_kind     TEXT,
	media_filename TEXT,
	media_size     INTEGER,
	status         TEXT NOT NULL DEFAULT 'sent',
	status_rank    INTEGER NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (sender_id) REFERENCES users(id),
	FOREIGN KEY (receiver_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_receiver_status ON messages(receiver_id, status);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO users (id, username, password_hash)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_online, last_seen, created_at
		FROM users
		WHERE ` + where
	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// SetUserOnline flips the user's online flag and stamps last_seen.
func (s *SQLiteStore) SetUserOnline(ctx context.Context, id string, online bool) error {
	query := `
		UPDATE users
		SET is_online = ?, last_seen = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, online, id)
	if err != nil {
		return fmt.Errorf("update online flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateUsername renames the user; uniqueness is enforced by the schema.
func (s *SQLiteStore) UpdateUsername(ctx context.Context, id, username string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET username = ? WHERE id = ?`, username, id)
	if err != nil {
		return fmt.Errorf("update username: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListUsers lists all users except the given one, for the contact list.
func (s *SQLiteStore) ListUsers(ctx context.Context, excludeID string) ([]*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_online, last_seen, created_at
		FROM users
		WHERE id != ?
		ORDER BY username
	`
	return s.queryUsers(ctx, query, excludeID)
}

// SearchUsers searches for users by username substring.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	stmt := `
		SELECT id, username, password_hash, is_online, last_seen, created_at
		FROM users
		WHERE username LIKE ?
		ORDER BY username
	`
	return s.queryUsers(ctx, stmt, "%"+query+"%")
}

func (s *SQLiteStore) queryUsers(ctx context.Context, query string, args ...any) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var user store.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.IsOnline,
			&user.LastSeen,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// ==== MessageStore implementation ====

// CreateMessage persists a new message with status sent.
func (s *SQLiteStore) CreateMessage(ctx context.Context, sender, receiver, body string, media *store.Media) (*store.Message, error) {
	id := uuid.NewString()
	var url, kind, filename sql.NullString
	var size sql.NullInt64
	if media != nil {
		url = sql.NullString{String: media.URL, Valid: true}
		kind = sql.NullString{String: media.Kind, Valid: true}
		filename = sql.NullString{String: media.Filename, Valid: true}
		size = sql.NullInt64{Int64: media.Size, Valid: true}
	}

	query := `
		INSERT INTO messages (id, sender_id, receiver_id, body, media_url, media_kind, media_filename, media_size, status, status_rank)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	status := store.StatusSent
	if _, err := s.db.ExecContext(ctx, query, id, sender, receiver, body, url, kind, filename, size, status, status.Rank()); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return s.GetMessage(ctx, id)
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := messageSelect + ` WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// UpdateMessageStatus advances the message's delivery status. A transition to
// an equal or earlier status leaves the row untouched and returns it as is.
func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, id string, status store.Status) (*store.Message, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	query := `
		UPDATE messages
		SET status = ?, status_rank = ?
		WHERE id = ? AND status_rank < ?
	`
	if _, err := s.db.ExecContext(ctx, query, status, status.Rank(), id, status.Rank()); err != nil {
		return nil, fmt.Errorf("update message status: %w", err)
	}

	// Re-read regardless of whether the guard matched; a no-op transition
	// still needs to report the current row, and a missing row needs to
	// surface as ErrNotFound.
	return s.GetMessage(ctx, id)
}

// DeleteMessage removes a message owned by requester and returns the row as
// it stood before deletion.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id, requester string) (*store.Message, error) {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requester {
		return nil, store.ErrUnauthorized
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ? AND sender_id = ?`, id, requester); err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	return msg, nil
}

// DeleteConversation removes every message between the two users.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, userA, userB string) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
	`
	result, err := s.db.ExecContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return 0, fmt.Errorf("delete conversation: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// ListConversation returns up to limit messages between the two users created
// before the given time, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB string, limit int, before time.Time) ([]*store.Message, error) {
	query := messageSelect + `
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		  AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query walks newest-first for the LIMIT; callers want oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountUnread counts messages addressed to receiver not yet read.
func (s *SQLiteStore) CountUnread(ctx context.Context, receiver string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE receiver_id = ? AND status != ?
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, receiver, store.StatusRead).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

const messageSelect = `
	SELECT id, sender_id, receiver_id, body, media_url, media_kind, media_filename, media_size, status, created_at
	FROM messages
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var url, kind, filename sql.NullString
	var size sql.NullInt64
	if err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Body,
		&url,
		&kind,
		&filename,
		&size,
		&msg.Status,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}

	if url.Valid {
		msg.Media = &store.Media{
			URL:      url.String,
			Kind:     kind.String,
			Filename: filename.String,
			Size:     size.Int64,
		}
	}
	return &msg, nil
}
