package chat

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteMessageStore archives messages in a SQLite database file.
type SQLiteMessageStore struct {
	db *sql.DB
}

func NewSQLiteMessageStore(dataSourceName string) (*SQLiteMessageStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Handlers append concurrently; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return &SQLiteMessageStore{db: db}, nil
}

// Init creates the messages table.
func (s *SQLiteMessageStore) Init() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		nick TEXT NOT NULL,
		text TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS messages_channel_id ON messages(channel, id);`
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}
	log.Println("sqlite message archive ready")
	return nil
}

func (s *SQLiteMessageStore) AppendMessage(channel string, msg Message) error {
	insertSQL := `INSERT INTO messages(channel, timestamp, nick, text) VALUES(?, ?, ?, ?)`
	if _, err := s.db.Exec(insertSQL, channel, msg.Time.UTC(), msg.Nick, msg.Text); err != nil {
		return fmt.Errorf("archive message: %w", err)
	}
	return nil
}

func (s *SQLiteMessageStore) GetMessages(channel string, offset, limit int) ([]Message, error) {
	query := `SELECT timestamp, nick, text FROM messages WHERE channel = ? ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.Query(query, channel, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var ts time.Time
		if err := rows.Scan(&ts, &msg.Nick, &msg.Text); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Time = ts
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Rows come newest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *SQLiteMessageStore) Close() error {
	return s.db.Close()
}
