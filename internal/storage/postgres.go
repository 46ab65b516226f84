package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/xaenox/chatlens/internal/models"
	"github.com/xaenox/chatlens/internal/transport"
)

//go:embed migrations.sql
var migrations embed.FS

const postgresPageSize = 200

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) SaveMessage(ctx context.Context, chatID string, msg models.RawMessage) error {
	query := `
		INSERT INTO chat_messages (id, chat_id, timestamp_ms, sender_id, msg_type, body, reply_to_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chat_id, id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, chatID, msg.TimestampMs, msg.SenderID, msg.Type, msg.Body, msg.ReplyToID)
	if err != nil {
		return fmt.Errorf("error saving message: %v", err)
	}

	return nil
}

func (s *PostgresStorage) SaveIdentity(ctx context.Context, identity models.Identity) error {
	query := `
		INSERT INTO identities (id, name, avatar_url, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, fetched_at = EXCLUDED.fetched_at`

	_, err := s.db.ExecContext(ctx, query,
		identity.ID, identity.Name, identity.AvatarURL, identity.FetchedAt)
	if err != nil {
		return fmt.Errorf("error saving identity: %v", err)
	}

	return nil
}

// FetchPage serves messages in timestamp order. The cursor is an offset
// into the ordered set.
func (s *PostgresStorage) FetchPage(ctx context.Context, chatID, cursor string) (transport.Page, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return transport.Page{}, fmt.Errorf("invalid cursor %q", cursor)
		}
		offset = n
	}

	query := `
		SELECT id, timestamp_ms, sender_id, msg_type, body, reply_to_id
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY timestamp_ms ASC, id ASC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, chatID, postgresPageSize+1, offset)
	if err != nil {
		return transport.Page{}, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	var records []models.RawMessage
	for rows.Next() {
		var msg models.RawMessage
		err := rows.Scan(&msg.ID, &msg.TimestampMs, &msg.SenderID, &msg.Type, &msg.Body, &msg.ReplyToID)
		if err != nil {
			return transport.Page{}, fmt.Errorf("error scanning message: %v", err)
		}
		records = append(records, msg)
	}
	if err := rows.Err(); err != nil {
		return transport.Page{}, fmt.Errorf("error reading messages: %v", err)
	}

	page := transport.Page{Records: records}
	if len(records) > postgresPageSize {
		page.Records = records[:postgresPageSize]
		page.NextCursor = strconv.Itoa(offset + postgresPageSize)
	}

	return page, nil
}

func (s *PostgresStorage) LookupOne(ctx context.Context, id string) (models.Identity, error) {
	query := `SELECT id, name, avatar_url, fetched_at FROM identities WHERE id = $1`

	var identity models.Identity
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&identity.ID, &identity.Name, &identity.AvatarURL, &identity.FetchedAt)
	if err == sql.ErrNoRows {
		return models.Identity{}, fmt.Errorf("identity not found: %s", id)
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("error querying identity: %v", err)
	}

	return identity, nil
}

func (s *PostgresStorage) LookupMany(ctx context.Context, ids []string) (map[string]models.Identity, error) {
	query := `SELECT id, name, avatar_url, fetched_at FROM identities WHERE id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error querying identities: %v", err)
	}
	defer rows.Close()

	result := make(map[string]models.Identity)
	for rows.Next() {
		var identity models.Identity
		err := rows.Scan(&identity.ID, &identity.Name, &identity.AvatarURL, &identity.FetchedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning identity: %v", err)
		}
		result[identity.ID] = identity
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading identities: %v", err)
	}

	return result, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
