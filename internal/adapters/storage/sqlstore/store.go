package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

const envelopeVersion = 1

// envelope is the serialized form of a conversation in the turns column.
type envelope struct {
	Version int           `json:"version"`
	Turns   []domain.Turn `json:"turns"`
}

// Store is a domain.SessionStore on top of database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects with the dialect's driver and ensures the schema exists.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		// single writer; avoids SQLITE_BUSY under concurrent saves
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", dialect.Name, err)
	}

	s := New(db, dialect)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool. The schema is not touched.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// EnsureSchema creates the conversation table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %w", domain.ErrStorage, err)
		}
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id domain.Identity) (domain.Conversation, error) {
	query := "SELECT turns FROM conversation WHERE identity = " + s.dialect.placeholder(1)

	var raw string
	err := s.db.QueryRowContext(ctx, query, string(id)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", domain.ErrStorage, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: decode turns: %v", domain.ErrSessionCorrupted, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", domain.ErrSessionCorrupted, env.Version)
	}
	if env.Turns == nil {
		return domain.Conversation{}, nil
	}
	return domain.Conversation(env.Turns), nil
}

func (s *Store) Save(ctx context.Context, id domain.Identity, conv domain.Conversation) error {
	turns := []domain.Turn(conv)
	if turns == nil {
		turns = []domain.Turn{}
	}
	data, err := json.Marshal(envelope{Version: envelopeVersion, Turns: turns})
	if err != nil {
		return fmt.Errorf("%w: encode turns: %w", domain.ErrStorage, err)
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, string(id), string(data), s.now().UnixNano()); err != nil {
		return fmt.Errorf("%w: save: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) Expire(ctx context.Context, id domain.Identity) error {
	stmt := "DELETE FROM conversation WHERE identity = " + s.dialect.placeholder(1)
	if _, err := s.db.ExecContext(ctx, stmt, string(id)); err != nil {
		return fmt.Errorf("%w: expire: %w", domain.ErrStorage, err)
	}
	return nil
}

func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	stmt := "DELETE FROM conversation WHERE updated_at < " + s.dialect.placeholder(1)
	res, err := s.db.ExecContext(ctx, stmt, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %w", domain.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: sweep rows affected: %w", domain.ErrStorage, err)
	}
	return int(n), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
