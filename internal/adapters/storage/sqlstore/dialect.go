package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between supported drivers.
type Dialect struct {
	Name   string // database/sql driver name
	schema []string
	upsert string
	// numbered placeholders ($1) instead of ?
	numbered bool
}

var (
	SQLite = Dialect{
		Name: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS conversation (
				identity   TEXT    NOT NULL PRIMARY KEY,
				turns      TEXT    NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_conversation_updated_at ON conversation(updated_at)`,
		},
		upsert: `INSERT INTO conversation (identity, turns, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(identity) DO UPDATE SET turns = excluded.turns, updated_at = excluded.updated_at`,
	}

	Postgres = Dialect{
		Name: "postgres",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS conversation (
				identity   TEXT   NOT NULL PRIMARY KEY,
				turns      TEXT   NOT NULL,
				updated_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_conversation_updated_at ON conversation(updated_at)`,
		},
		upsert: `INSERT INTO conversation (identity, turns, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (identity) DO UPDATE SET turns = EXCLUDED.turns, updated_at = EXCLUDED.updated_at`,
		numbered: true,
	}

	MySQL = Dialect{
		Name: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS conversation (
				identity   VARCHAR(255) NOT NULL PRIMARY KEY,
				turns      MEDIUMTEXT   NOT NULL,
				updated_at BIGINT       NOT NULL,
				INDEX idx_conversation_updated_at (updated_at)
			)`,
		},
		upsert: `INSERT INTO conversation (identity, turns, updated_at) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE turns = VALUES(turns), updated_at = VALUES(updated_at)`,
	}
)

// DialectFor returns the dialect registered under a backend name.
func DialectFor(backend string) (Dialect, error) {
	switch strings.ToLower(backend) {
	case "sqlite":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql backend %q", backend)
	}
}

// placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) placeholder(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
