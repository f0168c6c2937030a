// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/herald/lib/codec"
	"github.com/bureau-foundation/herald/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot_entries (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

// SQLiteStore keeps one row per snapshot entry: the runtime entry
// under RuntimeKey and one row per module. Saves replace every row in
// one transaction.
type SQLiteStore struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	return &SQLiteStore{pool: pool, logger: logger}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

// Load reads every row back into a snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{}
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT name, data FROM snapshot_entries", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				name := stmt.ColumnText(0)
				data := make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, data)
				if name == RuntimeKey {
					if err := codec.Unmarshal(data, &snapshot.Runtime); err != nil {
						return fmt.Errorf("decoding runtime entry: %w", err)
					}
					return nil
				}
				var state ModuleState
				if err := codec.Unmarshal(data, &state); err != nil {
					return fmt.Errorf("decoding entry %s: %w", name, err)
				}
				if snapshot.Modules == nil {
					snapshot.Modules = make(map[string]ModuleState)
				}
				snapshot.Modules[name] = state
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return snapshot, nil
}

// Save replaces the stored snapshot.
func (s *SQLiteStore) Save(ctx context.Context, snapshot *Snapshot) error {
	entries := make(map[string][]byte, len(snapshot.Modules)+1)
	runtimeData, err := codec.Marshal(snapshot.Runtime)
	if err != nil {
		return fmt.Errorf("encoding runtime entry: %w", err)
	}
	entries[RuntimeKey] = runtimeData
	for name, state := range snapshot.Modules {
		if name == RuntimeKey {
			return fmt.Errorf("module entry uses reserved name %q", RuntimeKey)
		}
		data, err := codec.Marshal(state)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", name, err)
		}
		entries[name] = data
	}

	err = s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM snapshot_entries", nil); err != nil {
			return err
		}
		for name, data := range entries {
			err := sqlitex.Execute(conn,
				"INSERT INTO snapshot_entries (name, data) VALUES (?, ?)",
				&sqlitex.ExecOptions{Args: []any{name, data}})
			if err != nil {
				return fmt.Errorf("writing entry %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	s.logger.Debug("snapshot written", "entries", len(entries))
	return nil
}
