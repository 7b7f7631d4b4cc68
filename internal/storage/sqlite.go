package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"iresolve/internal/index"
)

// SQLiteStore keeps the index as rows of (symbol, module) with explicit
// positions so that both orders survive a round trip. A symbol with no
// modules is stored as a single row with a NULL module.
type SQLiteStore struct {
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a SQLite store at path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path, logger: slog.New(slog.DiscardHandler)}
}

// Location implements Store.
func (s *SQLiteStore) Location() string {
	return s.path
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) (*index.Index, error) {
	if !Exists(s.path) {
		return nil, notFound(s.path)
	}

	db, err := openDB(s.path, s.logger)
	if err != nil {
		return nil, corrupt(s.path, err)
	}
	defer db.Close()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT symbol, module FROM symbol_modules ORDER BY symbol_pos, module_pos`)
	if err != nil {
		return nil, corrupt(s.path, err)
	}
	defer rows.Close()

	idx := index.New()
	for rows.Next() {
		var symbol string
		var module sql.NullString
		if err := rows.Scan(&symbol, &module); err != nil {
			return nil, corrupt(s.path, err)
		}
		if module.Valid {
			idx.Add(symbol, module.String)
		} else {
			idx.AddAll(symbol, nil)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, corrupt(s.path, err)
	}

	s.logger.Debug("index loaded", "path", s.path, "symbols", idx.Len())
	return idx, nil
}

// Save implements Store. All rows are replaced in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, idx *index.Index) error {
	if idx == nil {
		idx = index.New()
	}

	lock, err := index.AcquireLock(s.path)
	if err != nil {
		return err
	}
	defer lock.Release()

	db, err := openDB(s.path, s.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_modules`); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO symbol_modules (symbol, symbol_pos, module_pos, module) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		symbolPos := 0
		var insertErr error
		idx.Range(func(symbol string, modules []string) bool {
			if len(modules) == 0 {
				_, insertErr = stmt.ExecContext(ctx, symbol, symbolPos, 0, nil)
			}
			for i, m := range modules {
				if _, insertErr = stmt.ExecContext(ctx, symbol, symbolPos, i, m); insertErr != nil {
					break
				}
			}
			symbolPos++
			return insertErr == nil
		})
		if insertErr != nil {
			return fmt.Errorf("writing index rows: %w", insertErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("index saved", "path", s.path, "symbols", idx.Len())
	return nil
}
