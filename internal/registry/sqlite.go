package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/database"
	"github.com/nerrad567/robotlan-core/internal/robot"
	"github.com/nerrad567/robotlan-core/migrations"
)

// SQLiteStore implements Store on the robotlan database.
type SQLiteStore struct {
	db    *database.DB
	owned bool
}

// NewSQLiteStore uses an open, migrated database. Close leaves it open.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLiteStore opens and migrates the database described by cfg.
func OpenSQLiteStore(ctx context.Context, cfg config.DatabaseConfig) (*SQLiteStore, error) {
	db, err := database.Open(database.FromConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteStore{db: db, owned: true}, nil
}

// LastAddress returns "" for a robot never connected.
func (s *SQLiteStore) LastAddress(ctx context.Context, robotID string) (string, error) {
	var addr string
	err := s.db.QueryRowContext(ctx, "SELECT last_address FROM robots WHERE id = ?", robotID).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying last address: %w", err)
	}
	return addr, nil
}

func (s *SQLiteStore) SetLastAddress(ctx context.Context, robotID, address string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO robots (id, last_address, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_address = excluded.last_address,
			updated_at = excluded.updated_at`,
		robotID, address, now(),
	)
	if err != nil {
		return fmt.Errorf("saving last address: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Favorites(ctx context.Context, robotID string) ([]robot.Favorite, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, params FROM favorites WHERE robot_id = ? ORDER BY position", robotID)
	if err != nil {
		return nil, fmt.Errorf("querying favorites: %w", err)
	}
	defer rows.Close()

	var favorites []robot.Favorite
	for rows.Next() {
		var f robot.Favorite
		var params string
		if err := rows.Scan(&f.Name, &params); err != nil {
			return nil, fmt.Errorf("scanning favorite: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &f.Params); err != nil {
			return nil, fmt.Errorf("decoding favorite %q: %w", f.Name, err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating favorites: %w", err)
	}
	return favorites, nil
}

func (s *SQLiteStore) SaveFavorites(ctx context.Context, robotID string, favorites []robot.Favorite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM favorites WHERE robot_id = ?", robotID); err != nil {
		return fmt.Errorf("clearing favorites: %w", err)
	}
	for i, f := range favorites {
		params, err := json.Marshal(f.Params)
		if err != nil {
			return fmt.Errorf("encoding favorite %q: %w", f.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO favorites (robot_id, position, name, params) VALUES (?, ?, ?, ?)",
			robotID, i, f.Name, string(params),
		); err != nil {
			return fmt.Errorf("inserting favorite %q: %w", f.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing favorites: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveStatus(ctx context.Context, snap StatusSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO robots (id, updated_at, last_status) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_status = excluded.last_status,
			updated_at = excluded.updated_at`,
		snap.RobotID, now(), string(data),
	)
	if err != nil {
		return fmt.Errorf("saving status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadStatus(ctx context.Context, robotID string) (StatusSnapshot, bool, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT last_status FROM robots WHERE id = ?", robotID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !data.Valid) {
		return StatusSnapshot{}, false, nil
	}
	if err != nil {
		return StatusSnapshot{}, false, fmt.Errorf("querying status: %w", err)
	}

	var snap StatusSnapshot
	if err := json.Unmarshal([]byte(data.String), &snap); err != nil {
		return StatusSnapshot{}, false, fmt.Errorf("decoding status: %w", err)
	}
	return snap, true, nil
}

// DB returns the underlying database for tables the store does not own.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db.DB
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Close closes the database if the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
