package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"habitat/internal/log"
	"habitat/internal/model"
)

// SnapshotStore saves and restores whole trees by key.
type SnapshotStore interface {
	Save(ctx context.Context, key string, nodes []model.Node) error
	// Load returns false when the key is unknown or its snapshot is corrupt.
	Load(ctx context.Context, key string) ([]model.Node, bool, error)
	List(ctx context.Context) ([]model.HoleInfo, error)
	Delete(ctx context.Context, key string) error
}

var ErrEmptyKey = errors.New("snapshot key is empty")

// SQLiteSnapshotStore keeps snapshots in a holes table. Every payload is
// stored with its BLAKE2b-256 checksum.
type SQLiteSnapshotStore struct {
	db     Database
	logger *log.Logger
	now    func() time.Time
}

// NewSnapshotStore opens the database described by cfg and prepares its schema.
func NewSnapshotStore(ctx context.Context, cfg model.DatabaseConfig, logger *log.Logger) (*SQLiteSnapshotStore, error) {
	driver := DBDriver(cfg.Type)
	if driver == "" {
		driver = SQLite
	}
	db, err := NewDatabase(driver, logger)
	if err != nil {
		return nil, err
	}
	source := cfg.File
	if source != ":memory:" {
		source = filepath.Join(cfg.Dir, cfg.File)
	}
	if err := db.Open(source); err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info(ctx, "Snapshot store opened", log.Fields{"source": source})
	return &SQLiteSnapshotStore{db: db, logger: logger, now: time.Now}, nil
}

func checksum(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Save stores nodes under key, replacing any earlier snapshot.
func (s *SQLiteSnapshotStore) Save(ctx context.Context, key string, nodes []model.Node) error {
	if key == "" {
		return ErrEmptyKey
	}
	payload, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	now := s.now().UnixNano()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO holes (key, payload, checksum, node_count, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			checksum = excluded.checksum,
			node_count = excluded.node_count,
			updated = excluded.updated`,
		key, payload, checksum(payload), len(nodes), now, now)
	if err != nil {
		return fmt.Errorf("failed to save snapshot '%s': %w", key, err)
	}
	s.logger.Info(ctx, "Snapshot saved", log.Fields{"key": key, "nodes": len(nodes)})
	return nil
}

func (s *SQLiteSnapshotStore) Load(ctx context.Context, key string) ([]model.Node, bool, error) {
	var payload []byte
	var sum string
	err := s.db.QueryRowContext(ctx, `SELECT payload, checksum FROM holes WHERE key = ?`, key).Scan(&payload, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load snapshot '%s': %w", key, err)
	}

	if checksum(payload) != sum {
		s.logger.Warn(ctx, "Snapshot checksum mismatch", log.Fields{"key": key})
		return nil, false, nil
	}
	var nodes []model.Node
	if err := json.Unmarshal(payload, &nodes); err != nil || len(nodes) == 0 {
		s.logger.Warn(ctx, "Snapshot payload unreadable", log.Fields{"key": key, "error": err})
		return nil, false, nil
	}
	return nodes, true, nil
}

// List returns saved holes, most recently updated first.
func (s *SQLiteSnapshotStore) List(ctx context.Context) ([]model.HoleInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, node_count, checksum, updated FROM holes ORDER BY updated DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.HoleInfo
	for rows.Next() {
		var info model.HoleInfo
		var updated int64
		if err := rows.Scan(&info.Key, &info.NodeCount, &info.Checksum, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		info.Updated = time.Unix(0, updated)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return out, nil
}

func (s *SQLiteSnapshotStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM holes WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete snapshot '%s': %w", key, err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}
