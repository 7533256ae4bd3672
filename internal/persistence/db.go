// Package persistence provides SQLite-based world state storage and compressed
// frame snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/blob-crowd/internal/agents"
	"github.com/talgya/blob-crowd/internal/engine"
	"github.com/talgya/blob-crowd/internal/geom"
)

// Meta keys.
const (
	MetaLastTick = "last_tick"
	MetaRunID    = "run_id"
	MetaSeed     = "seed"
	MetaTarget   = "target_id"
	MetaWonTick  = "won_tick"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB

	saveMu sync.Mutex // Serializes SaveWorldState
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps the per-connection pragmas in effect.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pragmas: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		pos_z REAL NOT NULL,
		speed REAL NOT NULL,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// agentRow mirrors the agents table.
type agentRow struct {
	ID        uint64  `db:"id"`
	Kind      string  `db:"kind"`
	PosX      float64 `db:"pos_x"`
	PosY      float64 `db:"pos_y"`
	PosZ      float64 `db:"pos_z"`
	Speed     float64 `db:"speed"`
	StateJSON string  `db:"state_json"`
}

// SaveAgents writes all agents to the database (full replace).
func (db *DB) SaveAgents(records []engine.AgentRecord) error {
	return db.inTx(func(tx *sqlx.Tx) error { return saveAgents(tx, records) })
}

func saveAgents(tx *sqlx.Tx, records []engine.AgentRecord) error {
	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO agents
		(id, kind, pos_x, pos_y, pos_z, speed, state_json)
		VALUES (:id, :kind, :pos_x, :pos_y, :pos_z, :speed, :state_json)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		stateJSON, err := json.Marshal(r.Saved)
		if err != nil {
			return fmt.Errorf("encode agent %d: %w", r.ID, err)
		}
		row := agentRow{
			ID:        uint64(r.ID),
			Kind:      r.Kind,
			PosX:      r.Position.X,
			PosY:      r.Position.Y,
			PosZ:      r.Position.Z,
			Speed:     r.Speed,
			StateJSON: string(stateJSON),
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert agent %d: %w", r.ID, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing only if it succeeds.
func (db *DB) inTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadAgents reads every persisted agent in ID order.
func (db *DB) LoadAgents() ([]engine.AgentRecord, error) {
	var rows []agentRow
	if err := db.conn.Select(&rows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select agents: %w", err)
	}

	out := make([]engine.AgentRecord, 0, len(rows))
	for _, row := range rows {
		var saved agents.Saved
		if err := json.Unmarshal([]byte(row.StateJSON), &saved); err != nil {
			return nil, fmt.Errorf("decode agent %d: %w", row.ID, err)
		}
		out = append(out, engine.AgentRecord{
			ID:       agents.AgentID(row.ID),
			Kind:     row.Kind,
			Position: geom.V(row.PosX, row.PosY, row.PosZ),
			Speed:    row.Speed,
			Saved:    saved,
		})
	}
	return out, nil
}

// HasWorldState reports whether a previous run left agents behind.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM agents"); err != nil {
		return false
	}
	return n > 0
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}
	return db.inTx(func(tx *sqlx.Tx) error { return saveEvents(tx, events) })
}

func saveEvents(tx *sqlx.Tx, events []engine.Event) error {
	for _, e := range events {
		_, err := tx.NamedExec(
			"INSERT INTO events (tick, agent_id, category, description) VALUES (:tick, :agent_id, :category, :description)",
			e,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, agent_id, category, description FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

const upsertMeta = "INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)"

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(upsertMeta, key, value)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns "" and no error.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// GetMetaUint reads a numeric metadata value. ok is false when the key is absent.
func (db *DB) GetMetaUint(key string) (v uint64, ok bool, err error) {
	s, err := db.GetMeta(key)
	if err != nil || s == "" {
		return 0, false, err
	}
	v, err = strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("meta %s: %w", key, err)
	}
	return v, true, nil
}

// RunID returns the identity of this world, creating one on first use.
func (db *DB) RunID() (string, error) {
	id, err := db.GetMeta(MetaRunID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := db.SaveMeta(MetaRunID, id); err != nil {
		return "", fmt.Errorf("save run id: %w", err)
	}
	return id, nil
}

// SaveWorldState performs a full save of all world state in one transaction.
// Pending events are acknowledged only after the commit, so a failed save
// keeps them for the next attempt.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	db.saveMu.Lock()
	defer db.saveMu.Unlock()

	cp := sim.Checkpoint()
	slog.Info("saving world state", "agents", len(cp.Records), "events", len(cp.Events), "tick", cp.Tick)

	meta := map[string]string{MetaLastTick: strconv.FormatUint(cp.Tick, 10)}
	if cp.HasTarget {
		meta[MetaTarget] = strconv.FormatUint(uint64(cp.Target), 10)
	}
	if cp.Won {
		meta[MetaWonTick] = strconv.FormatUint(cp.WonTick, 10)
	}

	err := db.inTx(func(tx *sqlx.Tx) error {
		if err := saveAgents(tx, cp.Records); err != nil {
			return fmt.Errorf("save agents: %w", err)
		}
		if err := saveEvents(tx, cp.Events); err != nil {
			return fmt.Errorf("save events: %w", err)
		}
		for k, v := range meta {
			if _, err := tx.Exec(upsertMeta, k, v); err != nil {
				return fmt.Errorf("save meta %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	sim.AckEvents(len(cp.Events))
	slog.Info("world state saved")
	return nil
}
