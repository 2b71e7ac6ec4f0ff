// Package store persists a measurement run's raw inputs - gate observations,
// session events, and synth trend points - in SQLite so a run can span
// multiple CLI invocations. The in-memory core never depends on this
// package; the CLI reloads state through it at startup.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"synthmeter/internal/events"
	"synthmeter/internal/gates"
	"synthmeter/internal/logging"
	"synthmeter/internal/metrics"
)

// LocalStore wraps the SQLite handle. Writes are serialized through the
// mutex; SQLite itself runs with a single connection.
type LocalStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewLocalStore opens (creating if needed) the database at path and applies
// migrations.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.StoreDebug("LocalStore ready at %s", path)
	return s, nil
}

// Close releases the database handle.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *LocalStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS gate_observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			gate TEXT NOT NULL,
			file TEXT NOT NULL,
			line INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			message TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gate_obs_session ON gate_observations(session_id)`,
		`CREATE TABLE IF NOT EXISTS session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			tokens INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 0,
			story TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id)`,
		`CREATE TABLE IF NOT EXISTS synth_trend (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			checkpoint TEXT NOT NULL,
			tokens INTEGER NOT NULL,
			total_loc INTEGER NOT NULL,
			synth REAL NOT NULL,
			delta REAL NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_synth_trend_session ON synth_trend(session_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveObservation appends one gate observation.
func (s *LocalStore) SaveObservation(sessionID string, obs gates.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO gate_observations (session_id, gate, file, line, passed, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, string(obs.Gate), obs.File, obs.Line, obs.Passed, obs.Message, obs.Timestamp,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to save observation for %s: %v", sessionID, err)
		return err
	}
	return nil
}

// LoadObservations returns a session's observations in insertion order.
func (s *LocalStore) LoadObservations(sessionID string) ([]gates.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT gate, file, line, passed, message, created_at
		 FROM gate_observations WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gates.Observation
	for rows.Next() {
		var obs gates.Observation
		var gate string
		var message sql.NullString
		if err := rows.Scan(&gate, &obs.File, &obs.Line, &obs.Passed, &message, &obs.Timestamp); err != nil {
			return nil, err
		}
		obs.Gate = gates.Kind(gate)
		obs.Message = message.String
		out = append(out, obs)
	}
	return out, rows.Err()
}

// SaveEvent appends one session event.
func (s *LocalStore) SaveEvent(ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO session_events (session_id, kind, tokens, success, story, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.SessionID, string(ev.Kind), ev.Tokens, ev.Success, ev.Story, ev.Timestamp,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to save event for %s: %v", ev.SessionID, err)
		return err
	}
	return nil
}

// LoadEvents returns a session's events in submission order.
func (s *LocalStore) LoadEvents(sessionID string) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT kind, tokens, success, story, created_at
		 FROM session_events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		ev := events.Event{SessionID: sessionID}
		var kind string
		var story sql.NullString
		if err := rows.Scan(&kind, &ev.Tokens, &ev.Success, &story, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Kind = events.Kind(kind)
		ev.Story = story.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

// SaveTrendPoint appends one synth trend point.
func (s *LocalStore) SaveTrendPoint(sessionID string, p metrics.TrendPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO synth_trend (session_id, checkpoint, tokens, total_loc, synth, delta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, p.Checkpoint, p.Tokens, p.TotalLOC, p.Synth, p.Delta, p.Timestamp,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to save trend point for %s: %v", sessionID, err)
		return err
	}
	return nil
}

// LoadTrend returns a session's trend points in checkpoint order.
func (s *LocalStore) LoadTrend(sessionID string) ([]metrics.TrendPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT checkpoint, tokens, total_loc, synth, delta, created_at
		 FROM synth_trend WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.TrendPoint
	for rows.Next() {
		var p metrics.TrendPoint
		if err := rows.Scan(&p.Checkpoint, &p.Tokens, &p.TotalLOC, &p.Synth, &p.Delta, &p.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Sessions lists every session id present in any table.
func (s *LocalStore) Sessions() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT DISTINCT session_id FROM session_events
		 UNION SELECT DISTINCT session_id FROM gate_observations
		 UNION SELECT DISTINCT session_id FROM synth_trend`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Restore hydrates the in-memory components from everything on disk.
// Replayed events rebuild counters and lifecycle; observations rebuild the
// aggregator's log; trend points are restored verbatim.
func (s *LocalStore) Restore(collector *events.Collector, aggregator *gates.Aggregator, engine *metrics.Engine) error {
	ids, err := s.Sessions()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	for _, id := range ids {
		evs, err := s.LoadEvents(id)
		if err != nil {
			return fmt.Errorf("load events for %s: %w", id, err)
		}
		for _, ev := range evs {
			if err := collector.Submit(ev); err != nil {
				return fmt.Errorf("replay event for %s: %w", id, err)
			}
		}

		obs, err := s.LoadObservations(id)
		if err != nil {
			return fmt.Errorf("load observations for %s: %w", id, err)
		}
		for _, o := range obs {
			if err := aggregator.Record(id, o); err != nil {
				return fmt.Errorf("replay observation for %s: %w", id, err)
			}
		}

		trend, err := s.LoadTrend(id)
		if err != nil {
			return fmt.Errorf("load trend for %s: %w", id, err)
		}
		if len(trend) > 0 {
			engine.RestoreTrend(id, trend)
		}
	}

	logging.StoreDebug("restored %d sessions from %s", len(ids), s.dbPath)
	return nil
}
