package history

// #region imports
import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/qec-controller/internal/code"
	"github.com/danielpatrickdp/qec-controller/internal/orchestrator"
	_ "modernc.org/sqlite"
)

// #endregion

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	status      TEXT NOT NULL,
	num_cycles  INTEGER NOT NULL,
	shots       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	cycle_index  INTEGER NOT NULL,
	timestamp    TEXT NOT NULL,
	s0           INTEGER NOT NULL,
	s1           INTEGER NOT NULL,
	correction   TEXT NOT NULL,
	wait_ns      INTEGER NOT NULL,
	rtt_ns       INTEGER NOT NULL,
	success      INTEGER NOT NULL DEFAULT 0,
	shots        INTEGER NOT NULL DEFAULT 0,
	shot_errors  INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

const cyclesIndex = `
CREATE INDEX IF NOT EXISTS idx_cycles_run
ON cycles(run_id, cycle_index);
`

// #endregion schema

// #region store-struct

// Store persists run metadata and the append-only cycle history in
// SQLite. Cycle rows are written only after a record is fully built,
// so readers never observe a partial cycle.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the history database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.Exec(cyclesIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region runs

// RunRow is one row of the runs table.
type RunRow struct {
	RunID     string
	StartedAt time.Time
	Status    orchestrator.RunStatus
	NumCycles int
	Shots     int
}

// InsertRun records a finished run with its terminal status. Run rows
// are written once, after the run ends; live progress is visible only
// through the cycles table.
func (s *Store) InsertRun(row RunRow) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, started_at, status, num_cycles, shots)
		VALUES (?, ?, ?, ?, ?)`,
		row.RunID,
		row.StartedAt.UTC().Format(time.RFC3339Nano),
		string(row.Status),
		row.NumCycles,
		row.Shots,
	)
	return err
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(limit int) ([]RunRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, started_at, status, num_cycles, shots
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		var started, status string
		if err := rows.Scan(&r.RunID, &started, &status, &r.NumCycles, &r.Shots); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad started_at: %w", r.RunID, err)
		}
		r.StartedAt = t
		r.Status = orchestrator.RunStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion runs

// #region cycles

// AppendCycle persists one completed cycle record.
func (s *Store) AppendCycle(rec orchestrator.CycleRecord) error {
	success := 0
	if rec.Success {
		success = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO cycles
		(run_id, cycle_index, timestamp, s0, s1, correction, wait_ns, rtt_ns, success, shots, shot_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Index,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Syndrome.S0,
		rec.Syndrome.S1,
		string(rec.Correction),
		rec.WaitBefore.Nanoseconds(),
		rec.RoundTrip.Nanoseconds(),
		success,
		rec.LogicalShots,
		rec.LogicalErrors,
	)
	return err
}

// AppendCycles persists a run's records in one transaction.
func (s *Store) AppendCycles(records []orchestrator.CycleRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, rec := range records {
		success := 0
		if rec.Success {
			success = 1
		}
		if _, err := tx.Exec(`
			INSERT INTO cycles
			(run_id, cycle_index, timestamp, s0, s1, correction, wait_ns, rtt_ns, success, shots, shot_errors)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID,
			rec.Index,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.Syndrome.S0,
			rec.Syndrome.S1,
			string(rec.Correction),
			rec.WaitBefore.Nanoseconds(),
			rec.RoundTrip.Nanoseconds(),
			success,
			rec.LogicalShots,
			rec.LogicalErrors,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Cycles returns a run's records in cycle order.
func (s *Store) Cycles(runID string) ([]orchestrator.CycleRecord, error) {
	rows, err := s.db.Query(`
		SELECT cycle_index, timestamp, s0, s1, correction, wait_ns, rtt_ns, success, shots, shot_errors
		FROM cycles WHERE run_id = ? ORDER BY cycle_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orchestrator.CycleRecord
	for rows.Next() {
		var rec orchestrator.CycleRecord
		var ts, correction string
		var waitNS, rttNS int64
		var success int
		if err := rows.Scan(&rec.Index, &ts, &rec.Syndrome.S0, &rec.Syndrome.S1,
			&correction, &waitNS, &rttNS, &success, &rec.LogicalShots, &rec.LogicalErrors); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("cycle %d: bad timestamp: %w", rec.Index, err)
		}
		rec.RunID = runID
		rec.Timestamp = t
		rec.Correction = code.Correction(correction)
		rec.WaitBefore = time.Duration(waitNS)
		rec.RoundTrip = time.Duration(rttNS)
		rec.Success = success == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion cycles
