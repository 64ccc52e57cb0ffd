// Package gcprof records per-collection heap statistics to a SQLite
// database so collection behavior can be inspected after a run.
package gcprof

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"finch/internal/vm"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	session        TEXT    NOT NULL,
	seq            INTEGER NOT NULL,
	started_at     TEXT    NOT NULL,
	bytes_before   INTEGER NOT NULL,
	bytes_after    INTEGER NOT NULL,
	next_gc        INTEGER NOT NULL,
	objects_freed  INTEGER NOT NULL,
	objects_alive  INTEGER NOT NULL,
	pause_ns       INTEGER NOT NULL,
	PRIMARY KEY (session, seq)
)`

// SQLiteRecorder implements vm.Recorder by inserting one row per
// collection. Each recorder gets a fresh session id so runs against the
// same database stay distinguishable.
type SQLiteRecorder struct {
	db      *sql.DB
	insert  *sql.Stmt
	session string
	log     *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the stats database at path.
func NewSQLiteRecorder(path string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open stats database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create collections table")
	}

	insert, err := db.Prepare(`INSERT INTO collections
		(session, seq, started_at, bytes_before, bytes_after, next_gc,
		 objects_freed, objects_alive, pause_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "prepare insert")
	}

	return &SQLiteRecorder{
		db:      db,
		insert:  insert,
		session: uuid.NewString(),
		log:     logger,
	}, nil
}

// Session returns the recorder's session id.
func (r *SQLiteRecorder) Session() string { return r.session }

// RecordCollection implements vm.Recorder. Insert failures are logged
// rather than surfaced: stats recording must never interrupt the mutator.
func (r *SQLiteRecorder) RecordCollection(stats vm.GCStats) {
	_, err := r.insert.Exec(
		r.session, stats.Seq, stats.When.UTC().Format("2006-01-02T15:04:05.000Z"),
		stats.BytesBefore, stats.BytesAfter, stats.NextGC,
		stats.Freed, stats.Survived, stats.Pause.Nanoseconds())
	if err != nil {
		r.log.Warn("failed to record collection",
			zap.Uint64("seq", stats.Seq), zap.Error(err))
	}
}

// Summary aggregates the current session's rows.
type Summary struct {
	Collections  int
	ObjectsFreed int
	TotalPauseNs int64
	MaxPauseNs   int64
}

// Summarize reads back the aggregate stats for this recorder's session.
func (r *SQLiteRecorder) Summarize() (Summary, error) {
	var s Summary
	row := r.db.QueryRow(`SELECT COUNT(*),
			COALESCE(SUM(objects_freed), 0),
			COALESCE(SUM(pause_ns), 0),
			COALESCE(MAX(pause_ns), 0)
		FROM collections WHERE session = ?`, r.session)
	if err := row.Scan(&s.Collections, &s.ObjectsFreed,
		&s.TotalPauseNs, &s.MaxPauseNs); err != nil {
		return Summary{}, errors.Wrap(err, "summarize session")
	}
	return s, nil
}

// Close releases the database handle.
func (r *SQLiteRecorder) Close() error {
	r.insert.Close()
	return errors.Wrap(r.db.Close(), "close stats database")
}
