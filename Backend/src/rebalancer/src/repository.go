package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

type Repository struct {
	DB *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	// WAL + busy_timeout: el servidor gRPC y el worker de la cola escriben a la vez
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(2 * time.Minute)
	db.SetMaxOpenConns(1)

	r := &Repository{DB: db}
	if err := r.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs(
  id            TEXT PRIMARY KEY,
  source        TEXT NOT NULL,
  created_unix  INTEGER NOT NULL,
  station_count INTEGER NOT NULL,
  max_moves     INTEGER NOT NULL,
  mean_bikes    REAL NOT NULL,
  total_bikes   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_moves(
  run_id        TEXT NOT NULL,
  seq           INTEGER NOT NULL,
  from_station  TEXT NOT NULL,
  to_station    TEXT NOT NULL,
  bikes_to_move INTEGER NOT NULL,
  from_numeric  INTEGER NOT NULL DEFAULT 0,
  to_numeric    INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY(run_id, seq),
  FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_unix);
`
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error { return r.DB.Close() }

func (r *Repository) SaveRun(ctx context.Context, run *Run) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO runs(id, source, created_unix, station_count, max_moves, mean_bikes, total_bikes)
VALUES(?,?,?,?,?,?,?)`,
		run.ID, run.Source, run.CreatedAt.Unix(), run.StationCount, run.MaxMoves, run.MeanBikes, run.TotalBikes); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_moves(run_id, seq, from_station, to_station, bikes_to_move, from_numeric, to_numeric)
VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range run.Moves {
		if _, err := stmt.ExecContext(ctx, run.ID, i, m.FromStation, m.ToStation, m.BikesToMove,
			run.NumericIDs[m.FromStation], run.NumericIDs[m.ToStation]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var created int64
	err := r.DB.QueryRowContext(ctx, `
SELECT id, source, created_unix, station_count, max_moves, mean_bikes, total_bikes
FROM runs WHERE id=?`, id).
		Scan(&run.ID, &run.Source, &created, &run.StationCount, &run.MaxMoves, &run.MeanBikes, &run.TotalBikes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(created, 0).UTC()

	rows, err := r.DB.QueryContext(ctx, `
SELECT from_station, to_station, bikes_to_move, from_numeric, to_numeric
FROM run_moves WHERE run_id=? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Moves = []MoveRecommendation{}
	for rows.Next() {
		var m MoveRecommendation
		var fromNum, toNum bool
		if err := rows.Scan(&m.FromStation, &m.ToStation, &m.BikesToMove, &fromNum, &toNum); err != nil {
			return nil, err
		}
		run.Moves = append(run.Moves, m)
		if fromNum {
			run.markNumeric(m.FromStation)
		}
		if toNum {
			run.markNumeric(m.ToStation)
		}
	}
	return &run, rows.Err()
}
