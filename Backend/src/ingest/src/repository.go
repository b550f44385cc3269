package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Repository interface {
	Init(ctx context.Context) error
	UpsertDemand(ctx context.Context, rows []HourlyDemand) error
	ListDemand(ctx context.Context) ([]HourlyDemand, error)
	Close() error
}

type sqliteRepo struct{ db *sql.DB }

func openSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func NewSQLiteRepo(ctx context.Context, path string) (Repository, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	r := &sqliteRepo{db: db}
	if err := r.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *sqliteRepo) Init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS hourly_demand(
  station_id TEXT NOT NULL,
  hour_unix  INTEGER NOT NULL,
  ride_count INTEGER NOT NULL,
  PRIMARY KEY(station_id, hour_unix)
);`)
	return err
}

func (r *sqliteRepo) UpsertDemand(ctx context.Context, rows []HourlyDemand) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hourly_demand(station_id, hour_unix, ride_count) VALUES(?,?,?)
		ON CONFLICT(station_id, hour_unix) DO UPDATE SET ride_count=excluded.ride_count`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range rows {
		if _, err := stmt.ExecContext(ctx, d.StationID, d.HourTS.Unix(), d.RideCount); err != nil {
			return fmt.Errorf("upsert %s@%s: %w", d.StationID, d.HourTS.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

func (r *sqliteRepo) ListDemand(ctx context.Context) ([]HourlyDemand, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT station_id, hour_unix, ride_count
		FROM hourly_demand ORDER BY station_id, hour_unix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HourlyDemand{}
	for rows.Next() {
		var d HourlyDemand
		var unix int64
		if err := rows.Scan(&d.StationID, &unix, &d.RideCount); err != nil {
			return nil, err
		}
		d.HourTS = time.Unix(unix, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *sqliteRepo) Close() error { return r.db.Close() }
