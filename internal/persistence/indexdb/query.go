package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

type HealthRow struct {
	Tick        uint64 `json:"tick"`
	StructureID string `json:"structure_id"`
	Health      int    `json:"health"`
	Blocks      int    `json:"blocks"`
	Destroyed   int    `json:"destroyed"`
	Hostile     bool   `json:"hostile"`
}

type SnapshotRow struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	Seed       int64  `json:"seed"`
	Height     int    `json:"height"`
	Chunks     int    `json:"chunks"`
	Structures int    `json:"structures"`
}

// Reader queries an index written by a (possibly running) server.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// LatestHealth returns the newest row per structure, sorted by structure id.
func (r *Reader) LatestHealth(ctx context.Context) ([]HealthRow, error) {
	return latestHealth(ctx, r.db)
}

// HealthHistory returns up to limit rows for one structure, newest first.
func (r *Reader) HealthHistory(ctx context.Context, structureID string, limit int) ([]HealthRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT tick,structure_id,health,blocks,destroyed,hostile
		FROM structure_health WHERE structure_id=? ORDER BY tick DESC LIMIT ?`, structureID, limit)
	if err != nil {
		return nil, err
	}
	return scanHealth(rows)
}

func (r *Reader) Snapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT tick,path,seed,height,chunks,structures FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		var tick int64
		if err := rows.Scan(&tick, &s.Path, &s.Seed, &s.Height, &s.Chunks, &s.Structures); err != nil {
			return nil, err
		}
		s.Tick = uint64(tick)
		out = append(out, s)
	}
	return out, rows.Err()
}

func latestHealth(ctx context.Context, db *sql.DB) ([]HealthRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT h.tick,h.structure_id,h.health,h.blocks,h.destroyed,h.hostile
		FROM structure_health h
		JOIN (SELECT structure_id, MAX(tick) AS tick FROM structure_health GROUP BY structure_id) m
		ON h.structure_id = m.structure_id AND h.tick = m.tick
		ORDER BY h.structure_id`)
	if err != nil {
		return nil, err
	}
	return scanHealth(rows)
}

func scanHealth(rows *sql.Rows) ([]HealthRow, error) {
	defer rows.Close()
	var out []HealthRow
	for rows.Next() {
		var h HealthRow
		var tick int64
		var hostile int
		if err := rows.Scan(&tick, &h.StructureID, &h.Health, &h.Blocks, &h.Destroyed, &hostile); err != nil {
			return nil, err
		}
		h.Tick = uint64(tick)
		h.Hostile = hostile != 0
		out = append(out, h)
	}
	return out, rows.Err()
}
