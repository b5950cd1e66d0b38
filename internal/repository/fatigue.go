// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var (
	fatigueRepoOnce     sync.Once
	fatigueRepoInstance *FatigueRepository
)

// timeLayout is the UTC ISO-8601 layout every timestamp in the store is
// written and compared in.
const timeLayout = "2006-01-02T15:04:05Z"

// FatigueRecord is one structural-fatigue reading.
type FatigueRecord struct {
	LogID       int64  `db:"log_id"`
	Timestamp   string `db:"timestamp"`
	NodeID      int64  `db:"node_id"`
	Bin1Cycles  int64  `db:"bin_1_cycles"`
	Bin2Cycles  int64  `db:"bin_2_cycles"`
	Bin3Cycles  int64  `db:"bin_3_cycles"`
	SentToCloud bool   `db:"sent_to_cloud"`
}

// FatigueRepository provides access to the fatigue_log table.
type FatigueRepository struct {
	DB        *sqlx.DB
	stmtCache *sq.StmtCache
}

// NewFatigueRepository builds a repository over an already-open
// database handle. Production code should prefer
// GetFatigueRepository; this is exported so tests (including tests in
// other packages) can point a repository at a throwaway database.
func NewFatigueRepository(db *sqlx.DB) *FatigueRepository {
	return &FatigueRepository{DB: db, stmtCache: sq.NewStmtCache(db.DB)}
}

// GetFatigueRepository returns the process-wide fatigue repository.
func GetFatigueRepository() *FatigueRepository {
	fatigueRepoOnce.Do(func() {
		fatigueRepoInstance = NewFatigueRepository(GetConnection().DB)
	})
	return fatigueRepoInstance
}

// FormatTimestamp renders t as the store's canonical UTC ISO-8601 string.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Insert records a new fatigue reading with sent_to_cloud = false and
// returns the assigned row id.
func (r *FatigueRepository) Insert(rec FatigueRecord) (int64, error) {
	res, err := r.DB.Exec(`
		INSERT INTO fatigue_log (timestamp, node_id, bin_1_cycles, bin_2_cycles, bin_3_cycles, sent_to_cloud)
		VALUES (?, ?, ?, ?, ?, 0)`,
		rec.Timestamp, rec.NodeID, rec.Bin1Cycles, rec.Bin2Cycles, rec.Bin3Cycles)
	if err != nil {
		log.Errorf("repository: error inserting fatigue row for node %d: %v", rec.NodeID, err)
		return 0, err
	}
	return res.LastInsertId()
}

// Unsent returns up to limit fatigue rows not yet delivered upstream,
// ordered by row id so a batch is always the oldest outstanding rows.
func (r *FatigueRepository) Unsent(limit int) ([]FatigueRecord, error) {
	rows, err := sq.Select("log_id", "timestamp", "node_id", "bin_1_cycles", "bin_2_cycles", "bin_3_cycles", "sent_to_cloud").
		From("fatigue_log").
		Where(sq.Eq{"sent_to_cloud": 0}).
		OrderBy("log_id ASC").
		Limit(uint64(limit)).
		RunWith(r.stmtCache).Query()
	if err != nil {
		log.Errorf("repository: error querying unsent fatigue rows: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []FatigueRecord
	for rows.Next() {
		var rec FatigueRecord
		if err := rows.Scan(&rec.LogID, &rec.Timestamp, &rec.NodeID, &rec.Bin1Cycles, &rec.Bin2Cycles, &rec.Bin3Cycles, &rec.SentToCloud); err != nil {
			log.Errorf("repository: error scanning unsent fatigue row: %v", err)
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkSent sets sent_to_cloud = 1 for exactly the given ids, in one
// transaction. Called only after upstream has acknowledged the batch.
func (r *FatigueRepository) MarkSent(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.DB.Beginx()
	if err != nil {
		log.Warnf("repository: error beginning mark-sent transaction: %v", err)
		return err
	}

	query, args, err := sq.Update("fatigue_log").
		Set("sent_to_cloud", 1).
		Where(sq.Eq{"log_id": ids}).
		ToSql()
	if err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		log.Errorf("repository: error marking %d fatigue rows sent: %v", len(ids), err)
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Errorf("repository: error committing mark-sent transaction: %v", err)
		return err
	}
	return nil
}

// OlderThan returns every fatigue row strictly older than cutoff.
func (r *FatigueRepository) OlderThan(cutoff time.Time) ([]FatigueRecord, error) {
	rows, err := sq.Select("log_id", "timestamp", "node_id", "bin_1_cycles", "bin_2_cycles", "bin_3_cycles", "sent_to_cloud").
		From("fatigue_log").
		Where(sq.Lt{"timestamp": FormatTimestamp(cutoff)}).
		OrderBy("log_id ASC").
		RunWith(r.stmtCache).Query()
	if err != nil {
		log.Errorf("repository: error querying fatigue rows older than %s: %v", FormatTimestamp(cutoff), err)
		return nil, err
	}
	defer rows.Close()

	var out []FatigueRecord
	for rows.Next() {
		var rec FatigueRecord
		if err := rows.Scan(&rec.LogID, &rec.Timestamp, &rec.NodeID, &rec.Bin1Cycles, &rec.Bin2Cycles, &rec.Bin3Cycles, &rec.SentToCloud); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes every fatigue row strictly older than cutoff,
// in one transaction. Callers must have durably archived those rows
// first (see the archiver package) — this is the purge half of the
// write-then-delete discipline, never the write half.
func (r *FatigueRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	tx, err := r.DB.Beginx()
	if err != nil {
		return 0, err
	}

	res, err := tx.Exec(`DELETE FROM fatigue_log WHERE timestamp < ?`, FormatTimestamp(cutoff))
	if err != nil {
		log.Errorf("repository: error deleting aged fatigue rows: %v", err)
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		log.Errorf("repository: error committing fatigue purge: %v", err)
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: rows affected: %w", err)
	}
	return n, nil
}
