// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package archiver

import (
	"compress/gzip"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE fatigue_log (
	log_id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	node_id INTEGER NOT NULL,
	bin_1_cycles INTEGER NOT NULL,
	bin_2_cycles INTEGER NOT NULL,
	bin_3_cycles INTEGER NOT NULL,
	sent_to_cloud INTEGER NOT NULL DEFAULT 0
);`

func newTestFatigueRepo(t *testing.T) *repository.FatigueRepository {
	t.Helper()
	// Tagging the in-memory database name with a fresh uuid per call, on
	// top of t.Name(), guarantees each test run gets its own database
	// even if the same test is re-run in the same process (t.Name()
	// alone is stable across re-runs and would collide on the shared
	// in-memory cache).
	db, err := sqlx.Open("sqlite3", "file:"+t.Name()+"-"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return repository.NewFatigueRepository(db)
}

func insertAt(t *testing.T, repo *repository.FatigueRepository, ts time.Time) int64 {
	t.Helper()
	id, err := repo.Insert(repository.FatigueRecord{
		Timestamp:  repository.FormatTimestamp(ts),
		NodeID:     1,
		Bin1Cycles: 1, Bin2Cycles: 2, Bin3Cycles: 3,
	})
	require.NoError(t, err)
	return id
}

func TestRunArchivesOldRowsAndPurgesThem(t *testing.T) {
	repo := newTestFatigueRepo(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	oldID := insertAt(t, repo, now.Add(-48*time.Hour))
	recentID := insertAt(t, repo, now.Add(-1*time.Hour))

	a := &Archiver{Fatigue: repo, Dir: t.TempDir()}
	path, count, err := a.Run(now, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.FileExists(t, path)
	base := filepath.Base(path)
	require.True(t, strings.HasPrefix(base, "fatigue_log_archive_20260731_120000_"))
	require.True(t, strings.HasSuffix(base, ".csv.gz"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	records, err := csv.NewReader(gz).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2, "header + one archived row")
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "1", records[1][0])

	remaining, err := repo.OlderThan(now.Add(time.Hour))
	require.NoError(t, err)
	ids := []int64{}
	for _, r := range remaining {
		ids = append(ids, r.LogID)
	}
	require.Contains(t, ids, recentID)
	require.NotContains(t, ids, oldID)
}

func TestRunWithNothingToArchiveIsNoopAndWritesNoFile(t *testing.T) {
	repo := newTestFatigueRepo(t)
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	insertAt(t, repo, now.Add(-1*time.Hour))

	dir := t.TempDir()
	a := &Archiver{Fatigue: repo, Dir: dir}
	path, count, err := a.Run(now, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 0, count)
	require.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
