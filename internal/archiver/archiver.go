// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package archiver moves aged fatigue readings out of the live store
// and onto disk as gzip-compressed CSV files, freeing the SQLite
// database from unbounded growth on a device with no operator around
// to prune it by hand.
package archiver

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/repository"
	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"github.com/google/uuid"
)

// filenameLayout matches fatigue_log_archive_YYYYMMDD_HHMMSS.csv.gz.
const filenameLayout = "20060102_150405"

var csvHeader = []string{"log_id", "timestamp", "node_id", "bin_1_cycles", "bin_2_cycles", "bin_3_cycles", "sent_to_cloud"}

// Archiver writes fatigue rows older than a retention cutoff to
// gzip-compressed CSV files under Dir and purges them from the store.
type Archiver struct {
	Fatigue *repository.FatigueRepository
	Dir     string
}

// Run archives every fatigue row with a timestamp older than now minus
// maxAge. It writes and flushes the archive file to disk before
// deleting the corresponding rows, so a crash between the two steps
// leaves the rows in the live store rather than losing them. An empty
// selection is a no-op: no zero-row archive file is created.
func (a *Archiver) Run(now time.Time, maxAge time.Duration) (string, int, error) {
	cutoff := now.Add(-maxAge)

	rows, err := a.Fatigue.OlderThan(cutoff)
	if err != nil {
		return "", 0, fmt.Errorf("archiver: selecting rows older than %s: %w", repository.FormatTimestamp(cutoff), err)
	}
	if len(rows) == 0 {
		log.Debug("archiver: no fatigue rows old enough to archive")
		return "", 0, nil
	}

	path, err := a.writeArchive(now, rows)
	if err != nil {
		return "", 0, fmt.Errorf("archiver: writing archive file: %w", err)
	}

	deleted, err := a.Fatigue.DeleteOlderThan(cutoff)
	if err != nil {
		return path, 0, fmt.Errorf("archiver: archive file %s was written but purging the store failed: %w", path, err)
	}

	log.Infof("archiver: archived %d fatigue row(s) to %s", deleted, path)
	return path, int(deleted), nil
}

func (a *Archiver) writeArchive(now time.Time, rows []repository.FatigueRecord) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory %s: %w", a.Dir, err)
	}

	// The uuid suffix keeps two archive runs landing in the same second
	// (a forced re-run after a crash, or a clock that hasn't ticked) from
	// ever overwriting each other's file.
	name := fmt.Sprintf("fatigue_log_archive_%s_%s.csv.gz", now.UTC().Format(filenameLayout), uuid.NewString()[:8])
	path := filepath.Join(a.Dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}

	gz := gzip.NewWriter(f)
	w := csv.NewWriter(gz)

	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return "", fmt.Errorf("writing csv header to %s: %w", path, err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.LogID, 10),
			r.Timestamp,
			strconv.FormatInt(r.NodeID, 10),
			strconv.FormatInt(r.Bin1Cycles, 10),
			strconv.FormatInt(r.Bin2Cycles, 10),
			strconv.FormatInt(r.Bin3Cycles, 10),
			strconv.FormatBool(r.SentToCloud),
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return "", fmt.Errorf("writing csv row to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", fmt.Errorf("flushing csv writer for %s: %w", path, err)
	}

	if err := gz.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("closing gzip stream for %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("syncing %s: %w", path, err)
	}
	return path, f.Close()
}
