// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"sync"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"github.com/jmoiron/sqlx"
)

var (
	environmentRepoOnce     sync.Once
	environmentRepoInstance *EnvironmentRepository
)

// EnvironmentRecord is one environmental reading from a scout node.
type EnvironmentRecord struct {
	LogID         int64   `db:"log_id"`
	ReceivedAt    string  `db:"received_at"`
	NodeID        int64   `db:"node_id"`
	TemperatureC  float64 `db:"temperature_c"`
	HumidityRH    float64 `db:"humidity_rh"`
}

// EnvironmentRepository provides access to the environment_log table.
// Unlike fatigue readings, environment readings carry no upstream-sent
// state and are never archived or purged by this gateway.
type EnvironmentRepository struct {
	DB *sqlx.DB
}

// NewEnvironmentRepository builds a repository over an already-open
// database handle.
func NewEnvironmentRepository(db *sqlx.DB) *EnvironmentRepository {
	return &EnvironmentRepository{DB: db}
}

// GetEnvironmentRepository returns the process-wide environment repository.
func GetEnvironmentRepository() *EnvironmentRepository {
	environmentRepoOnce.Do(func() {
		environmentRepoInstance = NewEnvironmentRepository(GetConnection().DB)
	})
	return environmentRepoInstance
}

// Insert records a new environment reading and returns its row id.
func (r *EnvironmentRepository) Insert(rec EnvironmentRecord) (int64, error) {
	res, err := r.DB.Exec(`
		INSERT INTO environment_log (received_at, node_id, temperature_c, humidity_rh)
		VALUES (?, ?, ?, ?)`,
		rec.ReceivedAt, rec.NodeID, rec.TemperatureC, rec.HumidityRH)
	if err != nil {
		log.Errorf("repository: error inserting environment row for node %d: %v", rec.NodeID, err)
		return 0, err
	}
	return res.LastInsertId()
}
