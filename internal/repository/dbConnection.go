// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package repository is the durable store: a single sqlite3 database
// holding node descriptors, fatigue readings and environment readings.
package repository

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

var (
	dbConnOnce     sync.Once
	dbConnInstance *DBConnection
)

// DBConnection wraps the single sqlite3 connection the gateway keeps
// open for its lifetime.
type DBConnection struct {
	DB *sqlx.DB
}

// Connect opens (and, on first call, migrates) the database at path.
// It is safe to call from every component that needs a repository;
// only the first call actually opens a connection.
func Connect(path string) error {
	var err error
	dbConnOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))

		var dbHandle *sqlx.DB
		dbHandle, err = sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
		if err != nil {
			err = fmt.Errorf("repository: open %s: %w", path, err)
			return
		}

		// sqlite does not multithread; one connection avoids waiting on locks
		// between components that each hold a *sqlx.DB.
		dbHandle.SetMaxOpenConns(1)

		if migErr := migrateUp(dbHandle.DB); migErr != nil {
			err = fmt.Errorf("repository: migrate: %w", migErr)
			return
		}

		dbConnInstance = &DBConnection{DB: dbHandle}
		log.Infof("repository: connected to %s", path)
	})
	return err
}

// GetConnection returns the process-wide connection. Connect must have
// been called successfully first.
func GetConnection() *DBConnection {
	if dbConnInstance == nil {
		log.Fatal("repository: GetConnection called before Connect")
	}
	return dbConnInstance
}
