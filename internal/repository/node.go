// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"sync"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var (
	nodeRepoOnce     sync.Once
	nodeRepoInstance *NodeRepository
)

// Node is a registered field node's static descriptor.
type Node struct {
	NodeID               int64  `db:"node_id"`
	LocationDescription  string `db:"location_description"`
	InstallDate          string `db:"install_date"`
}

// NodeRepository provides access to the nodes table.
type NodeRepository struct {
	DB        *sqlx.DB
	stmtCache *sq.StmtCache
}

// NewNodeRepository builds a repository over an already-open database
// handle.
func NewNodeRepository(db *sqlx.DB) *NodeRepository {
	return &NodeRepository{DB: db, stmtCache: sq.NewStmtCache(db.DB)}
}

// GetNodeRepository returns the process-wide node repository.
func GetNodeRepository() *NodeRepository {
	nodeRepoOnce.Do(func() {
		nodeRepoInstance = NewNodeRepository(GetConnection().DB)
	})
	return nodeRepoInstance
}

// GetNode looks up a node by id.
func (r *NodeRepository) GetNode(nodeID int64) (*Node, error) {
	n := &Node{}
	if err := sq.Select("node_id", "location_description", "install_date").
		From("nodes").Where("node_id = ?", nodeID).
		RunWith(r.stmtCache).QueryRow().
		Scan(&n.NodeID, &n.LocationDescription, &n.InstallDate); err != nil {
		log.Warnf("repository: error looking up node %d: %v", nodeID, err)
		return nil, err
	}
	return n, nil
}

// UpsertNode inserts a node descriptor, or updates it if the node id
// already exists.
func (r *NodeRepository) UpsertNode(n *Node) error {
	_, err := r.DB.Exec(`
		INSERT INTO nodes (node_id, location_description, install_date)
		VALUES (?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			location_description = excluded.location_description,
			install_date = excluded.install_date`,
		n.NodeID, n.LocationDescription, n.InstallDate)
	if err != nil {
		log.Errorf("repository: error upserting node %d: %v", n.NodeID, err)
		return err
	}
	return nil
}
