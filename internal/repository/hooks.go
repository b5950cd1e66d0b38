// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"time"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
)

type hookTimeKey struct{}

// Hooks satisfies sqlhooks.Hooks, logging every statement and its
// elapsed time at debug level.
type Hooks struct{}

// Before logs the statement and stashes a start time for After.
func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("SQL query %s %q", query, args)
	return context.WithValue(ctx, hookTimeKey{}, time.Now()), nil
}

// After logs the elapsed time recorded by Before.
func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(hookTimeKey{}).(time.Time); ok {
		log.Debugf("SQL took %s", time.Since(begin))
	}
	return ctx, nil
}
