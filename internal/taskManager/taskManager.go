// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package taskManager schedules the gateway's two periodic jobs, daily
// archival and fixed-cadence upstream upload, on top of gocron.
package taskManager

import (
	"context"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/archiver"
	"github.com/fieldwatch/sensor-gateway/internal/egress"
	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"github.com/go-co-op/gocron/v2"
)

var s gocron.Scheduler

func parseDuration(v string) (time.Duration, error) {
	interval, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("taskManager: could not parse duration %q: %v", v, err)
		return 0, err
	}
	return interval, nil
}

// Start creates the scheduler and registers the archive and upload
// jobs. archiveAt is the time of day (local) the daily archive job
// runs; uploadEvery is the fixed cadence of the upload job.
func Start(arc *archiver.Archiver, maxAge time.Duration, archiveAt time.Time, eg *egress.Egress, uploadEvery time.Duration) error {
	var err error
	s, err = gocron.NewScheduler()
	if err != nil {
		return err
	}

	RegisterArchiveJob(s, arc, maxAge, archiveAt)
	RegisterUploadJob(s, eg, uploadEvery)

	s.Start()
	return nil
}

// Shutdown stops the scheduler, letting any in-flight job finish.
func Shutdown() error {
	if s == nil {
		return nil
	}
	return s.Shutdown()
}

func logJobPanic(name string) {
	if r := recover(); r != nil {
		log.Errorf("taskManager: %s job panicked: %v", name, r)
	}
}

// RegisterArchiveJob schedules the daily archive-and-purge job at the
// given time of day.
func RegisterArchiveJob(sched gocron.Scheduler, arc *archiver.Archiver, maxAge time.Duration, at time.Time) {
	hour, minute, second := at.Clock()
	_, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), uint(second)))),
		gocron.NewTask(func() {
			defer logJobPanic("archive")
			if _, _, err := arc.Run(time.Now(), maxAge); err != nil {
				log.Errorf("taskManager: archive job failed: %v", err)
			}
		}),
	)
	if err != nil {
		log.Errorf("taskManager: registering archive job: %v", err)
	}
}

// RegisterUploadJob schedules the fixed-cadence upstream upload job.
// Cadence is fixed, not a retry backoff: a failed attempt is simply
// tried again at the next tick.
func RegisterUploadJob(sched gocron.Scheduler, eg *egress.Egress, every time.Duration) {
	_, err := sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			defer logJobPanic("upload")
			if err := eg.UploadPending(context.Background()); err != nil {
				log.Errorf("taskManager: upload job failed, will retry next cycle: %v", err)
			}
		}),
	)
	if err != nil {
		log.Errorf("taskManager: registering upload job: %v", err)
	}
}
