// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldwatch/sensor-gateway/internal/alerting"
	"github.com/fieldwatch/sensor-gateway/internal/archiver"
	"github.com/fieldwatch/sensor-gateway/internal/bus"
	"github.com/fieldwatch/sensor-gateway/internal/config"
	"github.com/fieldwatch/sensor-gateway/internal/egress"
	"github.com/fieldwatch/sensor-gateway/internal/ingest"
	"github.com/fieldwatch/sensor-gateway/internal/metrics"
	"github.com/fieldwatch/sensor-gateway/internal/modem"
	"github.com/fieldwatch/sensor-gateway/internal/processor"
	"github.com/fieldwatch/sensor-gateway/internal/radio"
	"github.com/fieldwatch/sensor-gateway/internal/repository"
	"github.com/fieldwatch/sensor-gateway/internal/runtimeEnv"
	"github.com/fieldwatch/sensor-gateway/internal/supervisor"
	"github.com/fieldwatch/sensor-gateway/internal/taskManager"
	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"github.com/google/uuid"
)

// Interrupt lines for the two radio chips, wired per the deployment's
// fixed GPIO assignment.
const (
	primaryInterruptChip = "gpiochip0"
	primaryInterruptLine = 25
	scoutInterruptChip   = "gpiochip0"
	scoutInterruptLine   = 22
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log.SetLogLevel(cfg.LogLevel)
	log.SetLogDateTime(cfg.LogDate)
	log.SetInstanceID(uuid.NewString())

	if err := repository.Connect(cfg.StorePath); err != nil {
		log.Fatal(err)
	}
	db := repository.GetConnection()
	fatigueRepo := repository.NewFatigueRepository(db.DB)
	environmentRepo := repository.NewEnvironmentRepository(db.DB)

	var evaluator *alerting.Evaluator
	if cfg.RuleFilePath != "" {
		rules, err := alerting.LoadRules(cfg.RuleFilePath)
		if err != nil {
			log.Warnf("main: could not load alert rules from %s, alerting disabled: %v", cfg.RuleFilePath, err)
		} else {
			evaluator = alerting.NewEvaluator(rules)
		}
	}

	highPrio := make(chan []byte, 100)
	lowPrio := make(chan []byte, 500)
	alerts := make(chan string, 50)

	spiDev := &bus.SpidevDevice{BasePath: cfg.BusDevicePath}
	arbiter := bus.NewArbiter(spiDev)

	primaryLatch := ingest.NewLatch()
	scoutLatch := ingest.NewLatch()

	closePrimaryWatch, err := ingest.WatchInterrupt(primaryInterruptChip, primaryInterruptLine, primaryLatch)
	if err != nil {
		log.Fatal(err)
	}
	defer closePrimaryWatch()

	closeScoutWatch, err := ingest.WatchInterrupt(scoutInterruptChip, scoutInterruptLine, scoutLatch)
	if err != nil {
		log.Fatal(err)
	}
	defer closeScoutWatch()

	modemPort, err := modem.OpenSerial(cfg.ModemSerialPort, cfg.ModemBaudRate)
	if err != nil {
		log.Fatal(err)
	}

	// Every privileged device node (spidev, gpiochip, the modem's tty) is
	// open by this point; drop to an unprivileged user for the rest of
	// the process lifetime.
	if err := runtimeEnv.DropPrivileges(cfg.RunAsUser, cfg.RunAsGroup); err != nil {
		log.Fatal(err)
	}

	primaryIngestor := &ingest.PrimaryIngestor{
		Arbiter:    arbiter,
		Radio:      &radio.LoRaRadio{},
		Latch:      primaryLatch,
		ChipSelect: cfg.PrimaryRadioCS,
		ClockHz:    8_000_000,
		Out:        highPrio,
	}
	scoutIngestor := &ingest.ScoutIngestor{
		Arbiter:    arbiter,
		Radio:      &radio.NRF24Radio{PayloadSize: 5},
		Latch:      scoutLatch,
		ChipSelect: cfg.ScoutRadioCS,
		ClockHz:    10_000_000,
		Out:        lowPrio,
	}

	proc := &processor.Processor{
		HighPrio:    highPrio,
		LowPrio:     lowPrio,
		Alerts:      alerts,
		Fatigue:     fatigueRepo,
		Environment: environmentRepo,
		Evaluator:   evaluator,
	}

	eg := &egress.Egress{
		Modem:       modem.New(modemPort),
		Fatigue:     fatigueRepo,
		Alerts:      alerts,
		Recipient:   cfg.RecipientNumber,
		GatewayID:   cfg.GatewayID,
		APN:         cfg.APN,
		UpstreamURL: cfg.UpstreamURL,
	}

	arc := &archiver.Archiver{Fatigue: fatigueRepo, Dir: cfg.ArchiveDir}
	maxAge := time.Duration(cfg.ArchiveAgeDays) * 24 * time.Hour
	archiveAt := time.Date(0, 1, 1, 4, 0, 0, 0, time.Local)
	if err := taskManager.Start(arc, maxAge, archiveAt, eg, 15*time.Minute); err != nil {
		log.Fatal(err)
	}
	defer taskManager.Shutdown()

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			log.Errorf("main: metrics server stopped: %v", err)
		}
	}()

	sup := &supervisor.Supervisor{
		Alerts: alerts,
		Components: []supervisor.Component{
			{Name: "primary-ingest", Run: primaryIngestor.Run},
			{Name: "scout-ingest", Run: scoutIngestor.Run},
			{Name: "processor", Run: proc.Run},
			{Name: "egress-alerts", Run: eg.RunAlerts},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		runtimeEnv.SystemdNotifiy(false, "shutting down")
		cancel()
	}()

	runtimeEnv.SystemdNotifiy(true, "running")
	if err := sup.Run(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("main: supervisor exited: %v", err)
	}
	log.Print("gateway shut down")
}
