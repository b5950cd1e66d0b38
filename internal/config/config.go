// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the gateway's runtime configuration from the
// environment, with a flag-based override for the config file path
// and a couple of operational toggles.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/fieldwatch/sensor-gateway/pkg/log"
	"github.com/joho/godotenv"
)

// Config holds every setting the gateway's components need at start.
// It is populated once and never mutated afterwards.
type Config struct {
	GatewayID string

	StorePath string

	ArchiveDir     string
	ArchiveAgeDays int

	RuleFilePath string

	RecipientNumber string
	UpstreamURL     string
	APN             string

	BusDevicePath  string
	PrimaryRadioCS int
	ScoutRadioCS   int

	ModemSerialPort string
	ModemBaudRate   int

	RunAsUser  string
	RunAsGroup string

	LogLevel string
	LogDate  bool

	MetricsAddr string
}

// Default holds the built-in defaults, mirrored from the sample .env
// shipped alongside the gateway service unit.
var Default = Config{
	GatewayID: "gateway-01",

	StorePath: "/var/lib/sensor-gateway/gateway.db",

	ArchiveDir:     "/var/lib/sensor-gateway/archive",
	ArchiveAgeDays: 365,

	RuleFilePath: "/etc/sensor-gateway/rules.yaml",

	RecipientNumber: "",
	UpstreamURL:     "",
	APN:             "",

	BusDevicePath:  "/dev/spidev0",
	PrimaryRadioCS: 0,
	ScoutRadioCS:   1,

	ModemSerialPort: "/dev/ttyUSB0",
	ModemBaudRate:   9600,

	RunAsUser:  "",
	RunAsGroup: "",

	LogLevel: "info",
	LogDate:  false,

	MetricsAddr: ":9310",
}

// Load reads an optional .env file (via -envfile, godotenv syntax),
// then overlays environment variables onto Default, then applies the
// remaining command-line flags. Call once at process start.
func Load() (*Config, error) {
	envFile := flag.String("envfile", "./.env", "path to .env file to load before reading environment variables")
	logLevel := flag.String("loglevel", "", "override loglevel (debug|info|notice|warn|err|crit)")
	logDate := flag.Bool("logdate", false, "prepend date/time to log lines")
	flag.Parse()

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", *envFile, err)
		}
	}

	cfg := Default

	overlayString(&cfg.GatewayID, "GATEWAY_ID")
	overlayString(&cfg.StorePath, "GATEWAY_STORE_PATH")
	overlayString(&cfg.ArchiveDir, "GATEWAY_ARCHIVE_DIR")
	overlayInt(&cfg.ArchiveAgeDays, "GATEWAY_ARCHIVE_AGE_DAYS")
	overlayString(&cfg.RuleFilePath, "GATEWAY_RULE_FILE")
	overlayString(&cfg.RecipientNumber, "GATEWAY_ALERT_RECIPIENT")
	overlayString(&cfg.UpstreamURL, "GATEWAY_UPSTREAM_URL")
	overlayString(&cfg.APN, "GATEWAY_APN")
	overlayString(&cfg.BusDevicePath, "GATEWAY_BUS_DEVICE")
	overlayInt(&cfg.PrimaryRadioCS, "GATEWAY_PRIMARY_RADIO_CS")
	overlayInt(&cfg.ScoutRadioCS, "GATEWAY_SCOUT_RADIO_CS")
	overlayString(&cfg.ModemSerialPort, "GATEWAY_MODEM_PORT")
	overlayInt(&cfg.ModemBaudRate, "GATEWAY_MODEM_BAUD")
	overlayString(&cfg.MetricsAddr, "GATEWAY_METRICS_ADDR")
	overlayString(&cfg.RunAsUser, "GATEWAY_RUN_AS_USER")
	overlayString(&cfg.RunAsGroup, "GATEWAY_RUN_AS_GROUP")

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	} else if v := os.Getenv("GATEWAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.LogDate = *logDate

	if cfg.StorePath == "" {
		return nil, fmt.Errorf("config: GATEWAY_STORE_PATH must not be empty")
	}

	log.Infof("config: loaded gateway id %#v, store %#v", cfg.GatewayID, cfg.StorePath)
	return &cfg, nil
}

func overlayString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("config: %s=%#v is not an integer, keeping default %d", key, v, *dst)
		return
	}
	*dst = n
}
