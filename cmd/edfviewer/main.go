// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"os"

	"github.com/OpenPSG/edfviewer/internal/config"
	"github.com/OpenPSG/edfviewer/internal/logger"
	"github.com/OpenPSG/edfviewer/internal/server"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Version is set at build time.
var Version = "0.0.0"

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	showVersion := pflag.BoolP("version", "v", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "edfviewer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting EDF viewer backend", zap.String("version", Version))

	if err := server.New(cfg, log, Version).Start(); err != nil {
		log.Error("Server error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}
