// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/edfviewer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.Config{
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Upload: config.UploadConfig{
			MaxFiles:         3,
			MaxFileSize:      100 * 1024 * 1024,
			AllowedExtension: ".edf",
			ParallelFiles:    3,
		},
		Pipeline: config.PipelineConfig{
			MaxPoints:            100_000,
			DisplayWindowMinutes: 10,
			Workers:              4,
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "json",
		},
	}, *cfg)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("EDFVIEWER_SERVER_PORT", "9000")
	t.Setenv("EDFVIEWER_UPLOAD_MAX_FILE_SIZE", "1024")
	t.Setenv("EDFVIEWER_PIPELINE_MAX_POINTS", "5000")
	t.Setenv("EDFVIEWER_LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, int64(1024), cfg.Upload.MaxFileSize)
	assert.Equal(t, 5000, cfg.Pipeline.MaxPoints)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8181
  write_timeout: 5m
upload:
  max_files: 5
pipeline:
  workers: 2
log:
  format: console
`), 0o644))

	t.Setenv("EDFVIEWER_UPLOAD_MAX_FILES", "2")

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 2, cfg.Upload.MaxFiles, "environment wins over the file")
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ".edf", cfg.Upload.AllowedExtension)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"EDFVIEWER_SERVER_PORT":             "0",
		"EDFVIEWER_UPLOAD_MAX_FILES":        "0",
		"EDFVIEWER_UPLOAD_MAX_FILE_SIZE":    "-1",
		"EDFVIEWER_UPLOAD_ALLOWED_EXTENSION": "edf",
		"EDFVIEWER_UPLOAD_PARALLEL_FILES":   "0",
		"EDFVIEWER_PIPELINE_MAX_POINTS":     "0",
		"EDFVIEWER_PIPELINE_WORKERS":        "-2",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)

			_, err := config.Load()
			assert.ErrorContains(t, err, "config validation error")
		})
	}
}
