// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config loads the service configuration from defaults, an optional
// YAML file and EDFVIEWER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. EDFVIEWER_SERVER_PORT.
const EnvPrefix = "EDFVIEWER"

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type UploadConfig struct {
	MaxFiles         int    `mapstructure:"max_files"`
	MaxFileSize      int64  `mapstructure:"max_file_size"` // Bytes
	AllowedExtension string `mapstructure:"allowed_extension"`
	ParallelFiles    int    `mapstructure:"parallel_files"`
}

type PipelineConfig struct {
	MaxPoints            int     `mapstructure:"max_points"`
	DisplayWindowMinutes float64 `mapstructure:"display_window_minutes"`
	Workers              int     `mapstructure:"workers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.yaml from ./config or the working directory, if present,
// and applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load reading the config file at path. An empty path searches
// the default locations.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("upload.max_files", 3)
	v.SetDefault("upload.max_file_size", 100*1024*1024) // 100MB
	v.SetDefault("upload.allowed_extension", ".edf")
	v.SetDefault("upload.parallel_files", 3)

	v.SetDefault("pipeline.max_points", 100_000)
	v.SetDefault("pipeline.display_window_minutes", 10)
	v.SetDefault("pipeline.workers", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Upload.MaxFiles <= 0 {
		return fmt.Errorf("upload max_files must be positive")
	}
	if config.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload max_file_size must be positive")
	}
	if !strings.HasPrefix(config.Upload.AllowedExtension, ".") {
		return fmt.Errorf("upload allowed_extension must start with a dot: %q", config.Upload.AllowedExtension)
	}
	if config.Upload.ParallelFiles <= 0 {
		return fmt.Errorf("upload parallel_files must be positive")
	}
	if config.Pipeline.MaxPoints <= 0 {
		return fmt.Errorf("pipeline max_points must be positive")
	}
	if config.Pipeline.DisplayWindowMinutes <= 0 {
		return fmt.Errorf("pipeline display_window_minutes must be positive")
	}
	if config.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline workers must be positive")
	}
	return nil
}
