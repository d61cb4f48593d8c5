// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/OpenPSG/edfviewer/internal/config"
	"github.com/OpenPSG/edfviewer/internal/extract"
	"github.com/OpenPSG/edfviewer/internal/upload"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"go.uber.org/zap"
)

// Server is the HTTP front end of the service.
type Server struct {
	router    *mux.Router
	config    *config.Config
	srv       *http.Server
	logger    *zap.Logger
	uploads   *upload.Service
	extractor *extract.Extractor
	decoder   *schema.Decoder
	version   string
}

// New creates a server configured by cfg.
func New(cfg *config.Config, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
		uploads: upload.New(upload.Limits{
			MaxFiles:         cfg.Upload.MaxFiles,
			MaxFileSize:      cfg.Upload.MaxFileSize,
			AllowedExtension: cfg.Upload.AllowedExtension,
			ParallelFiles:    cfg.Upload.ParallelFiles,
		}, logger.Named("upload")),
		extractor: extract.New(extract.Config{
			MaxPoints:            cfg.Pipeline.MaxPoints,
			DisplayWindowMinutes: cfg.Pipeline.DisplayWindowMinutes,
			Workers:              cfg.Pipeline.Workers,
		}, logger.Named("extract")),
		decoder: decoder,
		version: version,
	}

	s.setupRoutes()

	s.srv = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Handler returns the router wrapped in the CORS, recovery and access
// logging middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
	h = handlers.CustomLoggingHandler(io.Discard, h, s.logRequest)
	return h
}

// Start serves requests until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("addr", s.srv.Addr), zap.String("version", s.version))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return s.waitForShutdown(errCh)
}

func (s *Server) waitForShutdown(errCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("error starting server: %w", err)
	case <-quit:
	}

	s.logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.logger.Info("Server shut down successfully")
	return nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	api.HandleFunc("/upload", s.handleUpload()).Methods(http.MethodPost)
}

func (s *Server) logRequest(_ io.Writer, params handlers.LogFormatterParams) {
	s.logger.Info("Handled request",
		zap.String("method", params.Request.Method),
		zap.String("path", params.URL.Path),
		zap.String("remote", params.Request.RemoteAddr),
		zap.Int("status", params.StatusCode),
		zap.Int("size", params.Size),
		zap.Duration("duration", time.Since(params.TimeStamp)))
}

// recoveryLogger reports recovered panics through zap.
type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic", zap.String("panic", fmt.Sprint(v...)), zap.Stack("stack"))
}
