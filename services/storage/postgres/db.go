// Copyright (C) 2025 Bodezy (dev@bodezy.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package postgres provides the database connection and the read-only
// statement executor behind the answer pipeline.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DBConfig holds connection settings for the business database.
type DBConfig struct {
	// DSN is the Postgres connection string.
	// Env: DATABASE_URI
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// LoadDBConfig reads database configuration from environment variables.
//
// Description:
//
//	DATABASE_URI is required (validated by Open). Pool settings are
//	optional: DB_MAX_OPEN_CONNS (default 10), DB_MAX_IDLE_CONNS
//	(default 5), DB_CONN_MAX_IDLE_MINUTES (default 5),
//	DB_CONN_MAX_LIFETIME_MINUTES (default 30).
func LoadDBConfig() DBConfig {
	return DBConfig{
		DSN:             os.Getenv("DATABASE_URI"),
		MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxIdleTime: time.Duration(envInt("DB_CONN_MAX_IDLE_MINUTES", 5)) * time.Minute,
		ConnMaxLifetime: time.Duration(envInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
	}
}

// Open connects to Postgres via the pgx stdlib driver and verifies the
// connection with a bounded ping.
//
// Inputs:
//   - ctx: Context for the verification ping.
//   - cfg: Connection settings. DSN must be non-empty.
//
// Outputs:
//   - *sql.DB: The connection pool, ready for use.
//   - error: Non-nil when the DSN is missing or the ping fails.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DATABASE_URI is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	return db, nil
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
