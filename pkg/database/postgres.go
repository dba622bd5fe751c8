package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sma-advisor-api/pkg/config"
)

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewPrivilegedPostgres opens a second pool under the elevated service role
// used by the action executor. It shares the host settings of the primary
// pool but authenticates with its own credentials, so requester-level access
// rights never leak into executed actions.
func NewPrivilegedPostgres(cfg config.DatabaseConfig, priv config.PrivilegedDatabaseConfig) (*sqlx.DB, error) {
	if priv.User == "" {
		return NewPostgres(cfg)
	}
	elevated := cfg
	elevated.User = priv.User
	elevated.Password = priv.Password
	elevated.MaxOpenConns = 2
	elevated.MaxIdleConns = 1
	return NewPostgres(elevated)
}
