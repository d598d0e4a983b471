package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// InitDB initializes the database connection pool from a Postgres
// connection string.
func InitDB(connStr string) error {
	var err error
	DB, err = sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't
// exist. Amounts are stored as NUMERIC(78, 0) so 256-bit base-unit values
// round-trip without loss.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS arbitrage_receipts (
			receipt_id SERIAL PRIMARY KEY,
			cycle_id VARCHAR(64) NOT NULL,
			receipt_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			executed BOOLEAN NOT NULL,
			a_to_b BOOLEAN NOT NULL,
			amount_in NUMERIC(78, 0) NOT NULL,
			amount_out NUMERIC(78, 0) NOT NULL,
			refunded NUMERIC(78, 0) NOT NULL,
			reason TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_arbitrage_receipts_timestamp ON arbitrage_receipts(receipt_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_arbitrage_receipts_cycle ON arbitrage_receipts(cycle_id);

		CREATE TABLE IF NOT EXISTS rebalance_receipts (
			receipt_id SERIAL PRIMARY KEY,
			cycle_id VARCHAR(64) NOT NULL,
			receipt_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			executed BOOLEAN NOT NULL,
			target_lp NUMERIC(78, 0) NOT NULL,
			target_redeem NUMERIC(78, 0) NOT NULL,
			target_strategy NUMERIC(78, 0) NOT NULL,
			strategy_moved NUMERIC(78, 0) NOT NULL,
			lp_moved NUMERIC(78, 0) NOT NULL,
			reason TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_rebalance_receipts_timestamp ON rebalance_receipts(receipt_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_rebalance_receipts_cycle ON rebalance_receipts(cycle_id);

		CREATE TABLE IF NOT EXISTS strategy_rewards (
			reward_id SERIAL PRIMARY KEY,
			reward_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deposited NUMERIC(78, 0) NOT NULL,
			rewards NUMERIC(78, 0) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_strategy_rewards_timestamp ON strategy_rewards(reward_timestamp DESC);

		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);
		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
