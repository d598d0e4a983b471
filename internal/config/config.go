package config

import (
	"errors"
	"os"
	"strconv"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// Configuration is loaded from environment variables at startup by
// LoadConfig and read through these package variables.
var (
	// LogLevel is the minimum level emitted (debug, info, warn, error).
	LogLevel string
	// LogJSON switches the log output from console to raw JSON.
	LogJSON bool

	// ListenAddr is the bind address of the HTTP status server.
	ListenAddr string

	// DatabaseURL is the Postgres connection string for receipt and
	// reward persistence. Empty disables persistence.
	DatabaseURL string

	// CycleIntervalSeconds is the pause between orchestration cycles.
	CycleIntervalSeconds uint64

	// MintRate is the premium mint discount rate in percent, (0, 100].
	MintRate int64
	// AllocationLP is the share of backing targeted at the liquidity
	// position, in percent.
	AllocationLP int64
	// AllocationRedeem is the share of backing kept redeemable on the
	// controller, in percent.
	AllocationRedeem int64
	// SlippageBps is the rebalance drift tolerance in basis points.
	SlippageBps int64

	// ArbitrageThreshold is the minimum trade size worth executing, in
	// base units of the native asset.
	ArbitrageThreshold sdkmath.Int
	// GasRefund is the flat tip paid to the caller of a refund sweep,
	// in base units.
	GasRefund sdkmath.Int
	// DarbiFunds is the native float ring-fenced on the arbitrage
	// engine, in base units.
	DarbiFunds sdkmath.Int

	// InitialBacking is the native collateral seeded on the controller
	// at startup, in base units.
	InitialBacking sdkmath.Int
	// InitialSupply is the UP supply minted against that backing.
	InitialSupply sdkmath.Int
	// PoolNative and PoolUP seed the simulated pool's two legs.
	PoolNative sdkmath.Int
	PoolUP     sdkmath.Int
)

// LoadConfig reads every configuration variable from the environment.
// All variables are required except UPCORE_DATABASE_URL and
// UPCORE_LOG_JSON.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	LogLevel, err = getEnv("UPCORE_LOG_LEVEL")
	if err != nil {
		return err
	}

	LogJSON = os.Getenv("UPCORE_LOG_JSON") == "true"

	ListenAddr, err = getEnv("UPCORE_LISTEN_ADDR")
	if err != nil {
		return err
	}

	DatabaseURL = os.Getenv("UPCORE_DATABASE_URL")

	CycleIntervalSeconds, err = getEnvAsUint64("UPCORE_CYCLE_INTERVAL_SECONDS")
	if err != nil {
		return err
	}

	MintRate, err = getEnvAsInt64("UPCORE_MINT_RATE")
	if err != nil {
		return err
	}

	AllocationLP, err = getEnvAsInt64("UPCORE_ALLOCATION_LP")
	if err != nil {
		return err
	}

	AllocationRedeem, err = getEnvAsInt64("UPCORE_ALLOCATION_REDEEM")
	if err != nil {
		return err
	}

	SlippageBps, err = getEnvAsInt64("UPCORE_SLIPPAGE_BPS")
	if err != nil {
		return err
	}

	ArbitrageThreshold, err = getEnvAsIntAmount("UPCORE_ARBITRAGE_THRESHOLD")
	if err != nil {
		return err
	}

	GasRefund, err = getEnvAsIntAmount("UPCORE_GAS_REFUND")
	if err != nil {
		return err
	}

	DarbiFunds, err = getEnvAsIntAmount("UPCORE_DARBI_FUNDS")
	if err != nil {
		return err
	}

	InitialBacking, err = getEnvAsIntAmount("UPCORE_INITIAL_BACKING")
	if err != nil {
		return err
	}

	InitialSupply, err = getEnvAsIntAmount("UPCORE_INITIAL_SUPPLY")
	if err != nil {
		return err
	}

	PoolNative, err = getEnvAsIntAmount("UPCORE_POOL_NATIVE")
	if err != nil {
		return err
	}

	PoolUP, err = getEnvAsIntAmount("UPCORE_POOL_UP")
	if err != nil {
		return err
	}

	log.Debug().
		Str("ListenAddr", ListenAddr).
		Uint64("CycleIntervalSeconds", CycleIntervalSeconds).
		Int64("MintRate", MintRate).
		Int64("AllocationLP", AllocationLP).
		Int64("AllocationRedeem", AllocationRedeem).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt64 retrieves an environment variable as an int64.
func getEnvAsInt64(key string) (int64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsIntAmount retrieves an environment variable as an arbitrary
// precision integer amount in base units.
func getEnvAsIntAmount(key string) (sdkmath.Int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	value, ok := sdkmath.NewIntFromString(valueStr)
	if !ok {
		return sdkmath.ZeroInt(), errors.New("environment variable " + key + " must be a valid integer amount, got: " + valueStr)
	}
	return value, nil
}
