package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays recognized environment variables on c. Every malformed
// value is reported; valid ones are still applied.
func ApplyEnv(c *Root, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []error

	floatVar := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	intVar := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolVar := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	stringVar := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	floatVar("MMFS_PORTFOLIO_VALUE", &c.Strategy.PortfolioValue)
	floatVar("MMFS_RISK_PER_TRADE", &c.Strategy.RiskPerTradePct)
	intVar("MMFS_MAX_POSITIONS", &c.Strategy.MaxPositions)
	intVar("MMFS_MAX_TRADES_PER_DAY", &c.Strategy.MaxTradesPerDay)
	floatVar("MMFS_RISK_REWARD_RATIO", &c.Strategy.RiskRewardRatio)
	boolVar("MMFS_STOP_AFTER_FIRST_LOSS", &c.Strategy.StopAfterFirstLoss)
	floatVar("MAX_DAILY_LOSS_PCT", &c.Strategy.MaxLossPerDayPct)
	stringVar("DATABASE_URL", &c.Journal.DSN)
	stringVar("LOG_LEVEL", &c.Log.Level)

	var mode string
	stringVar("TRADING_MODE", &mode)
	if mode != "" {
		switch m := strings.ToLower(mode); m {
		case "paper", "live":
			c.TradingMode = m
		default:
			errs = append(errs, fmt.Errorf("TRADING_MODE: unknown mode %q", mode))
		}
	}
	c.Log.Level = strings.ToLower(c.Log.Level)

	return errors.Join(errs...)
}
