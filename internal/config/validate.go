package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// ValidationResult separates hard errors, which stop the strategy from
// starting, from warnings, which are logged.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *ValidationResult) fail(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	v.Valid = false
}

func (v *ValidationResult) warn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// ValidateStrategy checks strategy parameters on their own.
func ValidateStrategy(s Strategy) ValidationResult {
	v := ValidationResult{Valid: true}

	if s.PortfolioValue <= 0 {
		v.fail("Portfolio value must be positive")
	} else if s.PortfolioValue < 25000 {
		v.warn("Portfolio value quite low for scalping")
	}

	if s.RiskPerTradePct < 0.1 || s.RiskPerTradePct > 2 {
		v.fail("Risk per trade should be between 0.1%% and 2%%")
	}
	if s.RiskPerTradePct > 1.0 {
		v.warn("High risk per trade for scalping strategy")
	}

	if s.MaxPositions <= 0 || s.MaxPositions > 3 {
		v.fail("Max positions should be between 1 and 3 for scalping")
	}

	if s.MaxHoldingMinutes <= 0 {
		v.fail("Max holding period must be positive")
	} else if s.MaxHoldingMinutes > 10 {
		v.warn("Max holding period too long for scalping strategy")
	}
	if s.MinHoldingMinutes > s.MaxHoldingMinutes {
		v.fail("Min holding period must not exceed max holding period")
	}
	if s.BreakEvenAfterMinutes >= s.MaxHoldingMinutes {
		v.warn("Breakeven shift after %d min never happens before the %d min time exit", s.BreakEvenAfterMinutes, s.MaxHoldingMinutes)
	}

	if s.SmallGapPct >= s.ModerateGapPct {
		v.fail("Small gap threshold must be less than moderate")
	}
	if s.BreadthBullishRatio <= 1 || s.BreadthBearishRatio <= 1 {
		v.fail("Breadth ratios must be greater than 1")
	}

	if s.RiskRewardRatio <= 0 {
		v.fail("Risk-reward ratio must be positive")
	} else if s.RiskRewardRatio < 1.0 {
		v.warn("Risk-reward ratio below 1:1 not recommended")
	}

	if s.MaxTradesPerDay <= 0 {
		v.fail("Max trades per day must be positive")
	} else if s.MaxTradesPerDay > 5 {
		v.warn("Too many trades per day for scalping strategy")
	}
	if s.MaxLossPerDayPct > 2.0 {
		v.warn("Daily loss limit high for scalping")
	}

	confidences := map[string]float64{
		"setup1": s.MinConfidenceSetup1,
		"setup2": s.MinConfidenceSetup2,
		"setup3": s.MinConfidenceSetup3,
		"setup4": s.MinConfidenceSetup4,
	}
	bad := lo.Keys(lo.PickBy(confidences, func(_ string, c float64) bool { return c < 0 || c > 1 }))
	if len(bad) > 0 {
		slices.Sort(bad)
		v.fail("Min confidence must be within [0, 1] (%s)", strings.Join(bad, ", "))
	}

	if s.Setup2MinGapPct < s.Setup4MaxGapPct {
		v.fail("Setup 2 min gap (%.2f%%) must not be below setup 4 max gap (%.2f%%)", s.Setup2MinGapPct, s.Setup4MaxGapPct)
	}
	if s.Setup4ScalpTargetPct <= 0 {
		v.fail("Setup 4 scalp target must be positive")
	}
	return v
}

// Validate checks the whole configuration.
func (c Root) Validate() ValidationResult {
	v := ValidateStrategy(c.Strategy)

	sess, err := c.MarketSession()
	if err != nil {
		v.fail("Session: %v", err)
	} else if err := sess.Validate(); err != nil {
		v.fail("Session: %v", err)
	} else if sess.WindowMinutes() != 5 {
		v.warn("Execution window should be exactly 5 minutes")
	}

	if len(c.Symbols) == 0 {
		v.fail("At least one symbol is required")
	}
	dupes := lo.FindDuplicates(c.SymbolNames())
	if len(dupes) > 0 {
		v.fail("Duplicate symbols: %s", strings.Join(dupes, ", "))
	}

	switch c.TradingMode {
	case "paper":
	case "live":
		v.warn("LIVE trading mode: orders go to the configured order port")
	default:
		v.fail("Unknown trading mode %q", c.TradingMode)
	}

	switch c.Journal.Driver {
	case "none", "jsonl":
	case "postgres":
		if c.Journal.DSN == "" {
			v.fail("Postgres journal requires a DSN (journal.dsn or DATABASE_URL)")
		}
	default:
		v.fail("Unknown journal driver %q", c.Journal.Driver)
	}

	switch c.Breadth.Source {
	case "sim", "basket", "static":
	default:
		v.fail("Unknown breadth source %q", c.Breadth.Source)
	}
	return v
}

// Summary renders the key parameters for operators.
func (c Root) Summary() string {
	s := c.Strategy
	var b strings.Builder
	fmt.Fprintf(&b, "Profile:          %s (%s)\n", c.Profile, strings.ToUpper(c.TradingMode))
	fmt.Fprintf(&b, "Portfolio:        ₹%.0f\n", s.PortfolioValue)
	fmt.Fprintf(&b, "Risk per trade:   %.2f%% (₹%.0f)\n", s.RiskPerTradePct, s.PortfolioValue*s.RiskPerTradePct/100)
	fmt.Fprintf(&b, "Execution window: %s-%s %s\n", c.Session.MarketOpen, c.Session.ExecutionEnd, c.Timezone)
	fmt.Fprintf(&b, "Holding:          %d-%d min, breakeven after %d min\n", s.MinHoldingMinutes, s.MaxHoldingMinutes, s.BreakEvenAfterMinutes)
	fmt.Fprintf(&b, "Daily limits:     %d trades, %.2f%% loss, stop after first loss: %t\n", s.MaxTradesPerDay, s.MaxLossPerDayPct, s.StopAfterFirstLoss)
	fmt.Fprintf(&b, "Risk/reward:      1:%.2f (max target %.2f%%)\n", s.RiskRewardRatio, s.MaxProfitTargetPct)
	fmt.Fprintf(&b, "Symbols:          %s\n", strings.Join(c.SymbolNames(), ", "))
	return b.String()
}
