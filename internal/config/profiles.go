package config

import (
	"fmt"
	"strings"
)

// DefaultStrategy returns the standard opening-scalp parameters.
func DefaultStrategy() Strategy {
	return Strategy{
		PortfolioValue:  100000,
		RiskPerTradePct: 0.5,
		MaxPositions:    1,

		MinHoldingMinutes: 1,
		MaxHoldingMinutes: 5,
		TimeBasedExit:     true,

		SmallGapPct:    0.30,
		ModerateGapPct: 0.80,

		BreadthBullishRatio: 1.5,
		BreadthBearishRatio: 1.5,

		Setup1MinGapPct:           0.30,
		Setup1RequireVWAPAbove:    true,
		Setup1MaxRejectionWickPct: 30,

		Setup2MinGapPct:            0.50,
		Setup2RequireVWAPRejection: true,
		Setup2MinUpperWickPct:      40,
		Setup2RequireVolumeSpike:   true,

		Setup3MinGapPct:          0.30,
		Setup3RequireVWAPReclaim: true,

		Setup4MaxGapPct:             0.30,
		Setup4RequireVolumeBreakout: true,
		Setup4ScalpTargetPct:        0.25,

		RiskRewardRatio:       1.5,
		MaxProfitTargetPct:    0.50,
		BreakEvenAfterMinutes: 2,
		MinVolumeRatio:        1.5,

		MaxTradesPerDay:    2,
		MaxLossPerDayPct:   1.0,
		StopAfterFirstLoss: true,

		MinConfidenceSetup1: 0.70,
		MinConfidenceSetup2: 0.65,
		MinConfidenceSetup3: 0.70,
		MinConfidenceSetup4: 0.60,
	}
}

// Default is the default profile with every section filled.
func Default() Root {
	c := Root{Profile: "default", Strategy: DefaultStrategy()}
	c.applyDefaults()
	return c
}

// Aggressive doubles the portfolio, takes more risk and keeps trading after a loss.
func Aggressive() Root {
	c := Default()
	c.Profile = "aggressive"
	c.Strategy.PortfolioValue = 200000
	c.Strategy.RiskPerTradePct = 0.75
	c.Strategy.MaxPositions = 2
	c.Strategy.MaxTradesPerDay = 3
	c.Strategy.StopAfterFirstLoss = false
	c.Strategy.RiskRewardRatio = 2.0
	c.Strategy.MaxProfitTargetPct = 0.75
	return c
}

// Conservative allows one small trade a day and demands higher confidence.
func Conservative() Root {
	c := Default()
	c.Profile = "conservative"
	c.Strategy.PortfolioValue = 50000
	c.Strategy.RiskPerTradePct = 0.25
	c.Strategy.MaxPositions = 1
	c.Strategy.MaxTradesPerDay = 1
	c.Strategy.StopAfterFirstLoss = true
	c.Strategy.RiskRewardRatio = 2.0
	c.Strategy.MinConfidenceSetup1 = 0.75
	c.Strategy.MinConfidenceSetup2 = 0.70
	c.Strategy.MinConfidenceSetup3 = 0.75
	c.Strategy.MinConfidenceSetup4 = 0.70
	return c
}

var profiles = map[string]func() Root{
	"default":      Default,
	"aggressive":   Aggressive,
	"conservative": Conservative,
}

// ProfileNames lists the built-in profiles.
func ProfileNames() []string {
	return []string{"conservative", "default", "aggressive"}
}

// Profile returns a named profile; "" means default.
func Profile(name string) (Root, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "default"
	}
	fn, ok := profiles[name]
	if !ok {
		return Root{}, fmt.Errorf("unknown profile %q (want one of %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return fn(), nil
}
