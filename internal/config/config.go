package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
)

type Strategy struct {
	PortfolioValue  float64 `yaml:"portfolio_value"`
	RiskPerTradePct float64 `yaml:"risk_per_trade_pct"`
	MaxPositions    int     `yaml:"max_positions"`

	MinHoldingMinutes int  `yaml:"min_holding_minutes"`
	MaxHoldingMinutes int  `yaml:"max_holding_minutes"`
	TimeBasedExit     bool `yaml:"time_based_exit"`

	SmallGapPct    float64 `yaml:"small_gap_threshold"`
	ModerateGapPct float64 `yaml:"moderate_gap_threshold"`

	BreadthBullishRatio float64 `yaml:"breadth_bullish_ratio"` // advances/declines
	BreadthBearishRatio float64 `yaml:"breadth_bearish_ratio"` // declines/advances

	Setup1MinGapPct           float64 `yaml:"setup1_min_gap_pct"`
	Setup1RequireVWAPAbove    bool    `yaml:"setup1_require_vwap_above"`
	Setup1MaxRejectionWickPct float64 `yaml:"setup1_max_rejection_wick_pct"`

	Setup2MinGapPct            float64 `yaml:"setup2_min_gap_pct"`
	Setup2RequireVWAPRejection bool    `yaml:"setup2_require_vwap_rejection"`
	Setup2MinUpperWickPct      float64 `yaml:"setup2_min_upper_wick_pct"`
	Setup2RequireVolumeSpike   bool    `yaml:"setup2_require_volume_spike"`

	Setup3MinGapPct          float64 `yaml:"setup3_min_gap_pct"`
	Setup3RequireVWAPReclaim bool    `yaml:"setup3_require_vwap_reclaim"`

	Setup4MaxGapPct             float64 `yaml:"setup4_max_gap_pct"`
	Setup4RequireVolumeBreakout bool    `yaml:"setup4_require_volume_breakout"`
	Setup4ScalpTargetPct        float64 `yaml:"setup4_scalp_target_pct"`

	RiskRewardRatio       float64 `yaml:"risk_reward_ratio"`
	MaxProfitTargetPct    float64 `yaml:"max_profit_target_pct"`
	BreakEvenAfterMinutes int     `yaml:"break_even_after_minutes"`
	MinVolumeRatio        float64 `yaml:"min_volume_ratio"`

	MaxTradesPerDay    int     `yaml:"max_trades_per_day"`
	MaxLossPerDayPct   float64 `yaml:"max_loss_per_day_pct"`
	StopAfterFirstLoss bool    `yaml:"stop_after_first_loss"`

	MinConfidenceSetup1 float64 `yaml:"min_confidence_setup1"`
	MinConfidenceSetup2 float64 `yaml:"min_confidence_setup2"`
	MinConfidenceSetup3 float64 `yaml:"min_confidence_setup3"`
	MinConfidenceSetup4 float64 `yaml:"min_confidence_setup4"`
}

// MaxDailyLoss is the rupee loss that halts trading for the day.
func (s Strategy) MaxDailyLoss() float64 {
	return s.PortfolioValue * s.MaxLossPerDayPct / 100
}

// Session times are "HH:MM" in the configured timezone.
type Session struct {
	PremarketStart     string `yaml:"premarket_start"`
	MarketOpen         string `yaml:"market_open"` // execution window start
	FirstCandleEnd     string `yaml:"first_candle_end"`
	ExecutionEnd       string `yaml:"execution_end"`
	SessionEnd         string `yaml:"session_end"`
	ResumeTrading      string `yaml:"resume_trading"`
	PollIntervalMs     int    `yaml:"poll_interval_ms"`
	BreadthRefreshSecs int    `yaml:"breadth_refresh_seconds"`
	SessionMinutes     int    `yaml:"session_minutes"` // full-day minutes, for average minute volume
}

type Breadth struct {
	Source             string   `yaml:"source"` // sim | basket | static
	CacheSeconds       int      `yaml:"cache_seconds"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	ChangeThresholdPct float64  `yaml:"change_threshold_pct"` // basket: |change%| above this counts
	Basket             []string `yaml:"basket"`
	SimAdvances        int      `yaml:"sim_advances"`
	SimDeclines        int      `yaml:"sim_declines"`
	SimUnchanged       int      `yaml:"sim_unchanged"`
}

type MarketData struct {
	Adapter            string `yaml:"adapter"` // sim | mock
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	TimeoutMs          int    `yaml:"timeout_ms"`
	Seed               int64  `yaml:"seed"`
}

// Costs model the per-trade charges deducted from gross P&L.
type Costs struct {
	BrokeragePerOrder float64 `yaml:"brokerage_per_order"`
	STTPct            float64 `yaml:"stt_pct"`
	TxnChargePct      float64 `yaml:"txn_charge_pct"`
	GSTPct            float64 `yaml:"gst_pct"`
}

type Paper struct {
	OutboxPath  string `yaml:"outbox_path"`
	SlippageBps int    `yaml:"slippage_bps"`
}

type Journal struct {
	Driver string `yaml:"driver"` // none | jsonl | postgres
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type Status struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Root struct {
	TradingMode string              `yaml:"trading_mode"` // paper | live
	Profile     string              `yaml:"profile"`
	Timezone    string              `yaml:"timezone"`
	Symbols     []market.Instrument `yaml:"symbols"`
	Strategy    Strategy            `yaml:"strategy"`
	Session     Session             `yaml:"session"`
	Breadth     Breadth             `yaml:"breadth"`
	MarketData  MarketData          `yaml:"market_data"`
	Costs       Costs               `yaml:"costs"`
	Paper       Paper               `yaml:"paper"`
	Journal     Journal             `yaml:"journal"`
	Status      Status              `yaml:"status"`
	Log         Log                 `yaml:"log"`
}

// Load reads a YAML file on top of the profile it names.
func Load(path string) (Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Root{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the named profile and fills defaults.
func Parse(b []byte) (Root, error) {
	var head struct {
		Profile string `yaml:"profile"`
	}
	if err := yaml.Unmarshal(b, &head); err != nil {
		return Root{}, fmt.Errorf("failed to parse config: %w", err)
	}
	c, err := Profile(head.Profile)
	if err != nil {
		return Root{}, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Root{}, fmt.Errorf("failed to parse config: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Root) applyDefaults() {
	c.TradingMode = strings.ToLower(c.TradingMode)
	if c.TradingMode == "" {
		c.TradingMode = "paper"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Kolkata"
	}
	if len(c.Symbols) == 0 {
		c.Symbols = market.DefaultInstruments()
	}
	for i := range c.Symbols {
		c.Symbols[i].Symbol = market.NormalizeSymbol(c.Symbols[i].Symbol)
		if c.Symbols[i].TickSize == 0 {
			c.Symbols[i].TickSize = market.DefaultTickSize
		}
		if c.Symbols[i].Exchange == "" {
			c.Symbols[i].Exchange = "NSE"
		}
	}

	if c.Session.PremarketStart == "" {
		c.Session.PremarketStart = "09:00"
	}
	if c.Session.MarketOpen == "" {
		c.Session.MarketOpen = "09:15"
	}
	if c.Session.FirstCandleEnd == "" {
		c.Session.FirstCandleEnd = "09:16"
	}
	if c.Session.ExecutionEnd == "" {
		c.Session.ExecutionEnd = "09:20"
	}
	if c.Session.SessionEnd == "" {
		c.Session.SessionEnd = "09:25"
	}
	if c.Session.ResumeTrading == "" {
		c.Session.ResumeTrading = "09:45"
	}
	if c.Session.PollIntervalMs == 0 {
		c.Session.PollIntervalMs = 1000
	}
	if c.Session.BreadthRefreshSecs == 0 {
		c.Session.BreadthRefreshSecs = 60
	}
	if c.Session.SessionMinutes == 0 {
		c.Session.SessionMinutes = 375
	}

	if c.Breadth.Source == "" {
		c.Breadth.Source = "sim"
	}
	if c.Breadth.CacheSeconds == 0 {
		c.Breadth.CacheSeconds = 60
	}
	if c.Breadth.RateLimitPerMinute == 0 {
		c.Breadth.RateLimitPerMinute = 30
	}
	if c.Breadth.ChangeThresholdPct == 0 {
		c.Breadth.ChangeThresholdPct = 0.1
	}
	if len(c.Breadth.Basket) == 0 {
		c.Breadth.Basket = market.QuickBreadthBasket()
	}
	if c.Breadth.SimAdvances == 0 && c.Breadth.SimDeclines == 0 {
		c.Breadth.SimAdvances = 120
		c.Breadth.SimDeclines = 80
	}

	if c.MarketData.Adapter == "" {
		c.MarketData.Adapter = "sim"
	}
	if c.MarketData.RateLimitPerMinute == 0 {
		c.MarketData.RateLimitPerMinute = 600
	}
	if c.MarketData.TimeoutMs == 0 {
		c.MarketData.TimeoutMs = 2000
	}

	if c.Costs == (Costs{}) {
		c.Costs = DefaultCosts()
	}

	if c.Paper.OutboxPath == "" {
		c.Paper.OutboxPath = "data/outbox.jsonl"
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "jsonl"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = c.Paper.OutboxPath
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// DefaultCosts: flat ₹20 per order, STT 0.025% and exchange charges 0.00325%
// of exit turnover, GST 18% on brokerage plus exchange charges.
func DefaultCosts() Costs {
	return Costs{BrokeragePerOrder: 20, STTPct: 0.025, TxnChargePct: 0.00325, GSTPct: 18}
}

// Location resolves the configured timezone.
func (c Root) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Asia/Kolkata" {
		return market.IST(), nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// MarketSession parses the session clock times.
func (c Root) MarketSession() (market.Session, error) {
	loc, err := c.Location()
	if err != nil {
		return market.Session{}, err
	}
	s := market.Session{Location: loc}
	fields := []struct {
		raw string
		dst *market.ClockTime
	}{
		{c.Session.PremarketStart, &s.PremarketStart},
		{c.Session.MarketOpen, &s.MarketOpen},
		{c.Session.FirstCandleEnd, &s.FirstCandleEnd},
		{c.Session.ExecutionEnd, &s.ExecutionEnd},
		{c.Session.SessionEnd, &s.SessionEnd},
		{c.Session.ResumeTrading, &s.ResumeTrading},
	}
	for _, f := range fields {
		ct, err := market.ParseClock(f.raw)
		if err != nil {
			return market.Session{}, err
		}
		*f.dst = ct
	}
	return s, nil
}

// SymbolNames lists the configured instrument symbols.
func (c Root) SymbolNames() []string {
	out := make([]string, 0, len(c.Symbols))
	for _, in := range c.Symbols {
		out = append(out, in.Symbol)
	}
	return out
}

// Instrument looks up a configured symbol.
func (c Root) Instrument(symbol string) (market.Instrument, bool) {
	symbol = market.NormalizeSymbol(symbol)
	for _, in := range c.Symbols {
		if in.Symbol == symbol {
			return in, true
		}
	}
	return market.Instrument{}, false
}

func (c Root) PollInterval() time.Duration {
	return time.Duration(c.Session.PollIntervalMs) * time.Millisecond
}

func (c Root) IsLive() bool { return c.TradingMode == "live" }
