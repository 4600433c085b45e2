package risk

import (
	"fmt"
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
)

// Block reasons returned by CanTakeTrade.
const (
	ReasonFirstLossHalt = "Stopped after first loss (till 9:45)"
	ReasonOutsideWindow = "Outside execution window"
)

// Limits are the daily risk limits checked before every entry.
type Limits struct {
	MaxTrades          int
	MaxLossPct         float64
	PortfolioValue     float64
	StopAfterFirstLoss bool
}

func LimitsFrom(s config.Strategy) Limits {
	return Limits{
		MaxTrades:          s.MaxTradesPerDay,
		MaxLossPct:         s.MaxLossPerDayPct,
		PortfolioValue:     s.PortfolioValue,
		StopAfterFirstLoss: s.StopAfterFirstLoss,
	}
}

// MaxLoss is the rupee loss that halts trading.
func (l Limits) MaxLoss() float64 { return l.PortfolioValue * l.MaxLossPct / 100 }

// MarketState is the single per-day state of the strategy. It is owned by
// the orchestrator's decision loop and is not safe for concurrent mutation.
type MarketState struct {
	Date    string             `json:"date"`
	Breadth market.BreadthState `json:"breadth"`

	InExecutionWindow    bool `json:"in_execution_window"`
	SymbolsAnalyzed      int  `json:"symbols_analyzed"`
	FirstCandleComplete  bool `json:"first_candle_complete"`
	FiveMinRangeComplete bool `json:"five_min_range_complete"`

	TradesToday           int       `json:"trades_today"`
	DailyPnl              float64   `json:"daily_pnl"`
	MaxTradesReached      bool      `json:"max_trades_reached"`
	DailyLossLimitReached bool      `json:"daily_loss_limit_reached"`
	StopTradingTill945    bool      `json:"stop_trading_till_945"`
	HaltedAt              time.Time `json:"halted_at,omitzero"`
}

func NewMarketState(day time.Time) *MarketState {
	return &MarketState{Date: day.Format("2006-01-02")}
}

// ResetDaily clears every counter for a new trading day.
func (s *MarketState) ResetDaily(day time.Time) {
	*s = MarketState{Date: day.Format("2006-01-02")}
	observ.Log("market_state_reset", map[string]any{"date": s.Date})
}

// SetBreadth stores the latest classified breadth.
func (s *MarketState) SetBreadth(b market.BreadthState) { s.Breadth = b }

// CanTakeTrade reports whether a new entry is allowed and, if not, why. The
// first-loss halt wins over every other condition.
func (s *MarketState) CanTakeTrade(l Limits) (bool, string) {
	if s.StopTradingTill945 {
		return false, ReasonFirstLossHalt
	}
	if !s.InExecutionWindow {
		return false, ReasonOutsideWindow
	}
	if s.MaxTradesReached || (l.MaxTrades > 0 && s.TradesToday >= l.MaxTrades) {
		return false, fmt.Sprintf("Max trades reached (%d)", l.MaxTrades)
	}
	if s.DailyLossLimitReached || (l.MaxLoss() > 0 && s.DailyPnl <= -l.MaxLoss()) {
		return false, fmt.Sprintf("Daily loss limit reached (%.1f%%)", l.MaxLossPct)
	}
	return true, ""
}

// UpdateAfterTrade folds a closed trade's net P&L into the daily counters
// and raises any halt it triggers. Only a loss on the day's first trade
// raises the first-loss halt.
func (s *MarketState) UpdateAfterTrade(netPnl float64, l Limits, at time.Time) {
	s.TradesToday++
	s.DailyPnl += netPnl

	if l.MaxTrades > 0 && s.TradesToday >= l.MaxTrades && !s.MaxTradesReached {
		s.MaxTradesReached = true
		s.halted("max_trades", at)
	}
	if l.MaxLoss() > 0 && s.DailyPnl <= -l.MaxLoss() && !s.DailyLossLimitReached {
		s.DailyLossLimitReached = true
		s.halted("daily_loss", at)
	}
	if netPnl < 0 && l.StopAfterFirstLoss && s.TradesToday == 1 {
		s.RecordFirstLoss(at)
	}
}

// RecordFirstLoss halts new entries until the resume time.
func (s *MarketState) RecordFirstLoss(at time.Time) {
	if s.StopTradingTill945 {
		return
	}
	s.StopTradingTill945 = true
	s.halted("first_loss", at)
}

func (s *MarketState) halted(reason string, at time.Time) {
	s.HaltedAt = at
	observ.IncCounter("trading_halts_total", map[string]string{"reason": reason})
	observ.Warn("trading_halted", map[string]any{
		"reason":       reason,
		"trades_today": s.TradesToday,
		"daily_pnl":    s.DailyPnl,
	})
}

// Resume lifts the first-loss halt once the session's resume time is
// reached. It reports whether the halt was lifted.
func (s *MarketState) Resume(now time.Time, sess market.Session) bool {
	if !s.StopTradingTill945 || !sess.ResumeReached(now) {
		return false
	}
	s.StopTradingTill945 = false
	observ.Log("trading_resumed", map[string]any{"at": now.Format(time.RFC3339)})
	return true
}
