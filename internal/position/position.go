package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/setup"
)

// State of a position's lifecycle. Every state but OPEN is terminal.
type State string

const (
	StateOpen               State = "OPEN"
	StateExitedTarget       State = "EXITED_TARGET"
	StateExitedStop         State = "EXITED_STOP"
	StateExitedTime         State = "EXITED_TIME"
	StateExitedBreakeven    State = "EXITED_BREAKEVEN"
	StateExitedStrategyStop State = "EXITED_STRATEGY_STOP"
)

// ExitState maps an exit reason onto its terminal state.
func ExitState(r ExitReason) State {
	switch r {
	case ExitTarget:
		return StateExitedTarget
	case ExitStopLoss:
		return StateExitedStop
	case ExitTime:
		return StateExitedTime
	case ExitBreakeven:
		return StateExitedBreakeven
	case ExitStrategyStop:
		return StateExitedStrategyStop
	default:
		panic(fmt.Sprintf("position: unknown exit reason %q", string(r)))
	}
}

var (
	ErrAlreadyClosed   = errors.New("position already closed")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Rules are the exit parameters applied on every tick.
type Rules struct {
	MaxHoldingMinutes     int
	BreakEvenAfterMinutes int
	TimeBasedExit         bool
}

func RulesFrom(s config.Strategy) Rules {
	return Rules{
		MaxHoldingMinutes:     s.MaxHoldingMinutes,
		BreakEvenAfterMinutes: s.BreakEvenAfterMinutes,
		TimeBasedExit:         s.TimeBasedExit,
	}
}

// Position is one open trade. Quantity and entry are fixed at open; the stop
// only ever moves to entry.
type Position struct {
	ID          string           `json:"id"`
	Symbol      string           `json:"symbol"`
	Setup       setup.Type       `json:"setup"`
	Direction   market.Direction `json:"direction"`
	EntryPrice  float64          `json:"entry_price"`
	Quantity    int              `json:"quantity"`
	StopLoss    float64          `json:"stop_loss"`
	InitialStop float64          `json:"initial_stop"`
	TargetPrice float64          `json:"target_price"`
	EntryTime   time.Time        `json:"entry_time"`

	CurrentPrice          float64 `json:"current_price"`
	HighestPrice          float64 `json:"highest_price"`
	LowestPrice           float64 `json:"lowest_price"`
	UnrealizedPnl         float64 `json:"unrealized_pnl"`
	MaxFavorableExcursion float64 `json:"mfe"`
	MaxAdverseExcursion   float64 `json:"mae"`
	Ticks                 int     `json:"ticks"`

	MovedToBreakeven bool      `json:"moved_to_breakeven"`
	BreakevenTime    time.Time `json:"breakeven_time,omitzero"`
	State            State     `json:"state"`

	EntryOrderID  string `json:"entry_order_id,omitempty"`
	StopOrderID   string `json:"stop_order_id,omitempty"`
	TargetOrderID string `json:"target_order_id,omitempty"`

	signal setup.Signal
}

// Open creates a position from a signal at the signal's entry price.
func Open(sig setup.Signal, qty int, at time.Time) (*Position, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("failed to open %s: %w", sig.Symbol, ErrInvalidQuantity)
	}
	return &Position{
		ID:           uuid.NewString(),
		Symbol:       sig.Symbol,
		Setup:        sig.Setup,
		Direction:    sig.Direction,
		EntryPrice:   sig.EntryPrice,
		Quantity:     qty,
		StopLoss:     sig.StopLoss,
		InitialStop:  sig.StopLoss,
		TargetPrice:  sig.TargetPrice,
		EntryTime:    at,
		CurrentPrice: sig.EntryPrice,
		HighestPrice: sig.EntryPrice,
		LowestPrice:  sig.EntryPrice,
		State:        StateOpen,
		signal:       sig,
	}, nil
}

func (p *Position) IsOpen() bool { return p.State == StateOpen }

// Signal is the signal the position was opened from.
func (p *Position) Signal() setup.Signal { return p.signal }

// UpdatePrice folds a tick into extremes, unrealized P&L and excursions.
func (p *Position) UpdatePrice(price float64) {
	if price <= 0 || !p.IsOpen() {
		return
	}
	p.Ticks++
	p.CurrentPrice = price
	p.HighestPrice = max(p.HighestPrice, price)
	p.LowestPrice = min(p.LowestPrice, price)
	p.UnrealizedPnl = (price - p.EntryPrice) * p.Direction.Sign() * float64(p.Quantity)

	up := max(0, p.HighestPrice-p.EntryPrice)
	down := max(0, p.EntryPrice-p.LowestPrice)
	if p.Direction == market.Short {
		up, down = down, up
	}
	p.MaxFavorableExcursion = up
	p.MaxAdverseExcursion = down
}

// HoldingMinutes is the time since entry in fractional minutes.
func (p *Position) HoldingMinutes(now time.Time) float64 {
	return now.Sub(p.EntryTime).Minutes()
}

// InProfit reports whether the last price is beyond entry in the trade's favour.
func (p *Position) InProfit() bool {
	return (p.CurrentPrice-p.EntryPrice)*p.Direction.Sign() > 0
}

func (p *Position) stopTouched() bool {
	if p.Direction == market.Short {
		return p.CurrentPrice >= p.StopLoss
	}
	return p.CurrentPrice <= p.StopLoss
}

func (p *Position) targetTouched() bool {
	if p.Direction == market.Short {
		return p.CurrentPrice <= p.TargetPrice
	}
	return p.CurrentPrice >= p.TargetPrice
}

// CheckExit applies the exit triggers in priority order: holding time, stop,
// then target. A stop touched after breakeven promotion exits as BREAKEVEN.
func (p *Position) CheckExit(now time.Time, r Rules) (ExitReason, bool) {
	if !p.IsOpen() {
		return "", false
	}
	if r.TimeBasedExit && r.MaxHoldingMinutes > 0 && p.HoldingMinutes(now) >= float64(r.MaxHoldingMinutes) {
		return ExitTime, true
	}
	if p.stopTouched() {
		if p.MovedToBreakeven {
			return ExitBreakeven, true
		}
		return ExitStopLoss, true
	}
	if p.targetTouched() {
		return ExitTarget, true
	}
	return "", false
}

// PromoteToBreakeven moves the stop to entry once the position has been held
// for afterMinutes and is in profit. It reports whether the stop moved on
// this call; later calls are no-ops.
func (p *Position) PromoteToBreakeven(now time.Time, afterMinutes int) bool {
	if p.MovedToBreakeven || !p.IsOpen() || !p.InProfit() {
		return false
	}
	if p.HoldingMinutes(now) < float64(afterMinutes) {
		return false
	}
	p.StopLoss = p.EntryPrice
	p.MovedToBreakeven = true
	p.BreakevenTime = now
	return true
}

// Tick is one monitoring step: fold the price, check exits, otherwise try
// breakeven promotion.
func (p *Position) Tick(price float64, now time.Time, r Rules) (reason ExitReason, exit, promoted bool) {
	p.UpdatePrice(price)
	if reason, ok := p.CheckExit(now, r); ok {
		return reason, true, false
	}
	return "", false, p.PromoteToBreakeven(now, r.BreakEvenAfterMinutes)
}

// ExitPrice is the price used to close for reason: the last tick, or entry
// when no tick has been seen.
func (p *Position) ExitPrice() float64 {
	if p.Ticks == 0 || p.CurrentPrice <= 0 {
		return p.EntryPrice
	}
	return p.CurrentPrice
}

// Close terminates the position and returns its trade record. It fails if
// the position is already closed.
func (p *Position) Close(price float64, at time.Time, reason ExitReason, costs CostModel) (TradeResult, error) {
	if !p.IsOpen() {
		return TradeResult{}, fmt.Errorf("failed to close %s: %w", p.Symbol, ErrAlreadyClosed)
	}
	p.State = ExitState(reason)

	charges := costs.Compute(price, p.Quantity)
	gross, net, ret := pnl(p.Direction, p.EntryPrice, price, p.Quantity, charges)
	return TradeResult{
		PositionID:            p.ID,
		Symbol:                p.Symbol,
		Setup:                 p.Setup,
		Direction:             p.Direction,
		EntryPrice:            p.EntryPrice,
		ExitPrice:             price,
		EntryTime:             p.EntryTime,
		ExitTime:              at,
		Quantity:              p.Quantity,
		ExitReason:            reason,
		GrossPnl:              gross,
		Charges:               charges,
		NetPnl:                net,
		ReturnPct:             ret,
		MaxFavorableExcursion: p.MaxFavorableExcursion,
		MaxAdverseExcursion:   p.MaxAdverseExcursion,
		HoldingMinutes:        p.HoldingMinutes(at),
		MovedToBreakeven:      p.MovedToBreakeven,
		Gap:                   p.signal.Gap,
		Breadth:               p.signal.Breadth,
		ADRatio:               p.signal.ADRatio,
		Confidence:            p.signal.Confidence,
		SignalMinute:          p.signal.SignalMinute,
	}, nil
}
