package strategy

import (
	"context"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/outbox"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
	"github.com/Rajchodisetti/mmfs-scalper/internal/setup"
)

// openPosition places the entry, then the protective stop and target on the
// opposite side. A failed entry leaves no position; failed protective orders
// are logged and the position is still managed by the loop.
func (s *Strategy) openPosition(ctx context.Context, sig setup.Signal, qty int, now time.Time) {
	side := sig.Direction.Side()
	entryID, err := s.orders.PlaceOrder(ctx, sig.Symbol, side, qty, outbox.Market, sig.EntryPrice)
	if err != nil {
		observ.Error("entry_order_failed", err, map[string]any{"symbol": sig.Symbol, "qty": qty})
		s.emit("order_failed", sig.Symbol, now, map[string]any{"stage": "entry", "error": err.Error()})
		return
	}
	pos, err := position.Open(sig, qty, now)
	if err != nil {
		observ.Error("position_open_failed", err, map[string]any{"symbol": sig.Symbol})
		return
	}
	pos.EntryOrderID = entryID

	exitSide := side.Opposite()
	if id, err := s.orders.PlaceStopLoss(ctx, sig.Symbol, exitSide, qty, sig.StopLoss); err != nil {
		observ.Error("stop_order_failed", err, map[string]any{"symbol": sig.Symbol})
	} else {
		pos.StopOrderID = id
	}
	if id, err := s.orders.PlaceTarget(ctx, sig.Symbol, exitSide, qty, sig.TargetPrice); err != nil {
		observ.Error("target_order_failed", err, map[string]any{"symbol": sig.Symbol})
	} else {
		pos.TargetOrderID = id
	}

	s.positions[sig.Symbol] = pos
	observ.IncCounter("positions_opened_total", map[string]string{"setup": string(sig.Setup)})
	observ.SetGauge("open_positions", float64(len(s.positions)), nil)
	kv := map[string]any{
		"symbol": sig.Symbol, "position_id": pos.ID, "setup": string(sig.Setup),
		"direction": string(sig.Direction), "qty": qty, "entry": sig.EntryPrice,
		"stop": sig.StopLoss, "target": sig.TargetPrice, "order_id": entryID,
	}
	observ.Log("position_opened", kv)
	s.emit("position_opened", sig.Symbol, now, kv)
}

// monitor ticks every open position with this iteration's quote. A position
// without a quote is still checked for the holding-time exit. Positions
// opened in this iteration are first ticked on the next one.
func (s *Strategy) monitor(ctx context.Context, now time.Time, quotes map[string]market.Quote) {
	symbols := lo.Keys(s.positions)
	slices.Sort(symbols)
	for _, sym := range symbols {
		pos := s.positions[sym]
		if pos.EntryTime.Equal(now) {
			continue
		}

		var (
			reason   position.ExitReason
			exit     bool
			promoted bool
		)
		if q, ok := quotes[sym]; ok {
			reason, exit, promoted = pos.Tick(q.LastPrice, now, s.rules)
		} else {
			reason, exit = pos.CheckExit(now, s.rules)
		}

		if promoted {
			s.onBreakeven(ctx, pos, now)
		}
		if exit {
			s.exitPosition(ctx, pos, pos.ExitPrice(), reason, now)
		}
	}
}

func (s *Strategy) onBreakeven(ctx context.Context, pos *position.Position, now time.Time) {
	if pos.StopOrderID != "" {
		if err := s.orders.ModifyStopLoss(ctx, pos.StopOrderID, pos.StopLoss); err != nil {
			observ.Error("stop_modify_failed", err, map[string]any{"symbol": pos.Symbol, "order_id": pos.StopOrderID})
		}
	}
	kv := map[string]any{"symbol": pos.Symbol, "position_id": pos.ID, "stop": pos.StopLoss, "price": pos.CurrentPrice}
	observ.Log("breakeven_moved", kv)
	s.emit("breakeven_moved", pos.Symbol, now, kv)
}

// exitPosition cancels the protective orders, closes with an opposite
// market order and folds the trade into metrics, daily state and journal.
func (s *Strategy) exitPosition(ctx context.Context, pos *position.Position, price float64, reason position.ExitReason, now time.Time) {
	for _, id := range []string{pos.StopOrderID, pos.TargetOrderID} {
		if id == "" {
			continue
		}
		if _, err := s.orders.CancelOrder(ctx, id); err != nil {
			observ.Warn("cancel_order_failed", map[string]any{"symbol": pos.Symbol, "order_id": id, "error": err.Error()})
		}
	}
	side := pos.Direction.Side().Opposite()
	if _, err := s.orders.PlaceOrder(ctx, pos.Symbol, side, pos.Quantity, outbox.Market, price); err != nil {
		observ.Error("exit_order_failed", err, map[string]any{"symbol": pos.Symbol, "reason": string(reason)})
	}

	tr, err := pos.Close(price, now, reason, s.costs)
	if err != nil {
		observ.Error("position_close_failed", err, map[string]any{"symbol": pos.Symbol})
		return
	}
	delete(s.positions, pos.Symbol)
	s.trades = append(s.trades, tr)
	s.metrics.Update(tr)
	s.state.UpdateAfterTrade(tr.NetPnl, s.limits, now)

	if err := s.journal.Record(ctx, tr); err != nil {
		observ.Error("journal_write_failed", err, map[string]any{"position_id": tr.PositionID})
	}

	observ.IncCounter("trades_total", map[string]string{"exit_reason": string(reason), "setup": string(tr.Setup)})
	observ.Observe("trade_net_pnl", tr.NetPnl, map[string]string{"setup": string(tr.Setup)})
	observ.SetGauge("open_positions", float64(len(s.positions)), nil)
	observ.SetGauge("daily_pnl", s.state.DailyPnl, nil)
	kv := map[string]any{
		"symbol": tr.Symbol, "position_id": tr.PositionID, "exit_reason": string(reason),
		"exit": tr.ExitPrice, "gross_pnl": tr.GrossPnl, "net_pnl": tr.NetPnl,
		"holding_minutes": tr.HoldingMinutes, "mfe": tr.MaxFavorableExcursion, "mae": tr.MaxAdverseExcursion,
	}
	observ.Log("position_closed", kv)
	s.emit("position_closed", tr.Symbol, now, kv)
}
