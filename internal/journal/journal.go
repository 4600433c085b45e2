// Package journal persists closed trades.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Rajchodisetti/mmfs-scalper/internal/config"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/outbox"
	"github.com/Rajchodisetti/mmfs-scalper/internal/position"
)

// Journal records closed trades. Record must be safe to call more than once
// for the same trade.
type Journal interface {
	Record(ctx context.Context, t position.TradeResult) error
	Close() error
}

// Nop discards trades.
type Nop struct{}

func (Nop) Record(context.Context, position.TradeResult) error { return nil }
func (Nop) Close() error                                         { return nil }

// JSONL appends trades to the outbox as "trade" entries.
type JSONL struct {
	ob *outbox.Outbox
}

func NewJSONL(ob *outbox.Outbox) *JSONL { return &JSONL{ob: ob} }

func (j *JSONL) Record(ctx context.Context, t position.TradeResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.ob.Write(outbox.KindTrade, t); err != nil {
		return fmt.Errorf("failed to journal trade %s: %w", t.PositionID, err)
	}
	return nil
}

func (j *JSONL) Close() error { return nil }

// Trades reads back every journaled trade.
func (j *JSONL) Trades() ([]position.TradeResult, error) {
	return outbox.Decode[position.TradeResult](j.ob, outbox.KindTrade)
}

// Multi writes to every journal and joins their errors.
type Multi []Journal

func (m Multi) Record(ctx context.Context, t position.TradeResult) error {
	var errs []error
	for _, j := range m {
		if err := j.Record(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		if err := j.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the journal named by cfg.Driver. The jsonl driver writes to ob
// when cfg.Path matches it, otherwise to its own file.
func Open(ctx context.Context, cfg config.Journal, ob *outbox.Outbox) (Journal, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return Nop{}, nil
	case "jsonl":
		if ob == nil || (cfg.Path != "" && cfg.Path != ob.Path()) {
			if cfg.Path == "" {
				return nil, fmt.Errorf("jsonl journal needs a path")
			}
			own, err := outbox.New(cfg.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to open trade journal: %w", err)
			}
			ob = own
		}
		observ.Log("journal_opened", map[string]any{"driver": "jsonl", "path": ob.Path()})
		return NewJSONL(ob), nil
	case "postgres":
		pg, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		observ.Log("journal_opened", map[string]any{"driver": "postgres"})
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}
