package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/observ"
	"github.com/Rajchodisetti/mmfs-scalper/internal/outbox"
)

// PaperBroker is an OrderPort that fills market and limit orders instantly
// and rests protective orders until they are cancelled. Every order and fill
// is appended to the outbox when one is configured.
type PaperBroker struct {
	mu     sync.Mutex
	orders map[string]*outbox.Order
	marks  map[string]float64
	fills  *outbox.FillSimulator
	ob     *outbox.Outbox
	now    func() time.Time
}

// NewPaperBroker builds a broker; ob may be nil.
func NewPaperBroker(ob *outbox.Outbox, fills *outbox.FillSimulator) *PaperBroker {
	if fills == nil {
		fills = outbox.NewFillSimulator(0, nil)
	}
	return &PaperBroker{
		orders: make(map[string]*outbox.Order),
		marks:  make(map[string]float64),
		fills:  fills,
		ob:     ob,
		now:    time.Now,
	}
}

// WithClock replaces the clock used for order timestamps.
func (p *PaperBroker) WithClock(now func() time.Time) *PaperBroker {
	p.now = now
	return p
}

// Mark records a reference price used for market orders placed without one.
func (p *PaperBroker) Mark(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[symbol] = price
}

func (p *PaperBroker) record(o *outbox.Order) {
	if p.ob == nil {
		return
	}
	if err := p.ob.WriteOrder(*o); err != nil {
		observ.Error("outbox_write_failed", err, map[string]any{"order_id": o.ID})
	}
}

func (p *PaperBroker) newOrder(symbol string, side market.Side, qty int, typ outbox.OrderType, tag string) (*outbox.Order, error) {
	if qty <= 0 {
		return nil, NewRejectedError(symbol, fmt.Sprintf("quantity %d must be positive", qty))
	}
	if side != market.Buy && side != market.Sell {
		return nil, NewRejectedError(symbol, fmt.Sprintf("unknown side %q", side))
	}
	now := p.now()
	return &outbox.Order{
		ID:        outbox.NewOrderID(outbox.PaperPrefix),
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Type:      typ,
		Timestamp: now,
		UpdatedAt: now,
		Tag:       tag,
	}, nil
}

// PlaceOrder fills immediately at price, or at the last mark when price is 0.
func (p *PaperBroker) PlaceOrder(ctx context.Context, symbol string, side market.Side, qty int, typ outbox.OrderType, price float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ref := price
	if ref <= 0 {
		ref = p.marks[symbol]
	}
	if ref <= 0 {
		return "", NewRejectedError(symbol, "no price for paper fill")
	}
	o, err := p.newOrder(symbol, side, qty, typ, "order")
	if err != nil {
		return "", err
	}
	fill := p.fills.Fill(*o, ref, o.Timestamp)
	o.Price = fill.Price
	o.Status = outbox.StatusFilled
	p.orders[o.ID] = o
	p.record(o)
	if p.ob != nil {
		if err := p.ob.WriteFill(fill); err != nil {
			observ.Error("outbox_write_failed", err, map[string]any{"order_id": o.ID})
		}
	}
	observ.IncCounter("paper_orders_total", map[string]string{"type": string(typ), "side": string(side)})
	return o.ID, nil
}

func (p *PaperBroker) rest(ctx context.Context, symbol string, side market.Side, qty int, typ outbox.OrderType, price, trigger float64, tag string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	o, err := p.newOrder(symbol, side, qty, typ, tag)
	if err != nil {
		return "", err
	}
	o.Price, o.TriggerPrice = price, trigger
	o.Status = outbox.StatusOpen
	p.orders[o.ID] = o
	p.record(o)
	observ.IncCounter("paper_orders_total", map[string]string{"type": string(typ), "side": string(side)})
	return o.ID, nil
}

func (p *PaperBroker) PlaceStopLoss(ctx context.Context, symbol string, side market.Side, qty int, trigger float64) (string, error) {
	return p.rest(ctx, symbol, side, qty, outbox.StopLoss, 0, trigger, "stop")
}

func (p *PaperBroker) PlaceTarget(ctx context.Context, symbol string, side market.Side, qty int, price float64) (string, error) {
	return p.rest(ctx, symbol, side, qty, outbox.Limit, price, 0, "target")
}

// ModifyStopLoss moves the trigger of a resting stop order.
func (p *PaperBroker) ModifyStopLoss(ctx context.Context, orderID string, trigger float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok || o.Type != outbox.StopLoss {
		return NewBadSymbolError(orderID, "no such stop order")
	}
	if !o.IsOpen() {
		return NewRejectedError(o.Symbol, fmt.Sprintf("order %s is %s", orderID, o.Status))
	}
	o.TriggerPrice = trigger
	o.UpdatedAt = p.now()
	p.record(o)
	return nil
}

// CancelOrder reports true when a resting order was cancelled.
func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok || !o.IsOpen() {
		return false, nil
	}
	o.Status = outbox.StatusCancelled
	o.UpdatedAt = p.now()
	p.record(o)
	return true, nil
}

func (p *PaperBroker) OrderStatus(ctx context.Context, orderID string) (outbox.Order, error) {
	if err := ctx.Err(); err != nil {
		return outbox.Order{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return outbox.Order{}, NewBadSymbolError(orderID, "unknown order")
	}
	return *o, nil
}

// OpenOrders returns the resting orders for symbol.
func (p *PaperBroker) OpenOrders(symbol string) []outbox.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []outbox.Order
	for _, o := range p.orders {
		if o.Symbol == symbol && o.IsOpen() {
			out = append(out, *o)
		}
	}
	return out
}
