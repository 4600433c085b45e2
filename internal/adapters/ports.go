package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
	"github.com/Rajchodisetti/mmfs-scalper/internal/outbox"
)

// MarketData is the price source the strategy reads from.
type MarketData interface {
	PreviousDayOHLC(ctx context.Context, symbol string) (market.OHLC, error)
	CurrentQuote(ctx context.Context, symbol string) (market.Quote, error)
	// FirstMinuteCandle returns ErrNoData until the first candle has closed.
	FirstMinuteCandle(ctx context.Context, symbol string) (market.OHLC, error)
}

// BreadthFeed supplies advance/decline counts for the market.
type BreadthFeed interface {
	AdvanceDecline(ctx context.Context) (market.BreadthReading, error)
}

// OrderPort places and manages orders. Side on protective orders is the
// exit side, opposite to the position.
type OrderPort interface {
	PlaceOrder(ctx context.Context, symbol string, side market.Side, qty int, typ outbox.OrderType, price float64) (string, error)
	PlaceStopLoss(ctx context.Context, symbol string, side market.Side, qty int, trigger float64) (string, error)
	PlaceTarget(ctx context.Context, symbol string, side market.Side, qty int, price float64) (string, error)
	ModifyStopLoss(ctx context.Context, orderID string, trigger float64) error
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	OrderStatus(ctx context.Context, orderID string) (outbox.Order, error)
}

// ErrNoData means the requested data does not exist yet.
var ErrNoData = errors.New("no data yet")

// ErrorKind classifies collaborator failures.
type ErrorKind string

const (
	KindNetwork     ErrorKind = "network"
	KindBadSymbol   ErrorKind = "bad_symbol"
	KindRateLimit   ErrorKind = "rate_limit"
	KindUnavailable ErrorKind = "unavailable"
	KindRejected    ErrorKind = "rejected"
)

// DataError is a typed collaborator failure for one symbol.
type DataError struct {
	Kind    ErrorKind
	Symbol  string
	Message string
	Cause   error
}

func (e *DataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error for %s: %s (%v)", e.Kind, e.Symbol, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error for %s: %s", e.Kind, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error { return e.Cause }

func NewNetworkError(symbol, message string, cause error) *DataError {
	return &DataError{Kind: KindNetwork, Symbol: symbol, Message: message, Cause: cause}
}

func NewBadSymbolError(symbol, message string) *DataError {
	return &DataError{Kind: KindBadSymbol, Symbol: symbol, Message: message}
}

func NewRateLimitError(symbol, message string, cause error) *DataError {
	return &DataError{Kind: KindRateLimit, Symbol: symbol, Message: message, Cause: cause}
}

func NewUnavailableError(symbol, message string, cause error) *DataError {
	return &DataError{Kind: KindUnavailable, Symbol: symbol, Message: message, Cause: cause}
}

func NewRejectedError(symbol, message string) *DataError {
	return &DataError{Kind: KindRejected, Symbol: symbol, Message: message}
}

// KindOf returns the kind of a DataError in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *DataError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
