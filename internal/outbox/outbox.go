package outbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rajchodisetti/mmfs-scalper/internal/market"
)

// OrderType of a broker order.
type OrderType string

const (
	Market   OrderType = "MARKET"
	Limit    OrderType = "LIMIT"
	StopLoss OrderType = "SL-M"
)

// OrderStatus of a broker order.
type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN" // resting protective order
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
)

type Order struct {
	ID           string      `json:"id"`
	Symbol       string      `json:"symbol"`
	Side         market.Side `json:"side"`
	Quantity     int         `json:"quantity"`
	Type         OrderType   `json:"type"`
	Price        float64     `json:"price,omitempty"`
	TriggerPrice float64     `json:"trigger_price,omitempty"`
	Status       OrderStatus `json:"status"`
	Tag          string      `json:"tag,omitempty"` // entry | stop | target | exit
	Timestamp    time.Time   `json:"timestamp"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (o Order) IsOpen() bool { return o.Status == StatusOpen }

type Fill struct {
	OrderID     string      `json:"order_id"`
	Symbol      string      `json:"symbol"`
	Quantity    int         `json:"quantity"`
	Price       float64     `json:"price"`
	Side        market.Side `json:"side"`
	Timestamp   time.Time   `json:"timestamp"`
	SlippageBps int         `json:"slippage_bps"`
}

// Entry kinds written to the outbox.
const (
	KindOrder = "order"
	KindFill  = "fill"
	KindTrade = "trade"
)

type Entry struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Event time.Time       `json:"event"`
}

// Outbox is an append-only JSONL journal. It is safe for concurrent use.
type Outbox struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func New(path string) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create outbox dir: %w", err)
	}
	return &Outbox{path: path, now: time.Now}, nil
}

// SetClock replaces the clock used to stamp entries.
func (o *Outbox) SetClock(now func() time.Time) { o.now = now }

func (o *Outbox) Path() string { return o.path }

func (o *Outbox) WriteOrder(order Order) error { return o.Write(KindOrder, order) }

func (o *Outbox) WriteFill(fill Fill) error { return o.Write(KindFill, fill) }

// Write appends one entry of the given kind.
func (o *Outbox) Write(kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	line, err := json.Marshal(Entry{Type: kind, Data: data, Event: o.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal outbox entry: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open outbox: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append outbox entry: %w", err)
	}
	return nil
}

// ReadAll returns every entry in file order, skipping malformed lines. A
// missing file yields no entries.
func (o *Outbox) ReadAll() ([]Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.Open(o.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox: %w", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("failed to read outbox: %w", err)
	}
	return out, nil
}

// Decode reads every entry of kind into a T.
func Decode[T any](o *Outbox, kind string) ([]T, error) {
	entries, err := o.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, e := range entries {
		if e.Type != kind {
			continue
		}
		var v T
		if err := json.Unmarshal(e.Data, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
