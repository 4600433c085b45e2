package position

import (
	"math"

	"github.com/samber/lo"

	"github.com/Rajchodisetti/mmfs-scalper/internal/setup"
)

// SetupStats are the running counts for one setup.
type SetupStats struct {
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	NetPnl float64 `json:"net_pnl"`
}

// WinRate is a percentage, 0 before the first trade.
func (s SetupStats) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades) * 100
}

// Metrics folds trade results one at a time. Nothing is recomputed from
// history and no counter ever decreases.
type Metrics struct {
	TotalTrades int
	Wins        int
	Losses      int
	Flat        int
	Scratches   int

	GrossPnl   float64
	NetPnl     float64
	TotalCosts float64
	winSum     float64
	lossSum    float64 // absolute

	LargestWin  float64
	LargestLoss float64 // most negative net P&L

	bySetup  map[setup.Type]*SetupStats
	byExit   map[ExitReason]int
	byMinute [5]int
}

func NewMetrics() *Metrics {
	m := &Metrics{
		bySetup: make(map[setup.Type]*SetupStats, len(setup.All)),
		byExit:  make(map[ExitReason]int, len(ExitReasons)),
	}
	for _, t := range setup.All {
		m.bySetup[t] = &SetupStats{}
	}
	return m
}

// Update folds one closed trade.
func (m *Metrics) Update(t TradeResult) {
	m.TotalTrades++
	m.GrossPnl += t.GrossPnl
	m.NetPnl += t.NetPnl
	m.TotalCosts += t.Charges.Total

	st, ok := m.bySetup[t.Setup]
	if !ok {
		st = &SetupStats{}
		m.bySetup[t.Setup] = st
	}
	st.Trades++
	st.NetPnl += t.NetPnl

	switch {
	case t.IsWinner():
		m.Wins++
		st.Wins++
		m.winSum += t.NetPnl
		m.LargestWin = max(m.LargestWin, t.NetPnl)
	case t.IsLoser():
		m.Losses++
		st.Losses++
		m.lossSum += -t.NetPnl
		m.LargestLoss = min(m.LargestLoss, t.NetPnl)
	default:
		m.Flat++
	}
	if t.IsScratch() {
		m.Scratches++
	}

	m.byExit[t.ExitReason]++
	m.byMinute[max(0, min(t.SignalMinute, len(m.byMinute)-1))]++
}

// WinRate is wins over all trades as a percentage.
func (m *Metrics) WinRate() float64 {
	if m.TotalTrades == 0 {
		return 0
	}
	return float64(m.Wins) / float64(m.TotalTrades) * 100
}

func (m *Metrics) AvgWin() float64 {
	if m.Wins == 0 {
		return 0
	}
	return m.winSum / float64(m.Wins)
}

// AvgLoss is the mean losing trade as a positive amount.
func (m *Metrics) AvgLoss() float64 {
	if m.Losses == 0 {
		return 0
	}
	return m.lossSum / float64(m.Losses)
}

// ProfitFactor is gross winning over gross losing net P&L: +Inf with wins
// and no losses, 0 with neither.
func (m *Metrics) ProfitFactor() float64 {
	switch {
	case m.lossSum > 0:
		return m.winSum / m.lossSum
	case m.winSum > 0:
		return math.Inf(1)
	default:
		return 0
	}
}

// Expectancy is net P&L per trade.
func (m *Metrics) Expectancy() float64 {
	if m.TotalTrades == 0 {
		return 0
	}
	return m.NetPnl / float64(m.TotalTrades)
}

// Setup returns the stats for one setup type.
func (m *Metrics) Setup(t setup.Type) SetupStats {
	if st, ok := m.bySetup[t]; ok {
		return *st
	}
	return SetupStats{}
}

func (m *Metrics) SetupWinRate(t setup.Type) float64 { return m.Setup(t).WinRate() }

func (m *Metrics) ExitCount(r ExitReason) int { return m.byExit[r] }

// MinuteHistogram counts trades by signal minute of the window.
func (m *Metrics) MinuteHistogram() [5]int { return m.byMinute }

// SetupSummary is one row of the per-setup breakdown.
type SetupSummary struct {
	Setup   setup.Type `json:"setup"`
	Label   string     `json:"label"`
	Trades  int        `json:"trades"`
	Wins    int        `json:"wins"`
	Losses  int        `json:"losses"`
	WinRate float64    `json:"win_rate"`
	NetPnl  float64    `json:"net_pnl"`
}

// Summary is a JSON-safe view of the accumulator. ProfitFactor is nil when
// it is infinite.
type Summary struct {
	TotalTrades  int                `json:"total_trades"`
	Wins         int                `json:"wins"`
	Losses       int                `json:"losses"`
	Flat         int                `json:"flat"`
	Scratches    int                `json:"scratches"`
	WinRate      float64            `json:"win_rate"`
	GrossPnl     float64            `json:"gross_pnl"`
	NetPnl       float64            `json:"net_pnl"`
	TotalCosts   float64            `json:"total_costs"`
	AvgWin       float64            `json:"avg_win"`
	AvgLoss      float64            `json:"avg_loss"`
	LargestWin   float64            `json:"largest_win"`
	LargestLoss  float64            `json:"largest_loss"`
	ProfitFactor *float64           `json:"profit_factor"`
	Expectancy   float64            `json:"expectancy"`
	BySetup      []SetupSummary     `json:"by_setup"`
	ByExit       map[ExitReason]int `json:"by_exit_reason"`
	ByMinute     [5]int             `json:"by_minute"`
}

func (m *Metrics) Summary() Summary {
	s := Summary{
		TotalTrades: m.TotalTrades,
		Wins:        m.Wins,
		Losses:      m.Losses,
		Flat:        m.Flat,
		Scratches:   m.Scratches,
		WinRate:     m.WinRate(),
		GrossPnl:    m.GrossPnl,
		NetPnl:      m.NetPnl,
		TotalCosts:  m.TotalCosts,
		AvgWin:      m.AvgWin(),
		AvgLoss:     m.AvgLoss(),
		LargestWin:  m.LargestWin,
		LargestLoss: m.LargestLoss,
		Expectancy:  m.Expectancy(),
		ByMinute:    m.byMinute,
		ByExit: lo.SliceToMap(ExitReasons, func(r ExitReason) (ExitReason, int) {
			return r, m.byExit[r]
		}),
		BySetup: lo.Map(setup.All, func(t setup.Type, _ int) SetupSummary {
			st := m.Setup(t)
			return SetupSummary{
				Setup:   t,
				Label:   t.Label(),
				Trades:  st.Trades,
				Wins:    st.Wins,
				Losses:  st.Losses,
				WinRate: st.WinRate(),
				NetPnl:  st.NetPnl,
			}
		}),
	}
	if pf := m.ProfitFactor(); !math.IsInf(pf, 0) {
		s.ProfitFactor = &pf
	}
	return s
}
