package market

import "math"

// GapType buckets the absolute opening gap.
type GapType string

const (
	GapNone     GapType = "NO_GAP"
	GapSmall    GapType = "SMALL"
	GapModerate GapType = "MODERATE"
	GapStrong   GapType = "STRONG"
)

// GapInfo is the classified opening gap. Values are fixed at construction.
type GapInfo struct {
	PreviousClose float64 `json:"previous_close"`
	TodayOpen     float64 `json:"today_open"`
	GapPct        float64 `json:"gap_pct"`
	Type          GapType `json:"gap_type"`
}

// ClassifyGap computes gap % and buckets |gap| against the small and moderate
// thresholds. A non-positive previous close yields NO_GAP with a zero gap.
func ClassifyGap(prevClose, todayOpen, smallPct, moderatePct float64) GapInfo {
	g := GapInfo{PreviousClose: prevClose, TodayOpen: todayOpen, Type: GapNone}
	if prevClose <= 0 {
		return g
	}
	g.GapPct = (todayOpen - prevClose) / prevClose * 100
	abs := math.Abs(g.GapPct)
	switch {
	case abs <= smallPct:
		g.Type = GapSmall
	case abs <= moderatePct:
		g.Type = GapModerate
	default:
		g.Type = GapStrong
	}
	return g
}

func (g GapInfo) IsUp() bool   { return g.GapPct > 0 }
func (g GapInfo) IsDown() bool { return g.GapPct < 0 }
