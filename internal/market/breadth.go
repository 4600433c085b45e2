package market

import "time"

// BreadthClass is the market sentiment derived from the A/D ratio.
type BreadthClass string

const (
	Bullish BreadthClass = "BULLISH"
	Bearish BreadthClass = "BEARISH"
	Neutral BreadthClass = "NEUTRAL"
)

// BreadthState is a classified advance/decline snapshot.
type BreadthState struct {
	Advances       int          `json:"advances"`
	Declines       int          `json:"declines"`
	Unchanged      int          `json:"unchanged"`
	ADRatio        float64      `json:"ad_ratio"`
	Classification BreadthClass `json:"classification"`
	Strength       float64      `json:"strength"`
	Fallback       bool         `json:"fallback"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ClassifyBreadth uses the same ratio for both sides: BULLISH at or above
// bullishRatio, BEARISH at or below its reciprocal.
func ClassifyBreadth(advances, declines int, bullishRatio float64) BreadthState {
	return ClassifyBreadthWith(advances, declines, bullishRatio, bullishRatio)
}

// ClassifyBreadthWith allows a separate declines/advances ratio for the
// bearish side. Zero counts are treated as 1 before the ratio is taken.
func ClassifyBreadthWith(advances, declines int, bullishRatio, bearishRatio float64) BreadthState {
	adv, dec := advances, declines
	if dec == 0 {
		dec = 1
	}
	if adv == 0 {
		adv = 1
	}
	ratio := float64(adv) / float64(dec)

	class := Neutral
	switch {
	case ratio >= bullishRatio:
		class = Bullish
	case bearishRatio > 0 && ratio <= 1/bearishRatio:
		class = Bearish
	}
	return BreadthState{
		Advances:       advances,
		Declines:       declines,
		ADRatio:        ratio,
		Classification: class,
		Strength:       StrengthScore(ratio),
	}
}

// FromReading classifies a raw feed reading.
func FromReading(r BreadthReading, bullishRatio, bearishRatio float64) BreadthState {
	s := ClassifyBreadthWith(r.Advances, r.Declines, bullishRatio, bearishRatio)
	s.Unchanged = r.Unchanged
	s.Fallback = r.Fallback
	s.UpdatedAt = r.Timestamp
	return s
}

// StrengthScore maps ratio 1..3 onto 50..100 and 0.33..1 onto 0..50.
func StrengthScore(ratio float64) float64 {
	var score float64
	if ratio >= 1 {
		score = 50 + min((ratio-1)/2, 1)*50
	} else {
		score = (ratio - 0.33) / 0.67 * 50
	}
	return max(0, min(score, 100))
}

// BreadthSummary is the display form of a breadth snapshot.
type BreadthSummary struct {
	Total          int          `json:"total"`
	AdvancePct     float64      `json:"advance_pct"`
	DeclinePct     float64      `json:"decline_pct"`
	UnchangedPct   float64      `json:"unchanged_pct"`
	ADRatio        float64      `json:"ad_ratio"`
	Classification BreadthClass `json:"classification"`
	Strength       float64      `json:"strength"`
	Fallback       bool         `json:"fallback"`
}

func (s BreadthState) Summary() BreadthSummary {
	out := BreadthSummary{
		Total:          s.Advances + s.Declines + s.Unchanged,
		ADRatio:        s.ADRatio,
		Classification: s.Classification,
		Strength:       s.Strength,
		Fallback:       s.Fallback,
	}
	if out.Total > 0 {
		t := float64(out.Total)
		out.AdvancePct = float64(s.Advances) / t * 100
		out.DeclinePct = float64(s.Declines) / t * 100
		out.UnchangedPct = float64(s.Unchanged) / t * 100
	}
	return out
}
