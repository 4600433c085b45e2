package market

import (
	"math"

	"github.com/cinar/indicator"
	"github.com/samber/lo"
)

// OpeningRange tracks the high/low and per-minute volume of a symbol over the
// execution window, fed from cumulative-volume quotes.
type OpeningRange struct {
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Samples  int     `json:"samples"`
	Complete bool    `json:"complete"`

	minuteVolumes []float64
	lastCumVolume int64
}

func NewOpeningRange() *OpeningRange {
	return &OpeningRange{Low: math.Inf(1)}
}

// Update folds a quote seen during minute m of the window.
func (r *OpeningRange) Update(m int, price float64, cumVolume int64) {
	if r.Complete || price <= 0 || m < 0 {
		return
	}
	r.High = max(r.High, price)
	r.Low = min(r.Low, price)
	r.Samples++

	for len(r.minuteVolumes) <= m {
		r.minuteVolumes = append(r.minuteVolumes, 0)
	}
	if delta := cumVolume - r.lastCumVolume; delta > 0 {
		r.minuteVolumes[m] += float64(delta)
	}
	if cumVolume > r.lastCumVolume {
		r.lastCumVolume = cumVolume
	}
}

func (r *OpeningRange) Width() float64 {
	if r.Samples == 0 {
		return 0
	}
	return r.High - r.Low
}

// MinuteVolumes returns a copy of the per-minute volume buckets.
func (r *OpeningRange) MinuteVolumes() []float64 {
	return append([]float64(nil), r.minuteVolumes...)
}

// VolumeSurge is the latest minute's volume over the simple average of the
// earlier minutes. It is 0 until two minutes have been observed.
func (r *OpeningRange) VolumeSurge() float64 {
	if len(r.minuteVolumes) < 2 {
		return 0
	}
	prior := r.minuteVolumes[:len(r.minuteVolumes)-1]
	avg := lo.LastOrEmpty(indicator.Sma(len(prior), prior))
	if avg <= 0 {
		return 0
	}
	return lo.LastOrEmpty(r.minuteVolumes) / avg
}
