package market

import (
	"fmt"
	"time"
)

// ClockTime is a wall-clock time of day in the exchange time zone.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c ClockTime) seconds() int { return c.Hour*3600 + c.Minute*60 }

// On returns c on the calendar day of day, in loc.
func (c ClockTime) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// Minus returns the minutes from o to c.
func (c ClockTime) Minus(o ClockTime) int { return (c.seconds() - o.seconds()) / 60 }

// Phase names the dominant activity at a given time of day.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhasePremarket   Phase = "PREMARKET"
	PhaseFirstCandle Phase = "FIRST_CANDLE"
	PhaseSignals     Phase = "EXECUTION_WINDOW"
	PhaseMonitoring  Phase = "MONITORING"
	PhaseDone        Phase = "DONE"
)

// Session holds the opening-window boundaries for one exchange day.
type Session struct {
	Location       *time.Location
	PremarketStart ClockTime
	MarketOpen     ClockTime
	FirstCandleEnd ClockTime
	ExecutionEnd   ClockTime
	SessionEnd     ClockTime
	ResumeTrading  ClockTime
}

// IST returns Asia/Kolkata, or a fixed +05:30 zone when tzdata is missing.
func IST() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// DefaultSession is the NSE opening window: 09:00 pre-open, 09:15 open,
// signals 09:16 to 09:20, done after 09:25.
func DefaultSession() Session {
	return Session{
		Location:       IST(),
		PremarketStart: ClockTime{9, 0},
		MarketOpen:     ClockTime{9, 15},
		FirstCandleEnd: ClockTime{9, 16},
		ExecutionEnd:   ClockTime{9, 20},
		SessionEnd:     ClockTime{9, 25},
		ResumeTrading:  ClockTime{9, 45},
	}
}

func (s Session) secondsOfDay(t time.Time) int {
	l := t.In(s.Location)
	return l.Hour()*3600 + l.Minute()*60 + l.Second()
}

func (s Session) between(t time.Time, from, to ClockTime) bool {
	sec := s.secondsOfDay(t)
	return sec >= from.seconds() && sec < to.seconds()
}

func (s Session) IsPremarket(t time.Time) bool {
	return s.between(t, s.PremarketStart, s.MarketOpen)
}

func (s Session) IsMarketOpen(t time.Time) bool {
	return s.secondsOfDay(t) >= s.MarketOpen.seconds()
}

// IsFirstCandle covers the first minute including its closing boundary.
func (s Session) IsFirstCandle(t time.Time) bool {
	sec := s.secondsOfDay(t)
	return sec >= s.MarketOpen.seconds() && sec <= s.FirstCandleEnd.seconds()
}

func (s Session) FirstCandleClosed(t time.Time) bool {
	return s.secondsOfDay(t) >= s.FirstCandleEnd.seconds()
}

func (s Session) IsExecutionWindow(t time.Time) bool {
	return s.between(t, s.MarketOpen, s.ExecutionEnd)
}

func (s Session) IsSignalWindow(t time.Time) bool {
	return s.between(t, s.FirstCandleEnd, s.ExecutionEnd)
}

func (s Session) IsDone(t time.Time) bool {
	return s.secondsOfDay(t) > s.SessionEnd.seconds()
}

func (s Session) ResumeReached(t time.Time) bool {
	return s.secondsOfDay(t) >= s.ResumeTrading.seconds()
}

// WindowMinutes is the length of the execution window.
func (s Session) WindowMinutes() int { return s.ExecutionEnd.Minus(s.MarketOpen) }

// MinuteOfWindow is the whole minutes since market open, clamped to the window.
func (s Session) MinuteOfWindow(t time.Time) int {
	m := (s.secondsOfDay(t) - s.MarketOpen.seconds()) / 60
	return max(0, min(m, s.WindowMinutes()-1))
}

func (s Session) Phase(t time.Time) Phase {
	switch {
	case s.IsDone(t):
		return PhaseDone
	case s.IsPremarket(t):
		return PhasePremarket
	case s.IsExecutionWindow(t) && !s.FirstCandleClosed(t):
		return PhaseFirstCandle
	case s.IsSignalWindow(t):
		return PhaseSignals
	case s.IsMarketOpen(t):
		return PhaseMonitoring
	default:
		return PhaseIdle
	}
}

// IsTradingDay reports weekdays only; exchange holidays are not modelled.
func (s Session) IsTradingDay(t time.Time) bool {
	switch t.In(s.Location).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// Validate checks that the boundaries are strictly ordered.
func (s Session) Validate() error {
	order := []struct {
		name string
		at   ClockTime
	}{
		{"premarket_start", s.PremarketStart},
		{"market_open", s.MarketOpen},
		{"first_candle_end", s.FirstCandleEnd},
		{"execution_end", s.ExecutionEnd},
		{"session_end", s.SessionEnd},
	}
	for i := 1; i < len(order); i++ {
		if order[i].at.seconds() <= order[i-1].at.seconds() {
			return fmt.Errorf("%s (%s) must be after %s (%s)", order[i].name, order[i].at, order[i-1].name, order[i-1].at)
		}
	}
	return nil
}
