package services

import (
	"time"

	"twod-ledger-backend/internal/models"
)

const minutesPerDay = 24 * 60

type MarketState string

const (
	MarketOpen   MarketState = "OPEN"
	MarketClosed MarketState = "CLOSED"
)

type MarketPhase string

const (
	PhaseMorningOpen     MarketPhase = "MORNING_OPEN"
	PhaseMorningSettling MarketPhase = "MORNING_SETTLING"
	PhaseEveningOpen     MarketPhase = "EVENING_OPEN"
	PhaseEveningSettling MarketPhase = "EVENING_SETTLING"
	PhaseOvernightClosed MarketPhase = "OVERNIGHT_CLOSED"
)

// Schedule holds every minute-of-day threshold of the market. Wager
// placement and settlement both derive sessions from the same Schedule.
type Schedule struct {
	MorningOpen    int
	MiddayGapStart int // first minute of the midday settlement gap; sessions split here
	EveningOpen    int
	EveningClose   int
	OvernightStart int
}

// DefaultSchedule: 08:00-12:15 morning, 12:15-13:00 settling,
// 13:00-16:15 evening, 16:15-17:00 settling, closed overnight.
var DefaultSchedule = Schedule{
	MorningOpen:    8 * 60,
	MiddayGapStart: 12*60 + 15,
	EveningOpen:    13 * 60,
	EveningClose:   16*60 + 15,
	OvernightStart: 17 * 60,
}

func normalizeMinute(m int) int {
	m %= minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return m
}

func (s Schedule) Phase(minutesOfDay int) MarketPhase {
	m := normalizeMinute(minutesOfDay)
	switch {
	case m < s.MorningOpen:
		return PhaseOvernightClosed
	case m < s.MiddayGapStart:
		return PhaseMorningOpen
	case m < s.EveningOpen:
		return PhaseMorningSettling
	case m < s.EveningClose:
		return PhaseEveningOpen
	case m < s.OvernightStart:
		return PhaseEveningSettling
	}
	return PhaseOvernightClosed
}

// Classify reports whether wagers are accepted at minutesOfDay on weekday.
// The market does not run on weekends.
func (s Schedule) Classify(minutesOfDay int, weekday time.Weekday) MarketState {
	if weekday == time.Saturday || weekday == time.Sunday {
		return MarketClosed
	}
	switch s.Phase(minutesOfDay) {
	case PhaseMorningOpen, PhaseEveningOpen:
		return MarketOpen
	}
	return MarketClosed
}

// SessionOf tags a minute-of-day with the settlement run it belongs to.
// Calendar date plays no part.
func (s Schedule) SessionOf(minutesOfDay int) models.Session {
	if normalizeMinute(minutesOfDay) < s.MiddayGapStart {
		return models.SessionMorning
	}
	return models.SessionEvening
}

// OpensAt is the minute-of-day at which session starts taking wagers.
func (s Schedule) OpensAt(session models.Session) int {
	if session == models.SessionMorning {
		return s.MorningOpen
	}
	return s.EveningOpen
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type MarketStatus struct {
	Time         time.Time      `json:"time"`
	Date         string         `json:"date"`
	MinutesOfDay int            `json:"minutes_of_day"`
	Weekday      string         `json:"weekday"`
	Phase        MarketPhase    `json:"phase"`
	State        MarketState    `json:"state"`
	Session      models.Session `json:"session"`
}

func (m MarketStatus) Open() bool {
	return m.State == MarketOpen
}

// SettlementSession is the session due for settlement at this instant, the
// one that closed most recently. Before the morning closes that is the
// previous evening.
func (m MarketStatus) SettlementSession() models.Session {
	switch m.Phase {
	case PhaseMorningSettling, PhaseEveningOpen:
		return models.SessionMorning
	}
	return models.SessionEvening
}

// MarketClock reads the wall clock in the market's civil timezone.
type MarketClock struct {
	clock    Clock
	loc      *time.Location
	schedule Schedule
}

func NewMarketClock(clock Clock, loc *time.Location, schedule Schedule) *MarketClock {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MarketClock{clock: clock, loc: loc, schedule: schedule}
}

func (c *MarketClock) Schedule() Schedule {
	return c.schedule
}

func (c *MarketClock) Now() MarketStatus {
	return c.At(c.clock.Now())
}

func (c *MarketClock) At(t time.Time) MarketStatus {
	local := t.In(c.loc)
	minute := MinutesOfDay(local)
	return MarketStatus{
		Time:         local,
		Date:         local.Format("2006-01-02"),
		MinutesOfDay: minute,
		Weekday:      local.Weekday().String(),
		Phase:        c.schedule.Phase(minute),
		State:        c.schedule.Classify(minute, local.Weekday()),
		Session:      c.schedule.SessionOf(minute),
	}
}

func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
