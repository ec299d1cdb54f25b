package engine

import (
	"sync"
	"time"

	"github.com/techaura/aurabot/internal/domain"
)

// GlobalLimiter enforces system-wide send ceilings over rolling hourly and
// daily windows. Counters reset on rolling-window rollover, not on clock
// boundaries: a send recorded at 14:32 stops counting against the hourly
// ceiling at 15:32.
type GlobalLimiter struct {
	mu        sync.Mutex
	hourlyCap int
	dailyCap  int
	sends     []time.Time
	now       func() time.Time
}

// NewGlobalLimiter creates a limiter with the given rolling ceilings.
func NewGlobalLimiter(hourlyCap, dailyCap int) *GlobalLimiter {
	return &GlobalLimiter{
		hourlyCap: hourlyCap,
		dailyCap:  dailyCap,
		now:       time.Now,
	}
}

// Allow reports whether a send is currently admissible. A rejection is a
// reason code, not an error, and nothing is queued.
func (g *GlobalLimiter) Allow() domain.Reason {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.pruneLocked(now)

	hour := 0
	cutoff := now.Add(-time.Hour)
	for _, ts := range g.sends {
		if ts.After(cutoff) {
			hour++
		}
	}
	if hour >= g.hourlyCap {
		return domain.ReasonGlobalHourlyCap
	}
	if len(g.sends) >= g.dailyCap {
		return domain.ReasonGlobalDailyCap
	}
	return domain.ReasonOK
}

// Record counts a successful send against both windows.
func (g *GlobalLimiter) Record() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.pruneLocked(now)
	g.sends = append(g.sends, now)
}

// Counters is a point-in-time snapshot for dashboards.
type Counters struct {
	HourUsed  int `json:"hourUsed"`
	HourLimit int `json:"hourLimit"`
	DayUsed   int `json:"dayUsed"`
	DayLimit  int `json:"dayLimit"`
}

// Snapshot returns the current rolling-window usage.
func (g *GlobalLimiter) Snapshot() Counters {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.pruneLocked(now)

	hour := 0
	cutoff := now.Add(-time.Hour)
	for _, ts := range g.sends {
		if ts.After(cutoff) {
			hour++
		}
	}
	return Counters{
		HourUsed:  hour,
		HourLimit: g.hourlyCap,
		DayUsed:   len(g.sends),
		DayLimit:  g.dailyCap,
	}
}

// pruneLocked drops entries older than the daily window.
func (g *GlobalLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	i := 0
	for i < len(g.sends) && !g.sends[i].After(cutoff) {
		i++
	}
	if i > 0 {
		g.sends = append(g.sends[:0], g.sends[i:]...)
	}
}

// checkSessionGates evaluates the per-session send gates in a fixed order
// and returns the first failing reason. The exclusion flags (converted,
// blacklist) are checked before this function runs.
func checkSessionGates(sess *domain.Session, cfg Config, now time.Time) domain.Reason {
	hour := now.Hour()
	if hour < cfg.BusinessHourStart || hour >= cfg.BusinessHourEnd {
		return domain.ReasonOutsideBusinessHours
	}

	if sess.LastFollowUp != nil && now.Sub(*sess.LastFollowUp) < cfg.MinInterval {
		return domain.ReasonMinInterval
	}

	if sess.FollowUpsSince(now.Add(-7*24*time.Hour)) >= cfg.WeeklyCap {
		return domain.ReasonWeeklyCap
	}

	if sess.FollowUpTotal >= cfg.LifetimeCap {
		return domain.ReasonLifetimeCap
	}

	if sess.Tags.Has(domain.TagHumanChat) &&
		sess.LastHumanChat != nil &&
		now.Sub(*sess.LastHumanChat) < cfg.HumanGrace {
		return domain.ReasonRecentHumanInteraction
	}

	return domain.ReasonOK
}
