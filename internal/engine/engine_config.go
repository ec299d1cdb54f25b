package engine

import (
	"time"

	"github.com/techaura/aurabot/internal/config"
)

// Config carries the engine thresholds as resolved durations.
type Config struct {
	Channel string

	BusinessHourStart int
	BusinessHourEnd   int

	MinInterval time.Duration
	WeeklyCap   int
	LifetimeCap int
	HumanGrace  time.Duration

	GlobalHourlyCap int
	GlobalDailyCap  int
	Pacing          time.Duration

	BaseDelay  time.Duration
	HotDelay   time.Duration
	ChurnDelay time.Duration
	MaxDelay   time.Duration
	HotScore   int
	HotWindow  time.Duration
	ChurnIdle  time.Duration

	InteractionLogCap  int
	FollowUpHistoryCap int
	FingerprintCap     int

	ScoreWindow int
	VIPBonus    int

	InactiveAfter    time.Duration
	RetentionHorizon time.Duration
	SweepInterval    time.Duration
	QueueCapacity    int
}

// FromConfig translates the yaml-facing EngineConfig into engine durations.
func FromConfig(c config.EngineConfig) Config {
	return Config{
		Channel:            c.Channel,
		BusinessHourStart:  c.BusinessHourStart,
		BusinessHourEnd:    c.BusinessHourEnd,
		MinInterval:        time.Duration(c.MinIntervalHours) * time.Hour,
		WeeklyCap:          c.WeeklyCap,
		LifetimeCap:        c.LifetimeCap,
		HumanGrace:         time.Duration(c.HumanGraceMinutes) * time.Minute,
		GlobalHourlyCap:    c.GlobalHourlyCap,
		GlobalDailyCap:     c.GlobalDailyCap,
		Pacing:             time.Duration(c.PacingMillis) * time.Millisecond,
		BaseDelay:          time.Duration(c.BaseDelayMinutes) * time.Minute,
		HotDelay:           time.Duration(c.HotDelayMinutes) * time.Minute,
		ChurnDelay:         time.Duration(c.ChurnDelayMinutes) * time.Minute,
		MaxDelay:           time.Duration(c.MaxDelayMinutes) * time.Minute,
		HotScore:           c.HotScore,
		HotWindow:          time.Duration(c.HotWindowMinutes) * time.Minute,
		ChurnIdle:          time.Duration(c.ChurnIdleHours) * time.Hour,
		InteractionLogCap:  c.InteractionLogCap,
		FollowUpHistoryCap: c.FollowUpHistoryCap,
		FingerprintCap:     c.FingerprintCap,
		ScoreWindow:        c.ScoreWindow,
		VIPBonus:           c.VIPBonus,
		InactiveAfter:      time.Duration(c.InactiveAfterHours) * time.Hour,
		RetentionHorizon:   time.Duration(c.RetentionDays) * 24 * time.Hour,
		SweepInterval:      time.Duration(c.SweepIntervalMinutes) * time.Minute,
		QueueCapacity:      c.QueueCapacity,
	}
}
