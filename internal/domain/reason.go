package domain

// Reason explains why a follow-up send was allowed or suppressed. Gate
// rejections are normal control-flow outcomes, not errors; every gate
// yields a distinguishable code so operators can see why a send did not
// happen.
type Reason string

const (
	ReasonOK Reason = "ok"

	// Session exclusion gates.
	ReasonConverted   Reason = "converted"
	ReasonBlacklisted Reason = "blacklisted"

	// Global rate limiter.
	ReasonGlobalHourlyCap Reason = "global_hourly_cap"
	ReasonGlobalDailyCap  Reason = "global_daily_cap"

	// Per-session gates.
	ReasonOutsideBusinessHours   Reason = "outside_business_hours"
	ReasonMinInterval            Reason = "min_interval"
	ReasonWeeklyCap              Reason = "weekly_cap"
	ReasonLifetimeCap            Reason = "lifetime_cap"
	ReasonRecentHumanInteraction Reason = "recent_human_interaction"

	// Content and delivery.
	ReasonDuplicateContent Reason = "duplicate_content"
	ReasonEmptyContent     Reason = "empty_content"
	ReasonSendFailed       Reason = "send_failed"

	// Scheduling bookkeeping.
	ReasonSessionGone   Reason = "session_gone"
	ReasonTaskSuperseded Reason = "task_superseded"
)

// Allowed reports whether the reason permits sending.
func (r Reason) Allowed() bool { return r == ReasonOK }
