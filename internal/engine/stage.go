package engine

import (
	"time"

	"github.com/techaura/aurabot/internal/domain"
)

// NextStage derives the next conversation stage from the current stage, a
// classification, and the time since the last interaction. Rules are
// evaluated in fixed priority order and the first match wins: ties resolve
// to the most specific intent by rule position, never by recency.
//
// StageConverted is sticky here; only an explicit order-reset system event
// (handled by the engine, not this function) can move past it.
func NextStage(current domain.Stage, c domain.Classification, elapsed, inactiveAfter time.Duration) domain.Stage {
	if current == domain.StageConverted {
		return current
	}

	switch c.Intent {
	case domain.IntentCheckout:
		return domain.StageClosing

	case domain.IntentPurchase:
		if current == domain.StageCustomizing || current == domain.StagePricing {
			return current
		}
		return domain.StageInterested

	case domain.IntentPricing:
		return domain.StagePricing

	case domain.IntentCustomization:
		return domain.StageCustomizing

	case domain.IntentAffirmative:
		if current == domain.StageCustomizing || current == domain.StagePricing {
			return current
		}
		return domain.StageInterested
	}

	if c.Intent == domain.IntentNegative || c.Sentiment == domain.SentimentNegative {
		return domain.StageAbandoned
	}

	if inactiveAfter > 0 && elapsed > inactiveAfter {
		return domain.StageInactive
	}

	return current
}
