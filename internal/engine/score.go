package engine

import "github.com/techaura/aurabot/internal/domain"

// Intent weights for the buying-intent score, most valuable first.
var intentWeights = map[domain.Intent]int{
	domain.IntentCheckout:      35,
	domain.IntentPurchase:      30,
	domain.IntentPricing:       20,
	domain.IntentCustomization: 15,
	domain.IntentContinuation:  10,
	domain.IntentAffirmative:   5,
}

// Sentiment adjustments applied per interaction.
const (
	positiveSentimentBonus = 5
	negativeSentimentMalus = 10
)

// Score folds the most recent window of interactions into a bounded 0-100
// buying-intent estimate. Pure given the session snapshot: a blacklisted
// session always scores 0; a VIP tag adds a flat bonus.
func Score(sess *domain.Session, window, vipBonus int) int {
	if sess.Tags.Has(domain.TagBlacklist) {
		return 0
	}

	log := sess.InteractionLog
	if window > 0 && len(log) > window {
		log = log[len(log)-window:]
	}

	total := 0
	for _, in := range log {
		total += intentWeights[in.Intent]
		switch in.Sentiment {
		case domain.SentimentPositive:
			total += positiveSentimentBonus
		case domain.SentimentNegative:
			total -= negativeSentimentMalus
		}
		total += in.EngagementDelta
	}

	if sess.Tags.Has(domain.TagVIP) {
		total += vipBonus
	}

	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}
