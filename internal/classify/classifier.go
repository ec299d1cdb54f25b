// Package classify provides the built-in text classifier. The engine only
// depends on the classification contract, so this implementation is
// swappable for an LLM- or service-backed one.
package classify

import (
	"context"
	"strings"

	"github.com/tsawler/prose/v3"

	"github.com/techaura/aurabot/internal/domain"
	"github.com/techaura/aurabot/internal/engine"
)

// Keyword lexicons, matched most specific first. Phrases are matched
// against the normalized text, single words against tokens. The shop
// serves Spanish- and English-speaking customers.
var (
	checkoutPhrases = []string{
		"quiero pagar", "como pago", "cómo pago", "voy a pagar", "hacer el pedido",
		"confirmar pedido", "i want to pay", "how do i pay", "place the order",
		"checkout", "finalizar compra",
	}
	checkoutWords = []string{"pagar", "pago", "pay", "payment", "transferencia", "nequi", "daviplata"}

	purchasePhrases = []string{
		"lo quiero", "la quiero", "quiero comprar", "me lo llevo", "i want to buy",
		"i'll take it", "quiero uno", "quiero una",
	}
	purchaseWords = []string{"comprar", "compro", "buy", "vendeme", "véndeme"}

	pricingPhrases = []string{
		"cuanto cuesta", "cuánto cuesta", "cuanto vale", "cuánto vale", "que precio",
		"qué precio", "how much", "what's the price", "lista de precios",
	}
	pricingWords = []string{"precio", "precios", "costo", "cuesta", "vale", "price", "cost", "descuento", "discount"}

	customizationPhrases = []string{
		"puedo elegir", "se puede personalizar", "can i choose", "can i customize",
		"que generos", "qué géneros", "que artistas", "qué artistas", "lista de canciones",
	}
	customizationWords = []string{
		"personalizar", "personalizada", "customize", "custom", "generos", "géneros",
		"genres", "artistas", "artists", "canciones", "songs", "videos", "peliculas",
		"películas", "movies", "capacidad", "demo",
	}

	negativePhrases = []string{
		"no me interesa", "no gracias", "not interested", "no quiero", "dejame en paz",
		"déjame en paz", "no me escribas", "stop messaging", "ya no",
	}
	negativeWords = []string{"no", "nunca", "never", "caro", "expensive", "malo", "spam"}

	affirmativeWords = []string{
		"si", "sí", "yes", "dale", "claro", "ok", "okay", "bueno", "listo", "perfecto",
		"genial", "great", "sure", "excelente",
	}

	positiveWords = []string{
		"gracias", "thanks", "excelente", "genial", "perfecto", "bueno", "great",
		"love", "encanta", "bacano", "chevere", "chévere",
	}
	negativeSentimentWords = []string{
		"malo", "terrible", "horrible", "caro", "expensive", "lento", "slow",
		"molesto", "annoying", "spam", "estafa", "scam",
	}
)

// Keyword is the default, deterministic classifier. Tokenization runs
// through the prose pipeline so accented and hyphenated text splits the
// same way for every caller.
type Keyword struct{}

// NewKeyword creates the default classifier.
func NewKeyword() *Keyword { return &Keyword{} }

var _ engine.Classifier = (*Keyword)(nil)

// Classify maps text to (intent, sentiment, engagementDelta). Intent ties
// resolve to the most specific match, mirroring the stage machine's rule
// order.
func (k *Keyword) Classify(ctx context.Context, text string, sctx engine.SessionContext) (domain.Classification, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	tokens := tokenize(normalized)

	intent := detectIntent(normalized, tokens)
	sentiment := detectSentiment(normalized, tokens, intent)

	delta := 0
	if strings.Contains(text, "?") || strings.Contains(text, "¿") {
		delta += 2
	}
	if len(tokens) > 5 {
		delta++
	}
	if intent == domain.IntentNegative {
		delta -= 2
	}

	return domain.Classification{
		Intent:          intent,
		Sentiment:       sentiment,
		EngagementDelta: delta,
	}, nil
}

func detectIntent(normalized string, tokens map[string]bool) domain.Intent {
	switch {
	case matches(normalized, tokens, checkoutPhrases, checkoutWords):
		return domain.IntentCheckout
	case matches(normalized, tokens, purchasePhrases, purchaseWords):
		return domain.IntentPurchase
	case matches(normalized, tokens, pricingPhrases, pricingWords):
		return domain.IntentPricing
	case matches(normalized, tokens, customizationPhrases, customizationWords):
		return domain.IntentCustomization
	case matches(normalized, tokens, negativePhrases, negativeWords):
		return domain.IntentNegative
	case matches(normalized, tokens, nil, affirmativeWords):
		return domain.IntentAffirmative
	case len(tokens) > 3:
		return domain.IntentContinuation
	default:
		return domain.IntentGeneric
	}
}

func detectSentiment(normalized string, tokens map[string]bool, intent domain.Intent) domain.Sentiment {
	if intent == domain.IntentNegative || matches(normalized, tokens, nil, negativeSentimentWords) {
		return domain.SentimentNegative
	}
	if matches(normalized, tokens, nil, positiveWords) ||
		intent == domain.IntentPurchase || intent == domain.IntentCheckout ||
		intent == domain.IntentAffirmative {
		return domain.SentimentPositive
	}
	return domain.SentimentNeutral
}

func matches(normalized string, tokens map[string]bool, phrases, words []string) bool {
	for _, p := range phrases {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	for _, w := range words {
		if tokens[w] {
			return true
		}
	}
	return false
}

// tokenize splits text into a lowercase token set. Falls back to
// whitespace splitting if the NLP pipeline rejects the input.
func tokenize(text string) map[string]bool {
	set := make(map[string]bool)
	doc, err := prose.NewDocument(text, prose.WithExtraction(false), prose.WithTagging(false))
	if err != nil {
		for _, f := range strings.Fields(text) {
			set[strings.Trim(f, ".,!?¿¡;:")] = true
		}
		return set
	}
	for _, tok := range doc.Tokens() {
		set[strings.ToLower(tok.Text)] = true
	}
	return set
}
