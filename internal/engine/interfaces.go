package engine

import (
	"context"

	"github.com/techaura/aurabot/internal/domain"
)

// SessionContext is the slice of session state handed to the classifier.
type SessionContext struct {
	Stage           domain.Stage
	BuyingIntent    int
	InteractionLog  []domain.Interaction
	LastInteraction int64 // unix seconds, zero for a fresh session
}

// Classifier turns free-form user text into a classification. The engine
// assumes nothing about the detection technique, only this contract.
type Classifier interface {
	Classify(ctx context.Context, text string, sctx SessionContext) (domain.Classification, error)
}

// Urgency grades how aggressively a follow-up should read.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Renderer composes the exact outbound text for a follow-up.
type Renderer interface {
	Render(sess *domain.Session, urgency Urgency) (string, error)
}

// Sender delivers a message to a contact over a channel. Delivery failures
// are returned as errors; the engine never retries the same fire.
type Sender interface {
	Send(ctx context.Context, contact, content, channel string) error
}

// Mirror is the best-effort durable store behind the in-memory authority.
// All errors are logged and swallowed by the caller; a storage outage never
// blocks a follow-up.
type Mirror interface {
	Persist(sess *domain.Session) error
	Load(contact string) (*domain.Session, error) // (nil, nil) when absent
	Delete(contact string) error
}
