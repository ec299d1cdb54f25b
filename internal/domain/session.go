package domain

import "time"

// Stage classifies how far a conversation has progressed toward a sale.
type Stage string

const (
	StageInitial     Stage = "initial"
	StageInterested  Stage = "interested"
	StagePricing     Stage = "pricing"
	StageCustomizing Stage = "customizing"
	StageClosing     Stage = "closing"
	StageAbandoned   Stage = "abandoned"
	StageInactive    Stage = "inactive"
	StageConverted   Stage = "converted"
)

// Valid reports whether s is a known stage label.
func (s Stage) Valid() bool {
	switch s {
	case StageInitial, StageInterested, StagePricing, StageCustomizing,
		StageClosing, StageAbandoned, StageInactive, StageConverted:
		return true
	}
	return false
}

// Session tags. Blacklist and human-chat-active are exclusion flags
// consulted by every send gate.
const (
	TagVIP       = "vip"
	TagBlacklist = "blacklist"
	TagHumanChat = "human-chat-active"
)

// Direction indicates who produced an interaction.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionSystem   Direction = "system"
)

// Intent is the classified purpose of a user message, ordered here from
// most to least specific.
type Intent string

const (
	IntentCheckout      Intent = "checkout"      // explicit checkout/payment signal
	IntentPurchase      Intent = "purchase"      // explicit purchase intent
	IntentPricing       Intent = "pricing"       // price inquiry
	IntentCustomization Intent = "customization" // customization or demo request
	IntentAffirmative   Intent = "affirmative"   // generic positive signal
	IntentNegative      Intent = "negative"      // rejection
	IntentContinuation  Intent = "continuation"  // keeps the conversation going
	IntentGeneric       Intent = "generic"       // nothing recognizable
)

// Sentiment is the classified tone of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Classification is the output contract of the text classifier.
type Classification struct {
	Intent          Intent    `json:"intent"`
	Sentiment       Sentiment `json:"sentiment"`
	EngagementDelta int       `json:"engagementDelta"`
}

// Interaction is a single recorded turn in a conversation. Immutable once
// appended to a session's log.
type Interaction struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Text            string    `json:"text"`
	Direction       Direction `json:"direction"`
	Intent          Intent    `json:"intent"`
	Sentiment       Sentiment `json:"sentiment"`
	EngagementDelta int       `json:"engagementDelta"`
	Channel         string    `json:"channel"`
}

// Session is the canonical per-conversation record. Identity is the
// normalized contact address. All mutation goes through the engine's
// session store, which serializes access per contact.
type Session struct {
	Contact         string        `json:"contact"`
	Stage           Stage         `json:"stage"`
	BuyingIntent    int           `json:"buyingIntent"`
	Tags            TagSet        `json:"tags,omitempty"`
	InteractionLog  []Interaction `json:"interactionLog,omitempty"`
	FollowUpHistory []time.Time   `json:"followUpHistory,omitempty"`
	FollowUpTotal   int           `json:"followUpTotal"` // lifetime count, reset on conversion
	LastInteraction time.Time     `json:"lastInteraction"`
	LastFollowUp    *time.Time    `json:"lastFollowUp,omitempty"`
	SentHashes      []uint64      `json:"sentHashes,omitempty"`
	PendingTaskID   string        `json:"pendingTaskId,omitempty"`
	LastHumanChat   *time.Time    `json:"lastHumanChat,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// NewSession creates a session in its default state.
func NewSession(contact string, now time.Time) *Session {
	return &Session{
		Contact:   contact,
		Stage:     StageInitial,
		Tags:      TagSet{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendInteraction appends to the bounded interaction log, evicting the
// oldest entry when cap is exceeded.
func (s *Session) AppendInteraction(in Interaction, cap int) {
	s.InteractionLog = append(s.InteractionLog, in)
	if cap > 0 && len(s.InteractionLog) > cap {
		s.InteractionLog = s.InteractionLog[len(s.InteractionLog)-cap:]
	}
	s.LastInteraction = in.Timestamp
	s.UpdatedAt = in.Timestamp
}

// RecordFollowUp appends a follow-up timestamp to the bounded history and
// bumps the lifetime counter.
func (s *Session) RecordFollowUp(ts time.Time, cap int) {
	s.FollowUpHistory = append(s.FollowUpHistory, ts)
	if cap > 0 && len(s.FollowUpHistory) > cap {
		s.FollowUpHistory = s.FollowUpHistory[len(s.FollowUpHistory)-cap:]
	}
	t := ts
	s.LastFollowUp = &t
	s.FollowUpTotal++
	s.UpdatedAt = ts
}

// HasSentHash reports whether a content fingerprint was already delivered.
func (s *Session) HasSentHash(h uint64) bool {
	for _, have := range s.SentHashes {
		if have == h {
			return true
		}
	}
	return false
}

// AddSentHash records a delivered content fingerprint, evicting the oldest
// when cap is exceeded.
func (s *Session) AddSentHash(h uint64, cap int) {
	if s.HasSentHash(h) {
		return
	}
	s.SentHashes = append(s.SentHashes, h)
	if cap > 0 && len(s.SentHashes) > cap {
		s.SentHashes = s.SentHashes[len(s.SentHashes)-cap:]
	}
}

// FollowUpsSince counts follow-up sends recorded at or after cutoff.
func (s *Session) FollowUpsSince(cutoff time.Time) int {
	n := 0
	for _, ts := range s.FollowUpHistory {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (s *Session) Clone() *Session {
	c := *s
	c.Tags = s.Tags.Clone()
	c.InteractionLog = append([]Interaction(nil), s.InteractionLog...)
	c.FollowUpHistory = append([]time.Time(nil), s.FollowUpHistory...)
	c.SentHashes = append([]uint64(nil), s.SentHashes...)
	if s.LastFollowUp != nil {
		t := *s.LastFollowUp
		c.LastFollowUp = &t
	}
	if s.LastHumanChat != nil {
		t := *s.LastHumanChat
		c.LastHumanChat = &t
	}
	return &c
}

// TagSet is an unordered set of session labels.
type TagSet map[string]bool

// Has reports whether the tag is present.
func (t TagSet) Has(tag string) bool { return t[tag] }

// Add inserts a tag.
func (t TagSet) Add(tag string) { t[tag] = true }

// Remove deletes a tag if present.
func (t TagSet) Remove(tag string) { delete(t, tag) }

// Clone copies the set.
func (t TagSet) Clone() TagSet {
	c := make(TagSet, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// List returns the tags as a slice (order unspecified).
func (t TagSet) List() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	return out
}
