package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techaura/aurabot/internal/domain"
)

// stubClassifier maps exact texts to classifications; unknown text is
// generic and neutral.
type stubClassifier struct {
	byText map[string]domain.Classification
	err    error
}

func (c *stubClassifier) Classify(_ context.Context, text string, _ SessionContext) (domain.Classification, error) {
	if c.err != nil {
		return domain.Classification{}, c.err
	}
	if cls, ok := c.byText[text]; ok {
		return cls, nil
	}
	return domain.Classification{Intent: domain.IntentGeneric, Sentiment: domain.SentimentNeutral}, nil
}

type engineHarness struct {
	clock      *fakeClock
	classifier *stubClassifier
	renderer   *stubRenderer
	sender     *stubSender
	eng        *Engine
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()
	h := &engineHarness{
		clock: newFakeClock(noon),
		classifier: &stubClassifier{byText: map[string]domain.Classification{
			"cuanto cuesta la de 64GB?": {Intent: domain.IntentPricing, Sentiment: domain.SentimentNeutral},
			"listo, como pago?":         {Intent: domain.IntentCheckout, Sentiment: domain.SentimentPositive},
			"no me interesa":            {Intent: domain.IntentNegative, Sentiment: domain.SentimentNegative},
		}},
		renderer: &stubRenderer{content: "Hola! Seguimos con tu memoria USB?"},
		sender:   &stubSender{},
	}
	h.eng = New(schedConfig(), h.classifier, h.renderer, h.sender, nil, testLogger())
	h.eng.now = h.clock.Now
	h.eng.store.now = h.clock.Now
	h.eng.global.now = h.clock.Now
	h.eng.sched.now = h.clock.Now
	return h
}

func (h *engineHarness) inbound(t *testing.T, contact, text string) *domain.Session {
	t.Helper()
	sess, err := h.eng.OnInboundMessage(context.Background(), domain.InboundMessage{
		Contact:   contact,
		Text:      text,
		Channel:   "whatsapp",
		Timestamp: h.clock.Now(),
	})
	require.NoError(t, err)
	return sess
}

func (h *engineHarness) event(t *testing.T, contact string, code domain.SystemEventCode) *domain.Session {
	t.Helper()
	sess, err := h.eng.OnSystemEvent(context.Background(), domain.SystemEvent{
		Contact:   contact,
		Code:      code,
		Timestamp: h.clock.Now(),
	})
	require.NoError(t, err)
	return sess
}

func TestEngine_InvalidContactRejected(t *testing.T) {
	h := newEngineHarness(t)

	_, err := h.eng.OnInboundMessage(context.Background(), domain.InboundMessage{
		Contact: "not-a-phone", Text: "hola",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidContact)

	_, err = h.eng.OnSystemEvent(context.Background(), domain.SystemEvent{
		Contact: "12345-67890-11@g.us", Code: domain.EventBlacklisted,
	})
	assert.ErrorIs(t, err, domain.ErrNonIndividualContact)

	assert.Empty(t, h.eng.Views(), "rejected events must not create sessions")
}

func TestEngine_PricingMessageAdvancesFreshSession(t *testing.T) {
	h := newEngineHarness(t)

	sess := h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")
	assert.Equal(t, domain.StagePricing, sess.Stage)
	assert.Equal(t, intentWeights[domain.IntentPricing], sess.BuyingIntent)

	// A follow-up is planned, never sent inline.
	assert.Equal(t, 0, h.sender.count())
	assert.True(t, h.eng.sched.Pending("+573001234567"))
	assert.NotEmpty(t, sess.PendingTaskID)
}

func TestEngine_ReplanKeepsOneTaskPerContact(t *testing.T) {
	h := newEngineHarness(t)

	h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")
	first, _ := h.eng.store.Peek("+573001234567")

	h.clock.Advance(time.Hour)
	h.inbound(t, "+573001234567", "listo, como pago?")
	second, _ := h.eng.store.Peek("+573001234567")

	assert.Equal(t, 1, h.eng.SchedulerStatus().Pending)
	assert.NotEqual(t, first.PendingTaskID, second.PendingTaskID, "a replan issues a fresh task")
}

func TestEngine_ClassifierFailureSkipsCycle(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")
	before, _ := h.eng.store.Peek("+573001234567")

	h.classifier.err = errors.New("model unavailable")
	h.clock.Advance(time.Hour)
	snap, err := h.eng.OnInboundMessage(context.Background(), domain.InboundMessage{
		Contact: "+573001234567", Text: "y la de 128GB?", Timestamp: h.clock.Now(),
	})
	require.Error(t, err)
	require.NotNil(t, snap, "the previous snapshot is still returned")

	after, _ := h.eng.store.Peek("+573001234567")
	assert.Equal(t, len(before.InteractionLog), len(after.InteractionLog), "a failed cycle mutates nothing")
	assert.Equal(t, before.Stage, after.Stage)
	assert.Equal(t, before.BuyingIntent, after.BuyingIntent)
}

func TestEngine_OutboundRecordedWithoutReplan(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")
	before, _ := h.eng.store.Peek("+573001234567")

	sess, err := h.eng.OnOutboundMessage(context.Background(), domain.OutboundMessage{
		Contact: "+573001234567", Text: "La de 64GB vale 75.000", Channel: "whatsapp",
		Timestamp: h.clock.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, len(before.InteractionLog)+1, len(sess.InteractionLog))
	assert.Equal(t, domain.DirectionOutbound, sess.InteractionLog[len(sess.InteractionLog)-1].Direction)
	assert.Equal(t, before.PendingTaskID, sess.PendingTaskID, "outbound mirroring keeps the plan")
	assert.Equal(t, 1, h.eng.SchedulerStatus().Pending)
}

func TestEngine_HumanHandoverSuppressesPendingFire(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")

	// An agent takes over shortly before the task comes due.
	h.clock.Advance(4 * time.Hour)
	sess := h.event(t, "+573001234567", domain.EventHumanAssigned)
	assert.True(t, sess.Tags.Has(domain.TagHumanChat))
	require.NotNil(t, sess.LastHumanChat)

	h.clock.Advance(10 * time.Minute)
	var last DecisionEvent
	h.eng.Subscribe(func(ev DecisionEvent) { last = ev })
	for task := h.eng.sched.popDue(); task != nil; task = h.eng.sched.popDue() {
		h.eng.sched.fire(context.Background(), task)
	}

	assert.Equal(t, 0, h.sender.count())
	assert.Equal(t, ActionSuppressed, last.Action)
	assert.Equal(t, domain.ReasonRecentHumanInteraction, last.Reason)

	// After release and grace expiry a later plan can send again.
	h.event(t, "+573001234567", domain.EventHumanReleased)
	after, _ := h.eng.store.Peek("+573001234567")
	assert.False(t, after.Tags.Has(domain.TagHumanChat))
}

func TestEngine_OrderConverted(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001234567", "listo, como pago?")
	require.True(t, h.eng.sched.Pending("+573001234567"))

	sess := h.event(t, "+573001234567", domain.EventOrderConverted)
	assert.Equal(t, domain.StageConverted, sess.Stage)
	assert.Equal(t, 0, sess.FollowUpTotal)
	assert.False(t, h.eng.sched.Pending("+573001234567"), "conversion cancels the pending task")

	// Converted is sticky against ordinary messages.
	again := h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")
	assert.Equal(t, domain.StageConverted, again.Stage)
	assert.False(t, h.eng.sched.Pending("+573001234567"))
}

func TestEngine_OrderFailedAndReset(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")

	sess := h.event(t, "+573001234567", domain.EventOrderFailed)
	assert.Equal(t, domain.StageAbandoned, sess.Stage)

	// A reset without a conversion is a no-op on stage.
	sess = h.event(t, "+573001234567", domain.EventOrderReset)
	assert.Equal(t, domain.StageAbandoned, sess.Stage)

	// order_reset is the only way out of converted.
	h.event(t, "+573001234567", domain.EventOrderConverted)
	sess = h.event(t, "+573001234567", domain.EventOrderFailed)
	assert.Equal(t, domain.StageConverted, sess.Stage, "a failed order never demotes a converted session")
	sess = h.event(t, "+573001234567", domain.EventOrderReset)
	assert.Equal(t, domain.StageInterested, sess.Stage)
}

func TestEngine_BlacklistLifecycle(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")
	require.True(t, h.eng.sched.Pending("+573001234567"))

	sess := h.event(t, "+573001234567", domain.EventBlacklisted)
	assert.True(t, sess.Tags.Has(domain.TagBlacklist))
	assert.Equal(t, 0, sess.BuyingIntent, "blacklisted sessions score zero")
	assert.False(t, h.eng.sched.Pending("+573001234567"))

	sess = h.event(t, "+573001234567", domain.EventWhitelisted)
	assert.False(t, sess.Tags.Has(domain.TagBlacklist))
	assert.Greater(t, sess.BuyingIntent, 0, "the score recovers once whitelisted")
}

func TestEngine_UnknownEventCodeRejected(t *testing.T) {
	h := newEngineHarness(t)
	_, err := h.eng.OnSystemEvent(context.Background(), domain.SystemEvent{
		Contact: "+573001234567", Code: "mystery_code",
	})
	assert.Error(t, err)
	assert.Empty(t, h.eng.Views())
}

func TestEngine_SetTagVIP(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001234567", "cuanto cuesta la de 64GB?")

	sess, err := h.eng.SetTag("+573001234567", domain.TagVIP, true)
	require.NoError(t, err)
	assert.True(t, sess.Tags.Has(domain.TagVIP))
	assert.Equal(t, intentWeights[domain.IntentPricing]+h.eng.cfg.VIPBonus, sess.BuyingIntent)

	sess, err = h.eng.SetTag("+573001234567", domain.TagVIP, false)
	require.NoError(t, err)
	assert.Equal(t, intentWeights[domain.IntentPricing], sess.BuyingIntent)
}

func TestEngine_QuerySurface(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001111111", "cuanto cuesta la de 64GB?")
	h.inbound(t, "+573002222222", "no me interesa")

	view, ok := h.eng.View("+573001111111")
	require.True(t, ok)
	assert.Equal(t, domain.StagePricing, view.Stage)
	assert.Equal(t, 1, view.Interactions)
	assert.True(t, view.Pending)

	_, ok = h.eng.View("+573009999999")
	assert.False(t, ok)

	views := h.eng.Views()
	require.Len(t, views, 2)
	assert.Equal(t, "+573001111111", views[0].Contact)

	counters := h.eng.LimiterCounters()
	assert.Equal(t, 0, counters.DayUsed)
	assert.Equal(t, 300, counters.DayLimit)

	status := h.eng.SchedulerStatus()
	assert.Equal(t, 8, status.Capacity)
	require.NotNil(t, status.NextFireAt)
}

func TestEngine_SweepCancelsPendingTasks(t *testing.T) {
	h := newEngineHarness(t)
	h.inbound(t, "+573001234567", "hola")

	h.clock.Advance(200 * time.Hour)
	h.eng.sweep()

	assert.Empty(t, h.eng.Views())
	assert.False(t, h.eng.sched.Pending("+573001234567"))
}
