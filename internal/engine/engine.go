// Package engine implements the follow-up scheduling and session-state
// core: session store, stage machine, buying-intent scoring, rate and
// dedup gates, and the deferred-send scheduler.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/techaura/aurabot/internal/domain"
	"github.com/techaura/aurabot/internal/logging"
)

// Engine is the single in-process authority for conversation state and
// follow-up decisions. Inbound, outbound, and system events mutate the
// session store and may (re)plan a deferred send.
type Engine struct {
	cfg        Config
	log        *logging.Logger
	store      *SessionStore
	global     *GlobalLimiter
	sched      *Scheduler
	classifier Classifier
	now        func() time.Time

	subMu sync.RWMutex
	subs  []func(DecisionEvent)
}

// New assembles an engine. mirror may be nil.
func New(
	cfg Config,
	classifier Classifier,
	renderer Renderer,
	sender Sender,
	mirror Mirror,
	log *logging.Logger,
) *Engine {
	e := &Engine{
		cfg:        cfg,
		log:        log.Sub("engine"),
		classifier: classifier,
		now:        time.Now,
	}
	e.store = NewSessionStore(cfg, mirror, log)
	e.global = NewGlobalLimiter(cfg.GlobalHourlyCap, cfg.GlobalDailyCap)
	e.sched = NewScheduler(cfg, e.store, e.global, renderer, sender, e.publish, log)
	return e
}

// Subscribe registers an observer for scheduler decision events.
func (e *Engine) Subscribe(fn func(DecisionEvent)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subs = append(e.subs, fn)
}

func (e *Engine) publish(ev DecisionEvent) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, fn := range e.subs {
		fn(ev)
	}
}

// Run starts the scheduler loop and the retention sweeper and blocks until
// ctx is done.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		e.sched.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(e.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.sweep()
			}
		}
	}()

	wg.Wait()
}

// sweep removes long-idle sessions and cancels their pending tasks.
func (e *Engine) sweep() {
	for _, contact := range e.store.Sweep(e.cfg.RetentionHorizon) {
		e.sched.Cancel(contact)
	}
}

// OnInboundMessage processes a user message: classify, restage, rescore,
// and replan the deferred send. Malformed contacts are rejected with no
// session mutation.
func (e *Engine) OnInboundMessage(ctx context.Context, msg domain.InboundMessage) (*domain.Session, error) {
	contact, err := domain.NormalizeContact(msg.Contact)
	if err != nil {
		return nil, err
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}

	prev := e.store.GetOrCreate(contact)
	cls, err := e.classifier.Classify(ctx, msg.Text, SessionContext{
		Stage:           prev.Stage,
		BuyingIntent:    prev.BuyingIntent,
		InteractionLog:  prev.InteractionLog,
		LastInteraction: unixOrZero(prev.LastInteraction),
	})
	if err != nil {
		// Skip this evaluation cycle: no mutation, no scheduling.
		e.log.Error().Err(err).Str("contact", contact).Msg("classification failed, skipping cycle")
		return prev, fmt.Errorf("classify: %w", err)
	}

	var elapsed time.Duration
	if !prev.LastInteraction.IsZero() {
		elapsed = ts.Sub(prev.LastInteraction)
	}

	snap := e.store.Apply(contact, func(s *domain.Session) {
		s.AppendInteraction(domain.Interaction{
			ID:              uuid.New().String(),
			Timestamp:       ts,
			Text:            msg.Text,
			Direction:       domain.DirectionInbound,
			Intent:          cls.Intent,
			Sentiment:       cls.Sentiment,
			EngagementDelta: cls.EngagementDelta,
			Channel:         msg.Channel,
		}, e.cfg.InteractionLogCap)
		s.Stage = NextStage(s.Stage, cls, elapsed, e.cfg.InactiveAfter)
		s.BuyingIntent = Score(s, e.cfg.ScoreWindow, e.cfg.VIPBonus)
	})

	e.replan(snap)
	return snap, nil
}

// OnOutboundMessage records a bot-sent message for logging symmetry. It
// does not replan; the pending task (if any) keeps its fire time.
func (e *Engine) OnOutboundMessage(ctx context.Context, msg domain.OutboundMessage) (*domain.Session, error) {
	contact, err := domain.NormalizeContact(msg.Contact)
	if err != nil {
		return nil, err
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}

	snap := e.store.Apply(contact, func(s *domain.Session) {
		s.AppendInteraction(domain.Interaction{
			ID:        uuid.New().String(),
			Timestamp: ts,
			Text:      msg.Text,
			Direction: domain.DirectionOutbound,
			Intent:    domain.IntentGeneric,
			Sentiment: domain.SentimentNeutral,
			Channel:   msg.Channel,
		}, e.cfg.InteractionLogCap)
	})
	return snap, nil
}

// OnSystemEvent applies out-of-band events: human agent handover, order
// conversion and reset, blacklisting. Unknown codes are rejected with no
// mutation.
func (e *Engine) OnSystemEvent(ctx context.Context, ev domain.SystemEvent) (*domain.Session, error) {
	contact, err := domain.NormalizeContact(ev.Contact)
	if err != nil {
		return nil, err
	}
	if !ev.Code.Valid() {
		return nil, fmt.Errorf("unrecognized system event code %q", ev.Code)
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}

	snap := e.store.Apply(contact, func(s *domain.Session) {
		switch ev.Code {
		case domain.EventHumanAssigned:
			s.Tags.Add(domain.TagHumanChat)
			t := ts
			s.LastHumanChat = &t
		case domain.EventHumanReleased:
			s.Tags.Remove(domain.TagHumanChat)
		case domain.EventOrderConverted:
			s.Stage = domain.StageConverted
			s.FollowUpTotal = 0 // lifetime cap resets only on conversion
		case domain.EventOrderFailed:
			if s.Stage != domain.StageConverted {
				s.Stage = domain.StageAbandoned
			}
		case domain.EventOrderReset:
			// The only path out of converted.
			if s.Stage == domain.StageConverted {
				s.Stage = domain.StageInterested
			}
		case domain.EventBlacklisted:
			s.Tags.Add(domain.TagBlacklist)
		case domain.EventWhitelisted:
			s.Tags.Remove(domain.TagBlacklist)
		}
		s.AppendInteraction(domain.Interaction{
			ID:        uuid.New().String(),
			Timestamp: ts,
			Text:      string(ev.Code),
			Direction: domain.DirectionSystem,
			Intent:    domain.IntentGeneric,
			Sentiment: domain.SentimentNeutral,
			Channel:   e.cfg.Channel,
		}, e.cfg.InteractionLogCap)
		s.BuyingIntent = Score(s, e.cfg.ScoreWindow, e.cfg.VIPBonus)
	})

	if snap.Stage == domain.StageConverted || snap.Tags.Has(domain.TagBlacklist) {
		e.sched.Cancel(contact)
	}
	return snap, nil
}

// SetTag flips an operator-managed tag (e.g. VIP) on a session.
func (e *Engine) SetTag(contact, tag string, on bool) (*domain.Session, error) {
	normalized, err := domain.NormalizeContact(contact)
	if err != nil {
		return nil, err
	}
	snap := e.store.Apply(normalized, func(s *domain.Session) {
		if on {
			s.Tags.Add(tag)
		} else {
			s.Tags.Remove(tag)
		}
		s.BuyingIntent = Score(s, e.cfg.ScoreWindow, e.cfg.VIPBonus)
	})
	if tag == domain.TagBlacklist && on {
		e.sched.Cancel(normalized)
	}
	return snap, nil
}

// replan refreshes the deferred send for a session after a state change.
// Converted and blacklisted sessions get any pending task canceled; all
// others get a (re)scheduled task keyed to the newest interaction.
func (e *Engine) replan(sess *domain.Session) {
	if sess.Stage == domain.StageConverted || sess.Tags.Has(domain.TagBlacklist) {
		e.sched.Cancel(sess.Contact)
		return
	}
	// Restart the delay from the freshest state.
	e.sched.Cancel(sess.Contact)
	e.sched.Schedule(sess)
}

// --- read-only query surface ---

// SessionView is the operational projection of one session.
type SessionView struct {
	Contact         string       `json:"contact"`
	Stage           domain.Stage `json:"stage"`
	BuyingIntent    int          `json:"buyingIntent"`
	Tags            []string     `json:"tags,omitempty"`
	Interactions    int          `json:"interactions"`
	FollowUpTotal   int          `json:"followUpTotal"`
	LastInteraction time.Time    `json:"lastInteraction"`
	LastFollowUp    *time.Time   `json:"lastFollowUp,omitempty"`
	Pending         bool         `json:"pending"`
}

// View returns the operational projection for one contact.
func (e *Engine) View(contact string) (SessionView, bool) {
	normalized, err := domain.NormalizeContact(contact)
	if err != nil {
		return SessionView{}, false
	}
	sess, ok := e.store.Peek(normalized)
	if !ok {
		return SessionView{}, false
	}
	return e.viewOf(sess), true
}

// Views returns projections for every resident session.
func (e *Engine) Views() []SessionView {
	contacts := e.store.Contacts()
	out := make([]SessionView, 0, len(contacts))
	for _, c := range contacts {
		if sess, ok := e.store.Peek(c); ok {
			out = append(out, e.viewOf(sess))
		}
	}
	return out
}

func (e *Engine) viewOf(sess *domain.Session) SessionView {
	return SessionView{
		Contact:         sess.Contact,
		Stage:           sess.Stage,
		BuyingIntent:    sess.BuyingIntent,
		Tags:            sess.Tags.List(),
		Interactions:    len(sess.InteractionLog),
		FollowUpTotal:   sess.FollowUpTotal,
		LastInteraction: sess.LastInteraction,
		LastFollowUp:    sess.LastFollowUp,
		Pending:         e.sched.Pending(sess.Contact),
	}
}

// LimiterCounters exposes the global limiter for dashboards.
func (e *Engine) LimiterCounters() Counters { return e.global.Snapshot() }

// SchedulerStatus exposes the queue state for dashboards.
func (e *Engine) SchedulerStatus() Status { return e.sched.Status() }

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
