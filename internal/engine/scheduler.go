package engine

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/techaura/aurabot/internal/domain"
	"github.com/techaura/aurabot/internal/logging"
)

// task is a single-shot deferred send for one contact.
type task struct {
	id        string
	contact   string
	fireAt    time.Time
	createdAt time.Time
	index     int // heap position
}

// taskQueue is a min-heap ordered by fire time.
type taskQueue []*task

func (q taskQueue) Len() int            { return len(q) }
func (q taskQueue) Less(i, j int) bool  { return q[i].fireAt.Before(q[j].fireAt) }
func (q taskQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *taskQueue) Push(x any)         { t := x.(*task); t.index = len(*q); *q = append(*q, t) }
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// DecisionAction names a scheduler decision for the event feed.
type DecisionAction string

const (
	ActionScheduled  DecisionAction = "scheduled"
	ActionCanceled   DecisionAction = "canceled"
	ActionEvicted    DecisionAction = "evicted"
	ActionSuppressed DecisionAction = "suppressed"
	ActionSent       DecisionAction = "sent"
)

// DecisionEvent is emitted for every schedule/cancel/fire outcome so
// operators can observe why a send did or did not happen.
type DecisionEvent struct {
	Time    time.Time      `json:"time"`
	Contact string         `json:"contact"`
	Action  DecisionAction `json:"action"`
	Reason  domain.Reason  `json:"reason,omitempty"`
	FireAt  *time.Time     `json:"fireAt,omitempty"`
}

// Scheduler holds at most one pending deferred send per contact in a
// fire-time min-heap, executes due tasks after re-validating every gate,
// and paces actual transport calls globally.
type Scheduler struct {
	cfg      Config
	log      *logging.Logger
	store    *SessionStore
	global   *GlobalLimiter
	renderer Renderer
	sender   Sender
	notify   func(DecisionEvent)
	pacer    *rate.Limiter
	now      func() time.Time

	mu        sync.Mutex
	queue     taskQueue
	byContact map[string]*task
	wake      chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler wires a scheduler over the store and gates. notify may be
// nil when nobody observes decisions.
func NewScheduler(
	cfg Config,
	store *SessionStore,
	global *GlobalLimiter,
	renderer Renderer,
	sender Sender,
	notify func(DecisionEvent),
	log *logging.Logger,
) *Scheduler {
	if notify == nil {
		notify = func(DecisionEvent) {}
	}
	pacing := cfg.Pacing
	if pacing <= 0 {
		pacing = time.Second
	}
	return &Scheduler{
		cfg:       cfg,
		log:       log.Sub("scheduler"),
		store:     store,
		global:    global,
		renderer:  renderer,
		sender:    sender,
		notify:    notify,
		pacer:     rate.NewLimiter(rate.Every(pacing), 1),
		now:       time.Now,
		byContact: make(map[string]*task),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Delay computes the deferred-send delay for a session: base, shortened
// for high intent with a recent interaction, lengthened for churn risk,
// capped at the maximum.
func (s *Scheduler) Delay(sess *domain.Session) time.Duration {
	now := s.now()
	idle := now.Sub(sess.LastInteraction)

	d := s.cfg.BaseDelay
	switch {
	case sess.BuyingIntent >= s.cfg.HotScore && idle <= s.cfg.HotWindow:
		d = s.cfg.HotDelay
	case idle > s.cfg.ChurnIdle:
		d = s.cfg.ChurnDelay
	}
	if d > s.cfg.MaxDelay {
		d = s.cfg.MaxDelay
	}
	return d
}

// Schedule plans a deferred send for the session. It is a no-op when a
// task is already pending for the contact or the session is converted or
// blacklisted. On queue overflow the stalest pending entry (furthest fire
// time) is evicted to make room.
func (s *Scheduler) Schedule(sess *domain.Session) {
	if sess.Stage == domain.StageConverted || sess.Tags.Has(domain.TagBlacklist) {
		return
	}

	s.mu.Lock()
	if _, exists := s.byContact[sess.Contact]; exists {
		s.mu.Unlock()
		return
	}

	var evicted *task
	if s.cfg.QueueCapacity > 0 && len(s.queue) >= s.cfg.QueueCapacity {
		evicted = s.stalestLocked()
		if evicted != nil {
			heap.Remove(&s.queue, evicted.index)
			delete(s.byContact, evicted.contact)
		}
	}

	now := s.now()
	t := &task{
		id:        uuid.New().String(),
		contact:   sess.Contact,
		fireAt:    now.Add(s.Delay(sess)),
		createdAt: now,
	}
	heap.Push(&s.queue, t)
	s.byContact[t.contact] = t
	s.mu.Unlock()

	if evicted != nil {
		s.store.Apply(evicted.contact, func(es *domain.Session) {
			if es.PendingTaskID == evicted.id {
				es.PendingTaskID = ""
			}
		})
		s.log.Debug().Str("contact", evicted.contact).Msg("stalest pending task evicted on overflow")
		s.notify(DecisionEvent{Time: now, Contact: evicted.contact, Action: ActionEvicted})
	}

	s.store.Apply(t.contact, func(es *domain.Session) {
		es.PendingTaskID = t.id
	})

	fireAt := t.fireAt
	s.log.Debug().
		Str("contact", t.contact).
		Time("fireAt", fireAt).
		Msg("follow-up scheduled")
	s.notify(DecisionEvent{Time: now, Contact: t.contact, Action: ActionScheduled, FireAt: &fireAt})
	s.kick()
}

// stalestLocked returns the pending task with the furthest fire time.
func (s *Scheduler) stalestLocked() *task {
	var stalest *task
	for _, t := range s.queue {
		if stalest == nil || t.fireAt.After(stalest.fireAt) {
			stalest = t
		}
	}
	return stalest
}

// Cancel clears any pending task for the contact. Idempotent: safe to call
// when nothing is scheduled.
func (s *Scheduler) Cancel(contact string) {
	s.mu.Lock()
	t, ok := s.byContact[contact]
	if ok {
		heap.Remove(&s.queue, t.index)
		delete(s.byContact, contact)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.store.Apply(contact, func(es *domain.Session) {
		if es.PendingTaskID == t.id {
			es.PendingTaskID = ""
		}
	})
	s.log.Debug().Str("contact", contact).Msg("pending follow-up canceled")
	s.notify(DecisionEvent{Time: s.now(), Contact: contact, Action: ActionCanceled})
}

// Run is the single scheduling authority: one loop sleeping until the next
// fire time, evaluating due tasks in order. Returns when ctx is done or
// Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	for {
		timer := s.nextTimer()
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stop:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}

		for {
			t := s.popDue()
			if t == nil {
				break
			}
			s.fire(ctx, t)
		}
	}
}

// Stop terminates the run loop.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// Status describes the queue for the operational surface.
type Status struct {
	Pending    int        `json:"pending"`
	Capacity   int        `json:"capacity"`
	NextFireAt *time.Time `json:"nextFireAt,omitempty"`
}

// Status returns a snapshot of the queue.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Pending: len(s.queue), Capacity: s.cfg.QueueCapacity}
	if len(s.queue) > 0 {
		next := s.queue[0].fireAt
		st.NextFireAt = &next
	}
	return st
}

// Pending reports whether a task is queued for the contact.
func (s *Scheduler) Pending(contact string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byContact[contact]
	return ok
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// nextTimer returns a timer for the next fire time, or an idle timer when
// the queue is empty.
func (s *Scheduler) nextTimer() *time.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return time.NewTimer(time.Hour)
	}
	d := time.Until(s.queue[0].fireAt)
	if d < 0 {
		d = 0
	}
	return time.NewTimer(d)
}

// popDue removes and returns the next due task, or nil.
func (s *Scheduler) popDue() *task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 || s.queue[0].fireAt.After(s.now()) {
		return nil
	}
	t := heap.Pop(&s.queue).(*task)
	delete(s.byContact, t.contact)
	return t
}

// fire executes one due task. Every gate is re-validated against current
// state: the session may have drifted since scheduling. Any gate failure
// drops the task (logged, never retried); the pending handle is always
// consumed.
func (s *Scheduler) fire(ctx context.Context, t *task) {
	now := s.now()
	log := s.log.With("contact", t.contact)

	sess, ok := s.store.Peek(t.contact)
	if !ok {
		// Swept between scheduling and firing; nothing left to clear.
		log.Debug().Str("reason", string(domain.ReasonSessionGone)).Msg("follow-up suppressed")
		s.notify(DecisionEvent{Time: now, Contact: t.contact, Action: ActionSuppressed, Reason: domain.ReasonSessionGone})
		return
	}
	if sess.PendingTaskID != t.id {
		// A newer task or a cancel raced this fire.
		s.notify(DecisionEvent{Time: now, Contact: t.contact, Action: ActionSuppressed, Reason: domain.ReasonTaskSuperseded})
		log.Debug().Str("reason", string(domain.ReasonTaskSuperseded)).Msg("follow-up suppressed")
		return
	}

	if sess.Stage == domain.StageConverted {
		s.suppress(t, domain.ReasonConverted, log)
		return
	}
	if sess.Tags.Has(domain.TagBlacklist) {
		s.suppress(t, domain.ReasonBlacklisted, log)
		return
	}

	content, err := s.renderer.Render(sess, urgencyFor(sess.BuyingIntent))
	if err != nil {
		log.Error().Err(err).Msg("render failed, skipping evaluation cycle")
		s.clearPending(t)
		return
	}
	if content == "" {
		s.suppress(t, domain.ReasonEmptyContent, log)
		return
	}

	if sess.HasSentHash(Fingerprint(content)) {
		s.suppress(t, domain.ReasonDuplicateContent, log)
		return
	}

	if reason := s.global.Allow(); !reason.Allowed() {
		s.suppress(t, reason, log)
		return
	}

	if reason := checkSessionGates(sess, s.cfg, now); !reason.Allowed() {
		s.suppress(t, reason, log)
		return
	}

	// Inter-send pacing: serialize actual transport dispatch globally.
	if err := s.pacer.Wait(ctx); err != nil {
		s.clearPending(t)
		return
	}

	if err := s.sender.Send(ctx, t.contact, content, s.cfg.Channel); err != nil {
		// Transport failure: no lastFollowUp or dedup update, so a later
		// re-plan can try again. This fire is not retried.
		log.Warn().Err(err).Msg("follow-up send failed")
		s.suppress(t, domain.ReasonSendFailed, log)
		return
	}

	sent := s.now()
	s.global.Record()
	s.store.Apply(t.contact, func(es *domain.Session) {
		es.RecordFollowUp(sent, s.cfg.FollowUpHistoryCap)
		es.AddSentHash(Fingerprint(content), s.cfg.FingerprintCap)
		es.AppendInteraction(domain.Interaction{
			ID:        uuid.New().String(),
			Timestamp: sent,
			Text:      content,
			Direction: domain.DirectionOutbound,
			Intent:    domain.IntentGeneric,
			Sentiment: domain.SentimentNeutral,
			Channel:   s.cfg.Channel,
		}, s.cfg.InteractionLogCap)
		if es.PendingTaskID == t.id {
			es.PendingTaskID = ""
		}
	})

	log.Info().Msg("follow-up sent")
	s.notify(DecisionEvent{Time: sent, Contact: t.contact, Action: ActionSent})
}

// suppress drops a due task with a reason code and consumes its handle.
func (s *Scheduler) suppress(t *task, reason domain.Reason, log *logging.Logger) {
	s.clearPending(t)
	log.Info().Str("reason", string(reason)).Msg("follow-up suppressed")
	s.notify(DecisionEvent{Time: s.now(), Contact: t.contact, Action: ActionSuppressed, Reason: reason})
}

func (s *Scheduler) clearPending(t *task) {
	s.store.Apply(t.contact, func(es *domain.Session) {
		if es.PendingTaskID == t.id {
			es.PendingTaskID = ""
		}
	})
}

// urgencyFor grades follow-up copy by buying intent.
func urgencyFor(score int) Urgency {
	switch {
	case score >= 70:
		return UrgencyHigh
	case score >= 40:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
