package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techaura/aurabot/internal/domain"
)

type stubRenderer struct {
	content string
	err     error
}

func (r *stubRenderer) Render(_ *domain.Session, _ Urgency) (string, error) {
	return r.content, r.err
}

type stubSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *stubSender) Send(_ context.Context, contact, content, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, contact+": "+content)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func schedConfig() Config {
	cfg := storeConfig()
	cfg.Channel = "whatsapp"
	cfg.GlobalHourlyCap = 40
	cfg.GlobalDailyCap = 300
	cfg.Pacing = time.Millisecond
	cfg.BaseDelay = 4 * time.Hour
	cfg.HotDelay = 2 * time.Hour
	cfg.ChurnDelay = 12 * time.Hour
	cfg.MaxDelay = 24 * time.Hour
	cfg.HotScore = 70
	cfg.HotWindow = 6 * time.Hour
	cfg.ChurnIdle = 48 * time.Hour
	cfg.QueueCapacity = 8
	return cfg
}

type schedHarness struct {
	clock    *fakeClock
	store    *SessionStore
	global   *GlobalLimiter
	sender   *stubSender
	renderer *stubRenderer
	sched    *Scheduler

	mu     sync.Mutex
	events []DecisionEvent
}

func newSchedHarness(t *testing.T, cfg Config) *schedHarness {
	t.Helper()
	h := &schedHarness{
		clock:    newFakeClock(noon),
		sender:   &stubSender{},
		renderer: &stubRenderer{content: "Hola! Seguimos con tu memoria USB?"},
	}
	log := testLogger()
	h.store = NewSessionStore(cfg, nil, log)
	h.store.now = h.clock.Now
	h.global = NewGlobalLimiter(cfg.GlobalHourlyCap, cfg.GlobalDailyCap)
	h.global.now = h.clock.Now
	h.sched = NewScheduler(cfg, h.store, h.global, h.renderer, h.sender, func(ev DecisionEvent) {
		h.mu.Lock()
		h.events = append(h.events, ev)
		h.mu.Unlock()
	}, log)
	h.sched.now = h.clock.Now
	return h
}

func (h *schedHarness) lastEvent() (DecisionEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return DecisionEvent{}, false
	}
	return h.events[len(h.events)-1], true
}

// fireDue pops and fires every due task, returning how many fired.
func (h *schedHarness) fireDue(t *testing.T) int {
	t.Helper()
	n := 0
	for {
		task := h.sched.popDue()
		if task == nil {
			return n
		}
		h.sched.fire(context.Background(), task)
		n++
	}
}

func TestScheduler_Delay(t *testing.T) {
	cfg := schedConfig()
	h := newSchedHarness(t, cfg)

	fresh := domain.NewSession("+573001234567", noon)
	fresh.LastInteraction = noon
	assert.Equal(t, cfg.BaseDelay, h.sched.Delay(fresh))

	hot := domain.NewSession("+573001234567", noon)
	hot.LastInteraction = noon.Add(-time.Hour)
	hot.BuyingIntent = 85
	assert.Equal(t, cfg.HotDelay, h.sched.Delay(hot))

	// High score alone is not enough once the interaction ages out.
	stale := domain.NewSession("+573001234567", noon)
	stale.LastInteraction = noon.Add(-10 * time.Hour)
	stale.BuyingIntent = 85
	assert.Equal(t, cfg.BaseDelay, h.sched.Delay(stale))

	churn := domain.NewSession("+573001234567", noon)
	churn.LastInteraction = noon.Add(-60 * time.Hour)
	assert.Equal(t, cfg.ChurnDelay, h.sched.Delay(churn))
}

func TestScheduler_DelayCappedAtMax(t *testing.T) {
	cfg := schedConfig()
	cfg.ChurnDelay = 48 * time.Hour
	h := newSchedHarness(t, cfg)

	churn := domain.NewSession("+573001234567", noon)
	churn.LastInteraction = noon.Add(-60 * time.Hour)
	assert.Equal(t, cfg.MaxDelay, h.sched.Delay(churn))
}

func TestScheduler_ScheduleOncePerContact(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	sess := h.store.GetOrCreate("+573001234567")
	h.sched.Schedule(sess)
	h.sched.Schedule(sess)

	assert.Equal(t, 1, h.sched.Status().Pending)
	assert.True(t, h.sched.Pending("+573001234567"))

	after, _ := h.store.Peek("+573001234567")
	assert.NotEmpty(t, after.PendingTaskID)
}

func TestScheduler_ScheduleSkipsExcluded(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	converted := h.store.Apply("+573001111111", func(s *domain.Session) {
		s.Stage = domain.StageConverted
	})
	h.sched.Schedule(converted)

	blacklisted := h.store.Apply("+573002222222", func(s *domain.Session) {
		s.Tags.Add(domain.TagBlacklist)
	})
	h.sched.Schedule(blacklisted)

	assert.Equal(t, 0, h.sched.Status().Pending)
}

func TestScheduler_CancelIdempotent(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	h.sched.Cancel("+573001234567") // nothing scheduled

	sess := h.store.GetOrCreate("+573001234567")
	h.sched.Schedule(sess)
	h.sched.Cancel("+573001234567")
	h.sched.Cancel("+573001234567")

	assert.False(t, h.sched.Pending("+573001234567"))
	after, _ := h.store.Peek("+573001234567")
	assert.Empty(t, after.PendingTaskID)
}

func TestScheduler_OverflowEvictsStalest(t *testing.T) {
	cfg := schedConfig()
	cfg.QueueCapacity = 2
	h := newSchedHarness(t, cfg)

	// Hot contact gets the short delay; the base-delay contact is the
	// stalest (furthest fire time) and is the one evicted.
	hot := h.store.Apply("+573001111111", func(s *domain.Session) {
		s.BuyingIntent = 85
		s.LastInteraction = noon
	})
	base := h.store.Apply("+573002222222", func(s *domain.Session) {
		s.LastInteraction = noon
	})
	third := h.store.Apply("+573003333333", func(s *domain.Session) {
		s.LastInteraction = noon
	})

	h.sched.Schedule(hot)
	h.sched.Schedule(base)
	h.sched.Schedule(third)

	assert.Equal(t, 2, h.sched.Status().Pending)
	assert.True(t, h.sched.Pending("+573001111111"))
	assert.False(t, h.sched.Pending("+573002222222"))
	assert.True(t, h.sched.Pending("+573003333333"))

	evicted, _ := h.store.Peek("+573002222222")
	assert.Empty(t, evicted.PendingTaskID, "eviction releases the pending handle")
}

func TestScheduler_FireSendsAndRecords(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon
	})
	h.sched.Schedule(sess)

	h.clock.Advance(5 * time.Hour) // past BaseDelay, still inside business hours
	require.Equal(t, 1, h.fireDue(t))
	assert.Equal(t, 1, h.sender.count())

	after, _ := h.store.Peek("+573001234567")
	require.NotNil(t, after.LastFollowUp)
	assert.Equal(t, 1, after.FollowUpTotal)
	assert.True(t, after.HasSentHash(Fingerprint(h.renderer.content)))
	assert.Empty(t, after.PendingTaskID)

	last := after.InteractionLog[len(after.InteractionLog)-1]
	assert.Equal(t, domain.DirectionOutbound, last.Direction)
	assert.Equal(t, h.renderer.content, last.Text)

	assert.Equal(t, 1, h.global.Snapshot().DayUsed)

	ev, ok := h.lastEvent()
	require.True(t, ok)
	assert.Equal(t, ActionSent, ev.Action)
}

func TestScheduler_FireSuppressesDuplicateContent(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon
		s.AddSentHash(Fingerprint(h.renderer.content), 20)
	})
	h.sched.Schedule(sess)

	h.clock.Advance(5 * time.Hour)
	require.Equal(t, 1, h.fireDue(t))
	assert.Equal(t, 0, h.sender.count())

	after, _ := h.store.Peek("+573001234567")
	assert.Nil(t, after.LastFollowUp, "a suppressed send records no timestamp")
	assert.Empty(t, after.PendingTaskID)

	ev, _ := h.lastEvent()
	assert.Equal(t, ActionSuppressed, ev.Action)
	assert.Equal(t, domain.ReasonDuplicateContent, ev.Reason)
}

func TestScheduler_FireSuppressesOutsideBusinessHours(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon
	})
	h.sched.Schedule(sess)

	h.clock.Advance(11 * time.Hour) // 23:00
	require.Equal(t, 1, h.fireDue(t))
	assert.Equal(t, 0, h.sender.count())

	ev, _ := h.lastEvent()
	assert.Equal(t, domain.ReasonOutsideBusinessHours, ev.Reason)
}

func TestScheduler_FireSuppressesMinInterval(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon
		s.RecordFollowUp(noon.Add(3*time.Hour), 10)
	})
	h.sched.Schedule(sess)

	h.clock.Advance(5 * time.Hour)
	require.Equal(t, 1, h.fireDue(t))
	assert.Equal(t, 0, h.sender.count())

	ev, _ := h.lastEvent()
	assert.Equal(t, domain.ReasonMinInterval, ev.Reason)
}

func TestScheduler_FireSuppressesConvertedSinceScheduling(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon
	})
	h.sched.Schedule(sess)

	// The contact converts before the task fires.
	h.store.Apply("+573001234567", func(s *domain.Session) {
		s.Stage = domain.StageConverted
	})

	h.clock.Advance(5 * time.Hour)
	require.Equal(t, 1, h.fireDue(t))
	assert.Equal(t, 0, h.sender.count())

	ev, _ := h.lastEvent()
	assert.Equal(t, domain.ReasonConverted, ev.Reason)
}

func TestScheduler_FireSendFailureLeavesStateUntouched(t *testing.T) {
	h := newSchedHarness(t, schedConfig())
	h.sender.err = errors.New("transport unavailable")

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon
	})
	h.sched.Schedule(sess)

	h.clock.Advance(5 * time.Hour)
	require.Equal(t, 1, h.fireDue(t))

	after, _ := h.store.Peek("+573001234567")
	assert.Nil(t, after.LastFollowUp)
	assert.False(t, after.HasSentHash(Fingerprint(h.renderer.content)))
	assert.Empty(t, after.PendingTaskID, "the handle is consumed even on failure")
	assert.Equal(t, 0, h.global.Snapshot().DayUsed)

	ev, _ := h.lastEvent()
	assert.Equal(t, domain.ReasonSendFailed, ev.Reason)
}

func TestScheduler_FireSupersededTask(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon
	})
	h.sched.Schedule(sess)

	// A newer plan replaced the handle while this task sat in the queue.
	h.store.Apply("+573001234567", func(s *domain.Session) {
		s.PendingTaskID = "newer-task"
	})

	h.clock.Advance(5 * time.Hour)
	require.Equal(t, 1, h.fireDue(t))
	assert.Equal(t, 0, h.sender.count())

	after, _ := h.store.Peek("+573001234567")
	assert.Equal(t, "newer-task", after.PendingTaskID, "a superseded fire never touches the newer handle")

	ev, _ := h.lastEvent()
	assert.Equal(t, domain.ReasonTaskSuperseded, ev.Reason)
}

func TestScheduler_FireSessionGone(t *testing.T) {
	h := newSchedHarness(t, schedConfig())

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon.Add(-100 * time.Hour)
	})
	h.sched.Schedule(sess)
	h.store.Sweep(72 * time.Hour)

	h.clock.Advance(25 * time.Hour)
	require.Equal(t, 1, h.fireDue(t))
	assert.Equal(t, 0, h.sender.count())

	// The fire must not resurrect the swept session.
	_, ok := h.store.Peek("+573001234567")
	assert.False(t, ok)

	ev, _ := h.lastEvent()
	assert.Equal(t, domain.ReasonSessionGone, ev.Reason)
}

func TestScheduler_FireRenderFailure(t *testing.T) {
	h := newSchedHarness(t, schedConfig())
	h.renderer.err = errors.New("template broken")

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = noon
	})
	h.sched.Schedule(sess)

	h.clock.Advance(5 * time.Hour)
	require.Equal(t, 1, h.fireDue(t))
	assert.Equal(t, 0, h.sender.count())

	after, _ := h.store.Peek("+573001234567")
	assert.Empty(t, after.PendingTaskID)
}

func TestScheduler_RunLoopFiresDueTask(t *testing.T) {
	cfg := schedConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	h := newSchedHarness(t, cfg)

	// Run against the real clock for this one end-to-end pass.
	h.sched.now = time.Now
	h.store.now = time.Now
	h.global.now = time.Now

	now := time.Now()
	if now.Hour() < 9 || now.Hour() >= 20 {
		t.Skip("run-loop pass needs the in-hours window")
	}

	sess := h.store.Apply("+573001234567", func(s *domain.Session) {
		s.LastInteraction = now
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.sched.Run(ctx)

	h.sched.Schedule(sess)

	deadline := time.After(2 * time.Second)
	for h.sender.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("due task never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	h.sched.Stop()
}
