package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/techaura/aurabot/internal/domain"
	"github.com/techaura/aurabot/internal/logging"
)

// SessionStore owns the canonical in-memory session table. Access is
// serialized per contact: concurrent Apply calls for the same contact
// never lose updates, while different contacts proceed independently.
// The durable mirror is best-effort; its failures are logged and swallowed.
type SessionStore struct {
	cfg    Config
	log    *logging.Logger
	mirror Mirror
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*storeEntry
}

type storeEntry struct {
	mu     sync.Mutex
	loaded bool
	sess   *domain.Session
}

// NewSessionStore creates a store. mirror may be nil for memory-only runs.
func NewSessionStore(cfg Config, mirror Mirror, log *logging.Logger) *SessionStore {
	return &SessionStore{
		cfg:      cfg,
		log:      log.Sub("sessions"),
		mirror:   mirror,
		now:      time.Now,
		sessions: make(map[string]*storeEntry),
	}
}

// entry returns the per-contact entry, creating it if needed. The entry's
// own lock serializes all session mutation for that contact.
func (s *SessionStore) entry(contact string) *storeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[contact]
	if !ok {
		e = &storeEntry{}
		s.sessions[contact] = e
	}
	return e
}

// ensureLoadedLocked lazily materializes the session, consulting the
// mirror once before falling back to a fresh default session.
func (s *SessionStore) ensureLoadedLocked(contact string, e *storeEntry) {
	if e.loaded {
		return
	}
	e.loaded = true

	if s.mirror != nil {
		sess, err := s.mirror.Load(contact)
		if err != nil {
			s.log.Warn().Err(err).Str("contact", contact).Msg("mirror load failed, starting fresh")
		} else if sess != nil {
			// A restart loses the scheduler queue, so a mirrored pending
			// handle is stale by definition.
			sess.PendingTaskID = ""
			e.sess = sess
			return
		}
	}
	e.sess = domain.NewSession(contact, s.now())
	s.log.Debug().Str("contact", contact).Msg("session created")
}

// GetOrCreate returns a snapshot of the session for the contact, creating
// it with defaults on first call. Unknown contacts are never an error.
func (s *SessionStore) GetOrCreate(contact string) *domain.Session {
	e := s.entry(contact)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.ensureLoadedLocked(contact, e)
	return e.sess.Clone()
}

// Apply performs an atomic read-modify-write on the contact's session and
// returns a snapshot of the result. The session is created lazily.
func (s *SessionStore) Apply(contact string, fn func(*domain.Session)) *domain.Session {
	e := s.entry(contact)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.ensureLoadedLocked(contact, e)

	fn(e.sess)
	s.persistLocked(e.sess)
	return e.sess.Clone()
}

// Peek returns a snapshot without creating the session.
func (s *SessionStore) Peek(contact string) (*domain.Session, bool) {
	s.mu.Lock()
	e, ok := s.sessions[contact]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil, false
	}
	return e.sess.Clone(), true
}

// Contacts lists all resident contacts, sorted for stable output.
func (s *SessionStore) Contacts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for c, e := range s.sessions {
		if e.sess != nil {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Sweep removes sessions idle beyond the retention horizon and returns the
// removed contacts so the caller can cancel their pending tasks. Converted,
// VIP, and mid-conversion (closing) sessions are retained.
func (s *SessionStore) Sweep(horizon time.Duration) []string {
	cutoff := s.now().Add(-horizon)

	s.mu.Lock()
	candidates := make(map[string]*storeEntry, len(s.sessions))
	for c, e := range s.sessions {
		candidates[c] = e
	}
	s.mu.Unlock()

	var removed []string
	for contact, e := range candidates {
		e.mu.Lock()
		sess := e.sess
		evict := sess != nil &&
			sess.LastInteraction.Before(cutoff) &&
			sess.Stage != domain.StageConverted &&
			sess.Stage != domain.StageClosing &&
			!sess.Tags.Has(domain.TagVIP)
		e.mu.Unlock()

		if !evict {
			continue
		}

		s.mu.Lock()
		delete(s.sessions, contact)
		s.mu.Unlock()

		if s.mirror != nil {
			if err := s.mirror.Delete(contact); err != nil {
				s.log.Warn().Err(err).Str("contact", contact).Msg("mirror delete failed")
			}
		}
		removed = append(removed, contact)
	}

	if len(removed) > 0 {
		s.log.Info().Int("count", len(removed)).Msg("idle sessions swept")
	}
	return removed
}

// persistLocked mirrors the session, logging and swallowing failures so a
// storage outage never blocks the in-memory authority.
func (s *SessionStore) persistLocked(sess *domain.Session) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Persist(sess); err != nil {
		s.log.Warn().Err(err).Str("contact", sess.Contact).Msg("mirror persist failed")
	}
}
