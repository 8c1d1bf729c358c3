package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"weak"

	"golang.org/x/sync/singleflight"
)

// DefaultBaseKey is the storage key of the anonymous cart; session carts append ".<session id>".
const DefaultBaseKey = "sustainable-fashion-cart"

// StorageKey returns the store key of a session's cart.
func StorageKey(baseKey, sessionID string) string {
	if sessionID == "" {
		return baseKey
	}
	return baseKey + "." + sessionID
}

type session struct {
	cart     *Container
	lastUsed time.Time
}

// Sessions hands out one Container per session id, restoring it from the
// store on first use. When more than maxSessions carts are live the least
// recently used one is dropped from memory; its items remain in the store.
// A dropped cart that a request still holds is handed out again until it is
// garbage collected, so a session never has two live containers.
type Sessions struct {
	mu          sync.Mutex
	sessions    map[string]*session
	retired     map[string]weak.Pointer[Container]
	loads       singleflight.Group
	store       Store
	baseKey     string
	maxSessions int
	logger      *slog.Logger
	opts        []Option
	now         func() time.Time
}

// NewSessions creates a registry. maxSessions <= 0 means unbounded.
func NewSessions(store Store, baseKey string, maxSessions int, logger *slog.Logger, opts ...Option) *Sessions {
	if baseKey == "" {
		baseKey = DefaultBaseKey
	}
	return &Sessions{
		sessions:    make(map[string]*session),
		retired:     make(map[string]weak.Pointer[Container]),
		store:       store,
		baseKey:     baseKey,
		maxSessions: maxSessions,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
	}
}

// Get returns the cart of sessionID. The first Get of a session loads it from
// the store outside the registry lock; concurrent callers share that load.
// A cart whose earlier load failed is retried here.
func (s *Sessions) Get(ctx context.Context, sessionID string) *Container {
	c, ok := s.lookup(sessionID)
	if !ok {
		v, _, _ := s.loads.Do(sessionID, func() (any, error) {
			if c, ok := s.lookup(sessionID); ok {
				return c, nil
			}
			c := New(ctx, s.store, StorageKey(s.baseKey, sessionID), s.logger, s.opts...)
			s.mu.Lock()
			s.insert(sessionID, c)
			s.mu.Unlock()
			return c, nil
		})
		c = v.(*Container)
	}
	c.Restore(ctx)
	return c
}

// Len returns the number of carts held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) lookup(sessionID string) (*Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.lastUsed = s.now()
		return sess.cart, true
	}
	if wp, ok := s.retired[sessionID]; ok {
		delete(s.retired, sessionID)
		if c := wp.Value(); c != nil {
			s.insert(sessionID, c)
			return c, true
		}
	}
	return nil, false
}

// insert adds a live cart and evicts another one when over capacity. Callers hold s.mu.
func (s *Sessions) insert(sessionID string, c *Container) {
	s.sessions[sessionID] = &session{cart: c, lastUsed: s.now()}
	s.evict(sessionID)
}

func (s *Sessions) evict(keep string) {
	if s.maxSessions <= 0 || len(s.sessions) <= s.maxSessions {
		return
	}
	var (
		oldestID string
		oldest   time.Time
		found    bool
	)
	for id, sess := range s.sessions {
		if id == keep {
			continue
		}
		if !found || sess.lastUsed.Before(oldest) {
			oldestID, oldest, found = id, sess.lastUsed, true
		}
	}
	for id, wp := range s.retired {
		if wp.Value() == nil {
			delete(s.retired, id)
		}
	}
	s.retired[oldestID] = weak.Make(s.sessions[oldestID].cart)
	delete(s.sessions, oldestID)
}
