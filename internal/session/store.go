// Package session keeps in-memory wizard state per client token.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joelkehle/roi-copilot/internal/wizard"
)

const DefaultTTL = 30 * time.Minute

// Session owns one study. Controller access is serialized through Do.
type Session struct {
	Token     string
	CreatedAt time.Time

	mu        sync.Mutex
	ctrl      *wizard.Controller
	lastSeen  atomic.Int64
	busy      atomic.Bool
	searchSeq atomic.Uint64
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Do runs fn with exclusive access to the controller.
func (s *Session) Do(fn func(c *wizard.Controller) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ctrl)
}

// TryBeginSubmit claims the submit slot. A second submit while one is in
// flight gets false and must be rejected, not queued.
func (s *Session) TryBeginSubmit() bool { return s.busy.CompareAndSwap(false, true) }

func (s *Session) EndSubmit() { s.busy.Store(false) }

func (s *Session) Busy() bool { return s.busy.Load() }

// BeginSearch numbers a new search; only the latest number may be shown.
func (s *Session) BeginSearch() uint64 { return s.searchSeq.Add(1) }

func (s *Session) IsLatestSearch(n uint64) bool { return s.searchSeq.Load() == n }

type Options struct {
	TTL    time.Duration
	Wizard wizard.Options
	Log    *zap.Logger
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	wizard   wizard.Options
	log      *zap.Logger
	now      func() time.Time
}

func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		wizard:   opts.Wizard,
		log:      log,
		now:      time.Now,
	}
}

func (st *Store) Create() *Session {
	now := st.now()
	sess := &Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ctrl:      wizard.New(st.wizard),
	}
	sess.touch(now)
	st.mu.Lock()
	st.sessions[sess.Token] = sess
	st.mu.Unlock()
	st.log.Info("session_created", zap.String("token", sess.Token))
	return sess
}

// Get returns a live session and marks it used.
func (st *Store) Get(token string) (*Session, bool) {
	st.mu.RLock()
	sess, ok := st.sessions[token]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := st.now()
	if now.Sub(sess.LastSeen()) > st.ttl {
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

func (st *Store) Delete(token string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[token]; !ok {
		return false
	}
	delete(st.sessions, token)
	return true
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops idle sessions and reports how many went away. Sessions with a
// submit in flight are kept.
func (st *Store) Sweep() int {
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for token, sess := range st.sessions {
		if sess.Busy() || now.Sub(sess.LastSeen()) <= st.ttl {
			continue
		}
		delete(st.sessions, token)
		n++
	}
	return n
}

// Run sweeps on every tick until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = st.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				st.log.Info("session_sweep", zap.Int("expired", n), zap.Int("live", st.Len()))
			}
		}
	}
}
