package session

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

var (
	defaultMaxSessions = 1000
	defaultTTL         = time.Hour
	defaultMaxTurns    = 50
)

// Config holds construction-time settings for a Store.
type Config struct {
	// MaxSessions caps the number of live sessions. Creating a session at
	// capacity evicts the least-recently-used one first; capacity is never
	// exceeded. Defaults to 1000 if zero.
	MaxSessions int

	// TTL is the idle lifetime of a session. A session whose last access is
	// older than TTL is treated as absent and removed lazily on read.
	// Defaults to one hour if zero.
	TTL time.Duration

	// MaxTurns is the sliding-window length of the turn ledger. Appending
	// past it drops the oldest turn. Defaults to 50 if zero.
	MaxTurns int

	// Now returns the current time. Overridable in tests; defaults to time.Now.
	Now func() time.Time

	// Logger is the injected slog logger. Defaults to a discard logger.
	Logger *slog.Logger
}

// entry is the store-internal mutable session state. The LRU list element
// holding an entry is tracked in Store.index so reordering is O(1).
type entry struct {
	id           string
	turns        []Turn
	createdAt    time.Time
	lastAccessed time.Time
	turnCount    int
}

// Store is a thread-safe working-memory session store with LRU eviction and
// TTL expiry. All operations, including LRU reordering, run under a single
// store-wide mutex: session counts are small and bounded by configuration,
// so correctness wins over lock granularity. The lock is never held across
// external I/O.
type Store struct {
	config Config

	mu    sync.Mutex
	order *list.List               // front = least recently used, back = most
	index map[string]*list.Element // session id -> element holding *entry
}

// NewStore creates a session store. Zero-valued config fields fall back to
// package defaults.
func NewStore(config Config) *Store {
	if config.MaxSessions <= 0 {
		config.MaxSessions = defaultMaxSessions
	}
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = defaultMaxTurns
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		config: config,
		order:  list.New(),
		index:  make(map[string]*list.Element),
	}
}

// Get returns a snapshot of the session if present and not expired, refreshing
// its last-accessed time and marking it most-recently-used. An expired session
// is removed as a side effect of the read.
func (s *Store) Get(sessionID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(sessionID)
	if !ok {
		return Session{}, false
	}

	s.touch(s.index[sessionID])
	return snapshot(e), true
}

// Create creates a new empty session, evicting the least-recently-used session
// first if the store is at capacity. Creating over an existing id replaces the
// session outright; there is no merge.
func (s *Store) Create(sessionID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.createLocked(sessionID)
	return snapshot(e)
}

// AppendTurn appends a user/assistant exchange to the session's ledger,
// creating the session first if it does not exist (or has expired). The new
// turn's number is the session's total turn count; when the window overflows,
// the oldest turn is dropped but numbering keeps advancing.
func (s *Store) AppendTurn(sessionID, userMessage, assistantMessage string, metadata map[string]any) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(sessionID)
	if !ok {
		e = s.createLocked(sessionID)
	}

	e.turnCount++
	e.turns = append(e.turns, Turn{
		Number:           e.turnCount,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		Timestamp:        s.config.Now(),
		Metadata:         metadata,
	})
	if len(e.turns) > s.config.MaxTurns {
		e.turns = e.turns[len(e.turns)-s.config.MaxTurns:]
	}

	s.touch(s.index[sessionID])
	return snapshot(e)
}

// RecentTurns returns the last n turns of the session in original order, or
// all retained turns if n <= 0. Absent and expired sessions yield an empty
// slice. The read counts as an access for TTL and LRU purposes.
func (s *Store) RecentTurns(sessionID string, n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(sessionID)
	if !ok {
		return nil
	}
	s.touch(s.index[sessionID])

	turns := e.turns
	if n > 0 && n < len(turns) {
		turns = turns[len(turns)-n:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Delete removes the session and reports whether it existed.
func (s *Store) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.index[sessionID]
	if !ok {
		return false
	}
	s.remove(el)
	return true
}

// CleanupExpired eagerly removes every session past its TTL and returns the
// number removed. Expiry is otherwise handled lazily on read.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Now()
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if now.Sub(e.lastAccessed) > s.config.TTL {
			s.remove(el)
			removed++
		}
		el = next
	}

	if removed > 0 {
		s.config.Logger.Debug("expired sessions removed", "count", removed)
	}
	return removed
}

// Stats returns current store occupancy.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Total:       len(s.index),
		Max:         s.config.MaxSessions,
		Utilization: float64(len(s.index)) / float64(s.config.MaxSessions),
	}
}

// live returns the entry for sessionID if it exists and has not expired.
// Expired entries are evicted on the spot. Callers must hold s.mu.
func (s *Store) live(sessionID string) (*entry, bool) {
	el, ok := s.index[sessionID]
	if !ok {
		return nil, false
	}

	e := el.Value.(*entry)
	if s.config.Now().Sub(e.lastAccessed) > s.config.TTL {
		s.remove(el)
		s.config.Logger.Debug("session expired on read", "session_id", sessionID)
		return nil, false
	}
	return e, true
}

// createLocked inserts a fresh session, evicting the LRU entry if needed.
// Callers must hold s.mu.
func (s *Store) createLocked(sessionID string) *entry {
	if el, ok := s.index[sessionID]; ok {
		// Replacing an existing id frees its slot; no eviction needed.
		s.remove(el)
	} else if len(s.index) >= s.config.MaxSessions {
		front := s.order.Front()
		evicted := front.Value.(*entry)
		s.remove(front)
		s.config.Logger.Debug("session evicted",
			"session_id", evicted.id,
			"last_accessed", evicted.lastAccessed,
		)
	}

	now := s.config.Now()
	e := &entry{
		id:           sessionID,
		createdAt:    now,
		lastAccessed: now,
	}
	s.index[sessionID] = s.order.PushBack(e)
	return e
}

// touch refreshes last-accessed and moves the element to the MRU position.
// Callers must hold s.mu.
func (s *Store) touch(el *list.Element) {
	e := el.Value.(*entry)
	e.lastAccessed = s.config.Now()
	s.order.MoveToBack(el)
}

// remove drops an element from both the LRU list and the index.
// Callers must hold s.mu.
func (s *Store) remove(el *list.Element) {
	e := el.Value.(*entry)
	s.order.Remove(el)
	delete(s.index, e.id)
}

// snapshot copies an entry into a caller-owned Session value.
func snapshot(e *entry) Session {
	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)

	return Session{
		ID:           e.id,
		Turns:        turns,
		CreatedAt:    e.createdAt,
		LastAccessed: e.lastAccessed,
		TurnCount:    e.turnCount,
	}
}
