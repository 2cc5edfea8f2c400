package session_test

import (
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meridianlabs/mnemo/pkg/session"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("Store", func() {
	var (
		clock *fakeClock
		store *session.Store
	)

	newStore := func(maxSessions, maxTurns int, ttl time.Duration) *session.Store {
		return session.NewStore(session.Config{
			MaxSessions: maxSessions,
			MaxTurns:    maxTurns,
			TTL:         ttl,
			Now:         clock.Now,
		})
	}

	BeforeEach(func() {
		clock = newFakeClock()
		store = newStore(2, 10, time.Hour)
	})

	Describe("Create", func() {
		It("evicts the least-recently-used session at capacity", func() {
			store.Create("A")
			store.Create("B")
			store.Create("C")

			_, ok := store.Get("A")
			Expect(ok).To(BeFalse())
			_, ok = store.Get("B")
			Expect(ok).To(BeTrue())
			_, ok = store.Get("C")
			Expect(ok).To(BeTrue())
			Expect(store.Stats().Total).To(Equal(2))
		})

		It("counts a Get as an access for LRU ordering", func() {
			store.Create("A")
			store.Create("B")

			_, ok := store.Get("A")
			Expect(ok).To(BeTrue())

			store.Create("C")

			// B was least recently used, so B is the one evicted.
			_, ok = store.Get("B")
			Expect(ok).To(BeFalse())
			_, ok = store.Get("A")
			Expect(ok).To(BeTrue())
		})

		It("replaces an existing session without eviction", func() {
			store.Create("A")
			store.AppendTurn("A", "hi", "hello", nil)
			store.Create("B")

			replaced := store.Create("A")
			Expect(replaced.TurnCount).To(Equal(0))
			Expect(replaced.Turns).To(BeEmpty())

			_, ok := store.Get("B")
			Expect(ok).To(BeTrue())
		})

		It("never exceeds capacity", func() {
			for i := range 20 {
				store.Create(fmt.Sprintf("s-%d", i))
			}
			Expect(store.Stats().Total).To(Equal(2))
		})
	})

	Describe("AppendTurn", func() {
		It("auto-vivifies a missing session", func() {
			sess := store.AppendTurn("fresh", "question", "answer", nil)
			Expect(sess.TurnCount).To(Equal(1))
			Expect(sess.Turns).To(HaveLen(1))
			Expect(sess.Turns[0].Number).To(Equal(1))
		})

		It("slides the window while turn numbers keep increasing", func() {
			for i := range 12 {
				store.AppendTurn("chat", fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i), nil)
			}

			turns := store.RecentTurns("chat", 0)
			Expect(turns).To(HaveLen(10))
			Expect(turns[0].Number).To(Equal(3))
			Expect(turns[9].Number).To(Equal(12))
			for i := 1; i < len(turns); i++ {
				Expect(turns[i].Number).To(Equal(turns[i-1].Number + 1))
			}
		})

		It("preserves turn metadata", func() {
			store.AppendTurn("chat", "q", "a", map[string]any{"intent": "lookup"})
			turns := store.RecentTurns("chat", 1)
			Expect(turns[0].Metadata).To(HaveKeyWithValue("intent", "lookup"))
		})

		It("serializes concurrent appends with unique increasing numbers", func() {
			const goroutines = 8
			const perGoroutine = 25

			var wg sync.WaitGroup
			wg.Add(goroutines)
			for g := range goroutines {
				go func(g int) {
					defer wg.Done()
					for i := range perGoroutine {
						store.AppendTurn("shared", fmt.Sprintf("u%d-%d", g, i), "a", nil)
					}
				}(g)
			}
			wg.Wait()

			sess, ok := store.Get("shared")
			Expect(ok).To(BeTrue())
			Expect(sess.TurnCount).To(Equal(goroutines * perGoroutine))

			turns := store.RecentTurns("shared", 0)
			Expect(turns).To(HaveLen(10))
			seen := map[int]bool{}
			for i, turn := range turns {
				Expect(seen[turn.Number]).To(BeFalse())
				seen[turn.Number] = true
				if i > 0 {
					Expect(turn.Number).To(BeNumerically(">", turns[i-1].Number))
				}
			}
		})
	})

	Describe("TTL expiry", func() {
		It("treats an idle session as absent and removes it on read", func() {
			store.Create("stale")
			clock.Advance(61 * time.Minute)

			_, ok := store.Get("stale")
			Expect(ok).To(BeFalse())
			Expect(store.Stats().Total).To(Equal(0))
		})

		It("keeps a session alive while it is being accessed", func() {
			store.Create("active")
			for range 4 {
				clock.Advance(30 * time.Minute)
				_, ok := store.Get("active")
				Expect(ok).To(BeTrue())
			}
		})

		It("auto-vivifies a fresh session over an expired one", func() {
			store.AppendTurn("chat", "old", "old", nil)
			clock.Advance(2 * time.Hour)

			sess := store.AppendTurn("chat", "new", "new", nil)
			Expect(sess.TurnCount).To(Equal(1))
			Expect(sess.Turns[0].UserMessage).To(Equal("new"))
		})

		It("CleanupExpired removes all stale sessions and reports the count", func() {
			store = newStore(10, 10, time.Hour)
			store.Create("a")
			store.Create("b")
			clock.Advance(2 * time.Hour)
			store.Create("c")

			Expect(store.CleanupExpired()).To(Equal(2))
			Expect(store.Stats().Total).To(Equal(1))
		})
	})

	Describe("RecentTurns", func() {
		It("returns an empty slice for an absent session", func() {
			Expect(store.RecentTurns("nope", 5)).To(BeEmpty())
		})

		It("returns the last n turns in original order", func() {
			for i := 1; i <= 5; i++ {
				store.AppendTurn("chat", fmt.Sprintf("u%d", i), "a", nil)
			}
			turns := store.RecentTurns("chat", 2)
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].Number).To(Equal(4))
			Expect(turns[1].Number).To(Equal(5))
		})

		It("returns a copy callers cannot use to mutate the ledger", func() {
			store.AppendTurn("chat", "original", "a", nil)
			turns := store.RecentTurns("chat", 0)
			turns[0].UserMessage = "tampered"

			again := store.RecentTurns("chat", 0)
			Expect(again[0].UserMessage).To(Equal("original"))
		})
	})

	Describe("Delete", func() {
		It("reports whether the session existed", func() {
			store.Create("gone")
			Expect(store.Delete("gone")).To(BeTrue())
			Expect(store.Delete("gone")).To(BeFalse())
		})
	})

	Describe("Stats", func() {
		It("reports utilization", func() {
			store.Create("one")
			stats := store.Stats()
			Expect(stats.Total).To(Equal(1))
			Expect(stats.Max).To(Equal(2))
			Expect(stats.Utilization).To(BeNumerically("~", 0.5))
		})
	})
})
