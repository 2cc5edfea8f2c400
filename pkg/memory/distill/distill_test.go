package distill_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meridianlabs/mnemo/pkg/eventstream"
	"github.com/meridianlabs/mnemo/pkg/extract"
	"github.com/meridianlabs/mnemo/pkg/memory"
	"github.com/meridianlabs/mnemo/pkg/memory/distill"
	"github.com/meridianlabs/mnemo/pkg/session"
	testutils "github.com/meridianlabs/mnemo/pkg/utils/test"
)

var _ = Describe("Pipeline", func() {
	var (
		ctx        context.Context
		sessions   *session.Store
		collection *testutils.MockCollection
		episodic   *memory.Tier
		extractor  *testutils.MockExtractor
		publisher  *testutils.MockPublisher
		now        time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		sessions = session.NewStore(session.Config{})
		collection = testutils.NewMockCollection()
		episodic = memory.NewTier(collection, "episodic", nil)
		extractor = testutils.NewMockExtractor()
		publisher = testutils.NewMockPublisher()
		now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	})

	newPipeline := func(deduper *memory.Deduplicator) *distill.Pipeline {
		p, err := distill.NewPipeline(distill.Config{
			Sessions:  sessions,
			Episodic:  episodic,
			Extractor: extractor,
			Deduper:   deduper,
			Publisher: publisher,
			Window:    20,
			Now:       func() time.Time { return now },
		})
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	Describe("NewPipeline", func() {
		It("requires a session store", func() {
			_, err := distill.NewPipeline(distill.Config{Episodic: episodic, Extractor: extractor})
			Expect(err).To(HaveOccurred())
		})

		It("requires an episodic tier", func() {
			_, err := distill.NewPipeline(distill.Config{Sessions: sessions, Extractor: extractor})
			Expect(err).To(HaveOccurred())
		})

		It("requires an extractor", func() {
			_, err := distill.NewPipeline(distill.Config{Sessions: sessions, Episodic: episodic})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Run", func() {
		It("stores extracted facts with session provenance", func() {
			sessions.AppendTurn("sess-1", "where is Acme based?", "Acme Corp is based in Berlin.", nil)
			sessions.AppendTurn("sess-1", "reporting cadence?", "They file quarterly reports.", nil)

			extractor.Summary = "Acme Corp: Berlin HQ, quarterly reporting."
			extractor.Candidates = []extract.Candidate{
				{Text: "Acme Corp is based in Berlin.", EntityTags: []string{"Acme Corp", "Berlin"}, Salience: 0.8},
				{Text: "Acme Corp files quarterly reports.", EntityTags: []string{"Acme Corp"}, Salience: 0.6},
			}

			result := newPipeline(nil).Run(ctx, "sess-1")
			Expect(result.Status).To(Equal(distill.StatusSuccess))
			Expect(result.TurnsUsed).To(Equal(2))
			Expect(result.FactsExtracted).To(Equal(2))
			Expect(result.FactsDeduped).To(BeZero())
			Expect(result.FactsStored).To(Equal(2))
			Expect(result.Err).To(BeEmpty())

			facts, err := episodic.ScanBySalience(ctx, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(2))

			fact := facts[0]
			Expect(fact.ID).NotTo(BeEmpty())
			Expect(fact.Metadata.SessionID).To(Equal("sess-1"))
			Expect(fact.Metadata.FactType).To(Equal(memory.FactTypeDistilled))
			Expect(fact.Metadata.Verified).To(BeFalse())
			Expect(fact.Metadata.Timestamp).To(BeTemporally("==", now))
			Expect(fact.Metadata.Provenance.SourceType).To(Equal(memory.SourceConversation))
			Expect(fact.Metadata.Provenance.SourceSession).To(Equal("sess-1"))
			Expect(fact.Metadata.Provenance.SourceTurns).To(Equal([]int{1, 2}))
		})

		It("hands the extractor a transcript of the fetched turns", func() {
			sessions.AppendTurn("sess-1", "hello", "hi there", nil)
			extractor.Summary = "greeting"

			newPipeline(nil).Run(ctx, "sess-1")
			Expect(extractor.Transcripts).To(HaveLen(1))
			Expect(extractor.Transcripts[0]).To(ContainSubstring("[user] hello"))
			Expect(extractor.Transcripts[0]).To(ContainSubstring("[assistant] hi there"))
			Expect(extractor.Summaries).To(Equal([]string{"greeting"}))
		})

		It("publishes one distilled event per stored fact", func() {
			sessions.AppendTurn("sess-1", "q", "a", nil)
			extractor.Summary = "s"
			extractor.Candidates = []extract.Candidate{
				{Text: "fact one", Salience: 0.5},
				{Text: "fact two", Salience: 0.5},
			}

			newPipeline(nil).Run(ctx, "sess-1")
			Expect(publisher.Events).To(HaveLen(2))
			Expect(publisher.EventTypes()).To(ConsistOf(
				eventstream.EventTypeFactDistilled,
				eventstream.EventTypeFactDistilled,
			))
			Expect(publisher.Events[0].SessionID).To(Equal("sess-1"))
		})

		Context("with an empty session", func() {
			It("returns no_facts without calling the extractor", func() {
				result := newPipeline(nil).Run(ctx, "missing")
				Expect(result.Status).To(Equal(distill.StatusNoFacts))
				Expect(result.TurnsUsed).To(BeZero())
				Expect(extractor.Transcripts).To(BeEmpty())
			})

			It("is idempotent with no stored side effects", func() {
				p := newPipeline(nil)
				first := p.Run(ctx, "missing")
				second := p.Run(ctx, "missing")
				Expect(first.Status).To(Equal(distill.StatusNoFacts))
				Expect(second.Status).To(Equal(distill.StatusNoFacts))
				Expect(collection.Len()).To(BeZero())
				Expect(publisher.Events).To(BeEmpty())
			})
		})

		Context("when the extractor fails", func() {
			It("fails soft on summarize errors", func() {
				sessions.AppendTurn("sess-1", "q", "a", nil)
				extractor.FailSummarize = errors.New("model offline")

				result := newPipeline(nil).Run(ctx, "sess-1")
				Expect(result.Status).To(Equal(distill.StatusNoFacts))
				Expect(result.Err).To(ContainSubstring("model offline"))
				Expect(collection.Len()).To(BeZero())
			})

			It("fails soft on extraction errors", func() {
				sessions.AppendTurn("sess-1", "q", "a", nil)
				extractor.Summary = "s"
				extractor.FailExtract = errors.New("bad json")

				result := newPipeline(nil).Run(ctx, "sess-1")
				Expect(result.Status).To(Equal(distill.StatusNoFacts))
				Expect(result.FactsExtracted).To(BeZero())
				Expect(collection.Len()).To(BeZero())
			})
		})

		It("returns no_facts when extraction yields nothing", func() {
			sessions.AppendTurn("sess-1", "q", "a", nil)
			extractor.Summary = "nothing durable"

			result := newPipeline(nil).Run(ctx, "sess-1")
			Expect(result.Status).To(Equal(distill.StatusNoFacts))
			Expect(result.TurnsUsed).To(Equal(1))
		})

		Context("with deduplication", func() {
			It("drops candidates already present in the episodic tier", func() {
				existing := memory.Fact{
					ID:   memory.NewFactID(),
					Text: "Acme Corp is based in Berlin.",
					Metadata: memory.Metadata{
						SessionID: "older-session",
						Salience:  0.8,
						FactType:  memory.FactTypeDistilled,
					},
				}
				Expect(episodic.Add(ctx, existing)).To(Succeed())

				sessions.AppendTurn("sess-1", "q", "a", nil)
				extractor.Summary = "s"
				extractor.Candidates = []extract.Candidate{
					{Text: "Acme Corp is based in Berlin.", Salience: 0.8},
					{Text: "Acme Corp files quarterly reports.", Salience: 0.6},
				}

				deduper := memory.NewDeduplicator(episodic, 0.9, nil)
				result := newPipeline(deduper).Run(ctx, "sess-1")
				Expect(result.Status).To(Equal(distill.StatusSuccess))
				Expect(result.FactsExtracted).To(Equal(2))
				Expect(result.FactsDeduped).To(Equal(1))
				Expect(result.FactsStored).To(Equal(1))
				Expect(collection.Len()).To(Equal(2))

				// The stored original is untouched.
				kept, err := episodic.GetOne(ctx, existing.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(kept.Metadata.SessionID).To(Equal("older-session"))
			})

			It("returns no_facts when every candidate is a duplicate", func() {
				Expect(episodic.Add(ctx, memory.Fact{
					ID:   memory.NewFactID(),
					Text: "already known",
					Metadata: memory.Metadata{
						Salience: 0.5,
					},
				})).To(Succeed())

				sessions.AppendTurn("sess-1", "q", "a", nil)
				extractor.Summary = "s"
				extractor.Candidates = []extract.Candidate{{Text: "already known", Salience: 0.5}}

				deduper := memory.NewDeduplicator(episodic, 0.9, nil)
				result := newPipeline(deduper).Run(ctx, "sess-1")
				Expect(result.Status).To(Equal(distill.StatusNoFacts))
				Expect(result.FactsDeduped).To(Equal(1))
				Expect(result.FactsStored).To(BeZero())
				Expect(collection.Len()).To(Equal(1))
			})
		})

		Context("when storage fails", func() {
			It("reports an error status with the message", func() {
				sessions.AppendTurn("sess-1", "q", "a", nil)
				extractor.Summary = "s"
				extractor.Candidates = []extract.Candidate{{Text: "fact", Salience: 0.5}}
				collection.FailAdd = fmt.Errorf("disk full")

				result := newPipeline(nil).Run(ctx, "sess-1")
				Expect(result.Status).To(Equal(distill.StatusError))
				Expect(result.Err).To(ContainSubstring("disk full"))
				Expect(result.FactsStored).To(BeZero())
				Expect(publisher.Events).To(BeEmpty())
			})
		})

		It("keeps the result intact when event publishing fails", func() {
			sessions.AppendTurn("sess-1", "q", "a", nil)
			extractor.Summary = "s"
			extractor.Candidates = []extract.Candidate{{Text: "fact", Salience: 0.5}}
			publisher.FailPublish = errors.New("broker down")

			result := newPipeline(nil).Run(ctx, "sess-1")
			Expect(result.Status).To(Equal(distill.StatusSuccess))
			Expect(result.FactsStored).To(Equal(1))
		})
	})
})
