package promote_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meridianlabs/mnemo/pkg/eventstream"
	"github.com/meridianlabs/mnemo/pkg/memory"
	"github.com/meridianlabs/mnemo/pkg/memory/promote"
	testutils "github.com/meridianlabs/mnemo/pkg/utils/test"
)

var _ = Describe("Pipeline", func() {
	var (
		ctx          context.Context
		episodicColl *testutils.MockCollection
		semanticColl *testutils.MockCollection
		episodic     *memory.Tier
		semantic     *memory.Tier
		publisher    *testutils.MockPublisher
		now          time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		episodicColl = testutils.NewMockCollection()
		semanticColl = testutils.NewMockCollection()
		episodic = memory.NewTier(episodicColl, "episodic", nil)
		semantic = memory.NewTier(semanticColl, "semantic", nil)
		publisher = testutils.NewMockPublisher()
		now = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	})

	newPipeline := func() *promote.Pipeline {
		p, err := promote.NewPipeline(promote.Config{
			Episodic:          episodic,
			Semantic:          semantic,
			Publisher:         publisher,
			SalienceThreshold: 0.7,
			CitationThreshold: 3,
			AgeDays:           7,
			ScanLimit:         100,
			Now:               func() time.Time { return now },
		})
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	// episodicFact builds a stored-looking fact with the given knobs.
	episodicFact := func(text string, salience float64, citations int, age time.Duration) memory.Fact {
		return memory.Fact{
			ID:   memory.NewFactID(),
			Text: text,
			Metadata: memory.Metadata{
				SessionID:     "sess-1",
				EntityTags:    []string{"Acme Corp"},
				Salience:      salience,
				CitationCount: citations,
				Timestamp:     now.Add(-age),
				FactType:      memory.FactTypeDistilled,
				Provenance: memory.Provenance{
					SourceType:    memory.SourceConversation,
					SourceSession: "sess-1",
					SourceTurns:   []int{3, 4},
				},
			},
		}
	}

	Describe("NewPipeline", func() {
		It("requires both tiers", func() {
			_, err := promote.NewPipeline(promote.Config{Episodic: episodic})
			Expect(err).To(HaveOccurred())
			_, err = promote.NewPipeline(promote.Config{Semantic: semantic})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Run", func() {
		It("promotes a qualifying fact as a verified copy", func() {
			original := episodicFact("Acme Corp is based in Berlin.", 0.9, 5, 10*24*time.Hour)
			Expect(episodic.Add(ctx, original)).To(Succeed())

			result := newPipeline().Run(ctx)
			Expect(result.Status).To(Equal(promote.StatusSuccess))
			Expect(result.FoundCandidates).To(Equal(1))
			Expect(result.Filtered).To(Equal(1))
			Expect(result.Promoted).To(Equal(1))
			Expect(result.KeptForTTL).To(Equal(1))

			copies, err := semantic.ScanBySalience(ctx, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(copies).To(HaveLen(1))

			copied := copies[0]
			Expect(copied.ID).NotTo(Equal(original.ID))
			Expect(copied.Text).To(Equal(original.Text))
			Expect(copied.Metadata.SessionID).To(BeEmpty())
			Expect(copied.Metadata.Verified).To(BeTrue())
			Expect(copied.Metadata.FactType).To(Equal(memory.FactTypePromoted))
			Expect(copied.Metadata.PromotedAt).To(BeTemporally("==", now))
			Expect(copied.Metadata.Salience).To(Equal(0.9))
			Expect(copied.Metadata.CitationCount).To(Equal(5))
			Expect(copied.Metadata.EntityTags).To(ConsistOf("Acme Corp"))
			Expect(copied.Metadata.Provenance.SourceType).To(Equal(memory.SourcePromotion))
			Expect(copied.Metadata.Provenance.SourceSession).To(Equal("sess-1"))
			Expect(copied.Metadata.Provenance.SourceTurns).To(Equal([]int{3, 4}))
			Expect(copied.Metadata.Provenance.OriginalTimestamp).To(BeTemporally("==", original.Metadata.Timestamp))
			Expect(copied.Metadata.Provenance.PromotedFromEM).To(BeTrue())
		})

		It("retains the episodic original after promotion", func() {
			original := episodicFact("kept in place", 0.9, 5, 10*24*time.Hour)
			Expect(episodic.Add(ctx, original)).To(Succeed())

			newPipeline().Run(ctx)

			kept, err := episodic.GetOne(ctx, original.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(kept.Metadata.SessionID).To(Equal("sess-1"))
			Expect(episodicColl.Deleted).To(BeEmpty())
		})

		It("applies the full predicate, not just salience", func() {
			Expect(episodic.Add(ctx,
				episodicFact("qualifies", 0.9, 5, 10*24*time.Hour),
				episodicFact("too few citations", 0.9, 1, 10*24*time.Hour),
				episodicFact("too young", 0.9, 5, 2*24*time.Hour),
			)).To(Succeed())

			result := newPipeline().Run(ctx)
			Expect(result.FoundCandidates).To(Equal(3))
			Expect(result.Filtered).To(Equal(1))
			Expect(result.Promoted).To(Equal(1))

			copies, err := semantic.ScanBySalience(ctx, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(copies).To(HaveLen(1))
			Expect(copies[0].Text).To(Equal("qualifies"))
		})

		It("excludes low-salience facts at the scan stage", func() {
			Expect(episodic.Add(ctx,
				episodicFact("below threshold", 0.3, 5, 10*24*time.Hour),
			)).To(Succeed())

			result := newPipeline().Run(ctx)
			Expect(result.Status).To(Equal(promote.StatusNoFacts))
			Expect(result.FoundCandidates).To(BeZero())
		})

		It("treats boundary values as qualifying", func() {
			Expect(episodic.Add(ctx,
				episodicFact("exactly at thresholds", 0.7, 3, 7*24*time.Hour),
			)).To(Succeed())

			result := newPipeline().Run(ctx)
			Expect(result.Status).To(Equal(promote.StatusSuccess))
			Expect(result.Promoted).To(Equal(1))
		})

		It("returns no_facts on an empty episodic tier", func() {
			result := newPipeline().Run(ctx)
			Expect(result.Status).To(Equal(promote.StatusNoFacts))
			Expect(result.FoundCandidates).To(BeZero())
			Expect(result.Promoted).To(BeZero())
			Expect(semanticColl.Len()).To(BeZero())
		})

		It("returns no_facts when candidates fail the full predicate", func() {
			Expect(episodic.Add(ctx,
				episodicFact("salient but uncited", 0.9, 0, 10*24*time.Hour),
			)).To(Succeed())

			result := newPipeline().Run(ctx)
			Expect(result.Status).To(Equal(promote.StatusNoFacts))
			Expect(result.FoundCandidates).To(Equal(1))
			Expect(result.Filtered).To(BeZero())
			Expect(semanticColl.Len()).To(BeZero())
		})

		It("publishes one promoted event per promoted fact", func() {
			Expect(episodic.Add(ctx,
				episodicFact("a", 0.9, 5, 10*24*time.Hour),
				episodicFact("b", 0.9, 5, 10*24*time.Hour),
			)).To(Succeed())

			newPipeline().Run(ctx)
			Expect(publisher.Events).To(HaveLen(2))
			Expect(publisher.EventTypes()).To(ConsistOf(
				eventstream.EventTypeFactPromoted,
				eventstream.EventTypeFactPromoted,
			))
			Expect(publisher.Events[0].SessionID).To(BeEmpty())
		})

		It("reports scan failures as errors", func() {
			episodicColl.FailScan = errors.New("backend down")

			result := newPipeline().Run(ctx)
			Expect(result.Status).To(Equal(promote.StatusError))
			Expect(result.Err).To(ContainSubstring("backend down"))
		})

		It("reports semantic write failures as errors", func() {
			Expect(episodic.Add(ctx,
				episodicFact("qualifies", 0.9, 5, 10*24*time.Hour),
			)).To(Succeed())
			semanticColl.FailAdd = errors.New("disk full")

			result := newPipeline().Run(ctx)
			Expect(result.Status).To(Equal(promote.StatusError))
			Expect(result.Err).To(ContainSubstring("disk full"))
			Expect(result.FoundCandidates).To(Equal(1))
			Expect(result.Filtered).To(Equal(1))
			Expect(result.Promoted).To(BeZero())
			Expect(publisher.Events).To(BeEmpty())
		})

		It("is re-runnable, producing a fresh copy each sweep", func() {
			Expect(episodic.Add(ctx,
				episodicFact("sticky", 0.9, 5, 10*24*time.Hour),
			)).To(Succeed())

			p := newPipeline()
			first := p.Run(ctx)
			second := p.Run(ctx)
			Expect(first.Promoted).To(Equal(1))
			Expect(second.Promoted).To(Equal(1))

			copies, err := semantic.ScanBySalience(ctx, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(copies).To(HaveLen(2))
			Expect(copies[0].ID).NotTo(Equal(copies[1].ID))
		})
	})
})
