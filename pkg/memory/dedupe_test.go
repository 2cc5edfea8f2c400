package memory_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meridianlabs/mnemo/pkg/memory"
	testutils "github.com/meridianlabs/mnemo/pkg/utils/test"
)

var _ = Describe("Deduplicator", func() {
	var (
		ctx        context.Context
		collection *testutils.MockCollection
		tier       *memory.Tier
	)

	BeforeEach(func() {
		ctx = context.Background()
		collection = testutils.NewMockCollection()
		tier = memory.NewTier(collection, "episodic", nil)
	})

	seed := func(text string) memory.Fact {
		fact := memory.Fact{
			ID:       memory.NewFactID(),
			Text:     text,
			Metadata: memory.Metadata{Salience: 0.5},
		}
		Expect(tier.Add(ctx, fact)).To(Succeed())
		return fact
	}

	candidate := func(text string) memory.Fact {
		return memory.Fact{
			ID:       memory.NewFactID(),
			Text:     text,
			Metadata: memory.Metadata{Salience: 0.5},
		}
	}

	It("drops candidates matching a stored fact at or above the threshold", func() {
		seed("Acme Corp is based in Berlin.")
		d := memory.NewDeduplicator(tier, 0.9, nil)

		kept := d.Filter(ctx, []memory.Fact{
			candidate("Acme Corp is based in Berlin."),
			candidate("Acme Corp files quarterly reports."),
		})
		Expect(kept).To(HaveLen(1))
		Expect(kept[0].Text).To(Equal("Acme Corp files quarterly reports."))
	})

	It("keeps candidates below the threshold", func() {
		seed("something else entirely")
		collection.Similarity = func(_, _ string) float32 { return 0.89 }
		d := memory.NewDeduplicator(tier, 0.9, nil)

		kept := d.Filter(ctx, []memory.Fact{candidate("new fact")})
		Expect(kept).To(HaveLen(1))
	})

	It("treats a score exactly at the threshold as a duplicate", func() {
		seed("existing")
		collection.Similarity = func(_, _ string) float32 { return 0.9 }
		d := memory.NewDeduplicator(tier, 0.9, nil)

		kept := d.Filter(ctx, []memory.Fact{candidate("new fact")})
		Expect(kept).To(BeEmpty())
	})

	It("keeps everything when the tier is empty", func() {
		d := memory.NewDeduplicator(tier, 0.9, nil)
		kept := d.Filter(ctx, []memory.Fact{candidate("a"), candidate("b")})
		Expect(kept).To(HaveLen(2))
	})

	It("fails open when the similarity lookup errors", func() {
		seed("existing")
		collection.FailSearch = errors.New("backend down")
		d := memory.NewDeduplicator(tier, 0.9, nil)

		kept := d.Filter(ctx, []memory.Fact{candidate("a"), candidate("b")})
		Expect(kept).To(HaveLen(2))
	})

	It("falls back to the default threshold when given zero", func() {
		seed("existing")
		collection.Similarity = func(_, _ string) float32 { return 0.95 }
		d := memory.NewDeduplicator(tier, 0, nil)

		kept := d.Filter(ctx, []memory.Fact{candidate("near duplicate")})
		Expect(kept).To(BeEmpty())
	})
})
