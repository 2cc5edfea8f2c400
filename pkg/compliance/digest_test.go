package compliance_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meridianlabs/mnemo/pkg/compliance"
	"github.com/meridianlabs/mnemo/pkg/memory"
	testutils "github.com/meridianlabs/mnemo/pkg/utils/test"
)

var _ = Describe("DigestBuilder", func() {
	var (
		ctx        context.Context
		collection *testutils.MockCollection
		semantic   *memory.Tier
		builder    *compliance.DigestBuilder
	)

	BeforeEach(func() {
		ctx = context.Background()
		collection = testutils.NewMockCollection()
		semantic = memory.NewTier(collection, "semantic", nil)
		builder = compliance.NewDigestBuilder(semantic, nil)
	})

	It("collects semantic findings for the client", func() {
		fact := memory.Fact{
			ID:   memory.NewFactID(),
			Text: "Acme Corp",
			Metadata: memory.Metadata{
				Salience: 0.9,
				Verified: true,
				FactType: memory.FactTypePromoted,
			},
		}
		Expect(semantic.Add(ctx, fact)).To(Succeed())

		digest := builder.Build(ctx, "Acme Corp", nil)
		Expect(digest.Client).To(Equal("Acme Corp"))
		Expect(digest.GeneratedAt).NotTo(BeZero())
		Expect(digest.Findings).To(HaveLen(1))
		Expect(digest.Findings[0].FactID).To(Equal(fact.ID))
		Expect(digest.Findings[0].Verified).To(BeTrue())
		Expect(digest.Findings[0].Score).To(Equal(float32(1)))
	})

	It("carries crawled bulletins into the digest", func() {
		bulletins := []compliance.Bulletin{{Source: "ofac", Title: "t", Excerpt: "e"}}
		digest := builder.Build(ctx, "Acme Corp", bulletins)
		Expect(digest.Bulletins).To(Equal(bulletins))
	})

	It("degrades to bulletins only when search fails", func() {
		collection.FailSearch = errors.New("backend down")
		bulletins := []compliance.Bulletin{{Source: "ofac"}}

		digest := builder.Build(ctx, "Acme Corp", bulletins)
		Expect(digest.Findings).To(BeEmpty())
		Expect(digest.Bulletins).To(HaveLen(1))
	})
})
