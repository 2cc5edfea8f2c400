package extract_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/meridianlabs/mnemo/pkg/extract"
)

// staticCaller returns a canned response for every prompt.
func staticCaller(response string) extract.LLMCallFunc {
	return func(_ context.Context, _ string) (string, error) {
		return response, nil
	}
}

var _ = Describe("LLMExtractor", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Summarize", func() {
		It("parses the summary from a JSON response", func() {
			e := extract.NewLLMExtractor(staticCaller(`{"summary": "Acme prefers quarterly reports."}`))
			summary, err := e.Summarize(ctx, "[user] hello\n[assistant] hi\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(Equal("Acme prefers quarterly reports."))
		})

		It("strips markdown fences around the JSON", func() {
			e := extract.NewLLMExtractor(staticCaller("```json\n{\"summary\": \"ok\"}\n```"))
			summary, err := e.Summarize(ctx, "[user] hello\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(Equal("ok"))
		})

		It("rejects an empty transcript", func() {
			e := extract.NewLLMExtractor(staticCaller(`{"summary": "x"}`))
			_, err := e.Summarize(ctx, "   \n")
			Expect(err).To(MatchError(extract.ErrEmptyTranscript))
		})

		It("propagates LLM call failures", func() {
			e := extract.NewLLMExtractor(func(_ context.Context, _ string) (string, error) {
				return "", errors.New("model offline")
			})
			_, err := e.Summarize(ctx, "[user] hello\n")
			Expect(err).To(MatchError(ContainSubstring("model offline")))
		})

		It("fails on an empty summary field", func() {
			e := extract.NewLLMExtractor(staticCaller(`{"summary": ""}`))
			_, err := e.Summarize(ctx, "[user] hello\n")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ExtractFacts", func() {
		It("parses fact candidates", func() {
			e := extract.NewLLMExtractor(staticCaller(`{
				"facts": [
					{"text": "Acme Corp is based in Berlin.", "entity_tags": ["Acme Corp", "Berlin"], "salience": 0.8},
					{"text": "Reports are due quarterly.", "entity_tags": ["Acme Corp"], "salience": 0.6}
				]
			}`))
			candidates, err := e.ExtractFacts(ctx, "a summary")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(HaveLen(2))
			Expect(candidates[0].Text).To(Equal("Acme Corp is based in Berlin."))
			Expect(candidates[0].EntityTags).To(ConsistOf("Acme Corp", "Berlin"))
			Expect(candidates[0].Salience).To(Equal(0.8))
		})

		It("clamps salience into [0,1]", func() {
			e := extract.NewLLMExtractor(staticCaller(`{
				"facts": [
					{"text": "too keen", "salience": 3.5},
					{"text": "too negative", "salience": -1}
				]
			}`))
			candidates, err := e.ExtractFacts(ctx, "a summary")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates[0].Salience).To(Equal(1.0))
			Expect(candidates[1].Salience).To(Equal(0.0))
		})

		It("drops candidates with empty text", func() {
			e := extract.NewLLMExtractor(staticCaller(`{
				"facts": [
					{"text": "  ", "salience": 0.9},
					{"text": "kept", "salience": 0.5}
				]
			}`))
			candidates, err := e.ExtractFacts(ctx, "a summary")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Text).To(Equal("kept"))
		})

		It("returns an empty slice for an empty facts list", func() {
			e := extract.NewLLMExtractor(staticCaller(`{"facts": []}`))
			candidates, err := e.ExtractFacts(ctx, "nothing durable here")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(BeEmpty())
		})

		It("returns nil for an empty summary without calling the model", func() {
			called := false
			e := extract.NewLLMExtractor(func(_ context.Context, _ string) (string, error) {
				called = true
				return "", nil
			})
			candidates, err := e.ExtractFacts(ctx, "  ")
			Expect(err).NotTo(HaveOccurred())
			Expect(candidates).To(BeNil())
			Expect(called).To(BeFalse())
		})

		It("fails on malformed JSON", func() {
			e := extract.NewLLMExtractor(staticCaller(`{"facts": [`))
			_, err := e.ExtractFacts(ctx, "a summary")
			Expect(err).To(HaveOccurred())
		})
	})
})
