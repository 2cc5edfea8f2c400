package compliance

import (
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	readability "github.com/go-shiori/go-readability"
)

var _ = Describe("Crawler", func() {
	It("extracts a bulletin per reachable source", func() {
		c := NewCrawler([]Source{
			{Name: "ofac", URL: "https://example.com/ofac"},
			{Name: "eu-sanctions", URL: "https://example.com/eu"},
		}, nil)
		c.fetch = func(url string, _ time.Duration) (readability.Article, error) {
			return readability.Article{
				Title:       "Bulletin for " + url,
				TextContent: "sanction update",
			}, nil
		}

		bulletins := c.Crawl()
		Expect(bulletins).To(HaveLen(2))
		Expect(bulletins[0].Source).To(Equal("ofac"))
		Expect(bulletins[0].Title).To(ContainSubstring("example.com/ofac"))
		Expect(bulletins[0].Excerpt).To(Equal("sanction update"))
		Expect(bulletins[0].FetchedAt).NotTo(BeZero())
	})

	It("skips sources that fail to fetch", func() {
		c := NewCrawler([]Source{
			{Name: "down", URL: "https://example.com/down"},
			{Name: "up", URL: "https://example.com/up"},
		}, nil)
		c.fetch = func(url string, _ time.Duration) (readability.Article, error) {
			if strings.Contains(url, "down") {
				return readability.Article{}, errors.New("connection refused")
			}
			return readability.Article{Title: "ok", TextContent: "content"}, nil
		}

		bulletins := c.Crawl()
		Expect(bulletins).To(HaveLen(1))
		Expect(bulletins[0].Source).To(Equal("up"))
	})

	It("truncates long extracted text", func() {
		c := NewCrawler([]Source{{Name: "long", URL: "https://example.com"}}, nil)
		c.fetch = func(_ string, _ time.Duration) (readability.Article, error) {
			return readability.Article{
				Title:       "long",
				TextContent: strings.Repeat("x", 5000),
			}, nil
		}

		bulletins := c.Crawl()
		Expect(bulletins).To(HaveLen(1))
		Expect(len(bulletins[0].Excerpt)).To(BeNumerically("<=", excerptLen+3))
	})
})
