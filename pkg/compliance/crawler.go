package compliance

import (
	"log/slog"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/meridianlabs/mnemo/pkg/utils"
)

// excerptLen caps the extracted text stored in a bulletin.
const excerptLen = 2000

// Crawler fetches compliance sources and extracts readable content.
type Crawler struct {
	sources []Source
	timeout time.Duration
	logger  *slog.Logger

	// fetch is swappable in tests. Defaults to readability.FromURL.
	fetch func(url string, timeout time.Duration) (readability.Article, error)
}

// NewCrawler builds a crawler over the given sources.
func NewCrawler(sources []Source, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Crawler{
		sources: sources,
		timeout: 30 * time.Second,
		logger:  logger,
		fetch:   readability.FromURL,
	}
}

// Crawl fetches every source and returns the bulletins that could be
// extracted. A failing source is logged and skipped, never fatal.
func (c *Crawler) Crawl() []Bulletin {
	bulletins := make([]Bulletin, 0, len(c.sources))
	for _, source := range c.sources {
		article, err := c.fetch(source.URL, c.timeout)
		if err != nil {
			c.logger.Warn("crawling source failed",
				"source", source.Name,
				"url", source.URL,
				"error", err,
			)
			continue
		}

		bulletins = append(bulletins, Bulletin{
			Source:    source.Name,
			Title:     article.Title,
			Excerpt:   utils.Truncate(article.TextContent, excerptLen),
			FetchedAt: time.Now().UTC(),
		})
	}

	c.logger.Info("crawl complete",
		"sources", len(c.sources),
		"bulletins", len(bulletins),
	)
	return bulletins
}
