package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	scrapesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagg_scrapes_total",
		Help: "The total number of article pages scraped successfully",
	})

	scrapeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagg_scrape_errors_total",
		Help: "The total number of article scrapes that failed",
	})
)

// ScrapeError is returned when an article page cannot be retrieved or no
// usable text can be extracted from it
type ScrapeError struct {
	Url string
	Err error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.Url, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Plenty of news sites serve a cookie wall to unknown clients, so the
// scraper identifies as a regular browser
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Selector cascade, specific article markers first, generic containers last
var contentSelectors = []string{
	"article",
	`[role="main"] article`,
	".article-body",
	".article-content",
	".post-content",
	".entry-content",
	".content-body",
	".story-body",
	".article-text",
	"main",
	`[role="main"]`,
	".main-content",
	"#main-content",
	".content",
	".post",
	".entry",
	"#content",
	".container .content",
	".wrapper .content",
}

const strippedElements = "script, style, nav, header, footer, aside, .advertisement, .ads, .social-share"

// Phrases that betray boilerplate rather than article text
var noisePhrases = []string{
	"Subscribe to our newsletter",
	"Follow us on",
	"Share this article",
	"Related articles",
	"You may also like",
	"Advertisement",
	"Cookie policy",
}

// Scraper fetches article pages and extracts a best effort main text body
type Scraper struct {
	client     *http.Client
	maxContent int
}

// Config tunes the scraping HTTP client and output size
type Config struct {
	Timeout          time.Duration
	MaxContentLength int
}

// New builds a scraper with its own HTTP client
func New(config Config) *Scraper {
	maxContent := config.MaxContentLength
	if maxContent <= 0 {
		maxContent = 10000
	}

	return &Scraper{
		client:     &http.Client{Timeout: config.Timeout},
		maxContent: maxContent,
	}
}

// Scrape fetches the page at url and extracts its main text. Every
// failure mode comes back as a ScrapeError and there is no retry; the
// caller decides what to persist.
func (s *Scraper) Scrape(ctx context.Context, url string) (string, error) {
	content, err := s.scrape(ctx, url)
	if err != nil {
		scrapeErrors.Inc()
		return "", err
	}

	scrapesTotal.Inc()
	return content, nil
}

func (s *Scraper) scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &ScrapeError{Url: url, Err: err}
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &ScrapeError{Url: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ScrapeError{Url: url, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") {
		return "", &ScrapeError{Url: url, Err: fmt.Errorf("non-html content type %q", contentType)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &ScrapeError{Url: url, Err: err}
	}

	content := s.extract(doc)
	if len(content) < 50 {
		log.WithFields(log.Fields{
			"url":   url,
			"bytes": len(content),
		}).Warn("Extracted content too short")
		return "", &ScrapeError{Url: url, Err: fmt.Errorf("no usable content")}
	}

	return content, nil
}

func (s *Scraper) extract(doc *goquery.Document) string {
	doc.Find(strippedElements).Remove()

	content := ""
	for _, selector := range contentSelectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}

		// The largest matching block most likely holds the main content
		var largest *goquery.Selection
		largestLen := 0
		selection.Each(func(_ int, sel *goquery.Selection) {
			if l := len(sel.Text()); largest == nil || l > largestLen {
				largest = sel
				largestLen = l
			}
		})

		candidate := normalizeWhitespace(largest.Text())
		if len(candidate) > 100 {
			content = candidate
			break
		}
	}

	// Fall back to collecting paragraph runs
	if len(content) < 100 {
		var paragraphs []string
		doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
			text := normalizeWhitespace(sel.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			content = strings.Join(paragraphs, " ")
		}
	}

	// Last resort, the whole body
	if len(content) < 50 {
		content = normalizeWhitespace(doc.Find("body").Text())
	}

	for _, phrase := range noisePhrases {
		content = strings.ReplaceAll(content, phrase, "")
	}
	content = normalizeWhitespace(content)

	if len(content) > s.maxContent {
		cut := s.maxContent
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "..."
	}

	return content
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
