package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/thinhngo-x/news-agg/models"
)

const feedAcceptHeader = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

const userAgent = "news-agg/1.0"

// FetchError is returned when a feed document cannot be retrieved or
// parsed. It never aborts processing of other feeds.
type FetchError struct {
	Url string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed %s: %v", e.Url, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Some feed servers reject requests without an explicit Accept header
type acceptTransport struct {
	base http.RoundTripper
}

func (t acceptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	if clone.Header.Get("Accept") == "" {
		clone.Header.Set("Accept", feedAcceptHeader)
	}
	return base.RoundTrip(clone)
}

// FeedDocument is a fetched and parsed feed: its metadata plus the entries
// that survived mapping
type FeedDocument struct {
	Title       string
	Description string
	Entries     []models.Entry
}

// Fetcher retrieves and parses RSS/Atom/JSON feed documents
type Fetcher struct {
	parser   *gofeed.Parser
	maxItems int
}

// FetcherConfig tunes the feed HTTP client
type FetcherConfig struct {
	// HTTP timeout per feed request
	Timeout time.Duration

	// Cap on entries taken from a single document, 0 means no cap
	MaxItems int
}

// NewFetcher builds a fetcher with its own HTTP client
func NewFetcher(config FetcherConfig) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{
		Timeout:   config.Timeout,
		Transport: acceptTransport{base: http.DefaultTransport},
	}

	return &Fetcher{
		parser:   parser,
		maxItems: config.MaxItems,
	}
}

// Fetch retrieves the feed document at url and maps its items to entries.
// Entries without a link are skipped, they cannot be deduplicated or
// stored. Network and parse failures come back as a FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FeedDocument, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &FetchError{Url: url, Err: fmt.Errorf("feed url is empty")}
	}

	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, &FetchError{Url: url, Err: err}
	}

	doc := &FeedDocument{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}

		doc.Entries = append(doc.Entries, entryFromItem(item, link))
		if f.maxItems > 0 && len(doc.Entries) >= f.maxItems {
			break
		}
	}

	return doc, nil
}

func entryFromItem(item *gofeed.Item, link string) models.Entry {
	published := time.Now().UTC()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	guid := strings.TrimSpace(item.GUID)
	if guid == "" {
		guid = link
	}

	return models.Entry{
		Title:       strings.TrimSpace(item.Title),
		Link:        link,
		Guid:        guid,
		Description: strings.TrimSpace(item.Description),
		PublishedAt: published,
	}
}
