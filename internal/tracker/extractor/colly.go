package extractor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/pkg/logger"
)

// DefaultUserAgents are rotated per request
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.101 Safari/537.36",
}

// Config configures the HTML extractor
type Config struct {
	Timeout        time.Duration
	UserAgents     []string
	NameSelectors  []string
	PriceSelectors []string
	// MaxFailures consecutive network failures open a host's breaker; 0 disables it
	MaxFailures int
	OpenTimeout time.Duration
}

// DefaultConfig returns selectors for Amazon product pages
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		UserAgents:     DefaultUserAgents,
		NameSelectors:  []string{"#productTitle"},
		PriceSelectors: []string{".a-price-whole", "#corePrice_feature_div .a-offscreen"},
		MaxFailures:    5,
		OpenTimeout:    5 * time.Minute,
	}
}

// CollyExtractor scrapes product pages with colly
type CollyExtractor struct {
	cfg      Config
	breakers *breakerSet
}

// NewCollyExtractor creates an extractor; zero fields of cfg take their defaults
func NewCollyExtractor(cfg Config) *CollyExtractor {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = def.UserAgents
	}
	if len(cfg.NameSelectors) == 0 {
		cfg.NameSelectors = def.NameSelectors
	}
	if len(cfg.PriceSelectors) == 0 {
		cfg.PriceSelectors = def.PriceSelectors
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	isNetworkFailure := func(err error) bool {
		return domain.ExtractionKind(err) == domain.NetworkError
	}

	return &CollyExtractor{
		cfg:      cfg,
		breakers: newBreakerSet(cfg.MaxFailures, cfg.OpenTimeout, isNetworkFailure),
	}
}

// Extract fetches rawURL and reads the product name and price
func (e *CollyExtractor) Extract(ctx context.Context, rawURL string) (domain.Extraction, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return domain.Extraction{}, domain.NewExtractionError(rawURL, domain.NotFound, fmt.Errorf("invalid url: %w", err))
	}

	var result domain.Extraction
	err = e.breakers.get(u.Host).Call(func() error {
		var scrapeErr error
		result, scrapeErr = e.scrape(ctx, rawURL)
		return scrapeErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		return domain.Extraction{}, domain.NewExtractionError(rawURL, domain.NetworkError, err)
	}
	if err != nil {
		return domain.Extraction{}, err
	}

	logger.Debug(ctx).
		Str("url", rawURL).
		Str("name", result.Name).
		Float64("price", result.Price).
		Msg("Scraped product")
	return result, nil
}

func (e *CollyExtractor) scrape(ctx context.Context, rawURL string) (domain.Extraction, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(e.userAgent()),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(e.cfg.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	var name, priceText string
	c.OnHTML("html", func(h *colly.HTMLElement) {
		name = firstText(h, e.cfg.NameSelectors)
		priceText = firstText(h, e.cfg.PriceSelectors)
	})

	status := 0
	c.OnError(func(r *colly.Response, err error) {
		status = r.StatusCode
	})

	if err := c.Visit(rawURL); err != nil {
		return domain.Extraction{}, classifyVisitError(ctx, rawURL, status, err)
	}

	if name == "" || priceText == "" {
		return domain.Extraction{}, domain.NewExtractionError(rawURL, domain.ParseError,
			fmt.Errorf("product name or price not found"))
	}

	price, err := ParsePrice(priceText)
	if err != nil {
		return domain.Extraction{}, domain.NewExtractionError(rawURL, domain.ParseError, err)
	}

	return domain.Extraction{Name: name, Price: price}, nil
}

func (e *CollyExtractor) userAgent() string {
	return e.cfg.UserAgents[rand.IntN(len(e.cfg.UserAgents))]
}

// firstText returns the trimmed text of the first element, in document
// order, matching any of selectors.
func firstText(h *colly.HTMLElement, selectors []string) string {
	sel := h.DOM.Find(strings.Join(selectors, ", ")).First()
	return strings.Join(strings.Fields(sel.Text()), " ")
}

func classifyVisitError(ctx context.Context, rawURL string, status int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.NewExtractionError(rawURL, domain.NetworkError, ctxErr)
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return domain.NewExtractionError(rawURL, domain.NotFound, fmt.Errorf("status %d: %w", status, err))
	case status != 0:
		return domain.NewExtractionError(rawURL, domain.NetworkError, fmt.Errorf("status %d: %w", status, err))
	default:
		return domain.NewExtractionError(rawURL, domain.NetworkError, err)
	}
}
