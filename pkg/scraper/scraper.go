package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/agentic/internal/models"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	MaxPages          int
	RateLimit         float64 // requests per second
	UserAgent         string
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
	Logger            *slog.Logger
}

type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseHost string
	logger   *slog.Logger
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.MaxPages == 0 {
		config.MaxPages = 100
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.UserAgent == "" {
		config.UserAgent = "agentic/1.0"
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var baseHost string
	if config.BaseURL != "" {
		parsedURL, err := url.Parse(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		baseHost = parsedURL.Host
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: baseHost,
		logger:   logger,
	}, nil
}

// allowed reports whether rawURL is an http(s) page on host with an allowed
// suffix that matches no ignore pattern.
func (s *Scraper) allowed(rawURL, host string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host != host {
		return false
	}
	path := strings.ToLower(u.Path)
	if !slices.ContainsFunc(s.config.AllowedExtensions, func(ext string) bool {
		return strings.HasSuffix(path, ext)
	}) {
		return false
	}
	return !slices.ContainsFunc(s.config.IgnorePatterns, func(pattern string) bool {
		return strings.Contains(rawURL, pattern)
	})
}

var boilerplate = strings.NewReplacer(
	"Cookie Policy", "",
	"Accept Cookies", "",
	"Privacy Policy", "",
	"Terms of Service", "",
)

var contentSelectors = []string{"main", "article", ".content", "#content", ".documentation", "#documentation"}

// mainText strips page chrome and returns the text of the first content
// container found, falling back to the whole body.
func mainText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	text := ""
	for _, sel := range contentSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			text = found.Text()
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}

	text = boilerplate.Replace(strings.Join(strings.Fields(text), " "))
	return strings.TrimSpace(text)
}

// pageLinks resolves every anchor on the page against base, without
// fragments.
func (s *Scraper) pageLinks(base *url.URL, doc *goquery.Document) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		ref, err := url.Parse(href)
		if err != nil {
			s.logger.Debug("skipping link", slog.String("href", href), slog.String("error", err.Error()))
			return
		}
		link := base.ResolveReference(ref)
		link.Fragment = ""
		links = append(links, link.String())
	})
	return links
}

// Scrape crawls same-host links starting at startURL, breadth-limited by
// MaxDepth and MaxPages. Pages that fail to load are logged and skipped.
func (s *Scraper) Scrape(ctx context.Context, startURL string) ([]models.Document, error) {
	host := s.baseHost
	if host == "" {
		u, err := url.Parse(startURL)
		if err != nil {
			return nil, fmt.Errorf("invalid start URL: %w", err)
		}
		host = u.Host
	}

	c := &crawl{host: host, visited: make(map[string]bool)}
	err := s.visit(ctx, c, startURL, 0)
	return c.documents, err
}

type crawl struct {
	host      string
	visited   map[string]bool
	documents []models.Document
}

func (s *Scraper) visit(ctx context.Context, c *crawl, pageURL string, depth int) error {
	if depth > s.config.MaxDepth || c.visited[pageURL] || len(c.documents) >= s.config.MaxPages {
		return nil
	}
	if !s.allowed(pageURL, c.host) {
		return nil
	}

	c.visited[pageURL] = true
	if s.config.OnProgress != nil {
		s.config.OnProgress(pageURL)
	}

	document, doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		if depth == 0 || ctx.Err() != nil {
			return err
		}
		s.logger.Warn("skipping page", slog.String("url", pageURL), slog.String("error", err.Error()))
		return nil
	}
	document.Metadata["depth"] = depth
	c.documents = append(c.documents, *document)

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	for _, link := range s.pageLinks(base, doc) {
		if err := s.visit(ctx, c, link, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// FetchPage loads a single page of any host and returns its title and main
// text.
func (s *Scraper) FetchPage(ctx context.Context, urlStr string) (*models.Document, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid page URL: %q", urlStr)
	}
	document, _, err := s.fetch(ctx, urlStr)
	return document, err
}

func (s *Scraper) fetch(ctx context.Context, urlStr string) (*models.Document, *goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	content := mainText(doc)

	document := &models.Document{
		ID:      urlStr,
		URL:     urlStr,
		Title:   title,
		Content: content,
		Metadata: map[string]interface{}{
			"time":         time.Now(),
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	}
	return document, doc, nil
}
