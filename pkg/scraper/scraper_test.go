package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		MaxDepth:       5,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.Equal(t, config.BaseURL, s.config.BaseURL)
	assert.Equal(t, config.MaxDepth, s.config.MaxDepth)
	assert.Equal(t, 100, s.config.MaxPages)
	assert.Equal(t, "example.com", s.baseHost)
}

func TestAllowed(t *testing.T) {
	config := ScraperConfig{
		BaseURL:           "https://example.com",
		IgnorePatterns:    []string{"/ignore/", "private"},
		AllowedExtensions: []string{".html", "/"},
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/docs/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/ignore/page.html", false},
		{"https://other-domain.com/page.html", false},
		{"https://example.com/file.pdf", false},
		{"mailto:someone@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := s.allowed(tt.url, s.baseHost)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head><title>Test Page</title><script>var tracking = 1;</script></head>
				<body>
					<nav>Home | About</nav>
					<main>
						<h1>Test Content</h1>
						<p>This is a test paragraph.</p>
						<a href="/page2.html">Link</a>
						<a href="/missing.html">Broken</a>
						<a href="https://elsewhere.example.org/">External</a>
					</main>
				</body>
			</html>
		`))
	})
	mux.HandleFunc("/page2.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Second</title></head><body><article>Second page body.</article><a href="/">Back</a></body></html>`))
	})
	return httptest.NewServer(mux)
}

func TestScrapeWithMockServer(t *testing.T) {
	server := newSite(t)
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{
		BaseURL:   server.URL,
		MaxDepth:  1,
		RateLimit: 100,
	})
	require.NoError(t, err)

	var visited []string
	s.config.OnProgress = func(url string) { visited = append(visited, url) }

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	doc := docs[0]
	assert.Equal(t, server.URL+"/", doc.URL)
	assert.Equal(t, "Test Page", doc.Title)
	assert.Contains(t, doc.Content, "Test Content")
	assert.Contains(t, doc.Content, "This is a test paragraph")
	assert.NotContains(t, doc.Content, "tracking")
	assert.Equal(t, 0, doc.Metadata["depth"])

	assert.Equal(t, "Second", docs[1].Title)
	assert.Equal(t, "Second page body.", docs[1].Content)
	assert.Len(t, visited, 3)
}

func TestScrapeMaxPages(t *testing.T) {
	server := newSite(t)
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{MaxDepth: 3, MaxPages: 1, RateLimit: 100})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestScrapeStartPageError(t *testing.T) {
	server := newSite(t)
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL, RateLimit: 100})
	require.NoError(t, err)
	_, err = s.Scrape(context.Background(), server.URL+"/missing.html")
	assert.ErrorContains(t, err, "status code 404")
}

func TestFetchPage(t *testing.T) {
	server := newSite(t)
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{RateLimit: 100})
	require.NoError(t, err)
	doc, err := s.FetchPage(context.Background(), server.URL+"/page2.html")
	require.NoError(t, err)
	assert.Equal(t, "Second", doc.Title)
	assert.Equal(t, "Second page body.", doc.Content)

	_, err = s.FetchPage(context.Background(), "file:///etc/passwd")
	assert.Error(t, err)
}
