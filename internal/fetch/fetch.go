// Package fetch retrieves job postings from the web and reduces them to plain
// text suitable for the job description analyzer.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single HTTP fetch.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (compatible; ResumeOptimizer/1.0)"
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes = 5 << 20
)

// Result holds the raw and processed content of a fetched posting.
type Result struct {
	URL         string
	HTML        string
	Text        string
	ContentType string
	StatusCode  int
	Platform    Platform
	Rendered    bool
}

// Error represents a failure to retrieve or read a URL.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// UseBrowser enables headless rendering when the plain HTTP response
	// yields too little text.
	UseBrowser bool
}

// DefaultOptions returns the fetch defaults.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// RenderFunc returns the fully rendered HTML of a page.
type RenderFunc func(ctx context.Context, url string) (string, error)

// Fetcher downloads job postings and extracts their description text.
type Fetcher struct {
	client *http.Client
	opts   Options
	render RenderFunc
	logger *zap.Logger
}

// New creates a Fetcher. A nil opts uses DefaultOptions.
func New(opts *Options, logger *zap.Logger) *Fetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		client: &http.Client{Timeout: o.Timeout},
		opts:   o,
		logger: logger,
	}
	f.render = func(ctx context.Context, u string) (string, error) {
		return WithBrowser(ctx, u, 2*o.Timeout, f.logger)
	}
	return f
}

// WithRenderer replaces the headless browser used for fallback rendering.
func (f *Fetcher) WithRenderer(render RenderFunc) *Fetcher {
	f.render = render
	return f
}

// JobDescription fetches a posting and returns its description text. When the
// HTTP response carries less than MinContentLength characters of text and the
// browser is enabled, the page is rendered headlessly and extracted again.
func (f *Fetcher) JobDescription(ctx context.Context, urlStr string) (*Result, error) {
	result, err := f.URL(ctx, urlStr)
	if err != nil {
		return result, err
	}

	result.Platform = DetectPlatform(urlStr)
	content := PlatformContentSelectors(result.Platform)
	noise := PlatformNoiseSelectors(result.Platform)

	text, err := ExtractMainText(result.HTML, content, noise...)
	if err != nil {
		return result, &Error{URL: urlStr, Message: "failed to extract text", Cause: err}
	}
	result.Text = text

	if f.opts.UseBrowser && f.render != nil && ShouldUseBrowser(text) {
		f.logger.Info("posting text too short, rendering in browser",
			zap.String("url", urlStr),
			zap.Int("chars", len(text)))
		html, err := f.render(ctx, urlStr)
		if err != nil {
			f.logger.Warn("browser rendering failed, keeping HTTP text", zap.Error(err))
		} else if rendered, err := ExtractMainText(html, content, noise...); err == nil && len(rendered) > len(text) {
			result.HTML = html
			result.Text = rendered
			result.Rendered = true
		}
	}

	if strings.TrimSpace(result.Text) == "" {
		return result, &Error{URL: urlStr, Message: "no text found on page"}
	}
	f.logger.Debug("fetched job description",
		zap.String("url", urlStr),
		zap.String("platform", string(result.Platform)),
		zap.Bool("rendered", result.Rendered),
		zap.Int("chars", len(result.Text)))
	return result, nil
}

// URL retrieves the HTML content of a URL.
func (f *Fetcher) URL(ctx context.Context, urlStr string) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, &Error{URL: urlStr, Message: fmt.Sprintf("unsupported scheme %q", parsedURL.Scheme)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for key, value := range f.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}
	if resp.StatusCode != http.StatusOK {
		return result, &Error{URL: urlStr, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return result, nil
}

// ExtractMainText parses HTML and returns the main body text. Noise elements
// are removed first, then the first matching content selector wins. The body
// is used when nothing matches.
func ExtractMainText(html string, contentSelectors []string, noiseSelectors ...string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, .ad, .advertisement, .ads, .sidebar, .cookie-banner, .popup").Remove()
	if len(noiseSelectors) > 0 {
		doc.Find(strings.Join(noiseSelectors, ", ")).Remove()
	}

	var mainContent *goquery.Selection
	for _, selector := range contentSelectors {
		if selection := doc.Find(selector); selection.Length() > 0 {
			mainContent = selection.First()
			break
		}
	}
	if mainContent == nil {
		mainContent = doc.Find("body")
	}

	// Block elements are separated by newlines so bullet structure survives.
	mainContent.Find("p, li, h1, h2, h3, h4, h5, h6, br, div, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return cleanWhitespace(mainContent.Text()), nil
}

// JobPostingSelectors returns selectors for generic job board pages.
func JobPostingSelectors() []string {
	return []string{
		".job-description",
		".job-content",
		"#job-description",
		"#job-content",
		".posting-content",
		".job-details",
		"[data-testid='job-description']",
		"main",
		"article",
		".content",
		"#content",
	}
}

// cleanWhitespace trims every line, collapses runs of inner spaces and drops
// blank lines.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
