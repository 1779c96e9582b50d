package menu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/k3a/html2text"
	"go.uber.org/zap"

	"beer-scanner-backend/config"
	"beer-scanner-backend/internal/model"
)

// Content is a fetched menu ready for fingerprinting and parsing.
type Content struct {
	Data        []byte
	ContentType string
}

// Fetcher retrieves the raw menu of a bar.
type Fetcher interface {
	Fetch(ctx context.Context, bar *model.Bar) (*Content, error)
}

// HTTPFetcher fetches menus over HTTP, optionally navigating the page with a CSS selector.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *zap.Logger
}

// NewHTTPFetcher creates an HTTPFetcher honouring the scraper proxy and timeout settings.
func NewHTTPFetcher(cfg config.ScraperConfig, logger *zap.Logger) *HTTPFetcher {
	var transport http.RoundTripper = &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warn("invalid proxy URL, fetching without proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}

	return &HTTPFetcher{
		client:    &http.Client{Transport: transport, Timeout: timeout},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// Fetch returns the bar's menu. In text mode the selected part of the page is
// converted to plain text. Otherwise a selector points at a link or embed whose
// target is the actual menu document.
func (f *HTTPFetcher) Fetch(ctx context.Context, bar *model.Bar) (*Content, error) {
	if strings.TrimSpace(bar.MenuURL) == "" {
		return nil, &FetchError{Reason: ReasonNoMenuURL}
	}

	switch {
	case bar.ProcessAsText:
		return f.fetchText(ctx, bar.MenuURL, bar.MenuSelector)
	case bar.MenuSelector != "":
		target, err := f.followSelector(ctx, bar.MenuURL, bar.MenuSelector)
		if err != nil {
			return nil, err
		}
		return f.fetchDocument(ctx, target)
	default:
		return f.fetchDocument(ctx, bar.MenuURL)
	}
}

func (f *HTTPFetcher) fetchText(ctx context.Context, pageURL, selector string) (*Content, error) {
	doc, err := f.page(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if selector == "" {
		selector = "body"
	}

	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return nil, &FetchError{Reason: ReasonSelectorNotFound, URL: pageURL, Err: fmt.Errorf("selector %q", selector)}
	}

	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		html, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		if text := strings.TrimSpace(html2text.HTML2Text(html)); text != "" {
			parts = append(parts, text)
		}
	})
	return &Content{Data: []byte(strings.Join(parts, "\n\n")), ContentType: "text/plain"}, nil
}

// followSelector resolves the href or src of the first element matching selector.
func (f *HTTPFetcher) followSelector(ctx context.Context, pageURL, selector string) (string, error) {
	doc, err := f.page(ctx, pageURL)
	if err != nil {
		return "", err
	}

	sel := doc.Find(selector).First()
	ref := ""
	for _, attr := range []string{"href", "src", "data"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			ref = strings.TrimSpace(v)
			break
		}
	}
	if ref == "" {
		return "", &FetchError{Reason: ReasonSelectorNotFound, URL: pageURL, Err: fmt.Errorf("selector %q has no link", selector)}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", &FetchError{Reason: ReasonHTTP, URL: pageURL, Err: err}
	}
	target, err := base.Parse(ref)
	if err != nil {
		return "", &FetchError{Reason: ReasonHTTP, URL: pageURL, Err: err}
	}
	return target.String(), nil
}

func (f *HTTPFetcher) page(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, _, err := f.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Reason: ReasonHTTP, URL: pageURL, Err: err}
	}
	return doc, nil
}

// fetchDocument downloads a menu document and keeps it only if its type can be parsed.
func (f *HTTPFetcher) fetchDocument(ctx context.Context, docURL string) (*Content, error) {
	body, contentType, err := f.get(ctx, docURL)
	if err != nil {
		return nil, err
	}

	switch {
	case contentType == "application/pdf", strings.HasPrefix(contentType, "image/"), contentType == "text/plain":
		return &Content{Data: body, ContentType: contentType}, nil
	case contentType == "text/html":
		text := strings.TrimSpace(html2text.HTML2Text(string(body)))
		return &Content{Data: []byte(text), ContentType: "text/plain"}, nil
	default:
		return nil, &FetchError{Reason: ReasonUnsupportedType, URL: docURL, Err: fmt.Errorf("content type %q", contentType)}
	}
}

// get performs a GET and returns the capped body with its media type.
func (f *HTTPFetcher) get(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", &FetchError{Reason: ReasonHTTP, URL: target, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", &FetchError{Reason: ReasonHTTP, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &FetchError{Reason: ReasonHTTP, URL: target, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", &FetchError{Reason: ReasonHTTP, URL: target, Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", &FetchError{Reason: ReasonHTTP, URL: target, Err: errors.New("menu exceeds size limit")}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}

	f.logger.Debug("fetched menu resource", zap.String("url", target), zap.String("content_type", mediaType), zap.Int("bytes", len(body)))
	return body, mediaType, nil
}
