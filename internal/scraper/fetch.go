package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrBlocked signals an anti-bot challenge (403-class response). It is not
// retried on the same transport; the caller must switch to the browser
// transport or abort the crawl target.
var ErrBlocked = errors.New("blocked by anti-bot challenge")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// Fetcher retrieves one raw document per call. Implementations own whatever
// session state they need for the duration of a crawl run and release it in
// Close.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
	Close()
}

// SessionFetcher is the lightweight transport: a cookie-carrying HTTP client
// with browser-like headers. Fast, but fails closed on bot challenges.
type SessionFetcher struct {
	client    *http.Client
	userAgent string
}

func NewSessionFetcher(proxyURL string) (*SessionFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := &http.Transport{}
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", proxyURL, err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &SessionFetcher{
		client: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		userAgent: defaultUserAgent,
	}, nil
}

func (f *SessionFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%s returned %d: %w", pageURL, resp.StatusCode, ErrBlocked)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s returned unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	return body, nil
}

func (f *SessionFetcher) Close() {
	f.client.CloseIdleConnections()
}

// BrowserFetcher is the headless-browser transport. It runs a stealth Chrome
// profile that survives JS challenges, waits a fixed settle delay after
// navigation for deferred content, and owns the browser process for the
// crawl run.
type BrowserFetcher struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	settle        time.Duration
	pageTimeout   time.Duration
}

func NewBrowserFetcher(proxyURL string) *BrowserFetcher {
	opts := browserOptions()
	if proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(proxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &BrowserFetcher{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		settle:        2 * time.Second,
		pageTimeout:   60 * time.Second,
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.browserCtx)
	defer tabCancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, f.pageTimeout)
	defer timeoutCancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			tabCancel()
		case <-done:
		}
	}()
	defer close(done)

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(f.settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("browser fetch of %s failed: %w", pageURL, err)
	}

	return []byte(html), nil
}

// Close releases the browser process. Safe to call on every exit path.
func (f *BrowserFetcher) Close() {
	f.browserCancel()
	f.allocCancel()
}

func browserOptions() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.UserAgent(defaultUserAgent),
		chromedp.WindowSize(1920, 1080),
	}
}
