package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Link is an anchor found on a rendered page.
type Link struct {
	// Text is the anchor's visible text with whitespace collapsed.
	Text string `json:"text"`
	// Href is the anchor target resolved against the page location.
	// It is empty when the anchor has no usable target.
	Href string `json:"href"`
}

// anchorsScript reads every anchor from the live DOM. innerText only holds
// rendered text; an anchor with no layout boxes is not rendered at all, and
// its innerText would fall back to textContent.
const anchorsScript = `Array.from(document.querySelectorAll('a')).map(a => ({
	text: a.getClientRects().length > 0 ? a.innerText : '',
	href: a.getAttribute('href') === null ? '' : a.href
}))`

// hiddenSelector matches content a browser would not render as link text.
const hiddenSelector = "script, style, noscript, template, [hidden], [aria-hidden='true'], .sr-only, .visually-hidden"

// Renderer loads a page and returns the anchors it contains.
type Renderer interface {
	Render(ctx context.Context, pageURL string) ([]Link, error)
}

// ChromeOptions controls how the source page is loaded.
//
// The listing is filled in by client-side script, so a real Chrome/Chromium
// browser (via the DevTools protocol) is used rather than a plain HTTP GET.
type ChromeOptions struct {
	// ChromePath optionally overrides the Chrome/Chromium executable path.
	// If empty, chromedp will try to find a browser on PATH / default locations.
	ChromePath string
	// Headless controls whether Chrome runs without a visible window.
	Headless bool
	// Timeout is the deadline for navigation, settling and capture.
	// If <= 0, DefaultRenderTimeout is used.
	Timeout time.Duration
	// SettleDelay is the fixed wait after the page goes network idle and
	// before the DOM is read. If <= 0, DefaultSettleDelay is used.
	SettleDelay time.Duration
	// WaitSelector optionally waits for a CSS selector to become visible
	// before the DOM is read.
	WaitSelector string
}

// ChromeRenderer renders pages with headless Chrome.
type ChromeRenderer struct {
	Options ChromeOptions
}

// NewChromeRenderer returns a renderer using opts.
func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	return &ChromeRenderer{Options: opts}
}

// Render navigates to pageURL, waits for the page to settle and returns
// every anchor in the final DOM.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) ([]Link, error) {
	opts := r.Options
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRenderTimeout
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}

	allocatorOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOpts = append(allocatorOpts,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(UserAgent),
	)
	if opts.ChromePath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(opts.ChromePath))
	}
	if opts.Headless {
		allocatorOpts = append(allocatorOpts, chromedp.Headless)
	} else {
		allocatorOpts = append(allocatorOpts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancelRun()

	var anchors []Link
	var finalURL string

	navigate := func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}

		idle := make(chan struct{}, 1)
		chromedp.ListenTarget(ctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		})

		if err := chromedp.Navigate(pageURL).Do(ctx); err != nil {
			return err
		}

		// Pages with long-polling never go idle; the settle delay still applies.
		select {
		case <-idle:
			log.Printf("Network idle reached for %s", pageURL)
		case <-time.After(DefaultNetworkIdleTimeout):
			log.Printf("Network idle not reached for %s after %s, continuing", pageURL, DefaultNetworkIdleTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	actions := []chromedp.Action{
		chromedp.ActionFunc(navigate),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if strings.TrimSpace(opts.WaitSelector) != "" {
		actions = append(actions, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(opts.SettleDelay),
		chromedp.Location(&finalURL),
		chromedp.Evaluate(anchorsScript, &anchors),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", pageURL, err)
	}

	if finalURL == "" {
		finalURL = pageURL
	}
	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	links := make([]Link, 0, len(anchors))
	for _, a := range anchors {
		links = append(links, newLink(a.Text, a.Href, base))
	}
	return links, nil
}

// StaticRenderer fetches a page over plain HTTP without running its
// scripts. It suits listings that are rendered on the server.
type StaticRenderer struct {
	Client *http.Client
}

// NewStaticRenderer returns a renderer with the given request timeout.
func NewStaticRenderer(timeout time.Duration) *StaticRenderer {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &StaticRenderer{Client: &http.Client{Timeout: timeout}}
}

// Render fetches pageURL and returns its anchors, resolved against the
// final URL after redirects.
func (r *StaticRenderer) Render(ctx context.Context, pageURL string) ([]Link, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}
	return ExtractLinks(string(body), resp.Request.URL.String())
}

// ExtractLinks parses static html and returns every anchor element in
// document order, with targets resolved against baseURL. Text inside
// elements hidden by markup or inline style is left out, as a browser
// would.
func ExtractLinks(html string, baseURL string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	var links []Link
	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links = append(links, newLink(visibleText(s), href, base))
	})
	return links, nil
}

func newLink(text, href string, base *url.URL) Link {
	return Link{
		Text: strings.Join(strings.Fields(text), " "),
		Href: resolveURL(base, strings.TrimSpace(href)),
	}
}

// visibleText returns the text of s without hidden descendants. A hidden
// anchor, or one inside a hidden ancestor, has no visible text.
func visibleText(s *goquery.Selection) string {
	if isHidden(s) || s.Parents().FilterFunction(func(i int, p *goquery.Selection) bool {
		return isHidden(p)
	}).Length() > 0 {
		return ""
	}

	clone := s.Clone()
	clone.Find("*").FilterFunction(func(i int, c *goquery.Selection) bool {
		return isHidden(c)
	}).Remove()
	return clone.Text()
}

func isHidden(s *goquery.Selection) bool {
	if s.Is(hiddenSelector) {
		return true
	}
	style, ok := s.Attr("style")
	if !ok {
		return false
	}
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// resolveURL resolves a potentially relative URL against a base URL.
func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}

	// Skip data URIs and javascript:
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "javascript:") {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}

	return base.ResolveReference(refURL).String()
}
