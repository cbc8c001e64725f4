// Package browser implements the headless-browser fallback tier: a
// bounded pool of pages backed by go-rod/stealth, with sub-request
// interception through the URL guard. The concurrency cap is a
// non-blocking channel semaphore, generalising the teacher's
// gateway.MessageQueue ("N concurrent message lanes") from per-session
// message dispatch to "N concurrent browser pages".
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/readmd/gateway/internal/convert/guard"
	"github.com/readmd/gateway/internal/errkind"
	"github.com/readmd/gateway/internal/pkg/logs"
)

const (
	maxConcurrentPages = 3
	userAgent          = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	viewportWidth      = 1366
	viewportHeight     = 768

	navNetworkIdleTimeout = 15 * time.Second
	navDomLoadedTimeout   = 15 * time.Second
	textWaitNetworkIdle   = 2 * time.Second
	textWaitDomLoaded     = 8 * time.Second
	minVisibleTextLen     = 200
)

// Pool is the process-wide browser pool. The underlying browser process is
// long-lived and relaunched on demand; relaunches are serialised via
// relaunchMu so a disconnect never triggers concurrent relaunch attempts.
type Pool struct {
	binaryPath string
	guard      *guard.Guard

	slots chan struct{} // non-blocking semaphore, cap maxConcurrentPages

	mu         sync.Mutex
	browser    *rod.Browser
	relaunchMu sync.Mutex
}

func New(g *guard.Guard, binaryPath string) *Pool {
	return &Pool{
		binaryPath: binaryPath,
		guard:      g,
		slots:      make(chan struct{}, maxConcurrentPages),
	}
}

// Page wraps an acquired rod page and the browser it was opened in. The
// page is created in the pool's shared browser, not in a separate
// incognito context.
type Page struct {
	pool    *Pool
	page    *rod.Page
	browser *rod.Browser
}

// AcquirePage blocks the caller's intent only up to the semaphore: if the
// pool is saturated, Acquire fails fast with BrowserPoolExhausted rather
// than queueing, preserving backpressure.
func (p *Pool) AcquirePage(ctx context.Context) (*Page, error) {
	select {
	case p.slots <- struct{}{}:
	default:
		return nil, errkind.New(errkind.BrowserPoolExhausted, "browser pool saturated")
	}

	b, err := p.ensureBrowser()
	if err != nil {
		<-p.slots
		return nil, errkind.Wrap(errkind.BrowserPoolExhausted, "browser launch failed", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		<-p.slots
		return nil, errkind.Wrap(errkind.BrowserNavigationFailed, "page creation failed", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: viewportWidth, Height: viewportHeight,
	}); err != nil {
		logs.CtxWarn(ctx, "[browser] set viewport failed: %v", err)
	}

	p.interceptRequests(page)

	return &Page{pool: p, page: page, browser: b}, nil
}

// Release closes the page and frees the semaphore slot. The shared browser
// (and its cookies and storage) stays open for later pages.
func (pg *Page) Release() {
	if pg.page != nil {
		_ = pg.page.Close()
	}
	select {
	case <-pg.pool.slots:
	default:
	}
}

func (p *Pool) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	b := p.browser
	p.mu.Unlock()
	if b != nil && p.isConnected(b) {
		return b, nil
	}

	p.relaunchMu.Lock()
	defer p.relaunchMu.Unlock()

	p.mu.Lock()
	b = p.browser
	p.mu.Unlock()
	if b != nil && p.isConnected(b) {
		return b, nil
	}

	l := launcher.New().Headless(true)
	if p.binaryPath != "" {
		l = l.Bin(p.binaryPath)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, err
	}
	newBrowser := rod.New().ControlURL(u)
	if err := newBrowser.Connect(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.browser = newBrowser
	p.mu.Unlock()
	return newBrowser, nil
}

func (p *Pool) isConnected(b *rod.Browser) bool {
	_, err := b.Version()
	return err == nil
}

// Close tears down the launched browser process, if one was started. Safe
// to call even when no page was ever acquired.
func (p *Pool) Close() error {
	p.mu.Lock()
	b := p.browser
	p.browser = nil
	p.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.Close()
}

// interceptRequests aborts any sub-request whose host fails the URL guard.
func (p *Pool) interceptRequests(page *rod.Page) {
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		u := h.Request.URL()
		if err := p.guard.CheckURL(u.String()); err != nil {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		_ = h.LoadResponse(h.Client, true)
	})
	go router.Run()
}

// Navigate performs the two-stage wait described by the browser-fallback
// contract: network-idle first, DOM-content-loaded as a fallback, each
// capped at its own timeout, followed by a short wait for enough visible
// text to appear.
func (pg *Page) Navigate(ctx context.Context, rawURL string) (html string, err error) {
	if err := pg.page.Context(ctx).Navigate(rawURL); err != nil {
		return "", errkind.Wrap(errkind.BrowserNavigationFailed, "navigate failed", err)
	}

	waitErr := pg.page.Timeout(navNetworkIdleTimeout).WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)()
	textWait := textWaitNetworkIdle
	if waitErr != nil {
		textWait = textWaitDomLoaded
		if domErr := pg.page.Timeout(navDomLoadedTimeout).WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)(); domErr != nil {
			return "", errkind.New(errkind.BrowserNavigationFailed, "both networkidle and domcontentloaded waits failed")
		}
	}

	pg.waitForVisibleText(textWait)

	content, err := pg.page.HTML()
	if err != nil {
		return "", errkind.Wrap(errkind.BrowserNavigationFailed, "read rendered HTML failed", err)
	}
	return content, nil
}

func (pg *Page) waitForVisibleText(budget time.Duration) {
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		body, err := pg.page.Element("body")
		if err == nil {
			if text, terr := body.Text(); terr == nil && len(text) > minVisibleTextLen {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
}
