package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/workflow/faults"
)

// Pool is a fixed-size set of remote browser handles, connected eagerly at
// construction from host:portBase..portBase+size-1. Acquire blocks until a
// handle is free. The pool lives for a single ScrapePages invocation and is
// closed at stage end.
type Pool struct {
	log     *logger.Logger
	timeout time.Duration
	handles chan *rod.Browser
	all     []*rod.Browser
}

func NewPool(baseLog *logger.Logger, host string, portBase, size int, timeout time.Duration) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	p := &Pool{
		log:     baseLog.With("service", "BrowserPool"),
		timeout: timeout,
		handles: make(chan *rod.Browser, size),
	}
	for i := 0; i < size; i++ {
		addr := fmt.Sprintf("%s:%d", host, portBase+i)
		controlURL, err := launcher.ResolveURL(addr)
		if err != nil {
			p.Close()
			return nil, faults.Upstream("browser_pool", fmt.Errorf("resolve %s: %w", addr, err))
		}
		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			p.Close()
			return nil, faults.Upstream("browser_pool", fmt.Errorf("connect %s: %w", addr, err))
		}
		p.all = append(p.all, b)
		p.handles <- b
	}
	p.log.Debug("Browser pool ready", "size", size, "port_base", portBase)
	return p, nil
}

// Scrape acquires a handle, navigates with the pool's timeout, and returns
// the page HTML. A navigation timeout fails the URL but does not poison the
// handle; the page is closed either way.
func (p *Pool) Scrape(ctx context.Context, url string) (string, error) {
	b, err := p.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer p.release(b)

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", faults.Upstream("scrape", fmt.Errorf("open page: %w", err))
	}
	defer func() { _ = page.Close() }()

	timed := page.Context(ctx).Timeout(p.timeout)
	if err := timed.Navigate(url); err != nil {
		return "", faults.Timeout("scrape", fmt.Sprintf("navigate %s: %v", url, err))
	}
	if err := timed.WaitLoad(); err != nil {
		return "", faults.Timeout("scrape", fmt.Sprintf("load %s: %v", url, err))
	}
	html, err := timed.HTML()
	if err != nil {
		return "", faults.Upstream("scrape", fmt.Errorf("read html %s: %w", url, err))
	}
	return html, nil
}

func (p *Pool) acquire(ctx context.Context) (*rod.Browser, error) {
	select {
	case b := <-p.handles:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(b *rod.Browser) {
	p.handles <- b
}

// Close closes every handle. Safe to call on a partially built pool.
func (p *Pool) Close() {
	for _, b := range p.all {
		if err := b.Close(); err != nil {
			p.log.Warn("Browser close failed", "error", err)
		}
	}
	p.all = nil
}
