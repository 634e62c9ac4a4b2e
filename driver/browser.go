package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// BrowserConfig configures the Chrome lifecycle.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome. Empty = launch
	// a local Chrome via launcher.
	RemoteURL string

	// Headless runs Chrome without a display. Default: true.
	Headless *bool

	// RecycleInterval is the maximum lifetime of a Chrome process before it
	// is restarted between batches. Default: 4h.
	RecycleInterval time.Duration

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.Headless == nil {
		t := true
		c.Headless = &t
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser manages one Chrome process shared by the drivers of a run. Each
// dealership session opens its own page; the process itself is recycled
// between batches when it outlives RecycleInterval.
type Browser struct {
	cfg     BrowserConfig
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
}

// NewBrowser creates a Browser manager. Call Start to launch Chrome.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("driver: browser manager is closed")
	}
	if b.browser != nil {
		return nil
	}

	rb, err := b.launch(ctx)
	if err != nil {
		return err
	}
	b.browser = rb
	b.startAt = time.Now()
	return nil
}

// Handle returns the Rod browser, recycling Chrome first when it has
// outlived RecycleInterval. Called by NewRodDriver at session start, which
// is the only point where a restart cannot strand an open page.
func (b *Browser) Handle(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("driver: browser manager is closed")
	}
	if b.browser == nil {
		return nil, fmt.Errorf("driver: browser not started")
	}

	if time.Since(b.startAt) > b.cfg.RecycleInterval {
		b.cfg.Logger.Info("driver: recycling chrome", "uptime", time.Since(b.startAt))
		b.cleanup()
		rb, err := b.launch(ctx)
		if err != nil {
			return nil, fmt.Errorf("driver: relaunch: %w", err)
		}
		b.browser = rb
		b.startAt = time.Now()
	}

	return b.browser, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cleanup()
	return nil
}

func (b *Browser) launch(ctx context.Context) (*rod.Browser, error) {
	log := b.cfg.Logger

	var wsURL string
	if b.cfg.RemoteURL != "" {
		wsURL = b.cfg.RemoteURL
		log.Info("driver: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().Headless(*b.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("driver: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		log.Info("driver: launched local chrome", "headless", *b.cfg.Headless)
	}

	rb := rod.New().ControlURL(wsURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		return nil, fmt.Errorf("driver: connect: %w", err)
	}
	return rb, nil
}

func (b *Browser) cleanup() {
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
}
