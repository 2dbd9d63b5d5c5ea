package render

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// RodConfig configures the Rod-backed browser.
type RodConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string
	Headless  bool
	Logger    *slog.Logger
}

// RodBrowser drives a Chrome instance through Rod. Pages are created
// with stealth applied to keep automation fingerprints down.
type RodBrowser struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	log     *slog.Logger
}

// NewRodBrowser launches (or connects to) Chrome and returns a handle.
func NewRodBrowser(cfg RodConfig) (*RodBrowser, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var wsURL string
	var lnch *launcher.Launcher

	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		lnch = l
		log.Info("browser: launched local chrome", "headless", cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	return &RodBrowser{browser: b, lnch: lnch, log: log}, nil
}

// NewPage opens a stealth tab. The caller owns the handle and must
// Close it on every exit path.
func (b *RodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := stealth.Page(b.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	return &rodPage{page: page}, nil
}

// Close shuts down Chrome and cleans up the launcher's user data dir.
func (b *RodBrowser) Close() error {
	err := b.browser.Close()
	if b.lnch != nil {
		b.lnch.Cleanup()
	}
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.page.Context(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) WaitFor(ctx context.Context, predicateJS string) error {
	if err := p.page.Context(ctx).Wait(rod.Eval(predicateJS)); err != nil {
		return fmt.Errorf("browser: wait predicate: %w", err)
	}
	return nil
}

func (p *rodPage) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
