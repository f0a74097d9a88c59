// Package browser opens headless Chrome sessions through Rod for one-shot
// page checks: either a persistent context rooted at a profile directory or
// an ephemeral incognito context in a throwaway browser.
package browser

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"

	"github.com/hazyhaar/keepbackup/failure"
)

// Page is the part of a browser tab a page check needs.
type Page interface {
	// Navigate loads url and returns once DOMContentLoaded fired. The
	// returned status is the main document's HTTP status, or 0 when there
	// was no HTTP response (file URLs).
	Navigate(ctx context.Context, url string) (status int, err error)
	Title(ctx context.Context) (string, error)
	// Count returns how many elements match a CSS selector right now.
	Count(ctx context.Context, selector string) (int, error)
}

// Session owns a browser context and its page. Close releases both and is
// safe to call more than once.
type Session interface {
	Page() Page
	Close() error
}

// Config configures the Launcher.
type Config struct {
	// Bin is the browser executable. Empty = look up an installed
	// Chrome/Chromium.
	Bin string

	// AutoDownload allows fetching a browser build when none is installed.
	AutoDownload bool

	// NavigationTimeout bounds a single Navigate call. Default: 30s.
	NavigationTimeout time.Duration

	Logger *zap.Logger
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Launcher starts a fresh headless browser per Open call.
type Launcher struct {
	cfg Config
}

// NewLauncher creates a Launcher.
func NewLauncher(cfg Config) *Launcher {
	cfg.defaults()
	return &Launcher{cfg: cfg}
}

// Open launches a headless browser. With a profileDir the browser runs on
// that user-data directory and its first existing page is reused; without
// one a new incognito context and stealth page are created.
func (l *Launcher) Open(ctx context.Context, profileDir string) (Session, error) {
	log := l.cfg.Logger

	bin, err := l.resolveBin()
	if err != nil {
		return nil, err
	}

	lnch := launcher.New().
		Context(ctx).
		Bin(bin).
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")
	if profileDir != "" {
		lnch = lnch.UserDataDir(profileDir)
	}

	u, err := lnch.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	log.Debug("browser: launched", zap.String("bin", bin), zap.String("profile_dir", profileDir))

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		lnch.Kill()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	s := &session{
		browser:    b,
		lnch:       lnch,
		persistent: profileDir != "",
		timeout:    l.cfg.NavigationTimeout,
		logger:     log,
	}

	if s.persistent {
		err = s.openPersistent()
	} else {
		err = s.openEphemeral()
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

const missingBrowserHint = "install Chrome or Chromium, set KEEP_BROWSER_BIN to its path, " +
	"or set KEEP_BROWSER_AUTO_DOWNLOAD=true to let keepbackup fetch one"

func (l *Launcher) resolveBin() (string, error) {
	if l.cfg.Bin != "" {
		path, err := exec.LookPath(l.cfg.Bin)
		if err != nil {
			return "", failure.DependencyMissing("browser binary %q is not usable (%v). %s", l.cfg.Bin, err, missingBrowserHint)
		}
		return path, nil
	}

	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}

	if !l.cfg.AutoDownload {
		return "", failure.DependencyMissing("no Chrome/Chromium browser found. %s", missingBrowserHint)
	}

	l.cfg.Logger.Info("browser: downloading browser build")
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", failure.DependencyMissing("browser download failed (%v). %s", err, missingBrowserHint)
	}
	return path, nil
}
