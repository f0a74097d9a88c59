// Package verify loads a page in a headless browser and checks that it
// exposes the expected note elements.
//
// A check is a single page-load attempt: acquire a session, navigate and
// wait for DOMContentLoaded, settle, read title and status, optionally count
// note elements against a minimum, and release the session on every path.
package verify

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hazyhaar/keepbackup/failure"
	"github.com/hazyhaar/keepbackup/runlog"
	"github.com/hazyhaar/keepbackup/verify/internal/browser"
)

// Page is a browser tab as seen by the verifier.
type Page = browser.Page

// Session owns a browsing context and its page.
type Session = browser.Session

// BrowserConfig configures the Rod-backed session opener.
type BrowserConfig = browser.Config

// Opener acquires a browser session. An empty profileDir asks for an
// ephemeral context.
type Opener interface {
	Open(ctx context.Context, profileDir string) (Session, error)
}

// NewBrowserOpener returns the headless Chrome opener.
func NewBrowserOpener(cfg BrowserConfig) Opener {
	return browser.NewLauncher(cfg)
}

// DefaultSettleDelay is the pause between DOMContentLoaded and reading page
// state, to let client-side rendering catch up.
const DefaultSettleDelay = time.Second

const logPrefix = "browser smoke "

// Check describes one page verification.
type Check struct {
	URL        string
	ProfileDir string
	// Selector, when set, is counted after the page settles.
	Selector string
	// MinNotes fails the check when the selector count is lower. Zero
	// disables the minimum.
	MinNotes int
}

// Verifier runs checks through an Opener.
type Verifier struct {
	opener Opener
	settle time.Duration
	logger *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(v *Verifier) { v.settle = d }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Verifier.
func New(opener Opener, opts ...Option) *Verifier {
	v := &Verifier{
		opener: opener,
		settle: DefaultSettleDelay,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify runs c and returns the number of matched note elements (zero when
// no selector is set). Progress is appended to lg.
func (v *Verifier) Verify(ctx context.Context, lg *runlog.Log, c Check) (count int, err error) {
	profile := c.ProfileDir
	if profile == "" {
		profile = "(none)"
	}
	if err := lg.Append(logPrefix + "profile_dir=" + profile); err != nil {
		return 0, err
	}

	sess, err := v.opener.Open(ctx, c.ProfileDir)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			v.logger.Warn("verify: close session", zap.String("url", c.URL), zap.Error(cerr))
		}
	}()

	return v.inspect(ctx, lg, sess.Page(), c)
}

func (v *Verifier) inspect(ctx context.Context, lg *runlog.Log, page Page, c Check) (int, error) {
	status, err := page.Navigate(ctx, c.URL)
	if err != nil {
		return 0, err
	}
	if err := sleep(ctx, v.settle); err != nil {
		return 0, err
	}

	title, err := page.Title(ctx)
	if err != nil {
		return 0, err
	}
	if err := lg.AppendAll(
		logPrefix+"page_title="+title,
		logPrefix+"http_status="+statusText(c.URL, status),
	); err != nil {
		return 0, err
	}
	v.logger.Debug("verify: page loaded", zap.String("url", c.URL), zap.String("title", title), zap.Int("status", status))

	if c.Selector == "" {
		return 0, nil
	}
	count, err := page.Count(ctx, c.Selector)
	if err != nil {
		return 0, err
	}
	if err := lg.Appendf(logPrefix+"notes_count=%d", count); err != nil {
		return count, err
	}
	if c.MinNotes > 0 && count < c.MinNotes {
		return count, failure.Verification("fixture notes count too small: %d", count)
	}
	return count, nil
}

// statusText reports "file" for local file URLs, which have no HTTP
// response, and the numeric status otherwise.
func statusText(rawURL string, status int) string {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "file" {
		return "file"
	}
	if status == 0 {
		return "none"
	}
	return strconv.Itoa(status)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
