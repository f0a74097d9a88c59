package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

type session struct {
	browser    *rod.Browser
	lnch       *launcher.Launcher
	persistent bool
	contextID  proto.BrowserBrowserContextID
	page       *rodPage
	timeout    time.Duration
	logger     *zap.Logger

	once     sync.Once
	closeErr error
}

func (s *session) openPersistent() error {
	pages, err := s.browser.Pages()
	if err != nil {
		return fmt.Errorf("browser: list pages: %w", err)
	}

	var page *rod.Page
	if len(pages) > 0 {
		page = pages.First()
	} else {
		page, err = s.browser.Page(proto.TargetCreateTarget{URL: ""})
		if err != nil {
			return fmt.Errorf("browser: create tab: %w", err)
		}
	}
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		s.logger.Warn("browser: stealth script failed", zap.Error(err))
	}
	s.page = &rodPage{page: page, timeout: s.timeout}
	return nil
}

func (s *session) openEphemeral() error {
	inc, err := s.browser.Incognito()
	if err != nil {
		return fmt.Errorf("browser: new context: %w", err)
	}
	s.contextID = inc.BrowserContextID

	page, err := stealth.Page(inc)
	if err != nil {
		return fmt.Errorf("browser: create tab: %w", err)
	}
	s.page = &rodPage{page: page, timeout: s.timeout}
	return nil
}

func (s *session) Page() Page { return s.page }

// Close disposes the incognito context (if any), closes the browser and, for
// ephemeral sessions, removes the temporary user-data directory. A persisted
// profile directory is left in place.
func (s *session) Close() error {
	s.once.Do(func() {
		var errs []error
		if s.contextID != "" {
			err := proto.TargetDisposeBrowserContext{BrowserContextID: s.contextID}.Call(s.browser)
			if err != nil {
				errs = append(errs, fmt.Errorf("browser: dispose context: %w", err))
			}
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("browser: close: %w", err))
		}
		if s.persistent {
			s.lnch.Kill()
		} else {
			s.lnch.Cleanup()
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

// responseGrace is how long Navigate waits for the document response event
// after DOMContentLoaded has already fired.
const responseGrace = 500 * time.Millisecond

func (p *rodPage) Navigate(ctx context.Context, url string) (int, error) {
	navCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	page := p.page.Context(navCtx)

	var (
		status   int
		respDone chan struct{}
	)
	if !strings.HasPrefix(url, "file:") {
		respDone = make(chan struct{})
		waitResp := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
			if e.Type != proto.NetworkResourceTypeDocument {
				return false
			}
			status = e.Response.Status
			return true
		})
		go func() {
			waitResp()
			close(respDone)
		}()
	}

	waitDOM := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return 0, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	waitDOM()
	if err := navCtx.Err(); err != nil {
		return 0, fmt.Errorf("browser: wait for DOMContentLoaded on %s: %w", url, err)
	}

	if respDone == nil {
		return 0, nil
	}
	select {
	case <-respDone:
		return status, nil
	case <-time.After(responseGrace):
		return 0, nil
	}
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: page info: %w", err)
	}
	return info.Title, nil
}

func (p *rodPage) Count(ctx context.Context, selector string) (int, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, fmt.Errorf("browser: query %s: %w", selector, err)
	}
	return len(els), nil
}
