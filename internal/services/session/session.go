// -----------------------------------------------------------------------
// Browser Session Driver - navigate, locate, click, popup capture
// -----------------------------------------------------------------------

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/talenttrek/applink/internal/common"
	"github.com/talenttrek/applink/internal/interfaces"
)

// ErrNoPopup is returned when the popup window race elapses without a new
// target. Callers treat it as an expected outcome, not a failure.
var ErrNoPopup = errors.New("no popup window appeared")

// ErrNoSelectorMatch is returned when none of the selector strategies
// located a visible element within the deadline.
var ErrNoSelectorMatch = errors.New("no selector strategy matched")

// chromeSession is one isolated, credentialed browsing context. The popup
// channel is armed at construction so windows created at any point during
// the interaction are caught, buffered by chromedp until read.
type chromeSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	factory *Factory
	popupCh <-chan target.ID

	popupMu sync.Mutex
	popup   *chromePopup
}

func newChromeSession(ctx context.Context, cancel context.CancelFunc, factory *Factory) *chromeSession {
	s := &chromeSession{
		ctx:     ctx,
		cancel:  cancel,
		factory: factory,
	}
	// Only windows opened by this session's page count as popups.
	s.popupCh = chromedp.WaitNewTarget(ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})
	return s
}

var _ interfaces.BrowserSession = (*chromeSession)(nil)

// Navigate injects the session cookies and loads the URL, bounded by
// timeout. The per-domain rate gate runs first.
func (s *chromeSession) Navigate(ctx context.Context, rawURL string, timeout time.Duration) error {
	if err := s.factory.waitForDomain(ctx, rawURL); err != nil {
		return fmt.Errorf("rate limit wait interrupted: %w", err)
	}

	navCtx, cancel := s.boundedContext(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		network.Enable(),
		s.setCookiesAction(rawURL),
		chromedp.Navigate(rawURL),
	); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", rawURL, err)
	}

	return nil
}

// setCookiesAction injects the shared cookie jar into the browsing context.
// Cookies without a domain inherit the target host; a single bad cookie is
// skipped rather than failing the navigation.
func (s *chromeSession) setCookiesAction(rawURL string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		targetHost := common.Hostname(rawURL)

		for _, c := range s.factory.cookies {
			domain := strings.TrimPrefix(c.Domain, ".")
			if domain == "" {
				domain = targetHost
			}

			param := network.SetCookie(c.Name, c.Value).
				WithDomain(domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)

			switch strings.ToLower(c.SameSite) {
			case "strict":
				param = param.WithSameSite(network.CookieSameSiteStrict)
			case "lax":
				param = param.WithSameSite(network.CookieSameSiteLax)
			case "none":
				param = param.WithSameSite(network.CookieSameSiteNone)
			}

			if err := param.Do(ctx); err != nil {
				s.factory.logger.Warn().
					Err(err).
					Str("cookie", c.Name).
					Str("domain", domain).
					Msg("Failed to inject session cookie")
			}
		}

		return nil
	})
}

// WaitForAny races the selector strategies concurrently; the first visible
// match cancels the rest and its selector is returned.
func (s *chromeSession) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	if len(selectors) == 0 {
		return "", ErrNoSelectorMatch
	}

	waitCtx, cancel := s.boundedContext(ctx, timeout)
	defer cancel()

	found := make(chan string, len(selectors))
	var wg sync.WaitGroup
	for _, sel := range selectors {
		wg.Add(1)
		go func(sel string) {
			defer wg.Done()
			if err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, queryOption(sel))); err == nil {
				select {
				case found <- sel:
				default:
				}
				cancel()
			}
		}(sel)
	}
	wg.Wait()

	select {
	case sel := <-found:
		return sel, nil
	default:
		return "", fmt.Errorf("%w: tried %d strategies within %s", ErrNoSelectorMatch, len(selectors), timeout)
	}
}

// Click clicks the element located by selector.
func (s *chromeSession) Click(ctx context.Context, selector string) error {
	clickCtx, cancel := s.boundedContext(ctx, 5*time.Second)
	defer cancel()

	if err := chromedp.Run(clickCtx, chromedp.Click(selector, queryOption(selector), chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// WaitForPopup waits up to timeout for a new window/tab spawned by the page
// and attaches to it.
func (s *chromeSession) WaitForPopup(ctx context.Context, timeout time.Duration) (interfaces.Popup, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-s.popupCh:
		popupCtx, popupCancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
		p := &chromePopup{ctx: popupCtx, cancel: popupCancel}
		s.popupMu.Lock()
		s.popup = p
		s.popupMu.Unlock()
		return p, nil
	case <-timer.C:
		return nil, ErrNoPopup
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

// Close tears down the popup (if any) and the browsing context.
func (s *chromeSession) Close() {
	s.popupMu.Lock()
	if s.popup != nil {
		s.popup.Close()
		s.popup = nil
	}
	s.popupMu.Unlock()
	s.cancel()
}

// boundedContext derives a deadline-bounded chromedp context that is also
// cancelled when the caller's context ends.
func (s *chromeSession) boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	boundCtx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return boundCtx, func() {
		stop()
		cancel()
	}
}

// queryOption picks the chromedp query mode per selector: XPath expressions
// use the DOM search backend, everything else is a CSS query.
func queryOption(sel string) chromedp.QueryOption {
	if strings.HasPrefix(sel, "/") || strings.HasPrefix(sel, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// chromePopup is a handle on a newly created window/tab target.
type chromePopup struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ interfaces.Popup = (*chromePopup)(nil)

// URL returns the popup's current location.
func (p *chromePopup) URL(ctx context.Context) (string, error) {
	readCtx, cancel := context.WithTimeout(p.ctx, 2*time.Second)
	defer cancel()

	var loc string
	if err := chromedp.Run(readCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read popup location: %w", err)
	}
	return loc, nil
}

// WaitForNavigation polls the popup location until it leaves the blank
// placeholder or the deadline passes. The last observed location is returned
// either way; the caller decides whether a lingering placeholder is usable.
func (p *chromePopup) WaitForNavigation(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	last := ""
	for {
		loc, err := p.URL(ctx)
		if err == nil {
			last = loc
			if !common.IsBlankURL(loc) {
				return loc, nil
			}
		}

		if time.Now().After(deadline) {
			return last, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return last, ctx.Err()
		case <-p.ctx.Done():
			return last, p.ctx.Err()
		}
	}
}

// Close detaches from the popup target.
func (p *chromePopup) Close() {
	p.cancel()
}
