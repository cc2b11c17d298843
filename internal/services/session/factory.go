// -----------------------------------------------------------------------
// Browser Session Factory - shared Chrome allocator, one context per listing
// -----------------------------------------------------------------------

package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/talenttrek/applink/internal/common"
	"github.com/talenttrek/applink/internal/interfaces"
	"github.com/talenttrek/applink/internal/models"
)

// Factory creates isolated browser sessions from one shared Chrome process.
// The cookie jar is read-only and shared by every session; each session owns
// its own browsing context and no two listings ever share one.
type Factory struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	cookies     []models.SessionCookie
	logger      arbor.ILogger

	rateLimit float64
	limiters  map[string]*rate.Limiter
	mu        sync.Mutex
}

// NewFactory starts the Chrome allocator with the configured flags. Sessions
// created from it inherit the user agent and the headless settings.
func NewFactory(cfg common.BrowserConfig, rateLimit float64, cookies []models.SessionCookie, logger arbor.ILogger) *Factory {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.DisableGPU),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Info().
		Bool("headless", cfg.Headless).
		Str("user_agent", cfg.UserAgent).
		Int("cookies", len(cookies)).
		Msg("Browser allocator initialized")

	return &Factory{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		cookies:     cookies,
		logger:      logger,
		rateLimit:   rateLimit,
		limiters:    make(map[string]*rate.Limiter),
	}
}

var _ interfaces.SessionFactory = (*Factory)(nil)

// NewSession opens a fresh browsing context and arms its popup watch. The
// context is verified with a blank navigation so a broken Chrome surfaces
// here instead of mid-resolution.
func (f *Factory) NewSession(ctx context.Context) (interfaces.BrowserSession, error) {
	browserCtx, browserCancel := chromedp.NewContext(f.allocCtx)

	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		return nil, fmt.Errorf("failed to start browser context: %w", err)
	}

	return newChromeSession(browserCtx, browserCancel, f), nil
}

// waitForDomain blocks until the per-host rate limit allows another
// navigation. Hosts are limited independently.
func (f *Factory) waitForDomain(ctx context.Context, rawURL string) error {
	host := common.Hostname(rawURL)
	if host == "" {
		return nil
	}

	f.mu.Lock()
	limiter, exists := f.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(f.rateLimit), 1)
		f.limiters[host] = limiter
	}
	f.mu.Unlock()

	return limiter.Wait(ctx)
}

// Close shuts down the shared Chrome allocator and every context under it.
func (f *Factory) Close() error {
	f.allocCancel()
	f.logger.Info().Msg("Browser allocator shut down")
	return nil
}
