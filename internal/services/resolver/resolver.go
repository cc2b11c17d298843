// -----------------------------------------------------------------------
// Destination Resolver - click-and-capture state machine, one listing at a time
// -----------------------------------------------------------------------

package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/common"
	"github.com/talenttrek/applink/internal/interfaces"
	"github.com/talenttrek/applink/internal/models"
)

// Resolver drives one browser session through the apply interaction and
// produces a single outcome: a resolved destination URL, or use-original.
// A failure at any state is itself a valid terminal outcome (fallback),
// never an error that escapes the listing boundary.
type Resolver struct {
	cfg    common.ResolverConfig
	logger arbor.ILogger
}

// NewResolver creates a resolver with the given interaction tuning.
func NewResolver(cfg common.ResolverConfig, logger arbor.ILogger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		logger: logger,
	}
}

// Resolve runs the state machine for one listing on a fresh session. It
// always returns an outcome; panics from the automation layer are recovered
// here and converted to fallback.
func (r *Resolver) Resolve(ctx context.Context, sess interfaces.BrowserSession, listing *models.JobListing) (outcome *models.ResolutionOutcome) {
	start := time.Now()
	outcome = &models.ResolutionOutcome{
		ListingID:    listing.ID,
		OriginalURL:  listing.ApplyLink,
		UsedFallback: true,
		FinalState:   StateFallback,
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome.CandidateURL = ""
			outcome.UsedFallback = true
			outcome.FinalState = StateFallback
			r.logger.Warn().
				Int64("listing_id", listing.ID).
				Str("panic", fmt.Sprintf("%v", rec)).
				Msg("Automation layer panicked, using original link")
		}
		outcome.Elapsed = time.Since(start)
	}()

	// NAVIGATING: load the board page that hosts the apply control.
	if err := sess.Navigate(ctx, listing.ApplyLink, r.cfg.NavigationTimeout); err != nil {
		r.logger.Warn().
			Err(err).
			Int64("listing_id", listing.ID).
			Str("state", StateNavigating).
			Msg("Page load failed, using original link")
		return outcome
	}

	// AWAITING_ACTION_TARGET: race the selector strategies for the apply control.
	selector, err := sess.WaitForAny(ctx, r.cfg.ApplySelectors, r.cfg.SelectorTimeout)
	if err != nil {
		r.logger.Info().
			Err(err).
			Int64("listing_id", listing.ID).
			Str("state", StateAwaitingActionTarget).
			Msg("Apply control not found, using original link")
		return outcome
	}

	if err := sess.Click(ctx, selector); err != nil {
		r.logger.Warn().
			Err(err).
			Int64("listing_id", listing.ID).
			Str("selector", selector).
			Msg("Apply click failed, using original link")
		return outcome
	}

	// Some targets interpose an "autofill vs. manual" confirmation before
	// opening the destination. Dismissed at most once; the popup watch is
	// already armed so a window that races the dialog is not lost.
	r.dismissConfirmation(ctx, sess, listing.ID)

	// POPUP_OPENED | NO_POPUP: race window creation against the ceiling.
	popup, err := sess.WaitForPopup(ctx, r.cfg.PopupWindow)
	if err != nil {
		r.logger.Info().
			Int64("listing_id", listing.ID).
			Str("state", StateNoPopup).
			Msg("No popup observed, using original link")
		return outcome
	}
	defer popup.Close()

	// AWAITING_POPUP_CONTENT: read the destination, letting a blank
	// placeholder settle first.
	destination, err := popup.URL(ctx)
	if err == nil && common.IsBlankURL(destination) {
		destination, err = popup.WaitForNavigation(ctx, r.cfg.ContentSettle)
	}
	if err != nil {
		r.logger.Warn().
			Err(err).
			Int64("listing_id", listing.ID).
			Str("state", StateAwaitingPopupContent).
			Msg("Failed to read popup URL, using original link")
		return outcome
	}

	if !common.IsAbsoluteHTTP(destination) {
		r.logger.Info().
			Int64("listing_id", listing.ID).
			Str("state", StateAwaitingPopupContent).
			Str("url", destination).
			Msg("Popup URL is not an absolute http(s) link, using original link")
		return outcome
	}

	// A destination identical to the original carries no new information.
	if destination == listing.ApplyLink {
		r.logger.Info().
			Int64("listing_id", listing.ID).
			Str("url", destination).
			Msg("Popup URL matches original link, nothing to record")
		return outcome
	}

	outcome.CandidateURL = destination
	outcome.UsedFallback = false
	outcome.FinalState = StateResolved

	r.logger.Info().
		Int64("listing_id", listing.ID).
		Str("title", listing.PositionTitle).
		Str("company", listing.Company).
		Str("state", StateResolved).
		Str("url", destination).
		Msg("Resolved apply destination")

	return outcome
}

// dismissConfirmation clicks the confirmation dialog's dismiss control if it
// shows up within the short window. Attempted once per listing; absence of
// the dialog is the common case and not logged.
func (r *Resolver) dismissConfirmation(ctx context.Context, sess interfaces.BrowserSession, listingID int64) {
	if len(r.cfg.DismissSelectors) == 0 {
		return
	}

	selector, err := sess.WaitForAny(ctx, r.cfg.DismissSelectors, r.cfg.DismissWindow)
	if err != nil {
		return
	}

	r.logger.Debug().
		Int64("listing_id", listingID).
		Str("selector", selector).
		Msg("Dismissing confirmation dialog")
	if err := sess.Click(ctx, selector); err != nil {
		r.logger.Debug().Err(err).Int64("listing_id", listingID).Msg("Confirmation dismiss click failed")
		return
	}

	if r.cfg.DismissSettle > 0 {
		timer := time.NewTimer(r.cfg.DismissSettle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
}
