package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/common"
	"github.com/talenttrek/applink/internal/models"
)

func testResolverConfig() common.ResolverConfig {
	return common.ResolverConfig{
		BatchSize:         5,
		Concurrency:       3,
		NavigationTimeout: 15 * time.Second,
		SelectorTimeout:   10 * time.Second,
		PopupWindow:       5 * time.Second,
		ContentSettle:     5 * time.Second,
		DismissWindow:     1 * time.Second,
		DismissSettle:     0,
		DomainRateLimit:   1,
		ApplySelectors: []string{
			"#apply-now-button-id",
			`[data-testid="apply-button"]`,
			`//button[contains(., "Apply Now")]`,
		},
		DismissSelectors: []string{
			"button.index_confirm-popup-no-button__9FwZ6",
			`//button[contains(., "No, Apply Manually")]`,
		},
	}
}

func testListing() *models.JobListing {
	return &models.JobListing{
		ID:            42,
		ApplyLink:     "https://board.example/jobs/42",
		Category:      "Software Engineering",
		PositionTitle: "Backend Engineer",
		Company:       "Acme",
	}
}

func TestResolvePopupWithinWindow(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector: "#apply-now-button-id",
		popup:         &fakePopup{url: "https://x.test/foo"},
		popupDelay:    4900 * time.Millisecond,
	}

	outcome := r.Resolve(context.Background(), sess, testListing())

	require.NotNil(t, outcome)
	assert.False(t, outcome.UsedFallback)
	assert.Equal(t, StateResolved, outcome.FinalState)
	assert.Equal(t, "https://x.test/foo", outcome.CandidateURL)
	assert.Equal(t, []string{"#apply-now-button-id"}, sess.clicked)
	assert.True(t, sess.popup.closed)
}

func TestResolvePopupAfterWindow(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector: "#apply-now-button-id",
		popup:         &fakePopup{url: "https://x.test/foo"},
		popupDelay:    5100 * time.Millisecond,
	}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.True(t, outcome.UsedFallback)
	assert.Equal(t, StateFallback, outcome.FinalState)
	assert.Empty(t, outcome.CandidateURL)
}

func TestResolveBlankPopupSettles(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector: `[data-testid="apply-button"]`,
		popup:         &fakePopup{url: "about:blank", settledURL: "https://y.test/bar"},
	}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.False(t, outcome.UsedFallback)
	assert.Equal(t, "https://y.test/bar", outcome.CandidateURL)
}

func TestResolveBlankPopupNeverSettles(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector: "#apply-now-button-id",
		popup:         &fakePopup{url: "about:blank"},
	}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.True(t, outcome.UsedFallback)
	assert.Empty(t, outcome.CandidateURL)
}

func TestResolveNavigationFailure(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.True(t, outcome.UsedFallback)
	assert.Equal(t, StateFallback, outcome.FinalState)
	assert.Empty(t, sess.clicked)
}

func TestResolveNoApplyControl(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.True(t, outcome.UsedFallback)
	assert.Empty(t, sess.clicked)
}

func TestResolveRecoversFromPanic(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{panicOnNavigate: true}

	var outcome *models.ResolutionOutcome
	require.NotPanics(t, func() {
		outcome = r.Resolve(context.Background(), sess, testListing())
	})

	assert.True(t, outcome.UsedFallback)
	assert.Equal(t, StateFallback, outcome.FinalState)
	assert.Equal(t, int64(42), outcome.ListingID)
}

func TestResolveIdenticalDestinationIsFallback(t *testing.T) {
	listing := testListing()
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector: "#apply-now-button-id",
		popup:         &fakePopup{url: listing.ApplyLink},
	}

	outcome := r.Resolve(context.Background(), sess, listing)

	assert.True(t, outcome.UsedFallback)
	assert.Empty(t, outcome.CandidateURL)
}

func TestResolveRejectsNonHTTPDestination(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector: "#apply-now-button-id",
		popup:         &fakePopup{url: "chrome-extension://abcdef/landing.html"},
	}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.True(t, outcome.UsedFallback)
	assert.Empty(t, outcome.CandidateURL)
}

func TestResolveDismissesConfirmationDialog(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector:   "#apply-now-button-id",
		dismissSelector: "button.index_confirm-popup-no-button__9FwZ6",
		popup:           &fakePopup{url: "https://careers.example/apply"},
	}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.False(t, outcome.UsedFallback)
	assert.Equal(t, "https://careers.example/apply", outcome.CandidateURL)
	require.Len(t, sess.clicked, 2)
	assert.Equal(t, "button.index_confirm-popup-no-button__9FwZ6", sess.clicked[1])
}

func TestResolveClickFailure(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector: "#apply-now-button-id",
		clickErr:      errors.New("node is detached from document"),
		popup:         &fakePopup{url: "https://x.test/foo"},
	}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.True(t, outcome.UsedFallback)
}

func TestResolveRecordsElapsed(t *testing.T) {
	r := NewResolver(testResolverConfig(), arbor.NewLogger())
	sess := &fakeSession{
		applySelector: "#apply-now-button-id",
		popup:         &fakePopup{url: "https://x.test/foo"},
	}

	outcome := r.Resolve(context.Background(), sess, testListing())

	assert.Greater(t, outcome.Elapsed, time.Duration(0))
	assert.Equal(t, "https://board.example/jobs/42", outcome.OriginalURL)
}
