package resolver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/talenttrek/applink/internal/interfaces"
	"github.com/talenttrek/applink/internal/models"
)

// fakePopup simulates a window spawned by the apply click.
type fakePopup struct {
	url        string // location at creation time
	settledURL string // location after a blank placeholder navigates
	closed     bool
}

func (p *fakePopup) URL(ctx context.Context) (string, error) {
	return p.url, nil
}

func (p *fakePopup) WaitForNavigation(ctx context.Context, timeout time.Duration) (string, error) {
	if p.settledURL != "" {
		return p.settledURL, nil
	}
	return p.url, nil
}

func (p *fakePopup) Close() {
	p.closed = true
}

// fakeSession scripts one listing's browser interaction. The popup race is
// simulated by comparing popupDelay against the configured window instead of
// sleeping, so timing-sensitive behavior stays deterministic.
type fakeSession struct {
	navigateErr     error
	panicOnNavigate bool
	applySelector   string // selector strategy that matches the apply control; empty = none
	dismissSelector string // selector strategy that matches the dismiss control; empty = no dialog
	clickErr        error
	popup           *fakePopup
	popupDelay      time.Duration // when the popup signal fires relative to the click

	navigated []string
	clicked   []string
	closed    bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if s.panicOnNavigate {
		panic("target page crashed the driver")
	}
	s.navigated = append(s.navigated, url)
	return s.navigateErr
}

func (s *fakeSession) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	for _, sel := range selectors {
		if sel != "" && (sel == s.applySelector || sel == s.dismissSelector) {
			return sel, nil
		}
	}
	return "", errors.New("no selector matched")
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	s.clicked = append(s.clicked, selector)
	return s.clickErr
}

func (s *fakeSession) WaitForPopup(ctx context.Context, timeout time.Duration) (interfaces.Popup, error) {
	if s.popup != nil && s.popupDelay <= timeout {
		return s.popup, nil
	}
	return nil, errors.New("no popup window appeared")
}

func (s *fakeSession) Close() {
	s.closed = true
}

// fakeFactory hands out scripted sessions in order, then empty ones.
type fakeFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	next     int
	err      error
	created  int
}

func (f *fakeFactory) NewSession(ctx context.Context) (interfaces.BrowserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	if f.next < len(f.sessions) {
		s := f.sessions[f.next]
		f.next++
		return s, nil
	}
	return &fakeSession{}, nil
}

func (f *fakeFactory) Close() error {
	return nil
}

// fakeStore is an in-memory ListingStore with injectable failures.
type fakeStore struct {
	mu         sync.Mutex
	listings   map[int64]*models.JobListing
	countErr   error
	fetchErr   error
	applyErr   error
	applyCalls [][]models.ResolvedLink
	countCalls int
}

func newFakeStore(listings ...*models.JobListing) *fakeStore {
	s := &fakeStore{listings: make(map[int64]*models.JobListing)}
	for _, l := range listings {
		s.listings[l.ID] = l
	}
	return s
}

func (s *fakeStore) ListCategories(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var categories []string
	for _, l := range s.listings {
		if !seen[l.Category] {
			seen[l.Category] = true
			categories = append(categories, l.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *fakeStore) CountUnresolved(ctx context.Context) ([]models.CategoryProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countCalls++
	if s.countErr != nil {
		return nil, s.countErr
	}
	counts := make(map[string]int)
	for _, l := range s.listings {
		if l.Unresolved() {
			counts[l.Category]++
		}
	}
	var progress []models.CategoryProgress
	for category, remaining := range counts {
		progress = append(progress, models.CategoryProgress{Category: category, Remaining: remaining})
	}
	return progress, nil
}

func (s *fakeStore) FetchUnresolvedBatch(ctx context.Context, category string, limit int) ([]*models.JobListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var batch []*models.JobListing
	for _, l := range s.listings {
		if l.Category == category && l.Unresolved() {
			batch = append(batch, l)
		}
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
	if len(batch) > limit {
		batch = batch[:limit]
	}
	return batch, nil
}

func (s *fakeStore) ApplyResolvedLinks(ctx context.Context, links []models.ResolvedLink) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return 0, s.applyErr
	}
	captured := make([]models.ResolvedLink, len(links))
	copy(captured, links)
	s.applyCalls = append(s.applyCalls, captured)

	var changed int64
	for _, link := range links {
		if l, ok := s.listings[link.ID]; ok && l.ApplyLink != link.URL {
			l.ActualApplyLink = link.URL
			changed++
		}
	}
	return changed, nil
}

func (s *fakeStore) Close() {}

