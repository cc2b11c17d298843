// -----------------------------------------------------------------------
// Batch Writer - one bulk write-or-skip decision per outcome, per round
// -----------------------------------------------------------------------

package resolver

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/common"
	"github.com/talenttrek/applink/internal/interfaces"
	"github.com/talenttrek/applink/internal/models"
)

// BatchWriter accumulates one round's outcomes and commits them as a single
// bulk update. Fallback and no-change outcomes are filtered out, and the
// candidate-equals-original invariant is re-checked here even though the
// resolver already enforces it upstream.
type BatchWriter struct {
	store  interfaces.ListingStore
	logger arbor.ILogger
}

// NewBatchWriter creates a writer over the given store.
func NewBatchWriter(store interfaces.ListingStore, logger arbor.ILogger) *BatchWriter {
	return &BatchWriter{
		store:  store,
		logger: logger,
	}
}

// Apply filters the outcomes down to genuine updates and commits them in one
// statement, returning the number of rows changed. An empty remainder issues
// no write at all.
func (w *BatchWriter) Apply(ctx context.Context, outcomes []*models.ResolutionOutcome) (int64, error) {
	links := make([]models.ResolvedLink, 0, len(outcomes))
	for _, o := range outcomes {
		if o.UsedFallback || o.CandidateURL == "" {
			continue
		}

		// Writing the original value back violates the data model; reject
		// it defensively rather than trusting upstream filtering.
		if o.CandidateURL == o.OriginalURL {
			w.logger.Warn().
				Int64("listing_id", o.ListingID).
				Str("url", o.CandidateURL).
				Msg("Rejecting resolved link identical to original")
			continue
		}

		if !common.IsAbsoluteHTTP(o.CandidateURL) {
			w.logger.Warn().
				Int64("listing_id", o.ListingID).
				Str("url", o.CandidateURL).
				Msg("Rejecting resolved link that is not an absolute http(s) URL")
			continue
		}

		links = append(links, models.ResolvedLink{ID: o.ListingID, URL: o.CandidateURL})
	}

	if len(links) == 0 {
		return 0, nil
	}

	changed, err := w.store.ApplyResolvedLinks(ctx, links)
	if err != nil {
		return 0, err
	}

	w.logger.Info().
		Int("outcomes", len(outcomes)).
		Int("updates", len(links)).
		Int64("rows_changed", changed).
		Msg("Batch update committed")

	return changed, nil
}
