// -----------------------------------------------------------------------
// Pipeline Orchestrator - category rounds, worker pool, progress guard
// -----------------------------------------------------------------------

package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/common"
	"github.com/talenttrek/applink/internal/interfaces"
	"github.com/talenttrek/applink/internal/models"
)

// Pipeline is the top-level control loop. It pulls per-category batches of
// unresolved listings, drives each through the resolver on a fresh browser
// session, and bulk-persists the round's outcomes, repeating until no
// category yields further work.
type Pipeline struct {
	store    interfaces.ListingStore
	sessions interfaces.SessionFactory
	resolver *Resolver
	writer   *BatchWriter
	cfg      common.ResolverConfig
	logger   arbor.ILogger
}

// NewPipeline wires the orchestrator from its collaborators.
func NewPipeline(store interfaces.ListingStore, sessions interfaces.SessionFactory, cfg common.ResolverConfig, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		store:    store,
		sessions: sessions,
		resolver: NewResolver(cfg, logger),
		writer:   NewBatchWriter(store, logger),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes rounds until every category is drained or no round makes
// progress. Storage read failures abort the run; bulk write failures are
// logged and the affected listings retry naturally in a later run. Progress
// is counted by listings attempted, not listings resolved, and a listing is
// attempted at most once per run.
func (p *Pipeline) Run(ctx context.Context) (*models.RunReport, error) {
	start := time.Now()
	report := &models.RunReport{RunID: uuid.New().String()[:8]}

	p.logger.Info().
		Str("run_id", report.RunID).
		Int("batch_size", p.cfg.BatchSize).
		Int("concurrency", p.cfg.Concurrency).
		Msg("Starting apply-link resolution run")

	categories, err := p.store.ListCategories(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list categories: %w", err)
	}
	if len(categories) == 0 {
		p.logger.Info().Str("run_id", report.RunID).Msg("No categories found, nothing to do")
		return report, nil
	}

	// Listings that already got their attempt this run. They stay
	// unresolved in storage when they fall back, so without this set every
	// all-fallback round would refetch and respin the same rows forever.
	attempted := make(map[int64]struct{})

	for round := 1; ; round++ {
		progress, err := p.store.CountUnresolved(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to count unresolved listings: %w", err)
		}

		totalRemaining := 0
		for _, cp := range progress {
			totalRemaining += cp.Remaining
			p.logger.Debug().
				Str("run_id", report.RunID).
				Str("category", cp.Category).
				Int("remaining", cp.Remaining).
				Msg("Category remaining count")
		}
		report.Remaining = totalRemaining

		if totalRemaining == 0 {
			p.logger.Info().Str("run_id", report.RunID).Msg("All listings resolved")
			break
		}

		roundReport := &models.RoundReport{Round: round}
		for _, category := range categories {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			batch, err := p.store.FetchUnresolvedBatch(ctx, category, p.cfg.BatchSize)
			if err != nil {
				return report, fmt.Errorf("failed to fetch batch for category %s: %w", category, err)
			}

			// Skip listings already attempted this run.
			fresh := batch[:0]
			for _, listing := range batch {
				if _, seen := attempted[listing.ID]; !seen {
					fresh = append(fresh, listing)
				}
			}
			if len(fresh) == 0 {
				continue
			}
			for _, listing := range fresh {
				attempted[listing.ID] = struct{}{}
			}

			outcomes := p.resolveBatch(ctx, fresh)
			if err := ctx.Err(); err != nil {
				// Cancellation discards the round's partial outcomes.
				return report, err
			}

			written, err := p.writer.Apply(ctx, outcomes)
			if err != nil {
				// The listings stay unresolved and will be retried by a
				// future run; the round carries on.
				p.logger.Error().
					Err(err).
					Str("run_id", report.RunID).
					Str("category", category).
					Msg("Bulk update failed, outcomes for this batch are lost")
			}

			resolved, fallback := 0, 0
			for _, o := range outcomes {
				if o.UsedFallback {
					fallback++
				} else {
					resolved++
				}
			}

			roundReport.Attempted += len(fresh)
			roundReport.Resolved += resolved
			roundReport.Fallback += fallback
			roundReport.RowsWritten += written

			p.logger.Info().
				Str("run_id", report.RunID).
				Int("round", round).
				Str("category", category).
				Int("batch_size", len(fresh)).
				Int("resolved", resolved).
				Int("fallback", fallback).
				Int64("rows_written", written).
				Msg("Category batch processed")
		}

		report.Add(roundReport)

		p.logger.Info().
			Str("run_id", report.RunID).
			Int("round", round).
			Int("attempted", roundReport.Attempted).
			Int("resolved", roundReport.Resolved).
			Int("fallback", roundReport.Fallback).
			Int64("rows_written", roundReport.RowsWritten).
			Msg("Round complete")

		if roundReport.Attempted == 0 {
			p.logger.Info().
				Str("run_id", report.RunID).
				Int("round", round).
				Msg("No progress this round, stopping")
			break
		}
	}

	// Final remaining count for the run summary; a read failure here only
	// costs the report field, the run itself already finished.
	if progress, err := p.store.CountUnresolved(ctx); err == nil {
		remaining := 0
		for _, cp := range progress {
			remaining += cp.Remaining
		}
		report.Remaining = remaining
	}

	report.Duration = time.Since(start)

	p.logger.Info().
		Str("run_id", report.RunID).
		Int("rounds", report.Rounds).
		Int("attempted", report.Attempted).
		Int("resolved", report.Resolved).
		Int("fallback", report.Fallback).
		Int64("rows_written", report.RowsWritten).
		Int("remaining", report.Remaining).
		Dur("duration", report.Duration).
		Msg("Apply-link resolution run finished")

	return report, nil
}

// resolveBatch fans the batch out over a bounded pool of browser sessions
// and merges the outcome channel. A cancelled context returns nil so partial
// outcomes are never half-committed.
func (p *Pipeline) resolveBatch(ctx context.Context, batch []*models.JobListing) []*models.ResolutionOutcome {
	workers := p.cfg.Concurrency
	if workers > len(batch) {
		workers = len(batch)
	}
	if workers < 1 {
		workers = 1
	}

	listings := make(chan *models.JobListing)
	results := make(chan *models.ResolutionOutcome, len(batch))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for listing := range listings {
				if ctx.Err() != nil {
					return
				}
				results <- p.resolveOne(ctx, listing)
			}
		}()
	}

feed:
	for _, listing := range batch {
		select {
		case listings <- listing:
		case <-ctx.Done():
			break feed
		}
	}
	close(listings)
	wg.Wait()
	close(results)

	if ctx.Err() != nil {
		return nil
	}

	outcomes := make([]*models.ResolutionOutcome, 0, len(batch))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// resolveOne gives the listing a fresh browser session for its resolution.
// A session that cannot even start is a fallback outcome, not an error.
func (p *Pipeline) resolveOne(ctx context.Context, listing *models.JobListing) *models.ResolutionOutcome {
	sess, err := p.sessions.NewSession(ctx)
	if err != nil {
		p.logger.Warn().
			Err(err).
			Int64("listing_id", listing.ID).
			Msg("Failed to open browser session, using original link")
		return &models.ResolutionOutcome{
			ListingID:    listing.ID,
			OriginalURL:  listing.ApplyLink,
			UsedFallback: true,
			FinalState:   StateFallback,
		}
	}
	defer sess.Close()

	return p.resolver.Resolve(ctx, sess, listing)
}
