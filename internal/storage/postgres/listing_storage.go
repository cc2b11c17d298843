package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/interfaces"
	"github.com/talenttrek/applink/internal/models"
)

// ListingStorage implements interfaces.ListingStore over the portal's
// job_listings table. Reads are plain snapshots with no locking; the bulk
// update is a single statement so the whole batch lands atomically.
type ListingStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

// NewListingStorage creates a listing store backed by the given pool.
func NewListingStorage(pool *pgxpool.Pool, logger arbor.ILogger) *ListingStorage {
	return &ListingStorage{
		pool:   pool,
		logger: logger,
	}
}

var _ interfaces.ListingStore = (*ListingStorage)(nil)

// ListCategories returns the distinct non-null categories, ascending.
func (s *ListingStorage) ListCategories(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT job_category
		FROM job_listings
		WHERE job_category IS NOT NULL
		ORDER BY job_category`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}

	return categories, nil
}

// CountUnresolved returns the per-category count of listings still lacking a
// resolved apply link.
func (s *ListingStorage) CountUnresolved(ctx context.Context) ([]models.CategoryProgress, error) {
	const query = `
		SELECT job_category, COUNT(*)
		FROM job_listings
		WHERE actual_apply_link IS NULL
		  AND apply_link IS NOT NULL
		  AND apply_link != ''
		GROUP BY job_category
		ORDER BY job_category`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count unresolved listings: %w", err)
	}
	defer rows.Close()

	var progress []models.CategoryProgress
	for rows.Next() {
		var p models.CategoryProgress
		if err := rows.Scan(&p.Category, &p.Remaining); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved count: %w", err)
		}
		progress = append(progress, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read unresolved counts: %w", err)
	}

	return progress, nil
}

// FetchUnresolvedBatch returns up to limit unresolved listings for a category.
func (s *ListingStorage) FetchUnresolvedBatch(ctx context.Context, category string, limit int) ([]*models.JobListing, error) {
	const query = `
		SELECT id, apply_link, job_category, COALESCE(position_title, ''), COALESCE(company, '')
		FROM job_listings
		WHERE actual_apply_link IS NULL
		  AND apply_link IS NOT NULL
		  AND apply_link != ''
		  AND job_category = $1
		ORDER BY id
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unresolved batch for category %s: %w", category, err)
	}
	defer rows.Close()

	var listings []*models.JobListing
	for rows.Next() {
		listing := &models.JobListing{}
		if err := rows.Scan(&listing.ID, &listing.ApplyLink, &listing.Category, &listing.PositionTitle, &listing.Company); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read unresolved batch: %w", err)
	}

	return listings, nil
}

// ApplyResolvedLinks commits all pairs in one UPDATE ... FROM (VALUES ...)
// statement and stamps updated_at. The apply_link guard re-enforces the
// never-write-the-original invariant at the database boundary.
func (s *ListingStorage) ApplyResolvedLinks(ctx context.Context, links []models.ResolvedLink) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}

	values := make([]string, 0, len(links))
	args := make([]interface{}, 0, len(links)*2)
	for i, link := range links {
		offset := i * 2
		values = append(values, fmt.Sprintf("($%d::bigint, $%d)", offset+1, offset+2))
		args = append(args, link.ID, link.URL)
	}

	query := fmt.Sprintf(`
		UPDATE job_listings AS jl
		SET actual_apply_link = v.url,
		    updated_at = CURRENT_TIMESTAMP
		FROM (VALUES %s) AS v(id, url)
		WHERE jl.id = v.id
		  AND jl.apply_link IS DISTINCT FROM v.url`,
		strings.Join(values, ", "))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to batch update %d listings: %w", len(links), err)
	}

	s.logger.Debug().
		Int("links", len(links)).
		Int64("rows_changed", tag.RowsAffected()).
		Msg("Bulk update applied")

	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *ListingStorage) Close() {
	s.pool.Close()
}
