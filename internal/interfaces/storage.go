package interfaces

import (
	"context"

	"github.com/talenttrek/applink/internal/models"
)

// ListingStore is the storage boundary of the resolution pipeline. Reads are
// eventually-consistent snapshots; concurrent external mutation simply shows
// up in a later round. Storage unavailability on the read side is fatal to
// the run.
type ListingStore interface {
	// ListCategories returns the distinct category names in ascending order.
	ListCategories(ctx context.Context) ([]string, error)

	// CountUnresolved returns the remaining unresolved listing count per
	// category for listings with a non-empty original apply link.
	CountUnresolved(ctx context.Context) ([]models.CategoryProgress, error)

	// FetchUnresolvedBatch returns up to limit unresolved listings for the
	// category.
	FetchUnresolvedBatch(ctx context.Context, category string, limit int) ([]*models.JobListing, error)

	// ApplyResolvedLinks commits the (id, url) pairs in a single bulk update
	// and returns the number of rows changed. The whole batch becomes
	// visible at once.
	ApplyResolvedLinks(ctx context.Context, links []models.ResolvedLink) (int64, error)

	// Close releases the underlying connection pool.
	Close()
}
