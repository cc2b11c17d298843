package models

import "time"

// JobListing is one row of the job_listings table as read by the pipeline.
// ApplyLink is the URL supplied by the source feed; ActualApplyLink is the
// resolved destination behind the board's apply action. A listing is
// unresolved while ActualApplyLink is empty and ApplyLink is not.
type JobListing struct {
	ID              int64  `json:"id"`
	ApplyLink       string `json:"apply_link"`
	ActualApplyLink string `json:"actual_apply_link,omitempty"`
	Category        string `json:"job_category"`
	PositionTitle   string `json:"position_title,omitempty"`
	Company         string `json:"company,omitempty"`
}

// Unresolved reports whether the listing is eligible for resolution.
func (l *JobListing) Unresolved() bool {
	return l.ActualApplyLink == "" && l.ApplyLink != ""
}

// ResolvedLink is one (id, url) pair of a bulk update statement.
type ResolvedLink struct {
	ID  int64
	URL string
}

// ResolutionOutcome is the terminal result of driving one listing through
// the resolver state machine. It lives for one processing round only.
type ResolutionOutcome struct {
	ListingID    int64
	OriginalURL  string
	CandidateURL string
	UsedFallback bool
	FinalState   string
	Elapsed      time.Duration
}

// CategoryProgress pairs a category with its remaining unresolved count.
// Recomputed from a fresh count query at the start of every round.
type CategoryProgress struct {
	Category  string
	Remaining int
}
