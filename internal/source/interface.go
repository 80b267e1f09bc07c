package source

import (
	"context"

	"github.com/timmy/stylematch/internal/domain"
)

// Source defines the interface for shopping sites searched for candidates.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier, also stamped on each candidate.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	// Parameters: none.
	// Returns:
	//   - string: display-friendly source name.
	GetDisplayName() string

	// Search returns up to maxResults product listings matching query, in
	// the site's own order.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - query: text query produced from the uploaded image.
	//   - maxResults: upper bound on returned candidates.
	// Returns:
	//   - []domain.Candidate: listings; fields the site omits are nil.
	//   - error: non-nil if the site could not be searched or parsed.
	Search(ctx context.Context, query domain.Query, maxResults int) ([]domain.Candidate, error)
}
