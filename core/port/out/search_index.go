package out

import (
	"context"

	"github.com/google/uuid"

	"nittei/core/domain"
)

// SearchIndex is the metadata side-index port, backed by MongoDB
// (adapter/out/searchindex). Postgres remains the source of truth; the
// index only ever needs to answer the `metadata` sub-object predicate by
// returning the ids of matching documents.
type SearchIndex interface {
	UpsertEvent(ctx context.Context, accountID, eventID uuid.UUID, metadata domain.Metadata) error
	DeleteEvent(ctx context.Context, eventID uuid.UUID) error
	// MatchEventIDs returns the ids of events under accountID whose stored
	// metadata contains every key/value pair of query (a superset match;
	// extra stored keys do not prevent a match).
	MatchEventIDs(ctx context.Context, accountID uuid.UUID, query domain.Metadata) ([]uuid.UUID, error)
}
