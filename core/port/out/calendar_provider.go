package out

import (
	"context"

	"nittei/core/domain"
)

// CalendarProvider is the read-only external-calendar boundary a Calendar's
// optional provider link plugs into (spec.md §3). The OAuth handshake
// itself is out of scope; this port only needs a token source the adapter
// has already refreshed.
type CalendarProvider interface {
	// Busy returns the provider calendar's busy blocks in window, as
	// Instances with Busy always true.
	Busy(ctx context.Context, providerKind, providerCalendarID string, window domain.TimeSpan) ([]domain.Instance, error)
}
