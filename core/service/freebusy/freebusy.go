// Package freebusy resolves the busy/free view of one or many users over a
// timespan, fanning the independent per-user work out with errgroup and
// caching the resolved view in Redis per spec.md §4.5.
package freebusy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/internal/engine/expand"
	"nittei/internal/engine/interval"
	"nittei/pkg/apperr"
)

const defaultCacheTTL = 30 * time.Second

// Service resolves free/busy views for one or many users.
type Service struct {
	events    out.EventRepository
	calendars out.CalendarRepository
	provider  out.CalendarProvider
	cache     out.Cache
	cacheTTL  time.Duration
}

// NewService wires the event/calendar/provider/cache ports. A zero or
// negative cacheTTL falls back to defaultCacheTTL.
func NewService(events out.EventRepository, calendars out.CalendarRepository, provider out.CalendarProvider, cache out.Cache, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Service{events: events, calendars: calendars, provider: provider, cache: cache, cacheTTL: cacheTTL}
}

// ForUser resolves a single user's busy instances within window: every
// calendar's events, expanded, plus any provider-linked calendar's remote
// busy blocks, merged and collapsed via FreeBusy so overlaps resolve in
// favor of busy.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID, window domain.TimeSpan) ([]domain.Instance, error) {
	key := cacheKey(userID, window)
	if cached, ok := s.readCache(ctx, key); ok {
		return cached, nil
	}

	instances, err := s.resolveUser(ctx, userID, window)
	if err != nil {
		return nil, err
	}

	s.writeCache(ctx, key, instances)
	return instances, nil
}

// ForUsers fans ForUser out across userIDs concurrently (spec.md §5 "may
// spawn independent sub-tasks for per-user fan-out"), returning a map keyed
// by user id. If any sub-task fails, every in-flight sub-task is cancelled
// via the shared context and the first error is returned.
func (s *Service) ForUsers(ctx context.Context, userIDs []uuid.UUID, window domain.TimeSpan) (map[uuid.UUID][]domain.Instance, error) {
	results := make(map[uuid.UUID][]domain.Instance, len(userIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range userIDs {
		id := id
		g.Go(func() error {
			instances, err := s.ForUser(gctx, id, window)
			if err != nil {
				return err
			}
			mu.Lock()
			results[id] = instances
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) resolveUser(ctx context.Context, userID uuid.UUID, window domain.TimeSpan) ([]domain.Instance, error) {
	evs, err := s.events.EventsForUsers(ctx, []uuid.UUID{userID}, window)
	if err != nil {
		return nil, apperr.StorageUnavailable("list events for user", err)
	}

	var masterIDs []uuid.UUID
	for _, e := range evs {
		if e.IsRecurringMaster() {
			masterIDs = append(masterIDs, e.ID)
		}
	}
	var overrides []*domain.CalendarEvent
	if len(masterIDs) > 0 {
		overrides, err = s.events.EventsByRecurringEventIDs(ctx, masterIDs)
		if err != nil {
			return nil, apperr.StorageUnavailable("list event overrides", err)
		}
	}

	// expand.Expand already drops cancelled events/overrides (spec.md §4.2),
	// so every instance reaching here already satisfies status != cancelled.
	instances, err := expand.ExpandMany(append(evs, overrides...), window)
	if err != nil {
		return nil, err
	}

	providerBusy, err := s.providerBusyForUser(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	instances = append(instances, providerBusy...)

	// spec.md §4.5 step 4: keep only busy = true instances before
	// returning the resolved busy view. A transparent ("free") event must
	// never surface in the busy result.
	return interval.New(instances).BusyOnly(), nil
}

func (s *Service) providerBusyForUser(ctx context.Context, userID uuid.UUID, window domain.TimeSpan) ([]domain.Instance, error) {
	if s.provider == nil {
		return nil, nil
	}
	cals, err := s.calendars.ForUser(ctx, userID)
	if err != nil {
		return nil, apperr.StorageUnavailable("list calendars for user", err)
	}
	var busy []domain.Instance
	for _, cal := range cals {
		if cal.ProviderKind == nil || cal.ProviderID == nil {
			continue
		}
		remote, err := s.provider.Busy(ctx, *cal.ProviderKind, *cal.ProviderID, window)
		if err != nil {
			// A single unreachable provider calendar degrades gracefully:
			// its remote busy blocks are simply missing from the result,
			// rather than failing the whole free/busy resolution.
			continue
		}
		busy = append(busy, remote...)
	}
	return busy, nil
}

func cacheKey(userID uuid.UUID, window domain.TimeSpan) string {
	return fmt.Sprintf("freebusy:%s:%d:%d", userID, window.Start.Unix(), window.End.Unix())
}

func (s *Service) readCache(ctx context.Context, key string) ([]domain.Instance, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil || raw == nil {
		return nil, false
	}
	var instances []domain.Instance
	if err := json.Unmarshal(raw, &instances); err != nil {
		return nil, false
	}
	return instances, true
}

func (s *Service) writeCache(ctx context.Context, key string, instances []domain.Instance) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(instances)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, raw, s.cacheTTL)
}
