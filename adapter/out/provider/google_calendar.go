// Package provider implements the out.CalendarProvider boundary against
// external calendar services, grounded on the teacher's Google Calendar
// adapter shape (oauth2.Config + google.golang.org/api/calendar client),
// guarded by the same gobreaker circuit breaker the teacher wraps its mail
// providers with.
package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/sony/gobreaker"

	"nittei/core/domain"
	"nittei/pkg/httputil"
)

// TokenStore resolves the refresh token for a provider-linked calendar. The
// OAuth linking flow that populates it is out of scope (spec.md §1); this
// adapter only consumes already-refreshed token material.
type TokenStore interface {
	Token(ctx context.Context, providerKind, providerCalendarID string) (*oauth2.Token, error)
}

// GoogleCalendarProvider implements out.CalendarProvider for Google
// Calendar's freebusy API.
type GoogleCalendarProvider struct {
	oauthConfig *oauth2.Config
	tokens      TokenStore
	breaker     *gobreaker.CircuitBreaker
}

// NewGoogleCalendarProvider wires the oauth config and token resolver.
func NewGoogleCalendarProvider(oauthConfig *oauth2.Config, tokens TokenStore) *GoogleCalendarProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "google_calendar_freebusy",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &GoogleCalendarProvider{oauthConfig: oauthConfig, tokens: tokens, breaker: cb}
}

// Busy resolves providerCalendarID's busy blocks from Google's freebusy.query
// endpoint within window.
func (p *GoogleCalendarProvider) Busy(ctx context.Context, providerKind, providerCalendarID string, window domain.TimeSpan) ([]domain.Instance, error) {
	if providerKind != "google" {
		return nil, fmt.Errorf("provider: unsupported provider kind %q", providerKind)
	}

	result, err := p.breaker.Execute(func() (any, error) {
		token, err := p.tokens.Token(ctx, providerKind, providerCalendarID)
		if err != nil {
			return nil, fmt.Errorf("provider: resolve token: %w", err)
		}
		baseCtx := context.WithValue(ctx, oauth2.HTTPClient, httputil.ProviderClient())
		client := p.oauthConfig.Client(baseCtx, token)
		svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
		if err != nil {
			return nil, fmt.Errorf("provider: build calendar client: %w", err)
		}

		req := &calendar.FreeBusyRequest{
			TimeMin: window.Start.Format(time.RFC3339),
			TimeMax: window.End.Format(time.RFC3339),
			Items:   []*calendar.FreeBusyRequestItem{{Id: providerCalendarID}},
		}
		resp, err := svc.Freebusy.Query(req).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("provider: freebusy query: %w", err)
		}
		cal, ok := resp.Calendars[providerCalendarID]
		if !ok {
			return []domain.Instance{}, nil
		}
		instances := make([]domain.Instance, 0, len(cal.Busy))
		for _, b := range cal.Busy {
			start, err := time.Parse(time.RFC3339, b.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, b.End)
			if err != nil {
				continue
			}
			instances = append(instances, domain.Instance{
				TimeSpan: domain.TimeSpan{Start: start.UTC(), End: end.UTC()},
				Busy:     true,
			})
		}
		return instances, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Instance), nil
}
