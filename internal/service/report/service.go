// Package report serves the read-only booking aggregates used by reporting
// views.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/venuepass/venuepass/internal/domain"
	postgresrepo "github.com/venuepass/venuepass/internal/repository/postgres"
	redisrepo "github.com/venuepass/venuepass/internal/repository/redis"
)

type Config struct {
	SummaryTTL time.Duration
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 60 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// ByPerson aggregates an event's confirmed bookings sponsored by one
// reference person.
func (s *Service) ByPerson(ctx context.Context, eventID int64, personName string) (*domain.PersonBookingSummary, error) {
	const op = "service.report.ByPerson"

	personName = strings.TrimSpace(personName)
	if personName == "" {
		return nil, fmt.Errorf("%s:%w", op, ErrPersonRequired)
	}

	load := func(ctx context.Context) (*domain.PersonBookingSummary, error) {
		sum, err := s.store.Bookings().ReportByPerson(ctx, eventID, personName)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return sum, nil
	}

	if s.cache == nil {
		return load(ctx)
	}

	return redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyPersonSummary(eventID, strings.ToLower(personName)),
		s.cfg.SummaryTTL,
		load,
	)
}

// EventSummary aggregates all confirmed bookings of an event.
func (s *Service) EventSummary(ctx context.Context, eventID int64) (*domain.EventBookingSummary, error) {
	const op = "service.report.EventSummary"

	load := func(ctx context.Context) (*domain.EventBookingSummary, error) {
		sum, err := s.store.Bookings().EventSummary(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return sum, nil
	}

	if s.cache == nil {
		return load(ctx)
	}

	return redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEventSummary(eventID),
		s.cfg.SummaryTTL,
		load,
	)
}
