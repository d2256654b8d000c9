package service

import (
	postgres "github.com/venuepass/venuepass/internal/repository/postgres"
	redis "github.com/venuepass/venuepass/internal/repository/redis"
	"github.com/venuepass/venuepass/internal/service/booking"
	"github.com/venuepass/venuepass/internal/service/hierarchy"
	"github.com/venuepass/venuepass/internal/service/report"
)

type Services struct {
	Hierarchy *hierarchy.Service
	Booking   *booking.Service
	Report    *report.Service
}

type Config struct {
	Hierarchy hierarchy.Config
	Booking   booking.Config
	Report    report.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.VenuesPubSub,
	limiter *redis.SlidingWindowLimiter,
	cfg Config,
) *Services {
	// A nil concrete limiter must stay a nil interface inside the service.
	var limiterSeam booking.Limiter
	if limiter != nil {
		limiterSeam = limiter
	}

	return &Services{
		Hierarchy: hierarchy.New(store.Hierarchies(), cache, pubsub, cfg.Hierarchy),
		Booking:   booking.New(booking.NewPostgresStore(store), cache, pubsub, limiterSeam, cfg.Booking),
		Report:    report.New(store, cache, cfg.Report),
	}
}
