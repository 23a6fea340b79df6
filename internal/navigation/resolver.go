package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/gazetteer"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
)

// Index is the local address index.
type Index interface {
	Search(query string) []domain.Location
	SearchLoose(query string) []domain.Location
	Get(id string) (domain.Location, bool)
}

// Resolver turns free text into candidate destinations. The local index is
// always consulted first; the geocoder runs only when it finds nothing.
type Resolver struct {
	index    Index
	geocoder domain.Geocoder
	limit    int
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil geocoder means no remote credential
// is configured. limit caps the number of results; zero means no cap.
func NewResolver(index Index, geocoder domain.Geocoder, limit int, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		index:    index,
		geocoder: geocoder,
		limit:    limit,
		metrics:  metrics,
		logger:   logger.With("component", "resolver"),
	}
}

// Resolve returns candidates best first. Queries shorter than
// gazetteer.MinQueryLength return an empty result without touching the
// geocoder. When every path comes up empty the error is domain.ErrNoMatch.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]domain.Location, error) {
	if utf8.RuneCountInString(query) < gazetteer.MinQueryLength {
		return []domain.Location{}, nil
	}

	if locs := r.index.Search(query); len(locs) > 0 {
		r.metrics.Search.WithLabelValues("local", "found").Inc()
		return r.cap(locs), nil
	}
	r.metrics.Search.WithLabelValues("local", "empty").Inc()

	if r.geocoder != nil {
		locs, err := r.geocoder.Resolve(ctx, query)
		switch {
		case err == nil && len(locs) > 0:
			r.metrics.Search.WithLabelValues("geocoder", "found").Inc()
			return r.cap(locs), nil
		case err == nil, errors.Is(err, domain.ErrNoMatch):
			r.metrics.Search.WithLabelValues("geocoder", "empty").Inc()
		default:
			r.metrics.Search.WithLabelValues("geocoder", "error").Inc()
			r.logger.Warn("geocoding failed, falling back to local search", "query", query, "error", err)
		}
	}

	if locs := r.index.SearchLoose(query); len(locs) > 0 {
		r.metrics.Search.WithLabelValues("fallback", "found").Inc()
		return r.cap(locs), nil
	}
	r.metrics.Search.WithLabelValues("fallback", "empty").Inc()
	return nil, fmt.Errorf("%w: %q", domain.ErrNoMatch, query)
}

// Lookup returns the gazetteer location with the given id.
func (r *Resolver) Lookup(id string) (domain.Location, error) {
	loc, ok := r.index.Get(id)
	if !ok {
		return domain.Location{}, fmt.Errorf("%w: unknown location %q", domain.ErrNoMatch, id)
	}
	return loc, nil
}

func (r *Resolver) cap(locs []domain.Location) []domain.Location {
	if r.limit > 0 && len(locs) > r.limit {
		return locs[:r.limit]
	}
	return locs
}
