package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
)

// PlannedRoute is a normalized route ready to become a session.
type PlannedRoute struct {
	Instructions    []domain.NavigationInstruction
	Path            []domain.Coordinate
	DistanceMeters  float64
	DurationSeconds float64
}

// RouteEngine computes a single normalized route between two waypoints.
type RouteEngine struct {
	router  domain.Router
	timeout time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRouteEngine creates a RouteEngine. A zero timeout leaves the caller's
// deadline in charge.
func NewRouteEngine(router domain.Router, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *RouteEngine {
	return &RouteEngine{
		router:  router,
		timeout: timeout,
		metrics: metrics,
		logger:  logger.With("component", "route_engine"),
	}
}

// Compute requests routes and keeps only the first one. Alternatives are
// never returned.
func (e *RouteEngine) Compute(ctx context.Context, origin, destination domain.Coordinate) (PlannedRoute, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	routes, err := e.router.Route(ctx, origin, destination)
	if err != nil {
		e.metrics.RouteRequests.WithLabelValues("error").Inc()
		return PlannedRoute{}, err
	}
	if len(routes) == 0 || len(routes[0].Instructions) == 0 {
		e.metrics.RouteRequests.WithLabelValues("error").Inc()
		return PlannedRoute{}, fmt.Errorf("%w: no route returned", domain.ErrRouteFailure)
	}
	if len(routes) > 1 {
		e.logger.Debug("discarding alternative routes", "count", len(routes)-1)
	}

	best := routes[0]
	path := make([]domain.Coordinate, len(best.Path))
	for i, p := range best.Path {
		path[i] = domain.CoordinateFromPoint(p)
	}
	e.metrics.RouteRequests.WithLabelValues("success").Inc()
	return PlannedRoute{
		Instructions:    domain.Normalize(best.Instructions, best.DistanceMeters),
		Path:            path,
		DistanceMeters:  best.DistanceMeters,
		DurationSeconds: best.DurationSeconds,
	}, nil
}
