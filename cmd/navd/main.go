package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/cad-navigation-service/internal/adapter/geocache"
	httpadapter "github.com/couchcryptid/cad-navigation-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/cad-navigation-service/internal/adapter/kafka"
	"github.com/couchcryptid/cad-navigation-service/internal/adapter/locationiq"
	"github.com/couchcryptid/cad-navigation-service/internal/adapter/mapbox"
	"github.com/couchcryptid/cad-navigation-service/internal/adapter/osrm"
	"github.com/couchcryptid/cad-navigation-service/internal/adapter/wsfeed"
	"github.com/couchcryptid/cad-navigation-service/internal/config"
	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/gazetteer"
	"github.com/couchcryptid/cad-navigation-service/internal/hub"
	"github.com/couchcryptid/cad-navigation-service/internal/navigation"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/couchcryptid/cad-navigation-service/internal/speech"
	"github.com/couchcryptid/cad-navigation-service/internal/store"
	"github.com/couchcryptid/cad-navigation-service/internal/tracker"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	entries, err := gazetteer.Load(cfg.GazetteerFile)
	if err != nil {
		return err
	}
	index := gazetteer.NewIndex(entries, gazetteer.Options{
		Threshold:         cfg.SearchThreshold,
		FallbackThreshold: cfg.SearchFallbackThreshold,
	})
	logger.Info("gazetteer loaded", "entries", index.Len(), "file", cfg.GazetteerFile)

	geocoder, closeGeocoder, err := newGeocoder(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer closeGeocoder()

	router := osrm.NewClient(osrm.Options{
		BaseURL: cfg.OSRMURL,
		Profile: cfg.OSRMProfile,
		Timeout: cfg.RouteTimeout,
	}, metrics, logger.With("component", "osrm"))

	h := hub.New(metrics, logger)

	var (
		source domain.PositionSource
		feed   *wsfeed.Feed
	)
	if cfg.PositionMode == config.PositionModeLive {
		feed, err = wsfeed.New(cfg.PositionFeedURL, logger)
		if err != nil {
			return err
		}
		source = feed
	}
	track := tracker.New(source, h, tracker.Options{
		Fallback:     domain.Coordinate{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng},
		PollInterval: cfg.PositionPollInterval,
		MaxAge:       cfg.PositionMaxAge,
		AutoCenter:   cfg.AutoCenter,
		Zoom:         cfg.MapZoom,
	}, metrics, logger)

	narrator := speech.NewNarrator(newSpeaker(cfg, h, logger), cfg.SpeechLocale, metrics, logger)
	defer narrator.Close()

	var publisher domain.EventPublisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("navigation event publishing enabled", "topic", cfg.KafkaTopic)
	}

	records, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer records.Close()

	ctrl := navigation.NewController(navigation.Deps{
		Resolver:  navigation.NewResolver(index, geocoder, cfg.SearchLimit, metrics, logger),
		Engine:    navigation.NewRouteEngine(router, cfg.RouteTimeout, metrics, logger),
		Position:  track,
		Narrator:  narrator,
		View:      h,
		Publisher: publisher,
	}, navigation.Options{
		ProximityMeters: cfg.ProximityMeters,
		Zoom:            cfg.MapZoom,
	}, metrics, logger)
	ctrl.OnChange(func(s navigation.Snapshot) { h.Broadcast(hub.TypeState, s) })
	unsubscribe := track.Subscribe(ctrl.OnPosition)
	defer unsubscribe()

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:     &readiness{records: records, feed: feed},
		Nav:       ctrl,
		Records:   records,
		Hub:       h,
		Positions: track,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Run(gctx)
		return nil
	})
	if feed != nil {
		g.Go(func() error { return feed.Run(gctx) })
	}
	g.Go(func() error {
		track.Start(gctx)
		<-gctx.Done()
		track.Stop()
		return nil
	})
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// newGeocoder builds provider -> Redis -> LRU. It returns a nil Geocoder when
// no credential is configured.
func newGeocoder(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.Geocoder, func(), error) {
	noop := func() {}
	if !cfg.GeocoderEnabled() {
		logger.Info("remote geocoding disabled")
		return nil, noop, nil
	}

	var geocoder domain.Geocoder
	switch cfg.GeocoderProvider {
	case "mapbox":
		geocoder = mapbox.NewClient(mapbox.Options{
			BaseURL:   cfg.GeocoderURL,
			Token:     cfg.GeocoderToken,
			Timeout:   cfg.GeocoderTimeout,
			Qualifier: cfg.RegionQualifier,
			Region:    cfg.RegionFilter,
			Limit:     cfg.SearchLimit,
		}, metrics, logger.With("component", "mapbox"))
	default:
		geocoder = locationiq.NewClient(locationiq.Options{
			BaseURL:   cfg.GeocoderURL,
			Token:     cfg.GeocoderToken,
			Timeout:   cfg.GeocoderTimeout,
			Qualifier: cfg.RegionQualifier,
			Region:    cfg.RegionFilter,
			Limit:     cfg.SearchLimit,
		}, metrics, logger.With("component", "locationiq"))
	}

	closeFn := noop
	if cfg.RedisEnabled {
		client, err := geocache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		geocoder = geocache.NewRedis(geocoder, client, cfg.GeocodeTTL, metrics, logger)
		closeFn = func() {
			if err := client.Close(); err != nil {
				logger.Error("redis close error", "error", err)
			}
		}
	}
	geocoder = geocache.NewLRU(geocoder, cfg.GeocoderCacheSize, metrics)

	logger.Info("remote geocoding enabled",
		"provider", cfg.GeocoderProvider,
		"redis", cfg.RedisEnabled,
		"cache_size", cfg.GeocoderCacheSize,
		"timeout", cfg.GeocoderTimeout,
	)
	return geocoder, closeFn, nil
}

// newSpeaker returns nil for the "none" backend.
func newSpeaker(cfg *config.Config, h *hub.Hub, logger *slog.Logger) domain.Speaker {
	switch cfg.SpeechBackend {
	case config.SpeechHub:
		return h
	case config.SpeechEspeak:
		return speech.NewExecSpeaker(cfg.EspeakBinary, logger)
	case config.SpeechLog:
		return speech.NewLogSpeaker(cfg.SpeechLocale, logger)
	default:
		return nil
	}
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.StoreBackend != "postgres" {
		return store.NewMemory(nil), nil
	}
	if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("postgres record store ready")
	return pg, nil
}

// readiness reports ready once the record store answers and, in live mode,
// the position feed is connected.
type readiness struct {
	records store.Store
	feed    *wsfeed.Feed
}

func (r *readiness) CheckReadiness(ctx context.Context) error {
	if err := r.records.Ping(ctx); err != nil {
		return err
	}
	if r.feed != nil && !r.feed.Connected() {
		return errors.New("position feed not connected")
	}
	return nil
}
