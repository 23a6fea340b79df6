package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Position modes.
const (
	PositionModeFixed = "fixed"
	PositionModeLive  = "live"
)

// Speech backends.
const (
	SpeechHub    = "hub"
	SpeechEspeak = "espeak"
	SpeechLog    = "log"
	SpeechNone   = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Address index.
	GazetteerFile           string
	SearchThreshold         float64
	SearchFallbackThreshold float64
	SearchLimit             int

	// Remote geocoding. An empty token disables the remote provider.
	GeocoderProvider  string
	GeocoderToken     string
	GeocoderURL       string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int
	RegionQualifier   string
	RegionFilter      string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	GeocodeTTL    time.Duration

	// Routing.
	OSRMURL      string
	OSRMProfile  string
	RouteTimeout time.Duration

	// Position tracking.
	PositionMode         string
	PositionFeedURL      string
	PositionPollInterval time.Duration
	PositionMaxAge       time.Duration
	DefaultLat           float64
	DefaultLng           float64
	AutoCenter           bool
	MapZoom              int
	ProximityMeters      float64

	// Narration.
	SpeechBackend string
	SpeechLocale  string
	EspeakBinary  string

	// Navigation event publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Record store.
	StoreBackend string
	DatabaseURL  string
}

// GeocoderEnabled reports whether a remote geocoding credential is configured.
func (c *Config) GeocoderEnabled() bool {
	return c.GeocoderToken != ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var p parser
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GazetteerFile:           os.Getenv("GAZETTEER_FILE"),
		SearchThreshold:         p.float("SEARCH_THRESHOLD", 0.4),
		SearchFallbackThreshold: p.float("SEARCH_FALLBACK_THRESHOLD", 0.6),
		SearchLimit:             p.positiveInt("SEARCH_LIMIT", 5),

		GeocoderProvider:  strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", "locationiq")),
		GeocoderToken:     os.Getenv("GEOCODER_TOKEN"),
		GeocoderURL:       os.Getenv("GEOCODER_URL"),
		GeocoderTimeout:   p.duration("GEOCODER_TIMEOUT", 5*time.Second),
		GeocoderCacheSize: p.positiveInt("GEOCODER_CACHE_SIZE", 1000),
		RegionQualifier:   sharedcfg.EnvOrDefault("GEOCODE_REGION_QUALIFIER", "Ontario, Canada"),
		RegionFilter:      sharedcfg.EnvOrDefault("GEOCODE_REGION_FILTER", "Ontario"),

		RedisEnabled:  p.bool("REDIS_ENABLED", false),
		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       p.nonNegativeInt("REDIS_DB", 0),
		GeocodeTTL:    p.duration("GEOCODER_CACHE_TTL", 24*time.Hour),

		OSRMURL:      strings.TrimRight(sharedcfg.EnvOrDefault("OSRM_URL", "https://router.project-osrm.org"), "/"),
		OSRMProfile:  sharedcfg.EnvOrDefault("OSRM_PROFILE", "driving"),
		RouteTimeout: p.duration("ROUTE_TIMEOUT", 10*time.Second),

		PositionMode:         strings.ToLower(sharedcfg.EnvOrDefault("POSITION_MODE", PositionModeFixed)),
		PositionFeedURL:      os.Getenv("POSITION_FEED_URL"),
		PositionPollInterval: p.duration("POSITION_POLL_INTERVAL", time.Second),
		PositionMaxAge:       p.duration("POSITION_MAX_AGE", 5*time.Second),
		DefaultLat:           p.float("DEFAULT_LAT", 43.0716),
		DefaultLng:           p.float("DEFAULT_LNG", -79.1010),
		AutoCenter:           p.bool("AUTO_CENTER", true),
		MapZoom:              p.positiveInt("MAP_ZOOM", 15),
		ProximityMeters:      p.float("PROXIMITY_METERS", 30),

		SpeechBackend: strings.ToLower(sharedcfg.EnvOrDefault("SPEECH_BACKEND", SpeechHub)),
		SpeechLocale:  sharedcfg.EnvOrDefault("SPEECH_LOCALE", "fr-CA"),
		EspeakBinary:  sharedcfg.EnvOrDefault("ESPEAK_BINARY", "espeak-ng"),

		KafkaEnabled: p.bool("KAFKA_ENABLED", false),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "navigation-events"),

		StoreBackend: strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", "memory")),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SearchThreshold <= 0 || c.SearchThreshold > 1 {
		return errors.New("SEARCH_THRESHOLD must be in (0, 1]")
	}
	if c.SearchFallbackThreshold < c.SearchThreshold || c.SearchFallbackThreshold > 1 {
		return errors.New("SEARCH_FALLBACK_THRESHOLD must be between SEARCH_THRESHOLD and 1")
	}
	switch c.GeocoderProvider {
	case "locationiq", "mapbox":
	default:
		return fmt.Errorf("GEOCODER_PROVIDER %q is not supported", c.GeocoderProvider)
	}
	switch c.PositionMode {
	case PositionModeFixed:
	case PositionModeLive:
		if c.PositionFeedURL == "" {
			return errors.New("POSITION_FEED_URL is required when POSITION_MODE is live")
		}
	default:
		return fmt.Errorf("POSITION_MODE %q is not supported", c.PositionMode)
	}
	if c.DefaultLat < -90 || c.DefaultLat > 90 {
		return errors.New("DEFAULT_LAT must be in [-90, 90]")
	}
	if c.DefaultLng < -180 || c.DefaultLng > 180 {
		return errors.New("DEFAULT_LNG must be in [-180, 180]")
	}
	if c.ProximityMeters <= 0 {
		return errors.New("PROXIMITY_METERS must be positive")
	}
	switch c.SpeechBackend {
	case SpeechHub, SpeechEspeak, SpeechLog, SpeechNone:
	default:
		return fmt.Errorf("SPEECH_BACKEND %q is not supported", c.SpeechBackend)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q is not supported", c.StoreBackend)
	}
	return nil
}

// parser reads typed environment values and keeps the first error.
type parser struct {
	err error
}

func (p *parser) fail(name string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s", name)
	}
}

func (p *parser) duration(name string, def time.Duration) time.Duration {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(name)
		return def
	}
	return d
}

func (p *parser) float(name string, def float64) float64 {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(name)
		return def
	}
	return f
}

func (p *parser) positiveInt(name string, def int) int {
	n := p.nonNegativeInt(name, def)
	if n == 0 {
		p.fail(name)
		return def
	}
	return n
}

func (p *parser) nonNegativeInt(name string, def int) int {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		p.fail(name)
		return def
	}
	return n
}

func (p *parser) bool(name string, def bool) bool {
	s := os.Getenv(name)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(name)
		return def
	}
	return b
}
