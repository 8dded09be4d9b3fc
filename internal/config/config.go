// v1
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/HashimCodeDev/STVE/internal/model"
)

// Bounds is a [min, max] range used for physical plausibility checks.
type Bounds struct {
	Min float64
	Max float64
}

// Band is a {normal, moderate} pair used for temporal/cross-zone change
// banding.
type Band struct {
	Normal   float64
	Moderate float64
}

// TrustBands are the four descending score thresholds separating the
// trust labels. Must be strictly descending.
type TrustBands struct {
	HighlyReliable float64
	Reliable       float64
	Uncertain      float64
	Unreliable     float64
}

// PhysicalPenalties are the fixed deductions applied by the physical
// plausibility axis.
type PhysicalPenalties struct {
	HighMoistureNoRain float64
	SoilAirTempGap     float64
	PHJump             float64
	ECSpike            float64
}

// Weights are the fixed linear-combination weights for the three scoring
// axes. Must sum to 1.
type Weights struct {
	Temporal float64
	Cross    float64
	Physical float64
}

// Windows are the fixed history depths the Scorer and Store operate
// over.
type Windows struct {
	HistoryWindow int
	DriftWindow   int
	TrendWindow   int
}

// RateLimit configures the per-API-key token bucket in httpapi/ratelimit.
type RateLimit struct {
	RequestsPerMinute int
	Burst             int
}

// Config is the single immutable configuration object threaded through
// the Scorer, Store, Ingestor and HTTP layer. Never mutated after Load.
type Config struct {
	// Ambient / bootstrap
	ListenAddress    string
	LogFilePath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
	PropertiesPath   string

	// Auth & rate limiting
	APIKeys         []string
	JWTSecret       string
	RateLimit       RateLimit
	CORSOrigins     []string
	DashboardCacheTTL time.Duration

	// Summariser
	SummaryEndpoint string
	SummaryTimeout  time.Duration
	SummaryEnabled  bool

	// Domain: scoring
	Weights            Weights
	PhysicalLimits     map[model.Parameter]Bounds
	TemporalThresholds map[model.Parameter]Band
	StaticThresholds   map[model.Parameter]float64
	DriftThresholds    map[model.Parameter]float64
	CrossThresholds    map[model.Parameter]Band
	PhysicalPenalties  PhysicalPenalties
	TrustBands         TrustBands
	Windows            Windows
}

const (
	defaultListenAddress     = ":8085"
	defaultLogFile           = "logs/stve.log"
	defaultReadTimeout       = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultShutdown          = 5 * time.Second
	defaultPropsPath         = "stve.properties"
	defaultDashboardCacheTTL = 2 * time.Second
	defaultSummaryTimeout    = 5 * time.Second
	defaultRateLimitRPM      = 120
	defaultRateLimitBurst    = 20
)

// Default returns the baseline configuration's literal constants,
// before any properties/env overrides are applied.
func Default() Config {
	return Config{
		ListenAddress:     defaultListenAddress,
		LogFilePath:       filepath.Clean(defaultLogFile),
		HTTPReadTimeout:   defaultReadTimeout,
		HTTPWriteTimeout:  defaultWriteTimeout,
		ShutdownTimeout:   defaultShutdown,
		RateLimit:         RateLimit{RequestsPerMinute: defaultRateLimitRPM, Burst: defaultRateLimitBurst},
		DashboardCacheTTL: defaultDashboardCacheTTL,
		SummaryTimeout:    defaultSummaryTimeout,
		CORSOrigins:       []string{"*"},

		Weights: Weights{Temporal: 0.3, Cross: 0.5, Physical: 0.2},
		PhysicalLimits: map[model.Parameter]Bounds{
			model.ParamMoisture:    {Min: 0, Max: 100},
			model.ParamTemperature: {Min: 0, Max: 60},
			model.ParamEC:          {Min: 0, Max: 10},
			model.ParamPH:          {Min: 3, Max: 10},
		},
		TemporalThresholds: map[model.Parameter]Band{
			model.ParamMoisture:    {Normal: 25, Moderate: 60},
			model.ParamTemperature: {Normal: 15, Moderate: 40},
			model.ParamEC:          {Normal: 20, Moderate: 50},
			model.ParamPH:          {Normal: 10, Moderate: 30},
		},
		StaticThresholds: map[model.Parameter]float64{
			model.ParamMoisture:    0.5,
			model.ParamTemperature: 0.3,
			model.ParamEC:          0.05,
			model.ParamPH:          0.05,
		},
		DriftThresholds: map[model.Parameter]float64{
			model.ParamMoisture:    1.5,
			model.ParamTemperature: 1.0,
			model.ParamEC:          0.2,
			model.ParamPH:          0.1,
		},
		CrossThresholds: map[model.Parameter]Band{
			model.ParamMoisture:    {Normal: 25, Moderate: 50},
			model.ParamTemperature: {Normal: 15, Moderate: 35},
			model.ParamEC:          {Normal: 20, Moderate: 45},
			model.ParamPH:          {Normal: 10, Moderate: 25},
		},
		PhysicalPenalties: PhysicalPenalties{
			HighMoistureNoRain: 0.4,
			SoilAirTempGap:     0.3,
			PHJump:             0.3,
			ECSpike:            0.3,
		},
		TrustBands: TrustBands{
			HighlyReliable: 0.85,
			Reliable:       0.78,
			Uncertain:      0.73,
			Unreliable:     0.50,
		},
		Windows: Windows{
			HistoryWindow: 10,
			DriftWindow:   20,
			TrendWindow:   10,
		},
	}
}

// Load resolves configuration by layering defaults, an optional
// .properties file, and finally environment variables, which take
// precedence over the properties file. An optional .env file is loaded
// first via godotenv so the rest of the layers can rely on os.Getenv.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	propsPath := strings.TrimSpace(os.Getenv("STVE_PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	sum := c.Weights.Temporal + c.Weights.Cross + c.Weights.Physical
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("weights must sum to 1, got %f", sum)
	}
	b := c.TrustBands
	if !(b.HighlyReliable > b.Reliable && b.Reliable > b.Uncertain && b.Uncertain > b.Unreliable) {
		return errors.New("trustBands must be strictly descending")
	}
	return nil
}

func applyProperties(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setProperty(cfg, key, value); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	return scanner.Err()
}

func setProperty(cfg *Config, key, value string) error {
	switch key {
	case "listen_address":
		if value == "" {
			return errors.New("listen_address cannot be empty")
		}
		cfg.ListenAddress = value
	case "log_path":
		if value == "" {
			return errors.New("log_path cannot be empty")
		}
		cfg.LogFilePath = filepath.Clean(value)
	case "rate_limit_rpm":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid rate_limit_rpm: %q", value)
		}
		cfg.RateLimit.RequestsPerMinute = n
	case "rate_limit_burst":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid rate_limit_burst: %q", value)
		}
		cfg.RateLimit.Burst = n
	case "dashboard_cache_ttl_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.DashboardCacheTTL = d
	case "summary_endpoint":
		cfg.SummaryEndpoint = value
	default:
		// Unknown keys are ignored to keep the loader forward-compatible.
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := lookupEnvTrimmed("STVE_LISTEN_ADDRESS"); ok {
		if v == "" {
			return errors.New("STVE_LISTEN_ADDRESS cannot be empty")
		}
		cfg.ListenAddress = v
	}
	if v, ok := lookupEnvTrimmed("STVE_LOG_PATH"); ok {
		if v == "" {
			return errors.New("STVE_LOG_PATH cannot be empty")
		}
		cfg.LogFilePath = filepath.Clean(v)
	}
	if v, ok := lookupEnvTrimmed("STVE_API_KEYS"); ok {
		cfg.APIKeys = splitAndTrim(v)
	}
	if v, ok := lookupEnvTrimmed("STVE_JWT_SECRET"); ok {
		cfg.JWTSecret = v
	}
	if v, ok := lookupEnvTrimmed("STVE_CORS_ORIGINS"); ok {
		if origins := splitAndTrim(v); len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}
	if v, ok := lookupEnvTrimmed("STVE_RATE_LIMIT_RPM"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("STVE_RATE_LIMIT_RPM: invalid value %q", v)
		}
		cfg.RateLimit.RequestsPerMinute = n
	}
	if v, ok := lookupEnvTrimmed("STVE_RATE_LIMIT_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("STVE_RATE_LIMIT_BURST: invalid value %q", v)
		}
		cfg.RateLimit.Burst = n
	}
	if v, ok := lookupEnvTrimmed("STVE_DASHBOARD_CACHE_TTL_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("STVE_DASHBOARD_CACHE_TTL_MS: %w", err)
		}
		cfg.DashboardCacheTTL = d
	}
	if v, ok := lookupEnvTrimmed("STVE_SUMMARY_ENDPOINT"); ok {
		cfg.SummaryEndpoint = v
	}
	cfg.SummaryEnabled = strings.TrimSpace(cfg.SummaryEndpoint) != ""
	if v, ok := lookupEnvTrimmed("STVE_SUMMARY_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("STVE_SUMMARY_TIMEOUT_MS: %w", err)
		}
		cfg.SummaryTimeout = d
	}
	if v, ok := lookupEnvTrimmed("STVE_SHUTDOWN_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("STVE_SHUTDOWN_TIMEOUT_MS: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	return nil
}

func lookupEnvTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePositiveMillis(v string) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return 0, errors.New("value cannot be empty")
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if ms <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
