package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"gocausal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `validate:"required"`
	Ops       OpsConfig
	Database  DatabaseConfig
	Limits    LimitsConfig    `validate:"required"`
	Estimator EstimatorConfig `validate:"required"`
	LogLevel  string
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port           string        `validate:"required"`
	GinMode        string        `validate:"oneof=debug release test"`
	RequestTimeout time.Duration `validate:"gt=0"`
}

// OpsConfig holds the health/metrics/pprof listener settings
type OpsConfig struct {
	Port    string
	Enabled bool
}

// DatabaseConfig holds the optional PostgreSQL connection used for dataset
// sources and run history
type DatabaseConfig struct {
	URL string
	// RunHistorySize bounds the in-memory run history used when URL is empty
	RunHistorySize int `validate:"min=1"`
}

// LimitsConfig bounds the work a single server process accepts
type LimitsConfig struct {
	MaxConcurrentEstimations int `validate:"min=1"`
	MaxRows                  int `validate:"min=1"`
}

// EstimatorConfig holds fixed learner defaults. No hyperparameter tuning happens beyond these.
type EstimatorConfig struct {
	LogisticMaxIter int     `yaml:"logistic_max_iter" validate:"min=1"`
	LogisticC       float64 `yaml:"logistic_c" validate:"gt=0"`

	ForestEstimators      int `yaml:"forest_estimators" validate:"min=1"`
	ForestMinSamplesSplit int `yaml:"forest_min_samples_split" validate:"min=2"`
	ForestMinSamplesLeaf  int `yaml:"forest_min_samples_leaf" validate:"min=1"`
	ForestMaxDepth        int `yaml:"forest_max_depth" validate:"min=0"`

	LassoCVFolds int     `yaml:"lasso_cv_folds" validate:"min=2"`
	LassoNAlphas int     `yaml:"lasso_n_alphas" validate:"min=1"`
	LassoEps     float64 `yaml:"lasso_eps" validate:"gt=0,lt=1"`

	ScaleWithinFolds bool `yaml:"scale_within_folds"`
}

// DefaultEstimatorConfig returns the learner defaults
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		LogisticMaxIter:       1000,
		LogisticC:             1.0,
		ForestEstimators:      100,
		ForestMinSamplesSplit: 2,
		ForestMinSamplesLeaf:  1,
		ForestMaxDepth:        0,
		LassoCVFolds:          3,
		LassoNAlphas:          100,
		LassoEps:              1e-3,
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:   *loadServerConfig(),
		Ops:      *loadOpsConfig(),
		Database: DatabaseConfig{
			URL:            getEnvOrDefault("DATABASE_URL", ""),
			RunHistorySize: getEnvIntOrDefault("RUN_HISTORY_SIZE", 500),
		},
		Limits:   *loadLimitsConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	estimatorConfig, err := LoadEstimatorConfig(os.Getenv("ESTIMATOR_DEFAULTS_FILE"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load estimator defaults")
	}
	config.Estimator = *estimatorConfig

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// LoadEstimatorConfig overlays a YAML file on the defaults; an empty path means defaults only
func LoadEstimatorConfig(path string) (*EstimatorConfig, error) {
	cfg := DefaultEstimatorConfig()
	if path == "" {
		return &cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "parse estimator defaults")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "estimator defaults")
	}
	return &cfg, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:           getEnvOrDefault("PORT", "8080"),
		GinMode:        getEnvOrDefault("GIN_MODE", "release"),
		RequestTimeout: getEnvDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
	}
}

func loadOpsConfig() *OpsConfig {
	return &OpsConfig{
		Port:    getEnvOrDefault("OPS_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("OPS_ENABLED", true),
	}
}

func loadLimitsConfig() *LimitsConfig {
	return &LimitsConfig{
		MaxConcurrentEstimations: getEnvIntOrDefault("MAX_CONCURRENT_ESTIMATIONS", 4),
		MaxRows:                  getEnvIntOrDefault("MAX_ROWS", 200000),
	}
}

var validate = validator.New()

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
