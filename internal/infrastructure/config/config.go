package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Security  SecurityConfig  `koanf:"security"`

	Fraud FraudConfig `koanf:"fraud"`
	ML    MLConfig    `koanf:"ml"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type TelemetryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	OTLPEndpoint  string        `koanf:"otlp_endpoint"`
	SamplingRate  float64       `koanf:"sampling_rate"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
	BatchTimeout  time.Duration `koanf:"batch_timeout"`
}

type SecurityConfig struct {
	JWTSecret   string          `koanf:"jwt_secret"`
	TokenExpiry time.Duration   `koanf:"token_expiry"`
	RateLimit   RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

// FraudConfig holds the rule-engine thresholds.
type FraudConfig struct {
	MaxTransactionAmount   float64 `koanf:"max_transaction_amount"`
	MaxTransactionsPerHour int     `koanf:"max_transactions_per_hour"`
	MaxTransactionsPerDay  int     `koanf:"max_transactions_per_day"`
}

// MLConfig holds model scorer settings. ConfidenceThreshold is reserved
// for a future calibration stage.
type MLConfig struct {
	ModelPath           string        `koanf:"model_path"`
	ConfidenceThreshold float64       `koanf:"confidence_threshold"`
	ScoreTimeout        time.Duration `koanf:"score_timeout"`
}

// Load reads configuration from defaults, an optional YAML file, and
// FDS_-prefixed environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			SamplingRate:  0.1,
			ExportTimeout: 30 * time.Second,
			BatchTimeout:  5 * time.Second,
		},
		Security: SecurityConfig{
			TokenExpiry: 24 * time.Hour,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
		Fraud: FraudConfig{
			MaxTransactionAmount:   10000,
			MaxTransactionsPerHour: 10,
			MaxTransactionsPerDay:  50,
		},
		ML: MLConfig{
			ModelPath:           "models/fraud_detection_model.gob",
			ConfidenceThreshold: 0.7,
			ScoreTimeout:        500 * time.Millisecond,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// Config file is optional
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil && !strings.Contains(err.Error(), "no such file") {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	// Variable names match known keys with "." written as "_", so keys
	// that contain underscores (fraud.max_transaction_amount) resolve.
	envKeys := make(map[string]string)
	for _, key := range k.Keys() {
		envKeys[strings.ReplaceAll(key, ".", "_")] = key
	}
	if err := k.Load(env.Provider("FDS_", ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, "FDS_"))
		if key, ok := envKeys[name]; ok {
			return key
		}
		return strings.Replace(name, "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
