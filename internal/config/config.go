package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envPrefix = "REPLENISH"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	MySQL   MySQLConfig   `yaml:"mysql" envconfig:"MYSQL"`
	Redis   RedisConfig   `yaml:"redis" envconfig:"REDIS"`
	Model   ModelConfig   `yaml:"model" envconfig:"MODEL"`
	Batch   BatchConfig   `yaml:"batch" envconfig:"BATCH"`
	Loader  LoaderConfig  `yaml:"loader" envconfig:"LOADER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOG"`
	Tracing TracingConfig `yaml:"tracing" envconfig:"TRACING"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr        string        `yaml:"grpc_addr" envconfig:"GRPC_ADDR" default:":50051"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"120s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn" envconfig:"DSN" default:"root:root@tcp(localhost:3306)/replenish?parseTime=true"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"50"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"5m"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr" envconfig:"ADDR" default:"localhost:6379"`
	Password       string        `yaml:"password" envconfig:"PASSWORD"`
	DB             int           `yaml:"db" envconfig:"DB" default:"0"`
	PoolSize       int           `yaml:"pool_size" envconfig:"POOL_SIZE" default:"100"`
	CatalogTTL     time.Duration `yaml:"catalog_ttl" envconfig:"CATALOG_TTL" default:"10m"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

// ModelConfig selects the demand predictor. Kind "linear" loads a model
// artifact from ArtifactPath, kind "remote" calls a model server at URL.
type ModelConfig struct {
	Kind         string        `yaml:"kind" envconfig:"KIND" default:"linear"`
	ArtifactPath string        `yaml:"artifact_path" envconfig:"ARTIFACT_PATH" default:"ml_models/demand_model.yaml"`
	URL          string        `yaml:"url" envconfig:"URL" default:"http://localhost:8500"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"2s"`
}

type BatchConfig struct {
	ChunkSize   int           `yaml:"chunk_size" envconfig:"CHUNK_SIZE" default:"50"`
	ChunkDelay  time.Duration `yaml:"chunk_delay" envconfig:"CHUNK_DELAY" default:"200ms"`
	MaxAttempts uint          `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3"`
}

type LoaderConfig struct {
	DataDir     string        `yaml:"data_dir" envconfig:"DATA_DIR" default:"."`
	ChunkSize   int           `yaml:"chunk_size" envconfig:"CHUNK_SIZE" default:"100"`
	ChunkDelay  time.Duration `yaml:"chunk_delay" envconfig:"CHUNK_DELAY" default:"3s"`
	MaxAttempts uint          `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"5"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT" default:"false"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"stock-replenishment"`
}

// Load reads .env (if present), the environment, and an optional YAML file
// named by REPLENISH_CONFIG_FILE. File values replace defaults; variables set
// in the environment take precedence over both.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		merged, err := loadFromFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*merged, cfg, explicitEnv())
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile decodes the YAML file over base. Keys absent from the file
// keep their base value.
func loadFromFile(path string, base Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// explicitEnv reports which variables were set in the environment, so file
// values only replace defaults.
func explicitEnv() func(name string) bool {
	return func(name string) bool {
		_, ok := os.LookupEnv(name)
		return ok
	}
}

// mergeConfigs copies every field whose variable is set in the environment
// from env onto file. Variable names follow the envconfig tags.
func mergeConfigs(file, env Config, isSet func(string) bool) Config {
	overlay(reflect.ValueOf(&file).Elem(), reflect.ValueOf(env), envPrefix, isSet)
	return file
}

func overlay(dst, src reflect.Value, prefix string, isSet func(string) bool) {
	t := dst.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		name := prefix + "_" + f.Tag.Get("envconfig")
		if f.Type.Kind() == reflect.Struct {
			overlay(dst.Field(i), src.Field(i), name, isSet)
			continue
		}
		if isSet(name) {
			dst.Field(i).Set(src.Field(i))
		}
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Batch.ChunkSize <= 0 {
		errs = append(errs, errors.New("batch chunk size must be positive"))
	}
	if c.Loader.ChunkSize <= 0 {
		errs = append(errs, errors.New("loader chunk size must be positive"))
	}
	if c.Loader.MaxAttempts == 0 {
		errs = append(errs, errors.New("loader max attempts must be positive"))
	}
	switch c.Model.Kind {
	case "linear", "remote":
	default:
		errs = append(errs, fmt.Errorf("unknown model kind %q", c.Model.Kind))
	}
	return errors.Join(errs...)
}
