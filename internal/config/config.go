package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Supported store backends
const (
	DatabaseTypeMySQL   = "mysql"
	DatabaseTypeMongoDB = "mongodb"
	DatabaseTypeMemory  = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Storage  StorageConfig  `mapstructure:"storage"`
	External ExternalConfig `mapstructure:"external"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Security SecurityConfig `mapstructure:"security"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Emulator EmulatorConfig `mapstructure:"emulator"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Hostname     string        `mapstructure:"hostname"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	FrontendURL  string        `mapstructure:"frontend_url"`
}

// DatabaseConfig holds the document store configuration. Type selects the
// backend; the remaining fields apply to MySQL.
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"`
	Hostname        string        `mapstructure:"hostname"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// StorageConfig holds ontology file storage settings
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ExternalConfig holds the upstream identity, negotiation and contract services
type ExternalConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	MasterPassword     string        `mapstructure:"master_password"`
	ContractServiceURL string        `mapstructure:"contract_service_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds session configuration
type SecurityConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
	SessionName   string `mapstructure:"session_name"`
}

// CORSConfig holds CORS configuration. Origins is a comma separated list.
type CORSConfig struct {
	Origins string `mapstructure:"origins"`
	MaxAge  int    `mapstructure:"max_age"`
}

// EmulatorConfig selects the in-process store used for local development
type EmulatorConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	FirestoreHost string `mapstructure:"firestore_host"`
	StorageHost   string `mapstructure:"storage_host"`
}

// LimitsConfig holds human readable body size limits such as "10mb"
type LimitsConfig struct {
	JSON       string `mapstructure:"json"`
	URL        string `mapstructure:"url"`
	FileUpload string `mapstructure:"file_upload"`

	JSONBytes       int64 `mapstructure:"-"`
	URLBytes        int64 `mapstructure:"-"`
	FileUploadBytes int64 `mapstructure:"-"`
}

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string]string{
	"server.port":                   "PORT",
	"server.frontend_url":           "FRONTEND_URL",
	"database.type":                 "DATABASE_TYPE",
	"database.hostname":             "DATABASE_HOST",
	"database.port":                 "DATABASE_PORT",
	"database.user":                 "DATABASE_USER",
	"database.password":             "DATABASE_PASSWORD",
	"database.database":             "DATABASE_NAME",
	"mongo.uri":                     "MONGO_URI",
	"mongo.database":                "MONGO_DATABASE",
	"storage.path":                  "STORAGE_PATH",
	"external.base_url":             "EXTERNAL_API_BASE_URL",
	"external.master_password":      "EXTERNAL_API_MASTER_PASSWORD",
	"external.contract_service_url": "CONTRACT_SERVICE_URL",
	"logging.level":                 "LOG_LEVEL",
	"security.session_secret":       "SESSION_SECRET",
	"cors.origins":                  "CORS_ORIGINS",
	"emulator.enabled":              "USE_EMULATOR",
	"emulator.firestore_host":       "FIRESTORE_EMULATOR_HOST",
	"emulator.storage_host":         "FIREBASE_STORAGE_EMULATOR_HOST",
	"limits.json":                   "JSON_LIMIT",
	"limits.url":                    "URL_LIMIT",
	"limits.file_upload":            "FILE_UPLOAD_LIMIT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.hostname", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.frontend_url", "http://localhost:5173")

	v.SetDefault("database.type", DatabaseTypeMongoDB)
	v.SetDefault("database.hostname", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "upconsent")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "upconsent")
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("storage.path", "./data/ontologies")

	v.SetDefault("external.base_url", "")
	v.SetDefault("external.master_password", "")
	v.SetDefault("external.contract_service_url", "")
	v.SetDefault("external.timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("security.session_secret", "")
	v.SetDefault("security.session_name", "upconsent_session")

	v.SetDefault("cors.origins", "")
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("emulator.enabled", false)
	v.SetDefault("emulator.firestore_host", "")
	v.SetDefault("emulator.storage_host", "")

	v.SetDefault("limits.json", "10MB")
	v.SetDefault("limits.url", "10MB")
	v.SetDefault("limits.file_upload", "50MB")
}

// Load reads configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence. An explicit
// configPath must exist; without one the usual locations are searched and a
// missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
		v.AddConfigPath(".")
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Limits.parse(); err != nil {
		return nil, fmt.Errorf("invalid size limit: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (l *LimitsConfig) parse() error {
	var err error
	if l.JSONBytes, err = parseSize("JSON_LIMIT", l.JSON); err != nil {
		return err
	}
	if l.URLBytes, err = parseSize("URL_LIMIT", l.URL); err != nil {
		return err
	}
	if l.FileUploadBytes, err = parseSize("FILE_UPLOAD_LIMIT", l.FileUpload); err != nil {
		return err
	}
	return nil
}

func parseSize(name, value string) (int64, error) {
	size, err := humanize.ParseBytes(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, value, err)
	}
	if size == 0 {
		return 0, fmt.Errorf("%s must be greater than zero", name)
	}
	return int64(size), nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.StoreType() {
	case DatabaseTypeMySQL:
		if config.Database.Hostname == "" {
			return fmt.Errorf("database hostname is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case DatabaseTypeMongoDB:
		if config.Mongo.URI == "" {
			return fmt.Errorf("mongo uri is required")
		}
		if config.Mongo.Database == "" {
			return fmt.Errorf("mongo database name is required")
		}
	case DatabaseTypeMemory:
	default:
		return fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}

	if config.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	return nil
}

// StoreType returns the effective store backend. The emulator flag always
// selects the in-memory store.
func (c *Config) StoreType() string {
	if c.Emulator.Enabled {
		return DatabaseTypeMemory
	}
	return strings.ToLower(strings.TrimSpace(c.Database.Type))
}

// GetServerAddress returns the server address in host:port format
func (s *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", s.Hostname, s.Port)
}

// AllowedOrigins parses the comma separated origin list. An empty list allows any origin.
func (c *CORSConfig) AllowedOrigins() []string {
	raw := strings.TrimSpace(c.Origins)
	if raw == "" {
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// AllowsAnyOrigin reports whether the wildcard origin is configured
func (c *CORSConfig) AllowsAnyOrigin() bool {
	for _, origin := range c.AllowedOrigins() {
		if origin == "*" {
			return true
		}
	}
	return false
}
