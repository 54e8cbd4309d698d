package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"` // Listen port, e.g. 8080
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string `yaml:"level"` // logrus level name, e.g. "info", "debug"
}

// RedisConfig holds the connection settings for the key-value store shared
// by the cache layer and the rate limiter.
type RedisConfig struct {
	Address  string `yaml:"address"`  // e.g. "localhost:6379"
	Password string `yaml:"password"` // Empty when auth is disabled
	DB       int    `yaml:"db"`       // Redis database number
}

// WikidataConfig holds credentials, endpoints and the property/entity ids
// the enrichment pipeline pivots on.
type WikidataConfig struct {
	ClientID     string `yaml:"clientId"`     // OAuth client id for the client-credentials exchange
	ClientSecret string `yaml:"clientSecret"` // OAuth client secret
	BaseURL      string `yaml:"baseUrl"`      // REST base, e.g. "https://www.wikidata.org/w/rest.php"
	Language     string `yaml:"language"`     // Preferred label language, e.g. "en"

	LootingEventID        string `yaml:"lootingEventId"`        // Q192623
	TimePeriodID          string `yaml:"timePeriodId"`          // Q947667 (Battle of Magdala)
	EventYear             int    `yaml:"eventYear"`             // 1868
	LocationPropertyID    string `yaml:"locationPropertyId"`    // P276
	CoordinatesPropertyID string `yaml:"coordinatesPropertyId"` // P625
	ImagePropertyID       string `yaml:"imagePropertyId"`       // P18
}

// SparqlConfig holds the query endpoint settings.
type SparqlConfig struct {
	Endpoint        string `yaml:"endpoint"`        // e.g. "https://query.wikidata.org/sparql"
	CacheTTLSeconds int    `yaml:"cacheTtlSeconds"` // TTL for cached query results, e.g. 3600
}

// CommonsConfig holds the media repository endpoint settings.
type CommonsConfig struct {
	BaseURL string `yaml:"baseUrl"` // e.g. "https://commons.wikimedia.org"
}

// AuthConfig holds the JWT settings protecting the ingestion endpoint.
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"`
}

// RateLimitConfig holds the fixed-window limiter settings applied per
// client IP.
type RateLimitConfig struct {
	MaxRequests   int `yaml:"maxRequests"`   // Requests allowed per window
	WindowSeconds int `yaml:"windowSeconds"` // Window length in seconds
}

// PipelineConfig holds the enrichment fan-out settings.
type PipelineConfig struct {
	Workers int `yaml:"workers"` // Size of the worker pool used per batch
}

// BreakerConfig holds circuit breaker settings for upstream HTTP calls.
type BreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold int    `yaml:"failureThreshold"` // Consecutive failures before the circuit opens
	SuccessThreshold int    `yaml:"successThreshold"` // Consecutive half-open successes before it closes
	Timeout          string `yaml:"timeout"`          // Open-state cooldown, e.g. "30s"
}

// HTTPClientConfig holds settings for outbound HTTP clients.
type HTTPClientConfig struct {
	TimeoutSeconds int           `yaml:"timeoutSeconds"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// AppConfig is the root configuration object for the collection service.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Redis      RedisConfig      `yaml:"redis"`
	Wikidata   WikidataConfig   `yaml:"wikidata"`
	Sparql     SparqlConfig     `yaml:"sparql"`
	Commons    CommonsConfig    `yaml:"commons"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	HTTPClient HTTPClientConfig `yaml:"httpClient"`
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file '%s': %w", path, err)
	}
	return &cfg, nil
}
