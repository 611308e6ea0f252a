// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
	Annotation   AnnotationConfig        `mapstructure:"annotation"`
	Catalog      CatalogConfig           `mapstructure:"catalog"`
	HTTP         HTTPConfig              `mapstructure:"http"`
	RegistryPath string                  `mapstructure:"registry_path"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// CamundaConfig holds the Zeebe broker connection settings.
type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// DatabaseConfig groups the backing store settings.
type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

// PostgresConfig holds the catalog database settings.
type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig holds the catalog search settings.
type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// RedisConfig holds the cache settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// --- Annotation Configuration ---

// AnnotationConfig tunes the reply annotator. Zero values fall back to the
// annotator defaults.
type AnnotationConfig struct {
	CurrencySymbol    string `mapstructure:"currency_symbol"`
	ProximityWindow   int    `mapstructure:"proximity_window"`
	MinTitleLength    int    `mapstructure:"min_title_length"`
	MinKeywordLength  int    `mapstructure:"min_keyword_length"`
	MajorityThreshold int    `mapstructure:"majority_threshold"`
	ResultCacheTTL    int    `mapstructure:"result_cache_ttl"` // milliseconds, 0 disables the memo cache
}

const (
	CatalogSourcePostgres      = "postgres"
	CatalogSourceElasticsearch = "elasticsearch"
	CatalogSourceFile          = "file"
	CatalogSourceNone          = "none"
)

// CatalogConfig selects where catalog entries come from when a request does
// not carry them inline.
type CatalogConfig struct {
	Source     string `mapstructure:"source"`
	FilePath   string `mapstructure:"file_path"`
	Index      string `mapstructure:"index"`
	SearchSize int    `mapstructure:"search_size"`
	CacheTTL   int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables the product cache
	Timeout    int    `mapstructure:"timeout"`   // milliseconds
}

// HTTPConfig holds settings for the annotation API.
type HTTPConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	Address          string   `mapstructure:"address"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	RateLimitRPS     float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int      `mapstructure:"rate_limit_burst"`
	NormalizeUnicode bool     `mapstructure:"normalize_unicode"`
	MaxBatchSize     int      `mapstructure:"max_batch_size"`
	BatchConcurrency int      `mapstructure:"batch_concurrency"`
	RequestTimeout   int      `mapstructure:"request_timeout"` // milliseconds
}
