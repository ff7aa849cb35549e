package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища документов
const (
	StoreDriverPostgres      = "postgres"
	StoreDriverElasticsearch = "elasticsearch"
	StoreDriverMemory        = "memory"
)

type RabbitMQConfig struct {
	URL           string
	Exchange      string
	SyncWorkers   int
	MaxRetries    int
	RetryTTL      time.Duration
	ReportEnabled bool
}

type DBconfig struct {
	URL      string
	MaxConns int32
}

type ElasticsearchConfig struct {
	Addresses    []string
	Username     string
	Password     string
	ListingIndex string
	UserIndex    string
	Refresh      string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

type RESTconfig struct {
	PORT           string
	AllowedOrigins []string
}

type StdoutLogConfig struct {
	Level  string
	IsJSON bool
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

type SearchConfig struct {
	StoreTimeout    time.Duration
	MaxRadiusKm     float64
	PriceBounds     []float64
	SuggestionTerms []string
	TrendingTerms   []string
	SuggestionLimit int
}

type ReindexConfig struct {
	ListingServiceURL string
	UserServiceURL    string
	ExportTimeout     time.Duration
	PageSize          int
	Workers           int
}

// AppConfig хранит всю конфигурацию приложения
type AppConfig struct {
	AppName       string
	StoreDriver   string
	Database      DBconfig
	Elasticsearch ElasticsearchConfig
	Redis         RedisConfig
	RabbitMQ      RabbitMQConfig
	Rest          RESTconfig
	Search        SearchConfig
	Reindex       ReindexConfig
	FluentBit     FluentBitConfig
	StdoutLogger  StdoutLogConfig
}

var defaultPriceBounds = []float64{0, 1000, 2000, 3000, 5000}

var defaultSuggestionTerms = []string{
	"apartment", "house", "studio", "loft", "penthouse", "townhouse",
	"villa", "duplex", "condo", "cottage", "garden", "parking", "balcony",
}

var defaultTrendingTerms = []string{"apartment", "studio", "house", "loft", "penthouse"}

// LoadConfig читает .env (если есть) и переменные окружения
func LoadConfig(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath[0])
	} else {
		err = godotenv.Load()
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env file (path: %v): %w", envPath, err)
	}

	cfg := &AppConfig{
		AppName:     getEnvAsString("APP_NAME", "search-service"),
		StoreDriver: strings.ToLower(getEnvAsString("STORE_DRIVER", StoreDriverPostgres)),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		cfg.Database.URL = os.Getenv("DATABASE_URL")
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for STORE_DRIVER=postgres")
		}
		cfg.Database.MaxConns = int32(getEnvAsInt("DATABASE_MAX_CONNS", 10))
	case StoreDriverElasticsearch:
		cfg.Elasticsearch.Addresses = getEnvAsStringSlice("ELASTICSEARCH_ADDRESSES", nil)
		if len(cfg.Elasticsearch.Addresses) == 0 {
			return nil, fmt.Errorf("ELASTICSEARCH_ADDRESSES environment variable is required for STORE_DRIVER=elasticsearch")
		}
		cfg.Elasticsearch.Username = os.Getenv("ELASTICSEARCH_USERNAME")
		cfg.Elasticsearch.Password = os.Getenv("ELASTICSEARCH_PASSWORD")
		cfg.Elasticsearch.ListingIndex = getEnvAsString("ELASTICSEARCH_LISTING_INDEX", "listings")
		cfg.Elasticsearch.UserIndex = getEnvAsString("ELASTICSEARCH_USER_INDEX", "users")
		cfg.Elasticsearch.Refresh = getEnvAsString("ELASTICSEARCH_REFRESH", "false")
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL environment variable is required")
	}
	cfg.RabbitMQ.Exchange = getEnvAsString("SYNC_EXCHANGE", "property_exchange")
	cfg.RabbitMQ.SyncWorkers = getEnvAsInt("SYNC_WORKERS", 8)
	cfg.RabbitMQ.MaxRetries = getEnvAsInt("SYNC_MAX_RETRIES", 3)
	cfg.RabbitMQ.RetryTTL = getEnvAsDuration("SYNC_RETRY_TTL", 10*time.Second)
	cfg.RabbitMQ.ReportEnabled = getEnvAsBool("REINDEX_REPORT_ENABLED", true)

	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", false)
	if cfg.Redis.Enabled {
		cfg.Redis.Address = getEnvAsString("REDIS_ADDRESS", "localhost:6379")
		cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
		cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)
		cfg.Redis.Prefix = getEnvAsString("REDIS_PREFIX", cfg.AppName)
		cfg.Redis.TTL = getEnvAsDuration("SEARCH_CACHE_TTL", 30*time.Second)
	}

	cfg.Rest.PORT = getEnvAsString("REST_PORT", "8080")
	cfg.Rest.AllowedOrigins = getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"})

	cfg.Search.StoreTimeout = getEnvAsDuration("STORE_TIMEOUT", 5*time.Second)
	cfg.Search.MaxRadiusKm = getEnvAsFloat("SEARCH_MAX_RADIUS_KM", 100)
	cfg.Search.PriceBounds = getEnvAsFloatSlice("PRICE_BAND_BOUNDS", defaultPriceBounds)
	cfg.Search.SuggestionTerms = getEnvAsStringSlice("SUGGESTION_TERMS", defaultSuggestionTerms)
	cfg.Search.TrendingTerms = getEnvAsStringSlice("TRENDING_TERMS", defaultTrendingTerms)
	cfg.Search.SuggestionLimit = getEnvAsInt("SUGGESTION_LIMIT", 5)

	cfg.Reindex.ListingServiceURL = getEnvAsString("LISTING_SERVICE_URL", "http://listing-service:8080")
	cfg.Reindex.UserServiceURL = getEnvAsString("USER_SERVICE_URL", "http://user-service:8080")
	cfg.Reindex.ExportTimeout = getEnvAsDuration("EXPORT_TIMEOUT", 30*time.Second)
	cfg.Reindex.PageSize = getEnvAsInt("REINDEX_PAGE_SIZE", 200)
	cfg.Reindex.Workers = getEnvAsInt("REINDEX_WORKERS", 4)

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")
	cfg.StdoutLogger.IsJSON = getEnvAsBool("STDOUT_LOG_JSON", false)

	return cfg, nil
}

// getEnvAsString читает переменную окружения как строку или возвращает значение по умолчанию
func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt логирует предупреждение, если значение есть, но не число
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float: %v. Using default value: %g\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(strings.TrimSpace(valStr))
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsDuration понимает "5s", "250ms" и целое число миллисекунд
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valStr = strings.TrimSpace(valStr)
	if ms, err := strconv.Atoi(valStr); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as duration: %v. Using default value: %s\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return d
}

// getEnvAsStringSlice значения через запятую, пустые элементы отбрасываются
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valStr) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsFloatSlice(key string, defaultValue []float64) []float64 {
	parts := getEnvAsStringSlice(key, nil)
	if len(parts) == 0 {
		return defaultValue
	}
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as float list: %v. Using default value\n", key, p, err)
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
