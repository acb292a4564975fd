package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root application configuration, loaded once from the
// environment (plus .env outside production).
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Scylla        ScyllaConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	Bucketing     BucketingConfig
	Office        OfficeConfig
	Shift         ShiftConfig
	Face          FaceConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
	Username string
	Password string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
}

type ClickhouseConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

type ElasticsearchConfig struct {
	URL         string
	Username    string
	Password    string
	ReviewIndex string
}

type KMSConfig struct {
	Enabled bool
	Region  string
	KeyID   string
}

type BucketingConfig struct {
	EmployeeBuckets int
	EventBuckets    int
}

// OfficeConfig anchors the geofence: a single office coordinate plus the
// allowed radius in meters.
type OfficeConfig struct {
	Latitude    float64
	Longitude   float64
	RadiusM     float64
	WarnRadiusM float64
}

// ShiftConfig is the system-wide fallback window for employees without an
// explicit shift assignment.
type ShiftConfig struct {
	DefaultStart        string
	DefaultEnd          string
	DefaultGraceMinutes int
}

// FaceConfig selects and tunes the biometric backend.
// Backend is "remote" or "disabled"; never probed at runtime.
type FaceConfig struct {
	Backend        string
	Endpoint       string
	Tolerance      float64
	TimeoutSeconds int
	MaxConcurrent  int64
}

var (
	loadOnce sync.Once
	loaded   *Config
)

// LoadConfig reads configuration from the environment. Outside production it
// first loads .env if present.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		env := getEnv("APP_ENV", "development")
		if env != "production" {
			_ = godotenv.Load()
			env = getEnv("APP_ENV", env)
		}

		loaded = &Config{
			Environment: env,
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				Port:         getEnvInt("SERVER_PORT", 8080),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
			Scylla: ScyllaConfig{
				Nodes:    getEnvList("SCYLLA_NODES", "127.0.0.1:9042"),
				Keyspace: getEnv("SCYLLA_KEYSPACE", "attendance"),
				Username: getEnv("SCYLLA_USERNAME", ""),
				Password: getEnv("SCYLLA_PASSWORD", ""),
			},
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", "redis://127.0.0.1:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
				PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
			},
			Kafka: KafkaConfig{
				Brokers:           getEnvList("KAFKA_BROKERS", "127.0.0.1:9092"),
				NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "attendance-notifications"),
			},
			Clickhouse: ClickhouseConfig{
				URL:      getEnv("CLICKHOUSE_URL", "127.0.0.1:9000"),
				Database: getEnv("CLICKHOUSE_DATABASE", "attendance_audit"),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Elasticsearch: ElasticsearchConfig{
				URL:         getEnv("ELASTICSEARCH_URL", "http://127.0.0.1:9200"),
				Username:    getEnv("ELASTICSEARCH_USERNAME", ""),
				Password:    getEnv("ELASTICSEARCH_PASSWORD", ""),
				ReviewIndex: getEnv("ELASTICSEARCH_REVIEW_INDEX", "attendance-fraud-review"),
			},
			KMS: KMSConfig{
				Enabled: getEnvBool("KMS_ENABLED", false),
				Region:  getEnv("KMS_REGION", "ap-south-1"),
				KeyID:   getEnv("KMS_KEY_ID", ""),
			},
			Bucketing: BucketingConfig{
				EmployeeBuckets: getEnvInt("EMPLOYEE_BUCKETS", 64),
				EventBuckets:    getEnvInt("EVENT_BUCKETS", 16),
			},
			Office: OfficeConfig{
				Latitude:    getEnvFloat("OFFICE_LATITUDE", 12.9716),
				Longitude:   getEnvFloat("OFFICE_LONGITUDE", 77.5946),
				RadiusM:     getEnvFloat("OFFICE_RADIUS_M", 100),
				WarnRadiusM: getEnvFloat("OFFICE_WARN_RADIUS_M", 50),
			},
			Shift: ShiftConfig{
				DefaultStart:        getEnv("SHIFT_DEFAULT_START", "09:00"),
				DefaultEnd:          getEnv("SHIFT_DEFAULT_END", "10:00"),
				DefaultGraceMinutes: getEnvInt("SHIFT_DEFAULT_GRACE_MINUTES", 15),
			},
			Face: FaceConfig{
				Backend:        getEnv("FACE_BACKEND", "disabled"),
				Endpoint:       getEnv("FACE_ENDPOINT", "http://127.0.0.1:8501"),
				Tolerance:      getEnvFloat("FACE_TOLERANCE", 0.6),
				TimeoutSeconds: getEnvInt("FACE_TIMEOUT_SECONDS", 10),
				MaxConcurrent:  int64(getEnvInt("FACE_MAX_CONCURRENT", 8)),
			},
		}
	})

	return loaded
}

// Get returns the already-loaded configuration.
func Get() *Config {
	return LoadConfig()
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
