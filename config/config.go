package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devSessionSecret = "dev-session-secret"

type Config struct {
	Env        string
	ServerPort int
	LogLevel   string
	StaticDir  string

	Data     DataConfig
	Model    ModelConfig
	Session  SessionConfig
	Redis    RedisConfig
	Accounts AccountsConfig
	Report   ReportConfig

	HistoryBackend string
	Database       DatabaseConfig

	StorageBackend string
	Minio          MinioConfig
	GCS            GCSConfig

	MQBackend string
	MQChannel string
	RabbitMQ  RabbitMQConfig
	PubSub    PubSubConfig
}

// DataConfig locates the JSON documents backing the repositories.
type DataConfig struct {
	Dir            string
	DoctorsFile    string
	PatientsFile   string
	ResetTokens    string
	ActivityFile   string
	ServicesFile   string
	DiseaseMapping string
	HistoryLimit   int
	ActivityLimit  int
}

type ModelConfig struct {
	Path    string
	URL     string
	Timeout time.Duration
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AccountsConfig struct {
	ResetTokenTTL        time.Duration
	DefaultResetPassword string
	OrdinalBase          int
	ExposeResetLinks     bool
}

type ReportConfig struct {
	WKHTMLToPDFPath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool

	// AutoMigrate applies pending migrations when the server starts.
	AutoMigrate bool
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	env := getEnv("ENV", "dev")
	if env == "dev" {
		godotenv.Load()
	}

	defaultLevel := "info"
	if env == "dev" {
		defaultLevel = "debug"
	}

	dataDir := getEnv("DATA_DIR", "data")
	dataConfig := DataConfig{
		Dir:            dataDir,
		DoctorsFile:    getEnv("DOCTORS_FILE", filepath.Join(dataDir, "medecins.json")),
		PatientsFile:   getEnv("PATIENTS_FILE", filepath.Join(dataDir, "patients.json")),
		ResetTokens:    getEnv("RESET_TOKENS_FILE", filepath.Join(dataDir, "reset_tokens.json")),
		ActivityFile:   getEnv("ACTIVITY_FILE", filepath.Join(dataDir, "activity.json")),
		ServicesFile:   getEnv("SERVICES_FILE", filepath.Join(dataDir, "services.json")),
		DiseaseMapping: getEnv("DISEASE_MAPPING_FILE", filepath.Join("models", "disease_mapping.json")),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 1000),
		ActivityLimit:  getEnvInt("ACTIVITY_LIMIT", 200),
	}

	secret := getEnv("SESSION_SECRET", "")
	if secret == "" && env != "prod" {
		secret = devSessionSecret
	}

	return Config{
		Env:        env,
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", defaultLevel),
		StaticDir:  getEnv("STATIC_DIR", "static"),
		Data:       dataConfig,
		Model: ModelConfig{
			Path:    getEnv("MODEL_PATH", filepath.Join("models", "model.json")),
			URL:     getEnv("MODEL_URL", ""),
			Timeout: getEnvDuration("MODEL_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			Secret:       secret,
			TTL:          getEnvDuration("SESSION_TTL", 12*time.Hour),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "diag_session"),
			CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Accounts: AccountsConfig{
			ResetTokenTTL:        getEnvDuration("RESET_TOKEN_TTL", 15*time.Minute),
			DefaultResetPassword: getEnv("DEFAULT_RESET_PASSWORD", "password123"),
			OrdinalBase:          getEnvInt("ORDINAL_BASE", 1001),
			ExposeResetLinks:     env != "prod",
		},
		Report: ReportConfig{
			WKHTMLToPDFPath: getEnv("WKHTMLTOPDF_PATH", ""),
		},
		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", "file")),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "diag"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "diag_db"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),

			AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
		},
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "")),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "diagnostic-reports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		MQBackend: strings.ToLower(getEnv("MQ_BACKEND", "")),
		MQChannel: getEnv("MQ_CHANNEL", "diagnoses"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Session.Secret) == "" {
		return errors.New("SESSION_SECRET is required")
	}
	switch c.HistoryBackend {
	case "", "file", "postgres":
	default:
		return fmt.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend)
	}
	switch c.StorageBackend {
	case "", "minio", "gcs":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.MQBackend {
	case "", "rabbitmq", "pubsub":
	default:
		return fmt.Errorf("unknown MQ_BACKEND %q", c.MQBackend)
	}
	if c.Data.HistoryLimit < 1 {
		return errors.New("HISTORY_LIMIT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return parsed
}
