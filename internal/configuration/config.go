package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Server    ServerConfig
	Inference InferenceConfig
	Contacts  ContactsConfig
	NATSURL   string
	AuthURL   string
	CLAMAVURL string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Pool limits. The pool is process-scoped: opened once at startup,
	// drained once at shutdown.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

type ServerConfig struct {
	Port string
}

type InferenceConfig struct {
	// PredictURL is the full predict endpoint of the detection model.
	// Empty means mock mode: deterministic detections, no remote call.
	PredictURL string
	Timeout    time.Duration
}

type ContactsConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "scanuser"),
			Password:        getEnv("DB_PASSWORD", "scanpassword"),
			DBName:          getEnv("DB_NAME", "hairscan"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", time.Minute),
		},
		MinIO: MinIOConfig{
			Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
			BucketName: getEnv("MINIO_BUCKET", "scans"),
			UseSSL:     getEnv("MINIO_USE_SSL", "false") == "true",
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Inference: InferenceConfig{
			PredictURL: getEnv("INFERENCE_PREDICT_URL", ""),
			Timeout:    getEnvDuration("INFERENCE_TIMEOUT", 60*time.Second),
		},
		Contacts: ContactsConfig{
			BaseURL: getEnv("CONTACTS_API_URL", ""),
			Token:   getEnv("CONTACTS_API_TOKEN", ""),
			Timeout: getEnvDuration("CONTACTS_TIMEOUT", 10*time.Second),
		},
		NATSURL:   getEnv("NATS_URL", "nats://localhost:4222"),
		AuthURL:   getEnv("AUTH_ISSUER", ""),
		CLAMAVURL: getEnv("CLAMAV_URL", ""),
	}
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
