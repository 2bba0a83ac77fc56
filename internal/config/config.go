package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	APIKey         string   `yaml:"api_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

// MaxUploadBytes is the request body limit for image uploads.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
	// Table holds the detection records.
	Table string `yaml:"table"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Configured reports whether enough is set to open a connection.
func (d DatabaseConfig) Configured() bool {
	return d.Host != "" && d.Name != "" && d.Table != ""
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
	// PublicURL is the base of returned image URLs. Empty means the
	// virtual-hosted S3 form https://<bucket>.s3.amazonaws.com.
	PublicURL string `yaml:"public_url"`
}

func (m MinIOConfig) Configured() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

const (
	EngineRekognition = "rekognition"
	EngineGemini      = "gemini"
)

type RecognitionConfig struct {
	Engine       string `yaml:"engine"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`
}

func (r RecognitionConfig) Configured() bool {
	switch r.Engine {
	case EngineRekognition:
		return r.Region != ""
	case EngineGemini:
		return r.GeminiAPIKey != ""
	default:
		return false
	}
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A .env file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 10
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.MinIO.Region == "" {
		cfg.MinIO.Region = cfg.Recognition.Region
	}
	if cfg.Recognition.Engine == "" {
		cfg.Recognition.Engine = EngineRekognition
	}
	if cfg.Recognition.GeminiModel == "" {
		cfg.Recognition.GeminiModel = "gemini-1.5-flash"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RS_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("RS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("RS_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxUploadMB = n
		}
	}
	if v := os.Getenv("RS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("RS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("RS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("RS_DB_TABLE"); v != "" {
		cfg.Database.Table = v
	}
	if v := os.Getenv("DYNAMODB_TABLE_NAME"); v != "" {
		cfg.Database.Table = v
	}
	if v := os.Getenv("RS_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("RS_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("RS_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("RS_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("RS_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("S3_BUCKET_NAME"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("RS_MINIO_PUBLIC_URL"); v != "" {
		cfg.MinIO.PublicURL = v
	}
	if v := os.Getenv("RS_RECOGNITION_ENGINE"); v != "" {
		cfg.Recognition.Engine = strings.ToLower(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Recognition.Region = v
	}
	if v := os.Getenv("RS_GEMINI_API_KEY"); v != "" {
		cfg.Recognition.GeminiAPIKey = v
	}
	if v := os.Getenv("RS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
