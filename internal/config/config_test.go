package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// chdir moves into dir for the test so Load does not pick up a stray .env.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, k := range []string{"AWS_REGION", "S3_BUCKET_NAME", "DYNAMODB_TABLE_NAME", "RS_RECOGNITION_ENGINE"} {
		t.Setenv(k, "")
	}
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.MaxUploadBytes() != 10<<20 {
		t.Errorf("max upload = %d", cfg.Server.MaxUploadBytes())
	}
	if cfg.Recognition.Engine != EngineRekognition {
		t.Errorf("engine = %q", cfg.Recognition.Engine)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.MinIO.Configured() || cfg.Database.Configured() || cfg.Recognition.Configured() {
		t.Errorf("empty config reported as configured")
	}
}

func TestLoad_YAML(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
server:
  port: 9000
  allowed_origins: ["https://app.example.com"]
database:
  host: db
  name: receipts
  table: detection_records
minio:
  endpoint: minio:9000
  bucket: receipts
recognition:
  engine: gemini
  gemini_api_key: k
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if !cfg.Database.Configured() || !cfg.MinIO.Configured() || !cfg.Recognition.Configured() {
		t.Errorf("expected all clients configured: %+v", cfg)
	}
	if cfg.Recognition.GeminiModel == "" {
		t.Errorf("gemini model default not applied")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RS_SERVER_PORT", "8081")
	t.Setenv("S3_BUCKET_NAME", "receipt-images")
	t.Setenv("DYNAMODB_TABLE_NAME", "receipt_records")
	t.Setenv("AWS_REGION", "ap-southeast-1")
	t.Setenv("RS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load(writeConfig(t, "minio:\n  bucket: from-file\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.MinIO.Bucket != "receipt-images" {
		t.Errorf("bucket = %q", cfg.MinIO.Bucket)
	}
	if cfg.Database.Table != "receipt_records" {
		t.Errorf("table = %q", cfg.Database.Table)
	}
	if cfg.Recognition.Region != "ap-southeast-1" || cfg.MinIO.Region != "ap-southeast-1" {
		t.Errorf("region = %q / %q", cfg.Recognition.Region, cfg.MinIO.Region)
	}
	if !cfg.Recognition.Configured() {
		t.Errorf("rekognition with region should be configured")
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RS_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides a variable that is already present.
	os.Unsetenv("RS_API_KEY")
	t.Cleanup(func() { os.Unsetenv("RS_API_KEY") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.APIKey != "from-dotenv" {
		t.Errorf("api key = %q", cfg.Server.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
