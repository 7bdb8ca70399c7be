package config

import (
	"testing"
	"time"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.DBDriver != "sqlite" || cfg.DSN() != "./data/homequest.db" {
		t.Errorf("Unexpected database settings %s %s", cfg.DBDriver, cfg.DSN())
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("Expected 24h TTL, got %v", cfg.TokenTTL)
	}
	if cfg.MaxUploadBytes != 5<<20 {
		t.Errorf("Expected 5MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.RecordCreateHistory {
		t.Error("Creation history must be off by default")
	}
	if cfg.JWTSecret == "" {
		t.Error("Expected development secret")
	}
	if cfg.Production() {
		t.Error("Expected development mode")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":                  "9090",
		"APP_ENV":               "Production",
		"DB_DRIVER":             "postgres",
		"DATABASE_URL":          "postgres://localhost/homequest",
		"JWT_SECRET":            "s3cret",
		"TOKEN_TTL":             "90m",
		"TIMEZONE":              "UTC",
		"RECORD_CREATE_HISTORY": "true",
		"MAX_UPLOAD_BYTES":      "1024",
		"LOG_FORMAT":            "JSON",
	}))
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Port != 9090 || !cfg.Production() || cfg.DSN() != "postgres://localhost/homequest" {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.TokenTTL != 90*time.Minute || cfg.Location != time.UTC {
		t.Errorf("Unexpected TTL or location: %v %v", cfg.TokenTTL, cfg.Location)
	}
	if !cfg.RecordCreateHistory || cfg.MaxUploadBytes != 1024 || cfg.LogFormat != "json" {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func TestFromEnvRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"bad ttl", map[string]string{"TOKEN_TTL": "tomorrow"}},
		{"bad bool", map[string]string{"RECORD_CREATE_HISTORY": "maybe"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}},
		{"production without secret", map[string]string{"APP_ENV": "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromEnv(env(tt.env)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
