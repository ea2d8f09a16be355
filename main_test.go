package main

import "testing"

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "CORS_ALLOWED_ORIGINS", "PUBLIC_BASE_URL", "UPLOAD_DIR", "MAX_UPLOAD_SIZE"} {
		t.Setenv(key, "")
	}

	cfg := loadConfig()

	if cfg.port != 5000 {
		t.Errorf("port = %d, want 5000", cfg.port)
	}
	if cfg.allowedOrigins != "*" {
		t.Errorf("allowedOrigins = %q, want *", cfg.allowedOrigins)
	}
	if cfg.publicBaseURL != "http://localhost:5000" {
		t.Errorf("publicBaseURL = %q", cfg.publicBaseURL)
	}
	if cfg.uploadDir != "./uploads" {
		t.Errorf("uploadDir = %q", cfg.uploadDir)
	}
	if cfg.maxUploadSize != 10*1024*1024 {
		t.Errorf("maxUploadSize = %d", cfg.maxUploadSize)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("WS_MESSAGE_BURST", "not-a-number")

	cfg := loadConfig()

	if cfg.port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.port)
	}
	if cfg.publicBaseURL != "http://localhost:8080" {
		t.Errorf("publicBaseURL = %q", cfg.publicBaseURL)
	}
	if cfg.messageBurst != 200 {
		t.Errorf("messageBurst = %d, want default 200", cfg.messageBurst)
	}
}
