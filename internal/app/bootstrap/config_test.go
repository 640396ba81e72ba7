package bootstrap

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:              "mongodb://localhost:27017",
		StorageType:           "local",
		UploadMaxBytes:        10 << 20,
		IngestTimeout:         30 * time.Second,
		OrphanCleanupInterval: 15 * time.Minute,
		BaseURL:               "http://localhost:8080",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"defaults", func(*AppConfig) {}, false},
		{"unknown storage", func(c *AppConfig) { c.StorageType = "ftp" }, true},
		{"s3 without bucket", func(c *AppConfig) { c.StorageType = "s3" }, true},
		{"s3 with bucket", func(c *AppConfig) { c.StorageType = "s3"; c.StorageS3Bucket = "sheets" }, false},
		{"zero upload limit", func(c *AppConfig) { c.UploadMaxBytes = 0 }, true},
		{"zero ingest timeout", func(c *AppConfig) { c.IngestTimeout = 0 }, true},
		{"zero cleanup interval", func(c *AppConfig) { c.OrphanCleanupInterval = 0 }, true},
		{"cross site over http only warns", func(c *AppConfig) { c.SessionCrossSite = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(nil, cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 0, false},
		{" 2.5 ", 2.5, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRate(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseRate(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestHostOf(t *testing.T) {
	tests := map[string]string{
		"https://app.example.com":       "app.example.com",
		"http://localhost:3000/":        "localhost:3000",
		"https://app.example.com/login": "app.example.com",
		"":                              "",
	}
	for in, want := range tests {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}
