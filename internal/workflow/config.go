package workflow

import (
	"os"
	"strconv"
	"time"
)

// Config bounds the workflow's local checks and stage durations. A zero
// timeout leaves the stage bounded only by the gateway and the caller.
type Config struct {
	MaxUploadBytes  int64
	UploadTimeout   time.Duration
	ScanTimeout     time.Duration
	GenerateTimeout time.Duration
	LoadTimeout     time.Duration
	SubmitTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxUploadBytes:  20 << 20,
		UploadTimeout:   2 * time.Minute,
		ScanTimeout:     30 * time.Second,
		GenerateTimeout: 3 * time.Minute,
		LoadTimeout:     30 * time.Second,
		SubmitTimeout:   30 * time.Second,
	}
}

// LoadConfig reads workflow limits from the environment, keeping defaults
// for unset or unparsable values.
func LoadConfig() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("STUDYGEN_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n << 20
		}
	}
	envMillis("STUDYGEN_UPLOAD_TIMEOUT_MS", &cfg.UploadTimeout)
	envMillis("STUDYGEN_SCAN_TIMEOUT_MS", &cfg.ScanTimeout)
	envMillis("STUDYGEN_GENERATE_TIMEOUT_MS", &cfg.GenerateTimeout)
	envMillis("STUDYGEN_LOAD_TIMEOUT_MS", &cfg.LoadTimeout)
	envMillis("STUDYGEN_SUBMIT_TIMEOUT_MS", &cfg.SubmitTimeout)

	return cfg
}

func envMillis(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		*dst = time.Duration(n) * time.Millisecond
	}
}

func (c Config) timeout(s Stage) time.Duration {
	switch s {
	case StageUploading:
		return c.UploadTimeout
	case StageScanning:
		return c.ScanTimeout
	case StageGenerating:
		return c.GenerateTimeout
	case StageLoadingTest:
		return c.LoadTimeout
	case StageSubmitting:
		return c.SubmitTimeout
	}
	return 0
}
