package webhookarchive

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/DocuChat/internal/pkg/env"
)

// Config holds the webhook archive bucket configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	Enabled         bool
}

// LoadConfig loads the archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Prefix:          strings.Trim(env.GetEnv("S3_ARCHIVE_PREFIX", "webhooks/stripe"), "/"),
		Enabled:         env.GetEnvBool("S3_ARCHIVE_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when the webhook archive is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when the webhook archive is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when the webhook archive is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if archiving is switched on
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey builds the key for one delivery.
// Format: <prefix>/YYYY/MM/DD/<event type>/<event id>.json
func (c *Config) ObjectKey(eventID, eventType string, at time.Time) string {
	at = at.UTC()
	eventType = sanitizeSegment(eventType, "unknown")
	eventID = sanitizeSegment(eventID, fmt.Sprintf("noid-%d", at.UnixNano()))
	key := fmt.Sprintf("%04d/%02d/%02d/%s/%s.json", at.Year(), int(at.Month()), at.Day(), eventType, eventID)
	if c.Prefix == "" {
		return key
	}
	return c.Prefix + "/" + key
}

func sanitizeSegment(s, fallback string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return fallback
	}
	return s
}
