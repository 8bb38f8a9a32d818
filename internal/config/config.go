package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Push providers accepted by PUSH_PROVIDER.
const (
	PushProviderFCM = "fcm"
	PushProviderSNS = "sns"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT,default=3000"`
	AppEnv   string `env:"APP_ENV,default=development"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	AWSRegion      string `env:"AWS_REGION,default=us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`

	NotificationsTable string `env:"DYNAMO_TABLE_NOTIFICATIONS,default=notifications"`
	DynamoBootstrap    bool   `env:"DYNAMO_BOOTSTRAP,default=false"`

	PushProvider              string `env:"PUSH_PROVIDER,default=fcm"`
	FirebaseProjectID         string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile   string `env:"FIREBASE_CREDENTIALS_FILE"`
	SNSRegion                 string `env:"SNS_REGION,default=us-east-1"`
	SNSPlatformApplicationARN string `env:"SNS_PLATFORM_APPLICATION_ARN"`
	AndroidChannelID          string `env:"ANDROID_CHANNEL_ID,default=transfer_notifications"`

	RetentionDays      int    `env:"RETENTION_DAYS,default=30"`
	SweepIntervalHours int    `env:"SWEEP_INTERVAL_HOURS,default=24"`
	SweepOnStart       bool   `env:"SWEEP_ON_START,default=false"`
	ArchiveBucket      string `env:"ARCHIVE_BUCKET"`

	StreamEnabled             bool   `env:"STREAM_ENABLED,default=true"`
	StreamIteratorType        string `env:"STREAM_ITERATOR_TYPE,default=LATEST"`
	StreamPollIntervalMs      int    `env:"STREAM_POLL_INTERVAL_MS,default=1000"`
	StreamShardRefreshSeconds int    `env:"STREAM_SHARD_REFRESH_SECONDS,default=60"`
	StreamHandlerAttempts     int    `env:"STREAM_HANDLER_ATTEMPTS,default=1"`

	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,default=./public_key.pem"`
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"` // only needed to mint tokens
	JWTExpiryHours    int    `env:"JWT_EXPIRY_HOURS,default=24"`

	AllowedOriginsRaw string  `env:"ALLOWED_ORIGINS,default=*"`
	EventRateLimit    float64 `env:"EVENT_RATE_LIMIT,default=50"`
	EventRateBurst    int     `env:"EVENT_RATE_BURST,default=100"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.PushProvider = strings.ToLower(strings.TrimSpace(c.PushProvider))
	switch c.PushProvider {
	case PushProviderFCM:
	case PushProviderSNS:
		if c.SNSPlatformApplicationARN == "" {
			return fmt.Errorf("SNS_PLATFORM_APPLICATION_ARN is required when PUSH_PROVIDER=sns")
		}
	default:
		return fmt.Errorf("unknown PUSH_PROVIDER %q", c.PushProvider)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	if c.SweepIntervalHours <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_HOURS must be positive, got %d", c.SweepIntervalHours)
	}
	c.StreamIteratorType = strings.ToUpper(strings.TrimSpace(c.StreamIteratorType))
	if c.StreamIteratorType != "LATEST" && c.StreamIteratorType != "TRIM_HORIZON" {
		return fmt.Errorf("STREAM_ITERATOR_TYPE must be LATEST or TRIM_HORIZON, got %q", c.StreamIteratorType)
	}
	return nil
}

// Retention is the age after which notification records are purged.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalHours) * time.Hour
}

func (c *Config) StreamPollInterval() time.Duration {
	return time.Duration(c.StreamPollIntervalMs) * time.Millisecond
}

func (c *Config) StreamShardRefresh() time.Duration {
	return time.Duration(c.StreamShardRefreshSeconds) * time.Second
}

func (c *Config) JWTExpiry() time.Duration {
	return time.Duration(c.JWTExpiryHours) * time.Hour
}

// AllowedOrigins returns the CORS allowed origins.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOriginsRaw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
