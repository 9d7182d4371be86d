// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// the HTTP listener, logging and security headers; everything below is
// specific to the files manager.
type AppConfig struct {
	// Metadata store. When MongoURI is empty it is built from DBHost and DBPort.
	MongoURI         string
	DBHost           string
	DBPort           int
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session store
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration // token lifetime (default: 24h)

	// Content storage
	StorageType string // "local" or "s3"
	FolderPath  string // local storage root, created if absent

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageCFURL       string
	StorageCFKeyPairID string
	StorageCFKeyPath   string

	// Background jobs
	JobWorkers      int
	JobPollInterval time.Duration
	JobMaxAttempts  int
	JobRetryDelay   time.Duration
	JobTimeout      time.Duration // bound on one handler call; twice this marks a job stale
	JobRetention    time.Duration // completed jobs older than this are purged

	// Login brute-force protection
	RateLimitEnabled       bool
	RateLimitLoginAttempts int
	RateLimitLoginWindow   time.Duration
	RateLimitLoginLockout  time.Duration

	// Welcome email
	MailEnabled  bool
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Browser clients allowed by CORS; empty allows any origin.
	CORSOrigins []string

	// Handler timeouts
	TimeoutPing     time.Duration
	TimeoutShort    time.Duration
	TimeoutMedium   time.Duration
	TimeoutTransfer time.Duration

	// Audit logging: "all" (MongoDB + zap), "db", "log" or "off"
	AuditLogAuth      string
	AuditLogRetention time.Duration
}
