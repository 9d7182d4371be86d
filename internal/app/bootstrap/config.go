// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/filesmanager/internal/app/system/apicors"
	"github.com/dalemusser/filesmanager/internal/app/system/auditlog"
	"github.com/dalemusser/filesmanager/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "FILESMANAGER"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, folder_path, etc.
//   - Environment variables: FILESMANAGER_DB_HOST, FILESMANAGER_FOLDER_PATH, etc.
//   - Command-line flags: --db_host, --folder_path, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "", Desc: "MongoDB connection URI (built from db_host/db_port when empty)"},
	{Name: "db_host", Default: "localhost", Desc: "MongoDB host"},
	{Name: "db_port", Default: 27017, Desc: "MongoDB port"},
	{Name: "db_database", Default: "files_manager", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	// Session store
	{Name: "redis_addr", Default: "localhost:6379", Desc: "Redis address (host:port)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database index"},
	{Name: "session_ttl", Default: "24h", Desc: "Session token lifetime"},

	// Content storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "folder_path", Default: "/tmp/files_manager", Desc: "Local storage folder for file content"},
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "files/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	// Background jobs
	{Name: "job_workers", Default: 3, Desc: "Workers per job queue"},
	{Name: "job_poll_interval", Default: "1s", Desc: "How often idle workers poll for jobs"},
	{Name: "job_max_attempts", Default: 3, Desc: "Attempts before a job is marked failed"},
	{Name: "job_retry_delay", Default: "5s", Desc: "Base delay between attempts (multiplied by attempt count)"},
	{Name: "job_timeout", Default: "5m", Desc: "Maximum run time of one job attempt"},
	{Name: "job_retention", Default: "168h", Desc: "How long completed jobs are kept"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for login attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	// Email/SMTP configuration
	{Name: "mail_enabled", Default: false, Desc: "Send a welcome email on registration"},
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@example.com", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Files Manager", Desc: "From display name"},

	// API surface
	{Name: "cors_origins", Default: "", Desc: "Comma-separated origins allowed by CORS (empty allows any)"},
	{Name: "timeout_ping", Default: "2s", Desc: "Timeout for backing store reachability checks"},
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for token resolution and other single-key lookups"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for metadata reads and writes"},
	{Name: "timeout_transfer", Default: "60s", Desc: "Timeout for requests that move file content"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_retention", Default: "2160h", Desc: "How long audit events are kept"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// FILESMANAGER_* environment variables and flags, with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		DBHost:           appValues.String("db_host"),
		DBPort:           appValues.Int("db_port"),
		MongoDatabase:    appValues.String("db_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),
		SessionTTL:    appValues.Duration("session_ttl", 24*time.Hour),

		StorageType:        appValues.String("storage_type"),
		FolderPath:         appValues.String("folder_path"),
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),

		JobWorkers:      appValues.Int("job_workers"),
		JobPollInterval: appValues.Duration("job_poll_interval", time.Second),
		JobMaxAttempts:  appValues.Int("job_max_attempts"),
		JobRetryDelay:   appValues.Duration("job_retry_delay", 5*time.Second),
		JobTimeout:      appValues.Duration("job_timeout", 5*time.Minute),
		JobRetention:    appValues.Duration("job_retention", 7*24*time.Hour),

		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		MailEnabled:  appValues.Bool("mail_enabled"),
		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		CORSOrigins:     apicors.ParseOrigins(appValues.String("cors_origins")),
		TimeoutPing:     appValues.Duration("timeout_ping", timeouts.DefaultPing),
		TimeoutShort:    appValues.Duration("timeout_short", timeouts.DefaultShort),
		TimeoutMedium:   appValues.Duration("timeout_medium", timeouts.DefaultMedium),
		TimeoutTransfer: appValues.Duration("timeout_transfer", timeouts.DefaultTransfer),

		AuditLogAuth:      appValues.String("audit_log_auth"),
		AuditLogRetention: appValues.Duration("audit_log_retention", 90*24*time.Hour),
	}
	appCfg.MongoURI = mongoURI(appCfg)

	return coreCfg, appCfg, nil
}

// mongoURI returns the configured URI, or one built from host and port.
func mongoURI(cfg AppConfig) string {
	if cfg.MongoURI != "" {
		return cfg.MongoURI
	}
	port := cfg.DBPort
	if port == 0 {
		port = 27017
	}
	return "mongodb://" + cfg.DBHost + ":" + strconv.Itoa(port)
}

// ValidateConfig performs app-specific config validation.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.StorageType {
	case "local", "":
		if appCfg.FolderPath == "" {
			return errors.New("folder_path is required for local storage")
		}
	case "s3":
		if appCfg.StorageS3Bucket == "" {
			return errors.New("storage_s3_bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}

	if appCfg.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %s", appCfg.SessionTTL)
	}
	if appCfg.RedisAddr == "" {
		return errors.New("redis_addr is required")
	}

	for name, d := range map[string]time.Duration{
		"timeout_ping":     appCfg.TimeoutPing,
		"timeout_short":    appCfg.TimeoutShort,
		"timeout_medium":   appCfg.TimeoutMedium,
		"timeout_transfer": appCfg.TimeoutTransfer,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}

	if _, err := auditlog.ParseMode(appCfg.AuditLogAuth); err != nil {
		return fmt.Errorf("audit_log_auth: %w", err)
	}

	return nil
}
