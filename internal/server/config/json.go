package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/campusvault/internal/flagx"
	"github.com/dmitrijs2005/campusvault/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// either a string such as "15s" or integer nanoseconds. Absent or zero
// fields leave the current value alone.
type JsonConfig struct {
	HTTPAddr                     string         `json:"http_addr"`
	GRPCAddr                     string         `json:"grpc_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	AdminEmail                   string         `json:"admin_email"`

	BlobBackend    string         `json:"blob_backend"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	S3PresignTTL   timex.Duration `json:"s3_presign_ttl"`
	MaxUploadBytes int64          `json:"max_upload_bytes"`

	GatewayProvider       string         `json:"gateway_provider"`
	GatewayTimeout        timex.Duration `json:"gateway_timeout"`
	RazorpayKeyID         string         `json:"razorpay_key_id"`
	RazorpayKeySecret     string         `json:"razorpay_key_secret"`
	RazorpayWebhookSecret string         `json:"razorpay_webhook_secret"`
	CallbackURL           string         `json:"callback_url"`
	Currency              string         `json:"currency"`

	SMTPHost        string         `json:"smtp_host"`
	SMTPPort        int            `json:"smtp_port"`
	SMTPUsername    string         `json:"smtp_username"`
	SMTPPassword    string         `json:"smtp_password"`
	SMTPFrom        string         `json:"smtp_from"`
	NotifyWorkers   int            `json:"notify_workers"`
	NotifyQueueSize int            `json:"notify_queue_size"`
	NotifyTimeout   timex.Duration `json:"notify_timeout"`

	QuotaUploadPolicy   string  `json:"quota_upload_policy"`
	QuotaPurchasePolicy string  `json:"quota_purchase_policy"`
	QuotaLowRemaining   int64   `json:"quota_low_remaining"`
	QuotaLowRatio       float64 `json:"quota_low_ratio"`

	UOWMaxAttempts int `json:"uow_max_attempts"`

	SummaryRefreshCron string         `json:"summary_refresh_cron"`
	ReconcileCron      string         `json:"reconcile_cron"`
	ReconcileAfter     timex.Duration `json:"reconcile_after"`
	ReconcileBatch     int            `json:"reconcile_batch"`
	TokenPurgeCron     string         `json:"token_purge_cron"`

	LogBackend string `json:"log_backend"`
	LogLevel   string `json:"log_level"`
}

// parseJSON overlays the file named by -c or -config in args, if any.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)

	// nothing to load
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	str(&config.HTTPAddr, c.HTTPAddr)
	str(&config.GRPCAddr, c.GRPCAddr)
	str(&config.DatabaseDSN, c.DatabaseDSN)
	str(&config.SecretKey, c.SecretKey)
	num(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration.Duration)
	num(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration.Duration)
	str(&config.AdminEmail, c.AdminEmail)

	str(&config.BlobBackend, c.BlobBackend)
	str(&config.S3AccessKey, c.S3AccessKey)
	str(&config.S3SecretKey, c.S3SecretKey)
	str(&config.S3Bucket, c.S3Bucket)
	str(&config.S3Region, c.S3Region)
	str(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	num(&config.S3PresignTTL, c.S3PresignTTL.Duration)
	num(&config.MaxUploadBytes, c.MaxUploadBytes)

	str(&config.GatewayProvider, c.GatewayProvider)
	num(&config.GatewayTimeout, c.GatewayTimeout.Duration)
	str(&config.RazorpayKeyID, c.RazorpayKeyID)
	str(&config.RazorpayKeySecret, c.RazorpayKeySecret)
	str(&config.RazorpayWebhookSecret, c.RazorpayWebhookSecret)
	str(&config.CallbackURL, c.CallbackURL)
	str(&config.Currency, c.Currency)

	str(&config.SMTPHost, c.SMTPHost)
	num(&config.SMTPPort, c.SMTPPort)
	str(&config.SMTPUsername, c.SMTPUsername)
	str(&config.SMTPPassword, c.SMTPPassword)
	str(&config.SMTPFrom, c.SMTPFrom)
	num(&config.NotifyWorkers, c.NotifyWorkers)
	num(&config.NotifyQueueSize, c.NotifyQueueSize)
	num(&config.NotifyTimeout, c.NotifyTimeout.Duration)

	str(&config.QuotaUploadPolicy, c.QuotaUploadPolicy)
	str(&config.QuotaPurchasePolicy, c.QuotaPurchasePolicy)
	num(&config.QuotaLowRemaining, c.QuotaLowRemaining)
	num(&config.QuotaLowRatio, c.QuotaLowRatio)

	num(&config.UOWMaxAttempts, c.UOWMaxAttempts)

	str(&config.SummaryRefreshCron, c.SummaryRefreshCron)
	str(&config.ReconcileCron, c.ReconcileCron)
	num(&config.ReconcileAfter, c.ReconcileAfter.Duration)
	num(&config.ReconcileBatch, c.ReconcileBatch)
	str(&config.TokenPurgeCron, c.TokenPurgeCron)

	str(&config.LogBackend, c.LogBackend)
	str(&config.LogLevel, c.LogLevel)
}

func str(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func num[T ~int | ~int64 | ~float64](dst *T, v T) {
	if v != 0 {
		*dst = v
	}
}
