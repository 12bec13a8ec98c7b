package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/flagx"
	"github.com/dmitrijs2005/drivelink/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "90s" and integer nanoseconds are accepted. Absent keys leave the
// current value untouched.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	HealthAddr                  string         `json:"health_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	DBMaxOpenConns              int            `json:"db_max_open_conns"`
	SecretKey                   string         `json:"secret_key"`
	ResetPasswordSecret         string         `json:"reset_password_secret"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ResetTokenValidityDuration  timex.Duration `json:"reset_token_validity_duration"`
	GoogleClientID              string         `json:"google_client_id"`
	GoogleClientSecret          string         `json:"google_client_secret"`
	GoogleRedirectURL           string         `json:"google_redirect_url"`
	TokenInfoURL                string         `json:"token_info_url"`
	UserInfoURL                 string         `json:"user_info_url"`
	RevokeURL                   string         `json:"revoke_url"`
	DriveEndpoint               string         `json:"drive_endpoint"`
	ProviderTimeout             timex.Duration `json:"provider_timeout"`
	ResetPasswordURL            string         `json:"reset_password_url"`
	MailHost                    string         `json:"mail_host"`
	MailPort                    int            `json:"mail_port"`
	MailUser                    string         `json:"mail_user"`
	MailPassword                string         `json:"mail_password"`
	MailFrom                    string         `json:"mail_from"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	S3PresignValidity           timex.Duration `json:"s3_presign_validity"`
	LogBackend                  string         `json:"log_backend"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, into config.
// An unreadable file or invalid JSON panics: the server cannot start with a
// config it was explicitly pointed at but could not read.
func parseJson(config *Config) {
	path := flagx.ConfigPath()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.HealthAddr, c.HealthAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setInt(&config.DBMaxOpenConns, c.DBMaxOpenConns)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.ResetPasswordSecret, c.ResetPasswordSecret)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration)
	setString(&config.GoogleClientID, c.GoogleClientID)
	setString(&config.GoogleClientSecret, c.GoogleClientSecret)
	setString(&config.GoogleRedirectURL, c.GoogleRedirectURL)
	setString(&config.TokenInfoURL, c.TokenInfoURL)
	setString(&config.UserInfoURL, c.UserInfoURL)
	setString(&config.RevokeURL, c.RevokeURL)
	setString(&config.DriveEndpoint, c.DriveEndpoint)
	setDuration(&config.ProviderTimeout, c.ProviderTimeout)
	setString(&config.ResetPasswordURL, c.ResetPasswordURL)
	setString(&config.MailHost, c.MailHost)
	setInt(&config.MailPort, c.MailPort)
	setString(&config.MailUser, c.MailUser)
	setString(&config.MailPassword, c.MailPassword)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.S3PresignValidity, c.S3PresignValidity)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
