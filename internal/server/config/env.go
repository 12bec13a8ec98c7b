package config

import (
	"os"
	"strconv"
)

// parseEnv overlays the variables the deployment sets through its .env file.
// PORT only carries a port number and is turned into ":PORT".
func parseEnv(config *Config) {
	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		config.HTTPAddr = ":" + port
	}

	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "JWT_SECRET")
	envString(&config.ResetPasswordSecret, "RESET_PASSWORD_SECRET")
	envString(&config.GoogleClientID, "CLIENT_ID")
	envString(&config.GoogleClientSecret, "CLIENT_SECRET")
	envString(&config.GoogleRedirectURL, "REDIRECT_URI")
	envString(&config.MailHost, "MAIL_HOST")
	envString(&config.MailUser, "MAIL_USER")
	envString(&config.MailPassword, "MAIL_PASSWORD")
	envString(&config.MailFrom, "MAIL_FROM")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.LogBackend, "LOG_BACKEND")
	envString(&config.LogLevel, "LOG_LEVEL")

	if v, ok := os.LookupEnv("MAIL_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			config.MailPort = port
		}
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
