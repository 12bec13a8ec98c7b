package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Short flags follow the historical layout:
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      login token validity, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name (enables download staging)
//	-e string   S3 base endpoint
//
// Everything else uses long names, e.g. -client-id, -redirect-uri, -health-addr.
// Only flags defined here are picked out of os.Args (see flagx.FilterArgs).
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.HealthAddr, "health-addr", config.HealthAddr, "gRPC health service address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.DBMaxOpenConns, "db-max-conns", config.DBMaxOpenConns, "database pool size")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.ResetPasswordSecret, "reset-secret", config.ResetPasswordSecret, "password reset token secret")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "login token validity (in minutes)")
	resetTokenValidity := fs.Int("reset-validity", int(config.ResetTokenValidityDuration.Minutes()), "reset token validity (in minutes)")

	fs.StringVar(&config.GoogleClientID, "client-id", config.GoogleClientID, "OAuth client id")
	fs.StringVar(&config.GoogleClientSecret, "client-secret", config.GoogleClientSecret, "OAuth client secret")
	fs.StringVar(&config.GoogleRedirectURL, "redirect-uri", config.GoogleRedirectURL, "OAuth redirect URI")
	fs.StringVar(&config.ResetPasswordURL, "reset-url", config.ResetPasswordURL, "password reset page URL")

	fs.StringVar(&config.MailHost, "mail-host", config.MailHost, "SMTP host")
	fs.IntVar(&config.MailPort, "mail-port", config.MailPort, "SMTP port")
	fs.StringVar(&config.MailUser, "mail-user", config.MailUser, "SMTP user")
	fs.StringVar(&config.MailPassword, "mail-password", config.MailPassword, "SMTP password")
	fs.StringVar(&config.MailFrom, "mail-from", config.MailFrom, "sender address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket for staged downloads")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "slog or zap")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error")

	args := flagx.FilterArgs(os.Args[1:], flagx.Names(fs))
	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.ResetTokenValidityDuration = time.Duration(*resetTokenValidity) * time.Minute
}
