package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/zimbuild/sitebackend/internal/httpapi"
	"github.com/zimbuild/sitebackend/internal/storage"
)

const (
	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyPort               = "PORT"
	environmentKeyEnvironment        = "APP_ENV"
	environmentKeyCORSOrigin         = "CORS_ORIGIN"
	environmentKeyStorageMode        = "STORAGE_MODE"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyJWTSecret          = "JWT_SECRET"
	environmentKeyJWTExpiresIn       = "JWT_EXPIRES_IN"
	environmentKeyAuthEnforce        = "AUTH_ENFORCE"
	environmentKeySMTPHost           = "SMTP_HOST"
	environmentKeySMTPPort           = "SMTP_PORT"
	environmentKeySMTPUsername       = "SMTP_USERNAME"
	environmentKeySMTPPassword       = "SMTP_PASSWORD"
	environmentKeySMTPFrom           = "SMTP_FROM"
	environmentKeyUploadDirectory    = "UPLOAD_DIR"
	environmentKeyRateLimitWindow    = "RATE_LIMIT_WINDOW"
	environmentKeyRateLimitMax       = "RATE_LIMIT_MAX"

	flagNameApplicationAddress = "app-addr"
	flagNamePort               = "port"
	flagNameEnvironment        = "env"
	flagNameCORSOrigin         = "cors-origin"
	flagNameStorageMode        = "storage-mode"
	flagNameDatabaseDriver     = "db-driver"
	flagNameDatabaseDataSource = "db-dsn"
	flagNameJWTSecret          = "jwt-secret"
	flagNameJWTExpiresIn       = "jwt-expires-in"
	flagNameAuthEnforce        = "auth-enforce"
	flagNameSMTPHost           = "smtp-host"
	flagNameSMTPPort           = "smtp-port"
	flagNameSMTPUsername       = "smtp-username"
	flagNameSMTPPassword       = "smtp-password"
	flagNameSMTPFrom           = "smtp-from"
	flagNameUploadDirectory    = "upload-dir"
	flagNameRateLimitWindow    = "rate-limit-window"
	flagNameRateLimitMax       = "rate-limit-max"

	defaultPort            = "5000"
	defaultEnvironment     = "development"
	defaultCORSOrigin      = "http://localhost:3000"
	defaultStorageMode     = storage.ModeDatabase
	defaultDatabaseDriver  = storage.DriverNameSQLite
	defaultJWTExpiresIn    = "7d"
	defaultAuthEnforce     = true
	defaultSMTPPort        = 587
	defaultUploadDirectory = "uploads"

	environmentProduction = "production"

	missingConfigurationMessage   = "missing required configuration"
	invalidConfigurationMessage   = "invalid configuration"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress string
	Environment        string
	CORSOrigins        []string
	Storage            storage.Settings
	JWTSecret          string
	JWTExpiresIn       time.Duration
	AuthEnforce        bool
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	SMTPFrom           string
	UploadDirectory    string
	RateLimitWindow    time.Duration
	RateLimitMax       int
}

// Production reports whether the server runs with production defaults.
func (configuration ServerConfig) Production() bool {
	return configuration.Environment == environmentProduction
}

type configurationFlag struct {
	environmentKey string
	flagName       string
	usage          string
	define         func(flagSet *pflag.FlagSet, name string, usage string)
}

func stringFlag(defaultValue string) func(*pflag.FlagSet, string, string) {
	return func(flagSet *pflag.FlagSet, name string, usage string) {
		flagSet.String(name, defaultValue, usage)
	}
}

var configurationFlags = []configurationFlag{
	{environmentKeyApplicationAddress, flagNameApplicationAddress, "address for the HTTP server to listen on; overrides --port", stringFlag("")},
	{environmentKeyPort, flagNamePort, "port for the HTTP server when no address is set", stringFlag(defaultPort)},
	{environmentKeyEnvironment, flagNameEnvironment, "deployment environment name", stringFlag(defaultEnvironment)},
	{environmentKeyCORSOrigin, flagNameCORSOrigin, "comma separated origins allowed to call the API", stringFlag(defaultCORSOrigin)},
	{environmentKeyStorageMode, flagNameStorageMode, "record storage: memory or database", stringFlag(defaultStorageMode)},
	{environmentKeyDatabaseDriver, flagNameDatabaseDriver, "database driver: sqlite or postgres", stringFlag(defaultDatabaseDriver)},
	{environmentKeyDatabaseDataSource, flagNameDatabaseDataSource, "database connection string", stringFlag("")},
	{environmentKeyJWTSecret, flagNameJWTSecret, "secret used to sign bearer tokens", stringFlag("")},
	{environmentKeyJWTExpiresIn, flagNameJWTExpiresIn, "bearer token lifetime such as 7d or 12h", stringFlag(defaultJWTExpiresIn)},
	{environmentKeyAuthEnforce, flagNameAuthEnforce, "require bearer tokens on protected routes", func(flagSet *pflag.FlagSet, name string, usage string) {
		flagSet.Bool(name, defaultAuthEnforce, usage)
	}},
	{environmentKeySMTPHost, flagNameSMTPHost, "SMTP relay host; confirmations are logged when empty", stringFlag("")},
	{environmentKeySMTPPort, flagNameSMTPPort, "SMTP relay port", func(flagSet *pflag.FlagSet, name string, usage string) {
		flagSet.Int(name, defaultSMTPPort, usage)
	}},
	{environmentKeySMTPUsername, flagNameSMTPUsername, "SMTP username", stringFlag("")},
	{environmentKeySMTPPassword, flagNameSMTPPassword, "SMTP password", stringFlag("")},
	{environmentKeySMTPFrom, flagNameSMTPFrom, "sender address of outgoing mail", stringFlag("")},
	{environmentKeyUploadDirectory, flagNameUploadDirectory, "directory uploaded files are stored in", stringFlag(defaultUploadDirectory)},
	{environmentKeyRateLimitWindow, flagNameRateLimitWindow, "rate limiting window", func(flagSet *pflag.FlagSet, name string, usage string) {
		flagSet.Duration(name, httpapi.DefaultRateWindow, usage)
	}},
	{environmentKeyRateLimitMax, flagNameRateLimitMax, "requests allowed per IP per window", func(flagSet *pflag.FlagSet, name string, usage string) {
		flagSet.Int(name, httpapi.DefaultRateMax, usage)
	}},
}

func (application *ServerApplication) configureFlags(flagSet *pflag.FlagSet) error {
	application.configurationLoader.AutomaticEnv()
	for _, flag := range configurationFlags {
		flag.define(flagSet, flag.flagName, flag.usage)
		if bindErr := application.bindFlag(flagSet, flag.environmentKey, flag.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(flagSet, flag.environmentKey, flag.flagName); environmentErr != nil {
			return environmentErr
		}
	}
	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) loadConfiguration() (ServerConfig, error) {
	loader := application.configurationLoader

	address := strings.TrimSpace(loader.GetString(environmentKeyApplicationAddress))
	if address == "" {
		address = ":" + strings.TrimSpace(loader.GetString(environmentKeyPort))
	}
	tokenLifetime, lifetimeErr := parseLifetime(loader.GetString(environmentKeyJWTExpiresIn))
	if lifetimeErr != nil {
		return ServerConfig{}, fmt.Errorf("%s: %s: %w", invalidConfigurationMessage, flagNameJWTExpiresIn, lifetimeErr)
	}

	configuration := ServerConfig{
		ApplicationAddress: address,
		Environment:        strings.ToLower(strings.TrimSpace(loader.GetString(environmentKeyEnvironment))),
		CORSOrigins:        splitList(loader.GetString(environmentKeyCORSOrigin)),
		Storage: storage.Settings{
			Mode: strings.ToLower(strings.TrimSpace(loader.GetString(environmentKeyStorageMode))),
			Database: storage.Config{
				DriverName:     strings.ToLower(strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver))),
				DataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDataSource)),
			},
		},
		JWTSecret:       strings.TrimSpace(loader.GetString(environmentKeyJWTSecret)),
		JWTExpiresIn:    tokenLifetime,
		AuthEnforce:     loader.GetBool(environmentKeyAuthEnforce),
		SMTPHost:        strings.TrimSpace(loader.GetString(environmentKeySMTPHost)),
		SMTPPort:        loader.GetInt(environmentKeySMTPPort),
		SMTPUsername:    strings.TrimSpace(loader.GetString(environmentKeySMTPUsername)),
		SMTPPassword:    loader.GetString(environmentKeySMTPPassword),
		SMTPFrom:        strings.TrimSpace(loader.GetString(environmentKeySMTPFrom)),
		UploadDirectory: strings.TrimSpace(loader.GetString(environmentKeyUploadDirectory)),
		RateLimitWindow: loader.GetDuration(environmentKeyRateLimitWindow),
		RateLimitMax:    loader.GetInt(environmentKeyRateLimitMax),
	}
	return configuration, nil
}

func ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.AuthEnforce && configuration.JWTSecret == "" {
		missingParameters = append(missingParameters, flagNameJWTSecret)
	}

	if configuration.Storage.Mode != storage.ModeMemory && configuration.Storage.Database.DataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSource)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

// parseLifetime reads Go durations and whole days written as "<n>d".
func parseLifetime(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	if days, found := strings.CutSuffix(trimmed, "d"); found {
		count, err := strconv.Atoi(days)
		if err != nil || count <= 0 {
			return 0, fmt.Errorf("invalid day count %q", raw)
		}
		return time.Duration(count) * 24 * time.Hour, nil
	}
	return time.ParseDuration(trimmed)
}

func splitList(raw string) []string {
	values := make([]string, 0)
	for _, value := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
