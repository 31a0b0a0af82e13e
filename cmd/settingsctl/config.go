package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "SETTINGS_"

type cliConfig struct {
	HomeserverURL         string
	IdentityServerURL     string
	AccessToken           string
	UserID                string
	IdentityToken         string
	DatabaseDriver        string
	DatabaseDSN           string
	LogLevel              string
	LogFormat             string
	RequestTimeout        time.Duration
	RequireDistinctSecret bool
}

// loadConfig reads SETTINGS_* variables, after loading envFile (default
// .env) when it exists.
func loadConfig(envFile string) (cliConfig, error) {
	if strings.TrimSpace(envFile) == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return cliConfig{}, err
		}
	}

	cfg := cliConfig{
		HomeserverURL:     getenv("HOMESERVER_URL"),
		IdentityServerURL: getenv("IDENTITY_SERVER_URL"),
		AccessToken:       getenv("ACCESS_TOKEN"),
		UserID:            getenv("USER_ID"),
		IdentityToken:     getenv("IDENTITY_TOKEN"),
		DatabaseDriver:    getenvDefault("DATABASE_DRIVER", "sqlite3"),
		DatabaseDSN:       getenv("DATABASE_DSN"),
		LogLevel:          getenvDefault("LOG_LEVEL", "warn"),
		LogFormat:         getenvDefault("LOG_FORMAT", "text"),
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cliConfig{}, fmt.Errorf("%sREQUEST_TIMEOUT: invalid duration %q", envPrefix, v)
		}
		cfg.RequestTimeout = d
	}
	if v := getenv("REQUIRE_DISTINCT_SECRET"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cliConfig{}, fmt.Errorf("%sREQUIRE_DISTINCT_SECRET: invalid bool %q", envPrefix, v)
		}
		cfg.RequireDistinctSecret = b
	}
	return cfg, nil
}

func (c cliConfig) requireHomeserver() error {
	var missing []string
	if c.HomeserverURL == "" {
		missing = append(missing, envPrefix+"HOMESERVER_URL")
	}
	if c.AccessToken == "" {
		missing = append(missing, envPrefix+"ACCESS_TOKEN")
	}
	if c.UserID == "" {
		missing = append(missing, envPrefix+"USER_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c cliConfig) requireDatabase() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("missing required configuration: %sDATABASE_DSN", envPrefix)
	}
	return nil
}

// settingsValues is the raw core.Config layer fed to the service config
// provider.
func (c cliConfig) settingsValues() map[string]any {
	values := map[string]any{
		"credential": map[string]any{
			"require_distinct_secret": c.RequireDistinctSecret,
		},
	}
	if c.RequestTimeout > 0 {
		values["transport"] = map[string]any{
			"request_timeout": c.RequestTimeout,
		}
	}
	return values
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func getenvDefault(key string, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}
