package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultRequestTimeout   = 30 * time.Second
	defaultMaxResponseBytes = 1 << 20 // 1 MiB
)

type IdentityConfig struct {
	TermsNotSignedCode string `koanf:"terms_not_signed_code" mapstructure:"terms_not_signed_code"`
}

type TransportConfig struct {
	RequestTimeout   time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	MaxResponseBytes int64         `koanf:"max_response_bytes" mapstructure:"max_response_bytes"`
}

type CredentialConfig struct {
	RequireDistinctSecret bool `koanf:"require_distinct_secret" mapstructure:"require_distinct_secret"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Identity    IdentityConfig   `koanf:"identity" mapstructure:"identity"`
	Transport   TransportConfig  `koanf:"transport" mapstructure:"transport"`
	Credential  CredentialConfig `koanf:"credential" mapstructure:"credential"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "account-settings",
		Identity: IdentityConfig{
			TermsNotSignedCode: MatrixErrorTermsNotSigned,
		},
		Transport: TransportConfig{
			RequestTimeout:   defaultRequestTimeout,
			MaxResponseBytes: defaultMaxResponseBytes,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Identity.TermsNotSignedCode) == "" {
		return fmt.Errorf("core: identity.terms_not_signed_code is required")
	}
	if c.Transport.RequestTimeout < 0 {
		return fmt.Errorf("core: transport.request_timeout is invalid")
	}
	if c.Transport.MaxResponseBytes < 0 {
		return fmt.Errorf("core: transport.max_response_bytes is invalid")
	}
	return nil
}
