package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

const (
	// DefaultBaseURL is the production Active24 REST API endpoint
	DefaultBaseURL = "https://rest.active24.cz"

	// SandboxBaseURL is the Active24 sandbox endpoint for testing
	SandboxBaseURL = "https://sandboxapi.active24.com"

	// DefaultCredentialsPath mirrors the path certbot installations use
	DefaultCredentialsPath = "/etc/letsencrypt/active24.ini"
)

// Config holds all authenticator configuration
type Config struct {
	APIKey  string
	Secret  string
	BaseURL string
	Sandbox bool

	// TTL for created challenge TXT records, in seconds
	TTL int

	// PropagationTimeoutSec bounds the wait for the TXT record to appear
	// on all authoritative nameservers. Zero means wait up to one hour.
	PropagationTimeoutSec int

	// PollingIntervalSec is the delay between propagation probes
	PollingIntervalSec int

	// HTTPTimeoutSec bounds individual Active24 API calls
	HTTPTimeoutSec int

	// Nameservers, when set, are queried instead of the discovered
	// authoritative servers (host or host:port entries)
	Nameservers []string

	// SkipPropagationCheck returns from Present as soon as the record
	// is created, leaving propagation waiting to the host framework
	SkipPropagationCheck bool

	LogLevel string
}

// Load loads configuration from environment variables. A .env file in
// the working directory is honored if present. When ACTIVE24_CREDENTIALS
// points at an INI file, values are loaded from it with environment
// variables taking precedence.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	if path := getEnv("ACTIVE24_CREDENTIALS", ""); path != "" {
		return LoadFromINI(path)
	}

	cfg := &Config{
		APIKey:                getEnv("ACTIVE24_API_KEY", ""),
		Secret:                getEnv("ACTIVE24_SECRET", ""),
		BaseURL:               getEnv("ACTIVE24_BASE_URL", ""),
		Sandbox:               getEnv("ACTIVE24_SANDBOX", "0") == "1",
		TTL:                   getEnvInt("ACTIVE24_TTL", 300),
		PropagationTimeoutSec: getEnvInt("ACTIVE24_PROPAGATION_TIMEOUT_SEC", 300),
		PollingIntervalSec:    getEnvInt("ACTIVE24_POLLING_INTERVAL_SEC", 5),
		HTTPTimeoutSec:        getEnvInt("ACTIVE24_HTTP_TIMEOUT_SEC", 10),
		Nameservers:           splitList(getEnv("ACTIVE24_NAMESERVERS", "")),
		SkipPropagationCheck:  getEnv("ACTIVE24_SKIP_PROPAGATION_CHECK", "0") == "1",
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}

	return finalize(cfg)
}

// LoadFromINI loads configuration from an INI credentials file with
// environment variable override. The file layout matches the certbot
// plugin's /etc/letsencrypt/active24.ini:
//
//	[active24]
//	api_key = ...
//	secret  = ...
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials file: %w", err)
	}

	section := cfgFile.Section("active24")

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := section.Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if section.HasKey(iniKey) {
			if value, err := section.Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := section.Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		APIKey:                getValue("ACTIVE24_API_KEY", "api_key", ""),
		Secret:                getValue("ACTIVE24_SECRET", "secret", ""),
		BaseURL:               getValue("ACTIVE24_BASE_URL", "base_url", ""),
		Sandbox:               getValueBool("ACTIVE24_SANDBOX", "sandbox", false),
		TTL:                   getValueInt("ACTIVE24_TTL", "ttl", 300),
		PropagationTimeoutSec: getValueInt("ACTIVE24_PROPAGATION_TIMEOUT_SEC", "propagation_timeout_sec", 300),
		PollingIntervalSec:    getValueInt("ACTIVE24_POLLING_INTERVAL_SEC", "polling_interval_sec", 5),
		HTTPTimeoutSec:        getValueInt("ACTIVE24_HTTP_TIMEOUT_SEC", "http_timeout_sec", 10),
		Nameservers:           splitList(getValue("ACTIVE24_NAMESERVERS", "nameservers", "")),
		SkipPropagationCheck:  getValueBool("ACTIVE24_SKIP_PROPAGATION_CHECK", "skip_propagation_check", false),
		LogLevel:              getValue("LOG_LEVEL", "log_level", "info"),
	}

	return finalize(cfg)
}

// finalize resolves the base URL and validates required fields
func finalize(cfg *Config) (*Config, error) {
	if cfg.BaseURL == "" {
		if cfg.Sandbox {
			cfg.BaseURL = SandboxBaseURL
		} else {
			cfg.BaseURL = DefaultBaseURL
		}
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ACTIVE24_API_KEY is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("ACTIVE24_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
