// 文件路径: internal/config/loader.go
// 模块说明: 基于 viper 加载配置文件、环境变量与 .env，并做校验。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/creamcroissant/apiserver/internal/cors"
)

// EnvPrefix prefixes every structured environment variable (APISERVER_LOG_LEVEL, ...).
const EnvPrefix = "APISERVER"

// envAliases lists the unprefixed names kept for deployments that predate the prefix.
var envAliases = map[string][]string{
	"cors.origins":  {EnvPrefix + "_CORS_ORIGINS", "CORS_ORIGIN"},
	"http.port":     {EnvPrefix + "_HTTP_PORT", "PORT"},
	"log.level":     {EnvPrefix + "_LOG_LEVEL", "LOG_LEVEL"},
	"log.format":    {EnvPrefix + "_LOG_FORMAT", "LOG_FORMAT"},
	"metrics.token": {EnvPrefix + "_METRICS_TOKEN", "METRICS_TOKEN"},
}

// Load resolves configuration from defaults, an optional YAML file, .env
// files and the environment, in increasing priority. configFile may be empty
// to search the default locations.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/apiserver/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := loadDotEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch cors.SuffixMatch(c.CORS.SuffixMatch) {
	case cors.MatchContains, cors.MatchHostSuffix:
	default:
		return fmt.Errorf("cors.suffix_match: unknown mode %q", c.CORS.SuffixMatch)
	}
	if c.Body.MaxBytes <= 0 {
		return fmt.Errorf("body.max_bytes must be positive, got %d", c.Body.MaxBytes)
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.Limit <= 0 {
		return fmt.Errorf("security.rate_limit.limit must be positive when enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("http.port", "")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("http.listen_retry", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "production")

	v.SetDefault("cors.defaults", cors.DefaultOrigins)
	v.SetDefault("cors.origins", []string{})
	v.SetDefault("cors.trusted_suffix", cors.DefaultTrustedSuffix)
	v.SetDefault("cors.suffix_match", string(cors.MatchContains))
	v.SetDefault("cors.max_age", 0)
	v.SetDefault("cors.skip_paths", []string{"/health", "/metrics"})

	v.SetDefault("body.max_bytes", 100*1024)
	v.SetDefault("body.parameter_limit", 1000)
	v.SetDefault("body.depth", 5)
	v.SetDefault("body.skip_paths", []string{"/health", "/metrics"})

	v.SetDefault("security.content_security_policy", "")
	v.SetDefault("security.hsts_seconds", 15552000)
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.limit", 300)
	v.SetDefault("security.rate_limit.window", "1m")
	v.SetDefault("security.rate_limit.skip_paths", []string{"/health", "/metrics"})

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "apiserver")
	v.SetDefault("metrics.subsystem", "http")
	v.SetDefault("metrics.token", "")
}

func loadDotEnv(v *viper.Viper) error {
	candidates := []string{".", ".."}
	for _, path := range candidates {
		file := filepath.Clean(filepath.Join(path, ".env"))
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat .env: %w", err)
		}

		// Separate instance so .env keys never collide with structured keys.
		envViper := viper.New()
		envViper.SetConfigFile(file)
		envViper.SetConfigType("env")
		if err := envViper.ReadInConfig(); err != nil {
			return fmt.Errorf("read .env: %w", err)
		}
		bindLegacyEnv(v, envViper)
	}
	return nil
}

// bindLegacyEnv maps flat .env keys onto the structured ones. viper.Set
// outranks the environment, so keys already exported are skipped.
func bindLegacyEnv(target *viper.Viper, source *viper.Viper) {
	mappings := map[string]string{
		"CORS_ORIGIN":      "cors.origins",
		"PORT":             "http.port",
		"HTTP_ADDR":        "http.addr",
		"SHUTDOWN_TIMEOUT": "http.shutdown_timeout",
		"LOG_LEVEL":        "log.level",
		"LOG_FORMAT":       "log.format",
		"APP_ENV":          "log.environment",
		"METRICS_TOKEN":    "metrics.token",
	}

	for oldKey, newKey := range mappings {
		if val := source.GetString(oldKey); val != "" {
			if isEnvSet(newKey) {
				continue
			}
			target.Set(newKey, val)
		}
	}
}

func isEnvSet(key string) bool {
	names, ok := envAliases[key]
	if !ok {
		names = []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	}
	for _, name := range names {
		if _, ok := os.LookupEnv(name); ok {
			return true
		}
	}
	return false
}
