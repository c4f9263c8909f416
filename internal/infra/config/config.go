package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Agent     AgentConfig     `yaml:"agent"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	// DefaultProvider is used when a caller names no provider. Empty means
	// "walk Priority".
	DefaultProvider string `yaml:"default_provider"`
	// Priority lists provider types in resolution order.
	Priority []string `yaml:"priority"`
	// LocalFallback registers a local OpenAI-compatible provider even when
	// no local entry is configured.
	LocalFallback  bool                 `yaml:"local_fallback"`
	Providers      []ProviderConfig     `yaml:"providers"`
	Failover       FailoverConfig       `yaml:"failover"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

// FailoverConfig holds model failover settings.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// RetryConfig controls retries of retryable provider failures. MaxRetries 0
// disables retrying.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	JitterFraction float64       `yaml:"jitter_fraction"`
}

// RateLimitConfig is a per-provider token bucket. RequestsPerSecond 0 disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name           string        `yaml:"name"`
	Type           string        `yaml:"type"`
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model,omitempty"`
	Region         string        `yaml:"region,omitempty"`
	ConnTimeout    time.Duration `yaml:"conn_timeout"`
	RespTimeout    time.Duration `yaml:"resp_timeout"`
	Pool           PoolConfig    `yaml:"pool"`
}

// EmbeddingConfig selects a dedicated embedding backend. When Provider is
// empty each LLM provider embeds with its own native endpoint.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "ollama", "gemini", ""
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	CacheSize int    `yaml:"cache_size"`
}

// AgentConfig holds conversation agent settings.
type AgentConfig struct {
	Provider       string        `yaml:"provider"`
	HistoryLimit   int           `yaml:"history_limit"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"`
	SessionIdleTTL time.Duration `yaml:"session_idle_ttl"`
}

// AnalyticsConfig exposes the trend and risk heuristics' calibration constants.
// These are placeholders pending clinical review, not validated thresholds.
type AnalyticsConfig struct {
	SlopeThreshold         float64       `yaml:"slope_threshold"`
	MinTrendSamples        int           `yaml:"min_trend_samples"`
	MaxWindow              int           `yaml:"max_window"`
	MinRollingRows         int           `yaml:"min_rolling_rows"`
	SlopePoints            int           `yaml:"slope_points"`
	MinRiskSamples         int           `yaml:"min_risk_samples"`
	RiskWindow             int           `yaml:"risk_window"`
	HighRiskThreshold      float64       `yaml:"high_risk_threshold"`
	ModerateRiskThreshold  float64       `yaml:"moderate_risk_threshold"`
	HighRiskConfidence     float64       `yaml:"high_risk_confidence"`
	ModerateRiskConfidence float64       `yaml:"moderate_risk_confidence"`
	LowRiskConfidence      float64       `yaml:"low_risk_confidence"`
	NarrativeSamples       int           `yaml:"narrative_samples"`
	NarrativeTimeout       time.Duration `yaml:"narrative_timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout", "otlp", "noop"
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Priority:      []string{"openai", "anthropic", "local"},
			LocalFallback: true,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			Retry: RetryConfig{
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
				BackoffFactor:  2.0,
				JitterFraction: 0.1,
			},
		},
		Embedding: EmbeddingConfig{
			CacheSize: 1000,
		},
		Agent: AgentConfig{
			HistoryLimit:   20,
			MaxTokens:      500,
			Temperature:    0.7,
			Timeout:        120 * time.Second,
			SessionIdleTTL: 30 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			SlopeThreshold:         0.05,
			MinTrendSamples:        5,
			MaxWindow:              5,
			MinRollingRows:         3,
			SlopePoints:            3,
			MinRiskSamples:         10,
			RiskWindow:             5,
			HighRiskThreshold:      5,
			ModerateRiskThreshold:  2,
			HighRiskConfidence:     0.8,
			ModerateRiskConfidence: 0.6,
			LowRiskConfidence:      0.7,
			NarrativeSamples:       10,
			NarrativeTimeout:       60 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("CAREAI_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps CAREAI_* env vars to config fields and adopts the
// conventional OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY and
// LOCAL_LLM_API_URL variables as implicit providers.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CAREAI_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("CAREAI_LLM_PRIORITY"); v != "" {
		cfg.LLM.Priority = splitAndTrim(v, ",")
	}
	if v := os.Getenv("CAREAI_LLM_LOCAL_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LLM.LocalFallback = b
		}
	}
	if v := os.Getenv("CAREAI_LLM_RETRY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv("CAREAI_AGENT_PROVIDER"); v != "" {
		cfg.Agent.Provider = v
	}
	if v := os.Getenv("CAREAI_AGENT_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.HistoryLimit = n
		}
	}
	if v := os.Getenv("CAREAI_ANALYTICS_SLOPE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analytics.SlopeThreshold = f
		}
	}
	if v := os.Getenv("CAREAI_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CAREAI_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("CAREAI_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("CAREAI_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("CAREAI_TRACER_ENDPOINT"); v != "" {
		cfg.Tracer.Endpoint = v
	}

	adoptEnvProvider(cfg, "openai", "openai", os.Getenv("OPENAI_API_KEY"), "")
	adoptEnvProvider(cfg, "anthropic", "anthropic", os.Getenv("ANTHROPIC_API_KEY"), "")
	adoptEnvProvider(cfg, "gemini", "gemini", os.Getenv("GEMINI_API_KEY"), "")
	if v := os.Getenv("LOCAL_LLM_API_URL"); v != "" {
		adoptEnvProvider(cfg, "local", "local", "", v)
	}

	// Per-provider API key overrides: CAREAI_LLM_PROVIDER_<NAME>_API_KEY
	for i := range cfg.LLM.Providers {
		envKey := fmt.Sprintf("CAREAI_LLM_PROVIDER_%s_API_KEY",
			strings.ToUpper(cfg.LLM.Providers[i].Name))
		if v := os.Getenv(envKey); v != "" {
			cfg.LLM.Providers[i].APIKey = v
		}
	}

	if v := os.Getenv("CAREAI_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
}

// adoptEnvProvider fills in or appends a provider from conventional env vars.
// An existing entry of the same name keeps its explicit settings.
func adoptEnvProvider(cfg *Config, name, typ, apiKey, baseURL string) {
	if apiKey == "" && baseURL == "" {
		return
	}
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		if p.Name != name {
			continue
		}
		if p.APIKey == "" {
			p.APIKey = apiKey
		}
		if p.BaseURL == "" {
			p.BaseURL = baseURL
		}
		return
	}
	cfg.LLM.Providers = append(cfg.LLM.Providers, ProviderConfig{
		Name:    name,
		Type:    typ,
		APIKey:  apiKey,
		BaseURL: baseURL,
	})
}

// FindProvider returns the named provider config, or nil.
func (c *Config) FindProvider(name string) *ProviderConfig {
	for i := range c.LLM.Providers {
		if c.LLM.Providers[i].Name == name {
			return &c.LLM.Providers[i]
		}
	}
	return nil
}

// splitAndTrim splits s by sep and trims whitespace from each element.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets finds "enc:..." values in API keys and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		key := cfg.LLM.Providers[i].APIKey
		if !strings.HasPrefix(key, "enc:") {
			continue
		}
		decrypted, err := DecryptValue(strings.TrimPrefix(key, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("provider %s api_key: %w", cfg.LLM.Providers[i].Name, err)
		}
		cfg.LLM.Providers[i].APIKey = decrypted
	}

	if strings.HasPrefix(cfg.Embedding.APIKey, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Embedding.APIKey, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("embedding api_key: %w", err)
		}
		cfg.Embedding.APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
// The result is hex(salt) + ":" + hex(nonce+ciphertext).
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
