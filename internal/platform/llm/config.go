package llm

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type fileConfig struct {
	CallTimeout time.Duration    `yaml:"call_timeout"`
	Providers   []ProviderConfig `yaml:"providers"`
}

// Config is the ordered provider list plus the per-attempt timeout.
type Config struct {
	CallTimeout time.Duration
	Providers   []ProviderConfig
}

// LoadConfig reads LLM_PROVIDERS_FILE when set, otherwise builds a single
// OpenAI-compatible provider from OPENAI_* variables.
func LoadConfig() (Config, error) {
	cfg := Config{CallTimeout: envutil.Duration("LLM_CALL_TIMEOUT", 90*time.Second)}
	if path := envutil.String("LLM_PROVIDERS_FILE", ""); path != "" {
		fc, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		if fc.CallTimeout > 0 {
			cfg.CallTimeout = fc.CallTimeout
		}
		cfg.Providers = fc.Providers
		return cfg, nil
	}
	cfg.Providers = []ProviderConfig{{
		Name:       "openai",
		Kind:       KindOpenAI,
		BaseURL:    envutil.String("OPENAI_BASE_URL", ""),
		APIKey:     envutil.String("OPENAI_API_KEY", ""),
		Model:      envutil.String("OPENAI_MODEL", ""),
		EmbedModel: envutil.String("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		ProxyURL:   envutil.String("OPENAI_PROXY_URL", ""),
		Timeout:    envutil.Duration("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		MaxRetries: envutil.Int("OPENAI_MAX_RETRIES", 2),
	}}
	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read providers file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse providers file: %w", err)
	}
	for i := range fc.Providers {
		p := &fc.Providers[i]
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
		if p.Kind == "" {
			p.Kind = KindOpenAI
		}
	}
	if len(fc.Providers) == 0 {
		return fileConfig{}, fmt.Errorf("providers file %s lists no providers", path)
	}
	return fc, nil
}

// BuildProviders constructs providers in order. A provider that cannot be
// built is logged and skipped; an empty result is an error.
func BuildProviders(log *logger.Logger, cfgs []ProviderConfig) ([]Provider, error) {
	if log == nil {
		log = logger.Nop()
	}
	out := make([]Provider, 0, len(cfgs))
	for _, pc := range cfgs {
		var (
			p   Provider
			err error
		)
		switch strings.ToLower(strings.TrimSpace(pc.Kind)) {
		case KindOpenAI, "":
			p, err = NewOpenAIProvider(log, pc)
		case KindOllama:
			p, err = NewOllamaProvider(log, pc)
		default:
			err = fmt.Errorf("unknown provider kind %q", pc.Kind)
		}
		if err != nil {
			log.Warn("Skipping LLM provider", "name", pc.Name, "kind", pc.Kind, "error", err)
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable LLM providers configured")
	}
	return out, nil
}
