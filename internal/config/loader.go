package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anyllm"},
	"stt":        {"whisper", "openai", "deepgram"},
	"tts":        {"elevenlabs", "openai", "coqui"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.Gateway.AccountID == "" {
		errs = append(errs, errors.New("gateway.account_id is required; connections cannot be authenticated without it"))
	}

	if len(cfg.Providers.LLM) == 0 {
		errs = append(errs, errors.New("providers.llm must list at least one provider"))
	}
	for i, entry := range cfg.Providers.LLM {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm[%d].name is required", i))
			continue
		}
		validateProviderName("llm", entry.Name)
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	} else {
		validateProviderName("stt", cfg.Providers.STT.Name)
	}
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if len(cfg.Voices) == 0 {
		errs = append(errs, errors.New("voices must list at least one synthesis rung"))
	}
	for i, rung := range cfg.Voices {
		prefix := fmt.Sprintf("voices[%d]", i)
		if rung.Provider.Name == "" {
			errs = append(errs, fmt.Errorf("%s.provider.name is required", prefix))
		} else {
			validateProviderName("tts", rung.Provider.Name)
		}
		if rung.Stability < 0 || rung.Stability > 1 {
			errs = append(errs, fmt.Errorf("%s.stability %.2f is out of range [0, 1]", prefix, rung.Stability))
		}
		if rung.SimilarityBoost < 0 || rung.SimilarityBoost > 1 {
			errs = append(errs, fmt.Errorf("%s.similarity_boost %.2f is out of range [0, 1]", prefix, rung.SimilarityBoost))
		}
		if rung.Speed != 0 && (rung.Speed < 0.5 || rung.Speed > 2.0) {
			errs = append(errs, fmt.Errorf("%s.speed %.2f is out of range [0.5, 2.0]", prefix, rung.Speed))
		}
	}

	if cfg.Speech.CacheDir == "" {
		errs = append(errs, errors.New("speech.cache_dir is required"))
	}

	if cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required"))
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but storage.embedding_dimensions is not set; defaulting to 1536")
	}

	if cfg.Sessions.RedisAddr == "" {
		slog.Warn("sessions.redis_addr is empty; call history will not survive a restart")
	}

	if cfg.Projects.BaseURL == "" {
		slog.Warn("projects.base_url is empty; project-status questions will get an unavailability answer")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
