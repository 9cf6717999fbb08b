package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
gateway:
  account_id: AC-prod
providers:
  llm:
    - name: openai
      api_key: sk-test
      model: gpt-4o-mini
    - name: anyllm
      model: ollama/llama3
  stt:
    name: whisper
    api_key: sk-test
  embeddings:
    name: openai
    api_key: sk-test
voices:
  - provider:
      name: elevenlabs
      api_key: el-test
      model: eleven_flash_v2_5
    voice_id: rachel
    stability: 0.5
    similarity_boost: 0.75
  - provider:
      name: openai
      api_key: sk-test
      model: tts-1-hd
    voice_id: alloy
speech:
  cache_dir: /var/cache/switchboard
  cache_max_bytes: 104857600
  cache_max_age: 168h
  sweep_interval: 10m
  stream_voice_id: rachel
sessions:
  redis_addr: localhost:6379
  ttl: 30m
storage:
  postgres_dsn: postgres://localhost:5432/switchboard
  embedding_dimensions: 1536
projects:
  base_url: https://pm.example.com/api
  api_key: pm-test
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Gateway.AccountID != "AC-prod" {
		t.Fatalf("account id = %q", cfg.Gateway.AccountID)
	}
	if len(cfg.Providers.LLM) != 2 || cfg.Providers.LLM[0].Name != "openai" {
		t.Fatalf("llm ladder = %+v", cfg.Providers.LLM)
	}
	if len(cfg.Voices) != 2 || cfg.Voices[0].VoiceID != "rachel" {
		t.Fatalf("voices = %+v", cfg.Voices)
	}
	if cfg.Sessions.TTL.Std() != 30*time.Minute {
		t.Fatalf("sessions ttl = %v", cfg.Sessions.TTL.Std())
	}
	if cfg.Speech.CacheMaxAge.Std() != 168*time.Hour {
		t.Fatalf("cache max age = %v", cfg.Speech.CacheMaxAge.Std())
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	yaml := strings.Replace(validYAML, "listen_addr:", "listen_address:", 1)
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field must be rejected")
	}
}

func TestLoadFromReaderBadDuration(t *testing.T) {
	yaml := strings.Replace(validYAML, "ttl: 30m", "ttl: soon", 1)
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unparseable duration must be rejected")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s string) string
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(s string) string { return strings.Replace(s, "log_level: info", "log_level: loud", 1) },
			wantErr: "log_level",
		},
		{
			name:    "missing account id",
			mutate:  func(s string) string { return strings.Replace(s, "account_id: AC-prod", "account_id: \"\"", 1) },
			wantErr: "gateway.account_id",
		},
		{
			name:    "missing cache dir",
			mutate:  func(s string) string { return strings.Replace(s, "cache_dir: /var/cache/switchboard", "cache_dir: \"\"", 1) },
			wantErr: "speech.cache_dir",
		},
		{
			name:    "missing postgres dsn",
			mutate:  func(s string) string { return strings.Replace(s, "postgres_dsn: postgres://localhost:5432/switchboard", "postgres_dsn: \"\"", 1) },
			wantErr: "storage.postgres_dsn",
		},
		{
			name:    "stability out of range",
			mutate:  func(s string) string { return strings.Replace(s, "stability: 0.5", "stability: 1.5", 1) },
			wantErr: "stability",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tc.mutate(validYAML)))
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateRequiresVoicesAndLLM(t *testing.T) {
	cfg := &Config{
		Gateway: GatewayConfig{AccountID: "AC-prod"},
		Speech:  SpeechConfig{CacheDir: "/tmp/cache"},
		Storage: StorageConfig{PostgresDSN: "postgres://x"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"providers.llm", "voices", "providers.stt"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}
