// Package coqui provides a local Coqui TTS-backed provider targeting the
// standard Coqui TTS server (ghcr.io/coqui-ai/tts-cpu) via GET /api/tts.
// The server returns a WAV buffer; the provider strips the header and hands
// back raw PCM. It is the alternate-vendor rung of the fallback ladder.
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frontdeskai/switchboard/pkg/audio"
	"github.com/frontdeskai/switchboard/pkg/provider/tts"
)

const (
	apiTTSEndpoint = "/api/tts"
	defaultTimeout = 30 * time.Second

	// serverSampleRate is the output rate of the stock Coqui VITS models.
	serverSampleRate = 22050
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the language id sent to multi-lingual models.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider against a Coqui TTS server.
type Provider struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// New creates a Coqui Provider targeting the server at baseURL
// (e.g. "http://localhost:5002").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "coqui" }

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int { return serverSampleRate }

// Synthesize implements tts.Provider via GET /api/tts.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	q := url.Values{}
	q.Set("text", req.Text)
	if req.VoiceID != "" {
		q.Set("speaker_id", req.VoiceID)
	}
	if p.language != "" {
		q.Set("language_id", p.language)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+apiTTSEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: build request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("coqui: tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: tts: unexpected status %d", resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio: %w", err)
	}
	return audio.StripWAVHeader(wav), nil
}
