package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/frontdeskai/switchboard/internal/health"
	"github.com/frontdeskai/switchboard/internal/resilience"
	ttsmock "github.com/frontdeskai/switchboard/pkg/provider/tts/mock"
)

// pcmSample is 16 samples of non-silent 16 kHz PCM.
func pcmSample() []byte {
	buf := make([]byte, 32)
	for i := 0; i < len(buf); i += 2 {
		buf[i] = 0x00
		buf[i+1] = 0x10
	}
	return buf
}

func breakerCfg() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		ProbeQuota:       1,
	}
}

func TestSynthesizeFirstRungWins(t *testing.T) {
	primary := &ttsmock.Provider{ProviderName: "primary", Audio: pcmSample()}
	backup := &ttsmock.Provider{ProviderName: "backup", Audio: pcmSample()}

	s := NewSynthesizer([]Rung{
		{Provider: primary, VoiceID: "rachel"},
		{Provider: backup, VoiceID: "alloy"},
	}, nil, nil, breakerCfg())

	out, err := s.Synthesize(context.Background(), "Thanks for calling!")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty audio")
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary calls = %d, want 1", primary.CallCount())
	}
	if backup.CallCount() != 0 {
		t.Fatalf("backup calls = %d, want 0 (ladder must short-circuit)", backup.CallCount())
	}
}

func TestSynthesizeFallsToNextRung(t *testing.T) {
	primary := &ttsmock.Provider{ProviderName: "primary", Err: errors.New("503")}
	backup := &ttsmock.Provider{ProviderName: "backup", Audio: pcmSample()}

	s := NewSynthesizer([]Rung{
		{Provider: primary, VoiceID: "rachel"},
		{Provider: backup, VoiceID: "alloy"},
	}, nil, nil, breakerCfg())

	out, err := s.Synthesize(context.Background(), "One moment please.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty audio")
	}
	if backup.CallCount() != 1 {
		t.Fatalf("backup calls = %d, want 1", backup.CallCount())
	}
}

func TestSynthesizeEmptyBufferCountsAsFailure(t *testing.T) {
	primary := &ttsmock.Provider{ProviderName: "primary", Audio: nil}
	backup := &ttsmock.Provider{ProviderName: "backup", Audio: pcmSample()}

	s := NewSynthesizer([]Rung{
		{Provider: primary},
		{Provider: backup},
	}, nil, nil, breakerCfg())

	out, err := s.Synthesize(context.Background(), "Hello.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty audio from backup")
	}
}

func TestSynthesizeAllRungsFail(t *testing.T) {
	s := NewSynthesizer([]Rung{
		{Provider: &ttsmock.Provider{ProviderName: "a", Err: errors.New("down")}},
		{Provider: &ttsmock.Provider{ProviderName: "b", Err: errors.New("down")}},
	}, nil, nil, breakerCfg())

	_, err := s.Synthesize(context.Background(), "Hello.")
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSynthesizeSkipsOpenBreaker(t *testing.T) {
	primary := &ttsmock.Provider{ProviderName: "primary", Err: errors.New("down")}
	backup := &ttsmock.Provider{ProviderName: "backup", Audio: pcmSample()}

	s := NewSynthesizer([]Rung{
		{Provider: primary, VoiceID: "rachel"},
		{Provider: backup, VoiceID: "alloy"},
	}, nil, nil, breakerCfg())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := s.Synthesize(ctx, "Hello."); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	callsBeforeTrip := primary.CallCount()

	if _, err := s.Synthesize(ctx, "Hello again."); err != nil {
		t.Fatalf("post-trip synthesize: %v", err)
	}
	if primary.CallCount() != callsBeforeTrip {
		t.Fatal("primary called while its breaker was open")
	}
}

func TestSynthesizeCacheHitSkipsProvider(t *testing.T) {
	primary := &ttsmock.Provider{ProviderName: "primary", Audio: pcmSample()}
	cache := newTestCache(t, CacheConfig{})

	s := NewSynthesizer([]Rung{{Provider: primary, VoiceID: "rachel"}}, cache, nil, breakerCfg())

	ctx := context.Background()
	first, err := s.Synthesize(ctx, "Thanks for calling Meridian Creative.")
	if err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}
	second, err := s.Synthesize(ctx, "Thanks for calling Meridian Creative.")
	if err != nil {
		t.Fatalf("second Synthesize: %v", err)
	}

	if primary.CallCount() != 1 {
		t.Fatalf("provider calls = %d, want 1 (second must be a cache hit)", primary.CallCount())
	}
	if string(first) != string(second) {
		t.Fatal("cached audio differs from synthesized audio")
	}
}

func TestSynthesizeRecordsHealth(t *testing.T) {
	tracker := health.NewTracker()
	primary := &ttsmock.Provider{ProviderName: "primary", Err: errors.New("down")}
	backup := &ttsmock.Provider{ProviderName: "backup", Audio: pcmSample()}

	s := NewSynthesizer([]Rung{
		{Provider: primary, VoiceID: "rachel"},
		{Provider: backup, VoiceID: "alloy"},
	}, nil, tracker, breakerCfg())

	if _, err := s.Synthesize(context.Background(), "Hello."); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	snap := tracker.Snapshot()
	if snap["primary/rachel"].Failures != 1 {
		t.Fatalf("primary failures = %d, want 1", snap["primary/rachel"].Failures)
	}
	if snap["backup/alloy"].Successes != 1 {
		t.Fatalf("backup successes = %d, want 1", snap["backup/alloy"].Successes)
	}
}

func TestSetRungsReplacesLadder(t *testing.T) {
	old := &ttsmock.Provider{ProviderName: "old", Audio: pcmSample()}
	replacement := &ttsmock.Provider{ProviderName: "new", Audio: pcmSample()}

	s := NewSynthesizer([]Rung{{Provider: old, VoiceID: "rachel"}}, nil, nil, breakerCfg())
	s.SetRungs([]Rung{{Provider: replacement, VoiceID: "nova"}})

	if _, err := s.Synthesize(context.Background(), "Hello."); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if old.CallCount() != 0 {
		t.Fatalf("old provider calls = %d, want 0", old.CallCount())
	}
	if replacement.CallCount() != 1 {
		t.Fatalf("new provider calls = %d, want 1", replacement.CallCount())
	}
}
