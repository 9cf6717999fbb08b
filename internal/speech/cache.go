package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/frontdeskai/switchboard/pkg/provider/tts"
)

// CacheConfig configures the on-disk synthesis cache.
type CacheConfig struct {
	// Dir is the cache directory, created if missing.
	Dir string

	// MaxAge evicts entries older than this. Zero disables age eviction.
	MaxAge time.Duration

	// MaxBytes trims the directory to this total size, oldest entries
	// first. Zero disables size trimming.
	MaxBytes int64

	// SweepInterval is how often the janitor runs. Default 10 minutes.
	SweepInterval time.Duration
}

// Cache is a content-addressed store of synthesized audio. Entries are
// written once and never mutated; only the janitor removes them. Safe for
// concurrent use: the key is a hash of everything that affects the audio, so
// concurrent writers of the same key write identical bytes.
type Cache struct {
	dir      string
	maxAge   time.Duration
	maxBytes int64
	sweep    time.Duration
}

// NewCache creates the cache directory if needed.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("speech: cache dir must not be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("speech: creating cache dir: %w", err)
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = 10 * time.Minute
	}
	return &Cache{
		dir:      cfg.Dir,
		maxAge:   cfg.MaxAge,
		maxBytes: cfg.MaxBytes,
		sweep:    sweep,
	}, nil
}

// Key derives the cache key for one synthesis request against one provider.
// Any change to provider, model, voice, normalized text, or voice settings
// produces a different key.
func (c *Cache) Key(providerName string, req tts.Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%.3f|%.3f|%.3f",
		providerName,
		req.Model,
		req.VoiceID,
		normalizeText(req.Text),
		req.Settings.Stability,
		req.Settings.SimilarityBoost,
		req.Settings.Speed,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeText folds case and whitespace so trivially different renderings
// of the same sentence share a cache entry.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Get returns the cached audio for key, or (nil, false) on a miss. A
// corrupt or unreadable entry is treated as a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Put stores audio under key. Write errors are logged and swallowed: a
// failed cache write only costs a future re-synthesis.
func (c *Cache) Put(key string, audio []byte) {
	if len(audio) == 0 {
		return
	}
	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, audio, 0o644); err != nil {
		slog.Warn("synthesis cache write failed", "key", key, "error", err)
		return
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		slog.Warn("synthesis cache rename failed", "key", key, "error", err)
		_ = os.Remove(tmp)
	}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".pcm")
}

// RunJanitor evicts expired and excess entries at the sweep interval until
// ctx is cancelled. Intended to run as a background goroutine.
func (c *Cache) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sweep(); err != nil {
				slog.Warn("synthesis cache sweep failed", "error", err)
			}
		}
	}
}

// Sweep performs one eviction pass: entries older than MaxAge are removed,
// then the directory is trimmed to MaxBytes oldest-first.
func (c *Cache) Sweep() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("speech: reading cache dir: %w", err)
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	var (
		files     []fileInfo
		total     int64
		evicted   int
		now       = time.Now()
	)

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pcm") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(c.dir, e.Name())

		if c.maxAge > 0 && now.Sub(info.ModTime()) > c.maxAge {
			if err := os.Remove(path); err == nil {
				evicted++
			}
			continue
		}
		files = append(files, fileInfo{path: path, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}

	if c.maxBytes > 0 && total > c.maxBytes {
		sort.Slice(files, func(i, j int) bool {
			return files[i].modTime.Before(files[j].modTime)
		})
		for _, f := range files {
			if total <= c.maxBytes {
				break
			}
			if err := os.Remove(f.path); err == nil {
				total -= f.size
				evicted++
			}
		}
	}

	if evicted > 0 {
		slog.Info("synthesis cache sweep", "evicted", evicted, "remaining_bytes", total)
	}
	return nil
}
