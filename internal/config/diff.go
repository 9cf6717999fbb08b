package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything else
// (providers, storage, listen address) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VoicesChanged is true when the synthesis ladder differs in any rung.
	VoicesChanged bool
	NewVoices     []VoiceRung
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !voicesEqual(old.Voices, new.Voices) {
		d.VoicesChanged = true
		d.NewVoices = new.Voices
	}

	return d
}

// Empty reports whether nothing hot-reloadable changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.VoicesChanged
}

func voicesEqual(a, b []VoiceRung) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Provider.Name != b[i].Provider.Name ||
			a[i].Provider.Model != b[i].Provider.Model ||
			a[i].VoiceID != b[i].VoiceID ||
			a[i].Stability != b[i].Stability ||
			a[i].SimilarityBoost != b[i].SimilarityBoost ||
			a[i].Speed != b[i].Speed {
			return false
		}
	}
	return true
}
