package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; everything else is
// reported in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SpellChanged is true if the alphabet table selection changed.
	SpellChanged bool

	// DisplayChanged is true if any rendering option changed.
	DisplayChanged bool

	// RestartRequired lists the config keys that changed but only take
	// effect after a restart.
	RestartRequired []string
}

// Changed reports whether d carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SpellChanged || d.DisplayChanged || len(d.RestartRequired) > 0
}

// Diff compares the old and next configs and returns what changed.
func Diff(old, next *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != next.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = next.Server.LogLevel
	}

	d.SpellChanged = old.Spell != next.Spell
	d.DisplayChanged = old.Display != next.Display

	restart := func(key string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, key)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != next.Server.ListenAddr)
	restart("server.metrics", old.Server.Metrics != next.Server.Metrics)
	restart("server.tls", !equalTLS(old.Server.TLS, next.Server.TLS))
	restart("storage.backend", old.Storage.Backend != next.Storage.Backend)
	restart("storage.path", old.Storage.Path != next.Storage.Path)
	restart("storage.store_id", old.Storage.StoreID != next.Storage.StoreID)
	restart("storage.encryption_key", old.Storage.EncryptionKey != next.Storage.EncryptionKey)
	restart("storage.postgres_dsn", old.Storage.PostgresDSN != next.Storage.PostgresDSN)

	return d
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
