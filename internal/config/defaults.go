package config

const (
	defaultDataDir = "~/.local/share/fieldbook"
	defaultLogDir  = "~/.local/share/fieldbook/logs"

	// Two photos taken within this window belong to the same outing unless
	// the shooter has clearly moved on.
	defaultMaxGapMinutes = 45

	// Walking/short-drive range. Photos further apart than this split the
	// outing even inside the time window.
	defaultRadiusKM = 2.0

	// A new cluster merges into a stored outing when their windows come
	// within this buffer of each other.
	defaultMatchBufferMinutes = 60

	defaultIdentifyTimeoutSeconds = 60
	defaultHighConfidence         = 0.85

	defaultNtfyRequestTimeout = 10
)

// Default returns the baseline configuration prior to user overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Clustering: Clustering{
			MaxGapMinutes: defaultMaxGapMinutes,
			RadiusKM:      defaultRadiusKM,
		},
		Matching: Matching{
			BufferMinutes: defaultMatchBufferMinutes,
		},
		Identify: Identify{
			TimeoutSeconds: defaultIdentifyTimeoutSeconds,
			HighConfidence: defaultHighConfidence,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			NewSpecies:     true,
			Batch:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
