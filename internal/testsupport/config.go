package testsupport

import (
	"path/filepath"
	"testing"

	"fieldbook/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Identify.APIKey = "test"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNtfyTopic points the test config at a notification endpoint, usually
// an httptest server URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithIdentifyEndpoint points the identification client at a test server.
func WithIdentifyEndpoint(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Identify.BaseURL = baseURL
	}
}

// WithClustering overrides the clustering thresholds on the test config.
func WithClustering(maxGapMinutes int, radiusKM float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Clustering.MaxGapMinutes = maxGapMinutes
		b.cfg.Clustering.RadiusKM = radiusKM
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
