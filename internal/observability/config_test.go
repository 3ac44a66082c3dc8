package observability

import (
	"testing"

	"github.com/smallbiznis/memberledger/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigExportsOnlyWithCollector(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "")
	t.Setenv("DEPLOYMENT_ENV", "")

	cfg := LoadConfig(config.Config{Environment: "test"})
	assert.Equal(t, "memberledger", cfg.ServiceName)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())

	cfg = LoadConfig(config.Config{AppName: "memberledger-eu", OTLPEndpoint: "collector:4317"})
	assert.Equal(t, "memberledger-eu", cfg.ServiceName)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
}

func TestLoadConfigClampsSamplingRatio(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "3")
	assert.Equal(t, 1.0, LoadConfig(config.Config{}).OtelSamplingRatio)

	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	assert.Equal(t, 0.25, LoadConfig(config.Config{}).OtelSamplingRatio)
}
