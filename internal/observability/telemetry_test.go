package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")
		t.Setenv("AGENT_ID", "")

		cfg := NewConfig("fieldsync-agent", "1.0.0")
		assert.False(t, cfg.Enabled)
		assert.True(t, cfg.Insecure)
		assert.Equal(t, 1.0, cfg.SampleRatio)
		assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
		assert.NotEmpty(t, cfg.AgentID)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("OTEL_ENABLED", "1")
		t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
		t.Setenv("AGENT_ID", "van-7")

		cfg := NewConfig("fieldsync-agent", "1.0.0")
		assert.True(t, cfg.Enabled)
		assert.False(t, cfg.Insecure)
		assert.Equal(t, 0.25, cfg.SampleRatio)
		assert.Equal(t, "van-7", cfg.AgentID)
	})

	t.Run("out of range ratio is ignored", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "4")
		assert.Equal(t, 1.0, NewConfig("a", "b").SampleRatio)
	})
}

func TestInitializeDisabled(t *testing.T) {
	tel, err := Initialize(context.Background(), Config{ServiceName: "a"})
	require.NoError(t, err)
	assert.Nil(t, tel.TracerProvider)
	assert.NoError(t, tel.Shutdown(context.Background()))
}
