package backends

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/engine/enginetest"
)

func TestNewRegistryOrder(t *testing.T) {
	registry, err := NewRegistry(enginetest.NewFakeRunner(), config.Default(), engine.ExecuteOptions{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"arch", "flatpak", "cargo", "rustup"}, registry.Names())

	b, ok := registry.Lookup("cargo")
	require.True(t, ok)
	assert.Equal(t, "cargo", b.Name())
}
