package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/echobridge/pkg/config"
)

type testConfig struct {
	Host    string   `env:"TEST_CFG_HOST" envDefault:"localhost"`
	Port    int      `env:"TEST_CFG_PORT" envDefault:"6001"`
	Hosts   []string `env:"TEST_CFG_HOSTS" envDefault:"http://localhost"`
	Require string   `env:"TEST_CFG_REQUIRED,required"`
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TEST_CFG_REQUIRED", "set")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6001, cfg.Port)
	assert.Equal(t, []string{"http://localhost"}, cfg.Hosts)
	assert.Equal(t, "set", cfg.Require)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TEST_CFG_REQUIRED", "set")
	t.Setenv("TEST_CFG_HOST", "0.0.0.0")
	t.Setenv("TEST_CFG_HOSTS", "http://a.example.com,https://b.example.com")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, []string{"http://a.example.com", "https://b.example.com"}, cfg.Hosts)
}

func TestLoad_MissingRequired(t *testing.T) {
	var cfg testConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	err := config.Load[testConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}
