package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gateway = "rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvNodeURL, "")
	t.Setenv(EnvAccount, "")

	cfg, err := Load(Flags{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Nil(t, cfg.Pair)
}

func TestLoadYaml(t *testing.T) {
	t.Setenv(EnvNodeURL, "")
	t.Setenv(EnvAccount, "")

	path := writeFile(t, "config.yaml", `
node_url: wss://s.altnet.rippletest.net:51233
account: rAlice
pair: XRP_USD.`+gateway+`
poll_interval: 10s
trade_limit: "50"
tls_domains: [desk.example.com]
`)

	cfg, err := Load(Flags{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "wss://s.altnet.rippletest.net:51233", cfg.NodeURL)
	assert.Equal(t, "rAlice", cfg.Account)
	require.NotNil(t, cfg.Pair)
	assert.Equal(t, "XRP_USD."+gateway, cfg.Pair.String())
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 50, cfg.TradeLimit)
	assert.Equal(t, DefaultBookDepth, cfg.BookDepth)
	assert.Equal(t, []string{"desk.example.com"}, cfg.TLSDomains)
}

// unsetEnv removes key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadPrecedence(t *testing.T) {
	t.Setenv(EnvNodeURL, "wss://env.example")
	unsetEnv(t, EnvAccount)

	path := writeFile(t, "config.yaml", "node_url: wss://yaml.example\naccount: rYaml\n")
	env := writeFile(t, ".env", EnvAccount+"=rDotEnv\n")

	cfg, err := Load(Flags{ConfigPath: path, EnvFile: env})
	require.NoError(t, err)
	assert.Equal(t, "wss://env.example", cfg.NodeURL, "environment overrides yaml")
	assert.Equal(t, "rDotEnv", cfg.Account, ".env fills unset variables")

	cfg, err = Load(Flags{ConfigPath: path, EnvFile: env, NodeURL: "ws://flag.example", Account: "rFlag"})
	require.NoError(t, err)
	assert.Equal(t, "ws://flag.example", cfg.NodeURL)
	assert.Equal(t, "rFlag", cfg.Account)
}

func TestLoadMissingEnvFileIgnored(t *testing.T) {
	t.Setenv(EnvNodeURL, "")
	_, err := Load(Flags{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	assert.NoError(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(EnvNodeURL, "")

	tests := []struct {
		name  string
		yaml  string
		flags Flags
	}{
		{name: "bad pair", yaml: "pair: BTCUSDT\n"},
		{name: "bad integer", yaml: "book_depth: many\n"},
		{name: "http node", yaml: "node_url: https://node.example\n"},
		{name: "bad flag pair", flags: Flags{Pair: "XRP_XRP"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := tt.flags
			if tt.yaml != "" {
				flags.ConfigPath = writeFile(t, "config.yaml", tt.yaml)
			}
			_, err := Load(flags)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvNodeURL, "")
	t.Setenv(EnvAccount, "")

	path := filepath.Join(t.TempDir(), "config.gen.yaml")
	require.NoError(t, Save(path, ConfigTmp{
		NodeURL:      "wss://node.example",
		Pair:         "XRP_USD." + gateway,
		PollInterval: 6 * time.Second,
	}))

	cfg, err := Load(Flags{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, cfg.PollInterval)
	require.NotNil(t, cfg.Pair)
}
