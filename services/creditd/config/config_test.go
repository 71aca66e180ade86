package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ghostcredit/native/credit"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
genesis: " genesis.toml "
tls:
  allow_insecure: true
auth:
  api_tokens:
    - " token-one "
    - " "
    - "token-two"
rate_limit:
  rate_per_second: 5
  burst: 10
  tokens:
    "GET   /v1/accounts": 3
`))
	require.NoError(t, err)
	require.Equal(t, defaultListen, cfg.ListenAddress)
	require.Equal(t, "genesis.toml", cfg.GenesisPath)
	require.Equal(t, uint32(credit.DefaultPageSize), cfg.PageSize)
	require.Equal(t, []string{"token-one", "token-two"}, cfg.Auth.APITokens)
	require.True(t, cfg.RateLimit.Enabled())
	require.Equal(t, 1, cfg.RateLimit.DefaultTokens)
	require.Equal(t, 3, cfg.RateLimit.Tokens["GET /v1/accounts"])
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"missing genesis": `
tls: {allow_insecure: true}
auth: {allow_anonymous: true}
`,
		"no authenticators": `
genesis: g.toml
tls: {allow_insecure: true}
`,
		"cert without key": `
genesis: g.toml
tls: {cert: server.crt}
auth: {allow_anonymous: true}
`,
		"plaintext not allowed": `
genesis: g.toml
auth: {allow_anonymous: true}
`,
		"page size": `
genesis: g.toml
page_size: 500
tls: {allow_insecure: true}
auth: {allow_anonymous: true}
`,
		"token cost above burst": `
genesis: g.toml
tls: {allow_insecure: true}
auth: {allow_anonymous: true}
rate_limit: {rate_per_second: 1, burst: 2, tokens: {"GET /v1/accounts": 3}}
`,
		"unknown field": `
genesis: g.toml
tls: {allow_insecure: true}
auth: {allow_anonymous: true}
listen_port: 9
`,
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, contents))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigRequiresPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "dev", cfg.Environment)
	require.Equal(t, 5, cfg.RateLimit.Tokens["GET /v1/accounts"])
}
