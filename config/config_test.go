package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karolba/tconsole/consolelog"
	"github.com/karolba/tconsole/terminalconsole"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tconsole.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := vars[name]
		return value, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Terminal.Enabled)
	assert.Equal(t, consolelog.DefaultPattern, cfg.Layout.Pattern)
	assert.Equal(t, "${tca:disableAnsi}", cfg.Layout.DisableAnsi)

	override, err := cfg.AnsiOverride()
	require.NoError(t, err)
	assert.Nil(t, override)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
terminal:
  ansi: "True"
  incompatible_env: [MY_IDE, MY_IDE, OTHER, ""]
layout:
  pattern: "%level %msg%n"
level: debug
async: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Terminal.Enabled, "missing keys keep their defaults")
	assert.Equal(t, []string{"MY_IDE", "OTHER"}, cfg.Terminal.IncompatibleEnv)
	assert.Equal(t, "%level %msg%n", cfg.Layout.Pattern)
	assert.Equal(t, "${tca:disableAnsi}", cfg.Layout.DisableAnsi)
	assert.True(t, cfg.Async)
	assert.Equal(t, "§7> ", cfg.Prompt)

	override, err := cfg.AnsiOverride()
	require.NoError(t, err)
	require.NotNil(t, override)
	assert.True(t, *override)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "terminal: [not, a, map]"))
	assert.ErrorContains(t, err, "could not parse config file")

	_, err = Load(writeConfig(t, "terminal:\n  ansi: sometimes\nlevel: chatty\n"))
	assert.ErrorContains(t, err, "terminal.ansi")
	assert.ErrorContains(t, err, "invalid level")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		terminalconsole.EnvTerminal: "false",
		terminalconsole.EnvAnsi:     "FALSE",
		EnvLevel:                    "warn",
		EnvPattern:                  "%m",
		EnvAsync:                    "1",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.Terminal.Enabled)
	assert.Equal(t, "false", cfg.Terminal.Ansi)
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "%m", cfg.Layout.Pattern)
	assert.True(t, cfg.Async)

	for _, vars := range []map[string]string{
		{terminalconsole.EnvTerminal: "nah"},
		{EnvAsync: "nah"},
		{EnvPattern: ""},
		{EnvLevel: "loud"},
	} {
		fresh := Default()
		assert.Error(t, fresh.ApplyEnv(env(vars)), "%v", vars)
	}
}

func TestDisableAnsiExpandsSessionLookup(t *testing.T) {
	cfg := Default()

	noTerminal := terminalconsole.New(terminalconsole.WithEnabled(false))
	disable, err := cfg.DisableAnsi(noTerminal.Expand)
	require.NoError(t, err)
	assert.True(t, disable)

	withTerminal := terminalconsole.New(
		terminalconsole.WithTerminal(terminalconsole.NewTerminal(nil, &bytes.Buffer{})),
		terminalconsole.WithLookupEnv(env(nil)))
	disable, err = cfg.DisableAnsi(withTerminal.Expand)
	require.NoError(t, err)
	assert.False(t, disable)

	cfg.Layout.DisableAnsi = ""
	disable, err = cfg.DisableAnsi(noTerminal.Expand)
	require.NoError(t, err)
	assert.False(t, disable)

	cfg.Layout.DisableAnsi = "${tca:nope}"
	_, err = cfg.DisableAnsi(noTerminal.Expand)
	assert.Error(t, err)
}

func TestSessionOptions(t *testing.T) {
	cfg := Default()
	cfg.Terminal.Enabled = false
	cfg.Terminal.Ansi = "true"

	opts, err := cfg.SessionOptions()
	require.NoError(t, err)

	session := terminalconsole.New(opts...)
	assert.Nil(t, session.Terminal())
	assert.True(t, session.AnsiSupported())

	cfg.Terminal.Ansi = "perhaps"
	_, err = cfg.SessionOptions()
	assert.Error(t, err)
}
