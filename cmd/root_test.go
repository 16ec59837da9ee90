package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/case-extractor/internal/config"
)

// withConfig installs a test configuration for the duration of t.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prevCfg, prevCourts := cfg, courts
	cfg = c
	courts = config.DefaultCourts()
	t.Cleanup(func() { cfg, courts = prevCfg, prevCourts })
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite"},
		Output: config.OutputConfig{Dir: t.TempDir(), Formats: []string{"csv", "json"}},
		Browser: config.BrowserConfig{
			NavTimeoutMs:  30000,
			WaitTimeoutMs: 10000,
			SettleDelayMs: 2000,
		},
		Inference: config.InferenceConfig{Provider: "openai", BaseURL: "http://localhost:1234/v1"},
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"extract", "batch", "search", "discover", "check", "courts", "runs", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "case-extractor", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestExtractCommand_Flags(t *testing.T) {
	for _, name := range []string{"case-number", "url", "court", "wait-selector", "formats", "no-export"} {
		assert.NotNil(t, extractCmd.Flags().Lookup(name), "extract should have --%s flag", name)
	}
}

func TestBatchCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "court", "retry-failed", "limit", "formats"} {
		assert.NotNil(t, batchCmd.Flags().Lookup(name), "batch should have --%s flag", name)
	}
	flag := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "cases"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}

func TestResolveCourt(t *testing.T) {
	c := testConfig(t)
	withConfig(t, c)

	got, err := resolveCourt("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = resolveCourt("broward")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "broward", got.Key)

	c.Courts.Default = "palm_beach"
	got, err = resolveCourt("")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "palm_beach", got.Key)

	_, err = resolveCourt("nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown court")
}
