//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"analyze", "lens", "worker", "serve", "runs", "export", "publish", "migrate", "import"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "lens-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestLensCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range lensCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"apply", "apply-all", "apply-qa", "synthesize", "synthesize-cross", "templates"} {
		assert.True(t, names[name], "expected lens subcommand %q not found", name)
	}
}

func TestLensCommand_Flags(t *testing.T) {
	require.NotNil(t, lensApplyCmd.Flags().Lookup("interview"))
	require.NotNil(t, lensApplyCmd.Flags().Lookup("template"))
	assert.Nil(t, lensApplyQACmd.Flags().Lookup("template"))
	require.NotNil(t, lensApplyAllCmd.Flags().Lookup("templates"))

	force := lensSynthesizeCmd.Flags().Lookup("force")
	require.NotNil(t, force)
	assert.Equal(t, "false", force.DefValue)
	assert.Nil(t, lensSynthesizeCrossCmd.Flags().Lookup("template"))
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	require.NotNil(t, analyzeCmd.Flags().Lookup("project"))
	require.NotNil(t, analyzeCmd.Flags().Lookup("min-confidence"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestWorkerCommand_Flags(t *testing.T) {
	flag := workerCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag)
	assert.Equal(t, "4", flag.DefValue)
	require.NotNil(t, workerCmd.Flags().Lookup("no-schedule"))
}
