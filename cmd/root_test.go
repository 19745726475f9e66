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

	for _, name := range []string{"lookup", "serve", "roster", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "school-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotEmpty(t, rootCmd.Version)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}

func TestLookupCommand_Flags(t *testing.T) {
	f := lookupCmd.Flags().Lookup("format")
	require.NotNil(t, f)
	assert.Equal(t, "json", f.DefValue)
	require.NotNil(t, lookupCmd.Flags().Lookup("concurrency"))
	assert.Error(t, lookupCmd.Args(lookupCmd, nil))
}

func TestRosterCommand_Flags(t *testing.T) {
	for _, name := range []string{"file", "school-id", "school-name", "class-offset", "out"} {
		assert.NotNil(t, rosterCmd.Flags().Lookup(name), "roster should have --%s", name)
	}
}

func TestServeCommand_PortFlag(t *testing.T) {
	f := serveCmd.Flags().Lookup("port")
	require.NotNil(t, f)
	assert.Equal(t, "0", f.DefValue)
}
