package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("CORS_ORIGIN", "https://app.example.com")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "apiserver dev")
}

func TestCORSListCommand(t *testing.T) {
	out, err := runCLI(t, "cors", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:3000")
	assert.Contains(t, out, "http://127.0.0.1:3000")
	assert.Contains(t, out, "https://app.example.com")
	assert.Contains(t, out, ".azurewebsites.net (contains)")
}

func TestCORSCheckCommand(t *testing.T) {
	out, err := runCLI(t, "cors", "check", "https://app.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "allowed")

	out, err = runCLI(t, "cors", "check", "https://demo.azurewebsites.net")
	require.NoError(t, err)
	assert.Contains(t, out, "trusted_suffix")

	out, err = runCLI(t, "cors", "check", "https://evil.example")
	assert.Error(t, err)
	assert.Contains(t, out, "blocked")
}
