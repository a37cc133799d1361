package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/publicenv/pkg/injector"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestRenderScenarios(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		t.Setenv(injector.DeployedURL, "https://example.com")
		out, err := run(t, "", "render")
		require.NoError(t, err)
		assert.JSONEq(t, `{"env":{"PUBLIC_DEPLOYED_URL":"https://example.com"}}`, out)
	})
	t.Run("unset", func(t *testing.T) {
		unsetenv(t, injector.DeployedURL)
		out, err := run(t, "", "render")
		require.NoError(t, err)
		assert.JSONEq(t, `{"env":{}}`, out)
	})
	t.Run("empty", func(t *testing.T) {
		t.Setenv(injector.DeployedURL, "")
		out, err := run(t, "", "render")
		require.NoError(t, err)
		assert.JSONEq(t, `{"env":{"PUBLIC_DEPLOYED_URL":""}}`, out)
	})
}

func TestRenderFormats(t *testing.T) {
	t.Setenv(injector.DeployedURL, "https://example.com")

	out, err := run(t, "", "render", "-o", "yaml")
	require.NoError(t, err)
	assert.Equal(t, "env:\n  PUBLIC_DEPLOYED_URL: https://example.com\n", out)

	out, err = run(t, "", "render", "-o", "define", "--prefix", "process.env")
	require.NoError(t, err)
	assert.JSONEq(t, `{"process.env.PUBLIC_DEPLOYED_URL":"\"https://example.com\""}`, out)

	out, err = run(t, "", "render", "-o", "configmap", "-n", "web", "--name", "frontend-env")
	require.NoError(t, err)
	assert.Contains(t, out, "name: frontend-env")
	assert.Contains(t, out, "namespace: web")
	assert.Contains(t, out, "PUBLIC_DEPLOYED_URL: https://example.com")

	out, err = run(t, "", "render", "-o", "kustomize")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: ConfigMap")
	assert.Contains(t, out, "PUBLIC_DEPLOYED_URL: https://example.com")
}

func TestRenderIsIdempotent(t *testing.T) {
	t.Setenv(injector.DeployedURL, "https://example.com")

	first, err := run(t, "", "render")
	require.NoError(t, err)
	second, err := run(t, "", "render")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderExtraKeys(t *testing.T) {
	t.Setenv(injector.DeployedURL, "https://example.com")
	t.Setenv("PUBLIC_API_URL", "https://api.example.com")

	out, err := run(t, "", "--key", injector.DeployedURL, "--key", "PUBLIC_API_URL", "render")
	require.NoError(t, err)
	assert.JSONEq(t, `{"env":{"PUBLIC_DEPLOYED_URL":"https://example.com","PUBLIC_API_URL":"https://api.example.com"}}`, out)
}

func TestRenderKeyKeepsDeployedURL(t *testing.T) {
	t.Setenv(injector.DeployedURL, "https://example.com")
	t.Setenv("PUBLIC_API_URL", "https://api.example.com")

	out, err := run(t, "", "--key", "PUBLIC_API_URL", "render")
	require.NoError(t, err)
	assert.JSONEq(t, `{"env":{"PUBLIC_DEPLOYED_URL":"https://example.com","PUBLIC_API_URL":"https://api.example.com"}}`, out)
}

func TestRenderErrors(t *testing.T) {
	_, err := run(t, "", "render", "-o", "toml")
	require.Error(t, err)

	_, err = run(t, "", "--log-level", "loud", "render")
	require.Error(t, err)

	_, err = run(t, "", "--key", "PUBLIC_A,", "render")
	require.ErrorIs(t, err, injector.ErrEmptyKey)
}

func TestSubstituteStdin(t *testing.T) {
	t.Setenv(injector.DeployedURL, "https://example.com")

	out, err := run(t, "fetch(import.meta.env.PUBLIC_DEPLOYED_URL);\n", "substitute")
	require.NoError(t, err)
	assert.Equal(t, "fetch(\"https://example.com\");\n", out)
}

func TestSubstituteFiles(t *testing.T) {
	t.Setenv(injector.DeployedURL, "https://example.com")
	dir := t.TempDir()
	src := filepath.Join(dir, "main.ts")
	require.NoError(t, os.WriteFile(src, []byte("export const u: string = import.meta.env.PUBLIC_DEPLOYED_URL;\n"), 0644))

	out, err := run(t, "", "substitute", src)
	require.NoError(t, err)
	assert.Equal(t, "export const u = \"https://example.com\";\n", out)

	outDir := filepath.Join(dir, "dist")
	_, err = run(t, "", "substitute", "--out-dir", outDir, src)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(outDir, "main.ts"))
	require.NoError(t, err)
	assert.Equal(t, "export const u = \"https://example.com\";\n", string(data))
}

func TestApplyDryRun(t *testing.T) {
	t.Setenv(injector.DeployedURL, "https://example.com")

	out, err := run(t, "", "apply", "--dry-run", "--immutable")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: ConfigMap")
	assert.Contains(t, out, "immutable: true")
	assert.Contains(t, out, "PUBLIC_DEPLOYED_URL: https://example.com")
}

func TestApplyDryRunWithBase(t *testing.T) {
	t.Setenv(injector.DeployedURL, "https://example.com")
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "kustomization.yaml"), []byte("resources: []\n"), 0644))

	out, err := run(t, "", "apply", "--dry-run", "--base", base, "--name", "frontend-env")
	require.NoError(t, err)
	assert.Contains(t, out, "name: frontend-env")
	assert.Contains(t, out, "PUBLIC_DEPLOYED_URL: https://example.com")
}
