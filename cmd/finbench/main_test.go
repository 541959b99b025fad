package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type fixture struct {
	dir        string
	configPath string
	dataPath   string
	cachePath  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:        dir,
		configPath: filepath.Join(dir, "finbench.yaml"),
		dataPath:   filepath.Join(dir, "data"),
		cachePath:  filepath.Join(dir, "data", "ground_truth_cache.json"),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(f.dataPath, "2018"), 0o755))

	cfg := map[string]any{
		"corpus": map[string]any{"data_path": f.dataPath, "years": []int{2018}},
		"cache":  map[string]any{"path": f.cachePath},
		"generator": map[string]any{
			"api_key": "sk-or-v1-abcdefghijklmnop",
		},
		"observability": map[string]any{"metrics": map[string]any{"enabled": false}},
	}
	raw, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.configPath, raw, 0o644))
	return f
}

func (f fixture) writeFiling(t *testing.T, name string, sections map[string]string) {
	t.Helper()
	raw, err := json.Marshal(sections)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.dataPath, "2018", name), raw, 0o644))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), err
}

func longText(word string) string {
	return string(bytes.Repeat([]byte(word+" "), 40))
}

func TestConfigShowMasksAPIKey(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "config", "show", "--config", f.configPath)
	require.NoError(t, err)

	assert.Contains(t, out, "# source: "+f.configPath)
	assert.Contains(t, out, f.dataPath)
	assert.NotContains(t, out, "sk-or-v1-abcdefghijklmnop")
	assert.Contains(t, out, "risk_classification: 0.4")
}

func TestConfigValidate(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "config", "validate", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")
}

func TestDataValidate(t *testing.T) {
	f := newFixture(t)
	f.writeFiling(t, "1041514_2018.json", map[string]string{
		"section_1":  longText("business"),
		"section_1A": longText("risk"),
		"section_7":  "short",
	})

	out, err := run(t, "data", "validate", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2018: 1 filings")
	assert.Contains(t, out, "1 without section_7")
	assert.Contains(t, out, "Total: 1 filings")
}

func TestDataValidateFailsOnEmptyYear(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "data", "validate", "--config", f.configPath, "--years", "2018,2019")
	require.Error(t, err)
	assert.Contains(t, out, "no filings for 2019")
}

func TestCacheStatsAndInvalidate(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, "cache", "stats", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "total_entries: 0")
	assert.Contains(t, out, "cache_version: 1.0.0")

	_, err = run(t, "cache", "invalidate", "--config", f.configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")

	_, err = run(t, "cache", "invalidate", "--config", f.configPath, "--task", "task9")
	require.Error(t, err)

	out, err = run(t, "cache", "invalidate", "--config", f.configPath, "--year", "2018", "--task", "task1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 reference answers")
}

func TestEvaluateRequiresAgent(t *testing.T) {
	f := newFixture(t)
	_, err := run(t, "evaluate", "--config", f.configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent")
}
