package config

import (
	"os"
	"strings"
)

// EnvLookup resolves one environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup reads the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// AliasEnvLookup wraps an EnvLookup with legacy alias keys, consulted in
// order when the canonical key is unset or empty.
func AliasEnvLookup(base EnvLookup, aliases map[string][]string) EnvLookup {
	if base == nil {
		base = DefaultEnvLookup
	}
	return func(key string) (string, bool) {
		if value, ok := base(key); ok && value != "" {
			return value, true
		}
		for _, alias := range aliases[key] {
			if value, ok := base(alias); ok && value != "" {
				return value, true
			}
		}
		return "", false
	}
}

// MapEnvLookup serves lookups from a fixed map.
func MapEnvLookup(values map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

// envAliases maps canonical FINBENCH_* variables to the names older
// deployments export. provider decides which API key variable wins.
func envAliases(provider string) map[string][]string {
	apiKeys := []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"}
	if strings.EqualFold(provider, "anthropic") {
		apiKeys = []string{"ANTHROPIC_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"}
	}
	return map[string][]string{
		"FINBENCH_GENERATOR_API_KEY": apiKeys,
		"FINBENCH_GENERATOR_MODEL":   {"MODEL_ID"},
		"FINBENCH_CORPUS_DATA_PATH":  {"FINANCE_DATA_PATH"},
		"FINBENCH_CACHE_PATH":        {"FINANCE_CACHE_PATH"},
	}
}

// envKey maps a dotted config key to its FINBENCH_* variable.
func envKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
