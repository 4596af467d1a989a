// Package config provides YAML configuration loading
package config

import (
	"bytes"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heiparta/cbase2influxdb/pkg/errors"
)

// APIKeyEnv is consulted when cbase.api_key is empty
const APIKeyEnv = "CBASE_API_KEY"

// Load reads a YAML configuration file on top of Default(). It does not
// validate; callers decide which sections their mode needs.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is the operator supplied config
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", filePath)
	}
	return cfg, nil
}

// Parse decodes YAML content on top of Default() after substituting
// ${VAR} references from the environment.
func Parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	cfg := Default()
	// nil until decoded so an explicit empty map can be told apart
	cfg.Sync.Tags = nil
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty document decodes to io.EOF; defaults stand in that case
		if strings.TrimSpace(content) != "" {
			return nil, err
		}
	}

	applyDefaults(cfg)
	cfg.CBase.System.missing = missingSystemKeys(content)
	return cfg, nil
}

// missingSystemKeys returns the required cbase.system keys that are absent
// or null in content.
func missingSystemKeys(content string) []string {
	var doc struct {
		CBase struct {
			System map[string]interface{} `yaml:"system"`
		} `yaml:"cbase"`
	}
	// decode errors were already reported by Parse
	_ = yaml.Unmarshal([]byte(content), &doc)

	var missing []string
	for _, key := range RequiredSystemKeys {
		if v, ok := doc.CBase.System[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	return missing
}

// applyDefaults fills settings whose zero value cannot be told apart from
// "not set" during decoding.
func applyDefaults(cfg *Config) {
	if cfg.Sync.Tags == nil {
		cfg.Sync.Tags = DefaultTags()
	}
	if cfg.CBase.APIKey == "" {
		cfg.CBase.APIKey = os.Getenv(APIKeyEnv)
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
