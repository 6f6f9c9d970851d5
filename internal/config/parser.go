package config

import "strings"

// Parse decodes content over base and validates the result. A document
// whose first non-space byte is '{' is JSONC; anything else is YAML. Blank
// content validates base as is.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	switch {
	case trimmed == "":
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	case trimmed[0] == '{':
		return parseJSONC(content, base)
	default:
		return parseYAML(content, base)
	}
}

// finish applies a decoded payload to base and validates the result.
func finish(payload fileConfig, base Config) (Config, []Warning, error) {
	cfg := base
	applied, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}
	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(applied, validated...), nil
}
