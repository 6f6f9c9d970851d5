package config

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

func parseYAML(content string, base Config) (Config, []Warning, error) {
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	decoder.KnownFields(true)

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return finish(fileConfig{}, base)
		}
		return Config{}, nil, err
	}

	var extra yaml.Node
	if err := decoder.Decode(&extra); err == nil {
		return Config{}, nil, errors.New("yaml: multiple documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return Config{}, nil, err
	}

	return finish(payload, base)
}
