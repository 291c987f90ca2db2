package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Read reads a config from the given file. Environment variables in the file are expanded.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	attrs, err := readAttributes(r)
	if err != nil {
		return nil, err
	}
	cfg, err := FromMap(attrs)
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = originalPath
	return cfg, nil
}

// FromMap decodes and validates a config from generic attributes.
func FromMap(attrs map[string]interface{}) (*Config, error) {
	var cfg Config
	if err := DecodeAttributes(attrs, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReadFile expands environment variables in a json5 file and decodes it into result.
func ReadFile(filePath string, result interface{}) error {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return err
	}
	attrs, err := readAttributes(bytes.NewReader(buf))
	if err != nil {
		return errors.Wrapf(err, "reading %q", filePath)
	}
	return DecodeAttributes(attrs, result)
}

func readAttributes(r io.Reader) (map[string]interface{}, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var attrs map[string]interface{}
	if err := json5.Unmarshal(raw, &attrs); err != nil {
		return nil, errors.Wrap(err, "failed to decode json5")
	}
	return attrs, nil
}

// DecodeAttributes decodes attrs into result using json tags. Unknown keys are errors so that
// typos do not silently fall back to zero values.
func DecodeAttributes(attrs map[string]interface{}, result interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      result,
		ErrorUnused: true,
	})
	if err != nil {
		return errors.Wrap(err, "error creating decoder")
	}
	return decoder.Decode(attrs)
}

// Schema returns the JSON schema of the config file.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
