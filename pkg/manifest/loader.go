package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a job manifest from disk and validates it.
//
// The format follows the file extension: .yaml/.yml for YAML, .json for
// JSON. Any other extension is parsed as YAML, which also accepts JSON.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job manifest not found: %s", path)
		}
		return nil, fmt.Errorf("read job manifest %s: %w", path, err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a job manifest from raw bytes. The
// path is used only for format detection and error context.
//
// Validation runs against the raw document, before struct decoding, so
// unknown fields fail loudly instead of being silently dropped.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("job manifest is empty")
	}

	jsonData, err := rawJSON(data, path)
	if err != nil {
		return nil, err
	}

	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("decode job manifest: %w", err)
	}
	m.ApplyDefaults()
	return &m, nil
}

// LoadFromReader reads and validates a job manifest from an io.Reader.
func LoadFromReader(r io.Reader, path string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read job manifest: %w", err)
	}
	return LoadFromBytes(data, path)
}

// rawJSON normalizes the manifest bytes to JSON for schema validation and
// decoding.
func rawJSON(data []byte, path string) ([]byte, error) {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if !json.Valid(data) {
			return nil, errors.New("invalid JSON in job manifest")
		}
		return data, nil
	}
	return yamlToJSON(data)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in job manifest: %w", err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert job manifest to JSON: %w", err)
	}
	return jsonData, nil
}
