package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a snapshot file, chosen by extension.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf maps a file name onto its format.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil

	case ".yaml", ".yml":
		return FormatYAML, nil
	}

	return "",
		fmt.Errorf("unsupported snapshot extension %q, want .toml, .yaml or .yml", filepath.Ext(path))
}

// Decode parses snapshot bytes in the given format.
func Decode(data []byte, format Format) (*Document, error) {
	var document Document

	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("parsing toml snapshot: %w", err)
		}

	case FormatYAML:
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, fmt.Errorf("parsing yaml snapshot: %w", err)
		}

	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}

	return &document, nil
}

// Encode renders the document in the given format.
func Encode(document *Document, format Format) ([]byte, error) {
	switch format {
	case FormatTOML:
		data, err := toml.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("marshaling toml snapshot: %w", err)
		}

		return data, nil

	case FormatYAML:
		data, err := yaml.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("marshaling yaml snapshot: %w", err)
		}

		return data, nil
	}

	return nil, fmt.Errorf("unknown snapshot format %q", format)
}

// Load reads a snapshot file.
func Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	return Decode(data, format)
}

// Save writes the snapshot atomically (write temp + rename).
func Save(path string, document *Document) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	data, err := Encode(document, format)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming snapshot: %w", err)
	}

	return nil
}
