package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/skurag/internal/domain"
	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
)

// FileSource reads a catalog from a JSON array or a YAML sequence of mappings.
type FileSource struct {
	path             string
	descriptionField string
}

// NewFileSource creates a file-backed source. The format follows the file extension.
func NewFileSource(path, descriptionField string) (*FileSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("%w: unsupported catalog file extension %q", domain.ErrInvalidArgument, filepath.Ext(path))
	}
	return &FileSource{path: path, descriptionField: descriptionField}, nil
}

// Load reads and validates every record. The file is re-read on each call.
func (s *FileSource) Load(_ context.Context) ([]domcat.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", s.path, err)
	}

	var rows []any
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		rows, err = decodeJSON(data)
	} else {
		rows, err = decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", s.path, err)
	}

	records, err := toRecords(rows, s.descriptionField)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", s.path, err)
	}
	return records, nil
}

// String identifies the source in logs.
func (s *FileSource) String() string { return "file:" + s.path }

func decodeJSON(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSchema, err)
	}
	rows, ok := top.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level must be a list of records", domain.ErrSchema)
	}
	return rows, nil
}

func decodeYAML(data []byte) ([]any, error) {
	var top any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSchema, err)
	}
	if top == nil {
		return nil, nil
	}
	rows, ok := top.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level must be a list of records", domain.ErrSchema)
	}
	return rows, nil
}
