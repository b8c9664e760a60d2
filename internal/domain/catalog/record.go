// Package catalog holds the catalog record aggregate and search result types.
package catalog

import (
	"encoding/json"
	"maps"
	"strings"

	"github.com/kailas-cloud/skurag/internal/domain"
)

// DefaultDescriptionField is the field embedded for similarity search.
const DefaultDescriptionField = "description"

// Record is an immutable catalog entry: one required description plus opaque attributes.
// Identity is the record's position in the catalog, assigned by the index.
type Record struct {
	descriptionField string
	description      string
	attrs            map[string]any
}

// New validates a flat field mapping and builds a Record.
// position is only used for error reporting.
func New(position int, fields map[string]any, descriptionField string) (Record, error) {
	if descriptionField == "" {
		descriptionField = DefaultDescriptionField
	}
	if fields == nil {
		return Record{}, domain.NewSchemaError(position, "", "record is not a mapping")
	}

	raw, ok := fields[descriptionField]
	if !ok {
		return Record{}, domain.NewSchemaError(position, descriptionField, "missing")
	}
	desc, ok := raw.(string)
	if !ok {
		return Record{}, domain.NewSchemaError(position, descriptionField, "must be a string")
	}
	if strings.TrimSpace(desc) == "" {
		return Record{}, domain.NewSchemaError(position, descriptionField, "is empty")
	}

	attrs := make(map[string]any, len(fields)-1)
	for k, v := range fields {
		if k == descriptionField {
			continue
		}
		if !isScalar(v) {
			return Record{}, domain.NewSchemaError(position, k, "nested values are not supported")
		}
		attrs[k] = v
	}

	return Record{descriptionField: descriptionField, description: desc, attrs: attrs}, nil
}

// Parse validates every mapping in order. The first malformed record fails the whole catalog.
func Parse(rows []map[string]any, descriptionField string) ([]Record, error) {
	records := make([]Record, len(rows))
	for i, row := range rows {
		r, err := New(i, row, descriptionField)
		if err != nil {
			return nil, err
		}
		records[i] = r
	}
	return records, nil
}

// Description returns the embedding source text.
func (r Record) Description() string { return r.description }

// DescriptionField returns the field name the description was read from.
func (r Record) DescriptionField() string {
	if r.descriptionField == "" {
		return DefaultDescriptionField
	}
	return r.descriptionField
}

// Attribute returns a single opaque attribute.
func (r Record) Attribute(key string) (any, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

// Attributes returns a copy of the opaque attributes.
func (r Record) Attributes() map[string]any { return maps.Clone(r.attrs) }

// Fields returns the full flat mapping, description included.
func (r Record) Fields() map[string]any {
	out := make(map[string]any, len(r.attrs)+1)
	maps.Copy(out, r.attrs)
	if r.descriptionField != "" {
		out[r.descriptionField] = r.description
	}
	return out
}

// MarshalJSON renders the record as its original flat mapping.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	default:
		return false
	}
}
