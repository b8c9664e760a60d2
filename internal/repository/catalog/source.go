// Package catalog loads catalog records from files, MongoDB collections and SQL tables.
// Every source yields records in a stable order; that order is the record identity.
package catalog

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kailas-cloud/skurag/internal/domain"
	domcat "github.com/kailas-cloud/skurag/internal/domain/catalog"
)

// Source kinds accepted by configuration.
const (
	KindFile   = "file"
	KindMongo  = "mongo"
	KindSQLite = "sqlite"
)

// toRecords normalizes driver-specific scalar types and validates every row.
func toRecords(rows []any, descriptionField string) ([]domcat.Record, error) {
	records := make([]domcat.Record, len(rows))
	for i, row := range rows {
		fields, ok := asMapping(row)
		if !ok {
			return nil, domain.NewSchemaError(i, "", "record is not a mapping")
		}
		for k, v := range fields {
			fields[k] = normalizeValue(v)
		}
		r, err := domcat.New(i, fields, descriptionField)
		if err != nil {
			return nil, err
		}
		records[i] = r
	}
	return records, nil
}

func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case primitive.M:
		return map[string]any(m), true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// normalizeValue maps driver scalars onto plain Go scalars. Composite values pass
// through unchanged so that record validation rejects them.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Decimal128:
		return x.String()
	case primitive.Timestamp:
		return time.Unix(int64(x.T), 0).UTC().Format(time.RFC3339)
	default:
		return v
	}
}
