package scan

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"

	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/catalog"
	"github.com/thingsql/thingsql/execution"
)

// RowMapper converts raw remote records into typed records in catalog
// column order. Columns outside the requested set map to null without
// touching the raw record, mirroring the projection the caller asked for.
type RowMapper struct {
	descriptor *catalog.ResourceDescriptor
	fieldNames []string
	// requested is nil when all columns were asked for.
	requested map[string]struct{}
}

func NewRowMapper(descriptor *catalog.ResourceDescriptor, requestedColumns []string) *RowMapper {
	var requested map[string]struct{}
	if len(requestedColumns) > 0 {
		requested = make(map[string]struct{}, len(requestedColumns))
		for _, column := range requestedColumns {
			requested[column] = struct{}{}
		}
	}
	return &RowMapper{
		descriptor: descriptor,
		fieldNames: descriptor.ColumnNames(),
		requested:  requested,
	}
}

func (m *RowMapper) Requested(column string) bool {
	if m.requested == nil {
		return true
	}
	_, ok := m.requested[column]
	return ok
}

// MapRow produces one typed record. aux carries values for columns backed
// by auxiliary fetches, keyed by column name.
func (m *RowMapper) MapRow(raw *fastjson.Value, aux map[string]thingsql.Value) (*execution.Record, error) {
	data := make([]thingsql.Value, len(m.descriptor.Columns))
	for i, column := range m.descriptor.Columns {
		if !m.Requested(column.Name) {
			data[i] = thingsql.NewNull()
			continue
		}
		if column.Aux != catalog.AuxNone {
			value, ok := aux[column.Name]
			if !ok {
				value = thingsql.NewNull()
			}
			data[i] = value
			continue
		}
		value, err := extractColumn(column, raw)
		if err != nil {
			return nil, err
		}
		data[i] = value
	}
	return execution.NewRecord(m.fieldNames, data), nil
}

func extractColumn(column catalog.ColumnDescriptor, raw *fastjson.Value) (thingsql.Value, error) {
	value := raw.Get(column.Path...)
	if value == nil || value.Type() == fastjson.TypeNull {
		if column.Nullable {
			return thingsql.NewNull(), nil
		}
		return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "required column %s is absent", column.Name)
	}

	switch column.Type.TypeID {
	case thingsql.TypeIDInt:
		parsed, err := value.Int()
		if err != nil {
			return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "column %s is not an integer: %s", column.Name, err)
		}
		return thingsql.NewInt(parsed), nil

	case thingsql.TypeIDString:
		parsed, err := value.StringBytes()
		if err != nil {
			return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "column %s is not a string: %s", column.Name, err)
		}
		return thingsql.NewString(string(parsed)), nil

	case thingsql.TypeIDTime:
		return extractTime(column, value)

	case thingsql.TypeIDJson:
		return thingsql.NewJson(value.MarshalTo(nil)), nil

	case thingsql.TypeIDStringSet:
		items, err := value.Array()
		if err != nil {
			return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "column %s is not an array: %s", column.Name, err)
		}
		out := make([]string, len(items))
		for i, item := range items {
			element, err := item.StringBytes()
			if err != nil {
				return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "column %s has a non-string element: %s", column.Name, err)
			}
			out[i] = string(element)
		}
		return thingsql.NewStringSet(out), nil
	}
	return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "column %s has unsupported type %s", column.Name, column.Type.String())
}

// extractTime accepts the two remote timestamp encodings: epoch seconds
// (possibly fractional) and RFC3339 strings.
func extractTime(column catalog.ColumnDescriptor, value *fastjson.Value) (thingsql.Value, error) {
	switch value.Type() {
	case fastjson.TypeNumber:
		epoch, err := value.Float64()
		if err != nil {
			return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "column %s is not a timestamp: %s", column.Name, err)
		}
		seconds, fraction := math.Modf(epoch)
		return thingsql.NewTime(time.Unix(int64(seconds), int64(fraction*float64(time.Second))).UTC()), nil
	case fastjson.TypeString:
		raw, _ := value.StringBytes()
		parsed, err := time.Parse(time.RFC3339Nano, string(raw))
		if err != nil {
			return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "column %s is not a timestamp: %s", column.Name, err)
		}
		return thingsql.NewTime(parsed.UTC()), nil
	default:
		return thingsql.ZeroValue, errors.Wrapf(ErrSchemaViolation, "column %s is not a timestamp", column.Name)
	}
}
