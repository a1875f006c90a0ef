package formats

import (
	"io"

	"github.com/valyala/fastjson"

	"github.com/thingsql/thingsql"
	"github.com/thingsql/thingsql/execution"
)

// JSONFormatter writes one JSON object per line.
type JSONFormatter struct {
	buf     []byte
	arena   *fastjson.Arena
	w       io.Writer
	columns []string
}

func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{
		buf:   make([]byte, 0, 1024),
		arena: new(fastjson.Arena),
		w:     w,
	}
}

func (t *JSONFormatter) SetSchema(columns []string) {
	t.columns = columns
}

func (t *JSONFormatter) Write(record *execution.Record) error {
	obj := t.arena.NewObject()
	for _, column := range t.columns {
		obj.Set(column, t.valueToJson(record.Value(column)))
	}

	t.buf = obj.MarshalTo(t.buf)
	t.buf = append(t.buf, '\n')
	if _, err := t.w.Write(t.buf); err != nil {
		return err
	}
	t.buf = t.buf[:0]
	t.arena.Reset()
	return nil
}

func (t *JSONFormatter) valueToJson(value thingsql.Value) *fastjson.Value {
	switch value.Type.TypeID {
	case thingsql.TypeIDNull:
		return t.arena.NewNull()
	case thingsql.TypeIDInt:
		return t.arena.NewNumberInt(value.Int)
	case thingsql.TypeIDString:
		return t.arena.NewString(value.Str)
	case thingsql.TypeIDTime:
		return t.arena.NewString(value.String())
	case thingsql.TypeIDJson:
		parsed, err := fastjson.ParseBytes(value.Json)
		if err != nil {
			return t.arena.NewString(string(value.Json))
		}
		return parsed
	case thingsql.TypeIDStringSet:
		arr := t.arena.NewArray()
		for i, element := range value.StringSet {
			arr.SetArrayItem(i, t.arena.NewString(element))
		}
		return arr
	}
	return t.arena.NewNull()
}

func (t *JSONFormatter) Close() error {
	return nil
}
