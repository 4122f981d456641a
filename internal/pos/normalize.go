package pos

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Mapper is implemented by values that know their own map form.
type Mapper interface {
	ToMap() map[string]any
}

// Iterator is a pull style sequence such as a paginated vendor listing.
type Iterator interface {
	Next() (any, bool)
}

// Normalize converts an operation result into plain JSON friendly values:
// maps, slices, strings, numbers, booleans and nil.
func Normalize(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return value
	case Mapper:
		return normalizeMap(value.ToMap())
	case map[string]any:
		return normalizeMap(value)
	case Iterator:
		out := []any{}
		for {
			item, ok := value.Next()
			if !ok {
				return out
			}
			out = append(out, Normalize(item))
		}
	case error:
		return value.Error()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Sprint(v)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		return structToMap(v)
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	}
	return fmt.Sprint(v)
}

func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = Normalize(v)
	}
	return out
}

func structToMap(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

// ErrorBody is the serialized failure half of an Envelope.
type ErrorBody struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Errors  []string       `json:"errors,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Envelope is the uniform {success, data|error} response shape.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// NewEnvelope builds a success envelope from data or a failure envelope from
// err. Exactly one of Data and Error is populated.
func NewEnvelope(data any, err error) Envelope {
	if err != nil {
		pe := AsError(err)
		return Envelope{
			Success: false,
			Error: &ErrorBody{
				Kind:    pe.Kind,
				Message: pe.Message(),
				Errors:  pe.Errors,
				Meta:    pe.Meta,
			},
		}
	}
	return Envelope{Success: true, Data: Normalize(data)}
}
