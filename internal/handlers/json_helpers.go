package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
)

var marshalerType = reflect.TypeFor[json.Marshaler]()

// JSONResponse writes data as JSON with nil slices and maps rendered as
// [] and {} so clients never have to check for null collections.
func JSONResponse(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		return json.NewEncoder(w).Encode(data)
	}
	return json.NewEncoder(w).Encode(emptyCollections(reflect.ValueOf(data)).Interface())
}

// emptyCollections returns a copy of v in which every reachable nil slice
// or map is replaced by an empty one. Values that marshal themselves
// (translations, timestamps) are returned untouched.
func emptyCollections(v reflect.Value) reflect.Value {
	if !v.IsValid() || v.Type().Implements(marshalerType) {
		return v
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		return emptyCollections(v.Elem())

	case reflect.Pointer:
		if v.IsNil() || v.Elem().Type().Implements(marshalerType) {
			return v
		}
		out := reflect.New(v.Elem().Type())
		out.Elem().Set(emptyCollections(v.Elem()))
		return out

	case reflect.Slice:
		if v.IsNil() {
			return reflect.MakeSlice(v.Type(), 0, 0)
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := range v.Len() {
			out.Index(i).Set(emptyCollections(v.Index(i)))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return reflect.MakeMap(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), emptyCollections(iter.Value()))
		}
		return out

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := range v.NumField() {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			out.Field(i).Set(emptyCollections(v.Field(i)))
		}
		return out
	}
	return v
}
