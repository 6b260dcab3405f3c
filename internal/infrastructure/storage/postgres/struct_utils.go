package postgres

import (
	"maps"
	"reflect"
	"sync"
)

// ExtractDBColumns lists the "db" tagged columns of T in field order,
// flattening embedded structs such as entity.BaseEntity.
// Repositories call it once at construction.
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := columnsOf(reflect.TypeOf(zero))

	var cols []string
	var walk func(m *columnMeta)
	walk = func(m *columnMeta) {
		for _, f := range m.fields {
			if f.embedded != nil {
				walk(f.embedded)
				continue
			}
			cols = append(cols, f.column)
		}
	}
	walk(meta)
	return cols
}

type columnField struct {
	index    int
	column   string
	embedded *columnMeta
}

type columnMeta struct {
	fields []columnField
}

var columnCache sync.Map // reflect.Type -> *columnMeta

func columnsOf(t reflect.Type) *columnMeta {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.(*columnMeta)
	}

	meta := &columnMeta{}
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.Anonymous && field.Type.Kind() == reflect.Struct {
				meta.fields = append(meta.fields, columnField{index: i, embedded: columnsOf(field.Type)})
				continue
			}
			tag := field.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			meta.fields = append(meta.fields, columnField{index: i, column: tag})
		}
	}

	actual, _ := columnCache.LoadOrStore(t, meta)
	return actual.(*columnMeta)
}

// StructToMap maps "db" tags to field values. Untagged and "-" fields are skipped.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := columnsOf(rv.Type())
	res := make(map[string]any, len(meta.fields))
	for _, f := range meta.fields {
		if f.embedded != nil {
			maps.Copy(res, StructToMap(rv.Field(f.index).Interface()))
			continue
		}
		res[f.column] = rv.Field(f.index).Interface()
	}
	return res
}
