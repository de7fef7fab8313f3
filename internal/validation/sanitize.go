package validation

import (
	"reflect"
	"strings"
)

// Sanitize trims every string reachable from target and clears optional strings that end up empty.
// target must be a pointer to a struct; other values are left untouched.
func Sanitize(target any) {
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Pointer || value.IsNil() {
		return
	}
	sanitizeValue(value.Elem())
}

func sanitizeValue(value reflect.Value) {
	switch value.Kind() {
	case reflect.String:
		if value.CanSet() {
			value.SetString(strings.TrimSpace(value.String()))
		}
	case reflect.Pointer:
		if value.IsNil() {
			return
		}
		if value.Elem().Kind() == reflect.String {
			trimmed := strings.TrimSpace(value.Elem().String())
			if trimmed == "" && value.CanSet() {
				value.Set(reflect.Zero(value.Type()))
				return
			}
			value.Elem().SetString(trimmed)
			return
		}
		sanitizeValue(value.Elem())
	case reflect.Struct:
		for index := 0; index < value.NumField(); index++ {
			if !value.Type().Field(index).IsExported() {
				continue
			}
			sanitizeValue(value.Field(index))
		}
	case reflect.Slice:
		for index := 0; index < value.Len(); index++ {
			sanitizeValue(value.Index(index))
		}
	}
}
