// Copyright 2026 The Eventboard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package permissions

import (
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// FieldGetter exposes named fields of an object for condition evaluation.
// Objects that are not a map[string]any must implement it to be checked
// against conditional rules.
type FieldGetter interface {
	Field(name string) (any, bool)
}

const (
	placeholderPrefix = "${user."
	placeholderSuffix = "}"
)

// evaluateConditions reports whether every condition holds for object.
// An empty condition set always holds.
func evaluateConditions(conditions map[string]any, object any, user *User) bool {
	for field, want := range conditions {
		got, ok := fieldValue(object, field)
		if !ok {
			return false
		}
		want, ok = resolvePlaceholder(want, user)
		if !ok {
			return false
		}
		if !conditionMatches(want, got) {
			return false
		}
	}
	return true
}

func fieldValue(object any, field string) (any, bool) {
	switch o := object.(type) {
	case map[string]any:
		v, ok := o[field]
		return v, ok
	case FieldGetter:
		if isNilValue(o) {
			return nil, false
		}
		return o.Field(field)
	default:
		return nil, false
	}
}

// resolvePlaceholder substitutes "${user.<field>}" with the user's value.
// It fails when there is no user or the field is unknown.
func resolvePlaceholder(v any, user *User) (any, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, placeholderPrefix) || !strings.HasSuffix(s, placeholderSuffix) {
		return v, true
	}
	if user == nil {
		return nil, false
	}

	switch strings.TrimSuffix(strings.TrimPrefix(s, placeholderPrefix), placeholderSuffix) {
	case "id":
		return user.ID, true
	case "email":
		return user.Email, true
	case "name":
		return user.Name, true
	default:
		return nil, false
	}
}

// conditionMatches treats a slice condition as a membership test and
// anything else as equality. When the object field is itself a slice the
// condition holds if any element matches.
func conditionMatches(want, got any) bool {
	if elems, ok := sliceValue(got); ok {
		for i := 0; i < elems.Len(); i++ {
			if valueMatches(want, elems.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return valueMatches(want, got)
}

func valueMatches(want, got any) bool {
	if options, ok := sliceValue(want); ok {
		for i := 0; i < options.Len(); i++ {
			if valuesEqual(options.Index(i).Interface(), got) {
				return true
			}
		}
		return false
	}
	return valuesEqual(want, got)
}

// sliceValue reports v as a slice or array. []byte counts as a scalar.
func sliceValue(v any) (reflect.Value, bool) {
	if v == nil {
		return reflect.Value{}, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv, true
	}
	return reflect.Value{}, false
}

// isNilValue catches typed nils hidden in an interface.
func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// valuesEqual compares numbers by value so that a JSON-decoded float64
// condition matches an int field.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	as, aErr := cast.ToStringE(a)
	bs, bErr := cast.ToStringE(b)
	if aErr == nil && bErr == nil && reflect.TypeOf(a).Kind() == reflect.TypeOf(b).Kind() {
		return as == bs
	}
	return reflect.DeepEqual(a, b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
