package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Optional request values. JSON null, a missing key and a blank string all leave the value unset,
// so the `default:"..."` tag applied by ApplyDefaults takes over.

type defaulter interface {
	isSet() bool
	setDefault(tag string) error
}

var jsonNull = []byte("null")

// rawScalar returns the scalar text of a JSON value, or "" for null/blank.
func rawScalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	switch data[0] {
	case '{', '[':
		return "", fmt.Errorf("expected a scalar, got %s", string(data))
	}
	return string(data), nil
}

type OptionalString struct {
	Value string
	Set   bool
}

func NewOptionalString(v string) OptionalString {
	return OptionalString{Value: v, Set: true}
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	s, err := rawScalar(data)
	if err != nil {
		return err
	}
	*o = OptionalString{Value: s, Set: s != ""}
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return jsonNull, nil
	}
	return json.Marshal(o.Value)
}

func (o OptionalString) isSet() bool { return o.Set }

func (o *OptionalString) setDefault(tag string) error {
	*o = OptionalString{Value: tag, Set: true}
	return nil
}

// Ptr returns nil when unset.
func (o OptionalString) Ptr() *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

type OptionalDecimal struct {
	Value decimal.Decimal
	Set   bool
}

func NewOptionalDecimal(v decimal.Decimal) OptionalDecimal {
	return OptionalDecimal{Value: v, Set: true}
}

func (o *OptionalDecimal) UnmarshalJSON(data []byte) error {
	s, err := rawScalar(data)
	if err != nil {
		return err
	}
	if s == "" {
		*o = OptionalDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*o = OptionalDecimal{Value: d, Set: true}
	return nil
}

func (o OptionalDecimal) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return jsonNull, nil
	}
	return json.Marshal(o.Value)
}

func (o OptionalDecimal) isSet() bool { return o.Set }

func (o *OptionalDecimal) setDefault(tag string) error {
	d, err := decimal.NewFromString(tag)
	if err != nil {
		return err
	}
	*o = OptionalDecimal{Value: d, Set: true}
	return nil
}

type OptionalInt struct {
	Value int
	Set   bool
}

func NewOptionalInt(v int) OptionalInt {
	return OptionalInt{Value: v, Set: true}
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	s, err := rawScalar(data)
	if err != nil {
		return err
	}
	if s == "" {
		*o = OptionalInt{}
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*o = OptionalInt{Value: n, Set: true}
	return nil
}

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return jsonNull, nil
	}
	return json.Marshal(o.Value)
}

func (o OptionalInt) isSet() bool { return o.Set }

func (o *OptionalInt) setDefault(tag string) error {
	n, err := strconv.Atoi(tag)
	if err != nil {
		return err
	}
	*o = OptionalInt{Value: n, Set: true}
	return nil
}

// OptionalDate holds a calendar day (midnight UTC).
type OptionalDate struct {
	Value time.Time
	Set   bool
}

func NewOptionalDate(v time.Time) OptionalDate {
	return OptionalDate{Value: time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC), Set: true}
}

func (o *OptionalDate) UnmarshalJSON(data []byte) error {
	s, err := rawScalar(data)
	if err != nil {
		return err
	}
	if s == "" {
		*o = OptionalDate{}
		return nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return err
	}
	*o = OptionalDate{Value: d, Set: true}
	return nil
}

func (o OptionalDate) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return jsonNull, nil
	}
	return json.Marshal(FormatDate(o.Value))
}

func (o OptionalDate) isSet() bool { return o.Set }

func (o *OptionalDate) setDefault(tag string) error {
	d, err := ParseDate(tag)
	if err != nil {
		return err
	}
	*o = OptionalDate{Value: d, Set: true}
	return nil
}

func (o OptionalDate) Ptr() *time.Time {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

var defaulterType = reflect.TypeOf((*defaulter)(nil)).Elem()

// ApplyDefaults fills every unset Optional* field carrying a `default:"..."` tag.
// It walks nested structs, pointers to structs and slices of structs.
func ApplyDefaults(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("ApplyDefaults: expected non-nil pointer, got %T", v)
	}
	return applyDefaults(rv.Elem(), "")
}

func applyDefaults(rv reflect.Value, path string) error {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return applyDefaults(rv.Elem(), path)
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := applyDefaults(rv.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
	default:
		return nil
	}

	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		field := rv.Field(i)
		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if reflect.PointerTo(sf.Type).Implements(defaulterType) {
			tag, ok := sf.Tag.Lookup("default")
			if !ok {
				continue
			}
			d := field.Addr().Interface().(defaulter)
			if d.isSet() {
				continue
			}
			if err := d.setDefault(tag); err != nil {
				return fmt.Errorf("invalid default for %s: %w", fieldPath, err)
			}
			continue
		}
		if err := applyDefaults(field, fieldPath); err != nil {
			return err
		}
	}
	return nil
}
