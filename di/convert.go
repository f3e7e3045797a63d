package di

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))

	errOutOfRange  = errors.New("value out of range")
	errNotIntegral = errors.New("value is not integral")
	errUnsupported = errors.New("unsupported conversion")
)

// ConvertValue 按 ValueDependency 的规则把 value 转换为 typ，供 TypeRegistry 实现复用。
func ConvertValue(value any, typ reflect.Type) (any, error) {
	return convertValue(value, typ)
}

var runeType = reflect.TypeOf(rune(0))

// ConvertChar 把字符字面量转换为 rune：字符串必须恰好是一个字符，数值按码点转换。
func ConvertChar(value any) (rune, error) {
	if s, ok := value.(string); ok {
		r, size := utf8.DecodeRuneInString(s)
		if s == "" || size != len(s) || r == utf8.RuneError {
			return 0, &ConversionError{Value: value, Type: runeType, Err: errors.New("not a single character")}
		}
		return r, nil
	}
	v, err := convertValue(value, runeType)
	if err != nil {
		return 0, err
	}
	return v.(rune), nil
}

// convertValue 把字面量转换为 typ。
// 字符串按 typ 的种类解析，数值之间按范围检查转换，标量可以格式化为字符串。
func convertValue(value any, typ reflect.Type) (any, error) {
	if typ == nil {
		return value, nil
	}

	if value == nil {
		switch typ.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(typ).Interface(), nil
		}
		return nil, &ConversionError{Value: value, Type: typ, Err: errUnsupported}
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(typ) {
		return value, nil
	}

	var (
		out reflect.Value
		err error
	)
	if s, ok := value.(string); ok {
		out, err = parseString(s, typ)
	} else {
		out, err = convertScalar(v, typ)
	}
	if err != nil {
		return nil, &ConversionError{Value: value, Type: typ, Err: err}
	}
	return out.Interface(), nil
}

func parseString(s string, typ reflect.Type) (reflect.Value, error) {
	out := reflect.New(typ).Elem()

	if typ == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return out, err
		}
		out.SetInt(int64(d))
		return out, nil
	}

	trimmed := strings.TrimSpace(s)
	switch kind := typ.Kind(); {
	case kind == reflect.String:
		out.SetString(s)
	case kind == reflect.Bool:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return out, err
		}
		out.SetBool(b)
	case isIntKind(kind):
		n, err := strconv.ParseInt(trimmed, 10, typ.Bits())
		if err != nil {
			return out, err
		}
		out.SetInt(n)
	case isUintKind(kind):
		n, err := strconv.ParseUint(trimmed, 10, typ.Bits())
		if err != nil {
			return out, err
		}
		out.SetUint(n)
	case isFloatKind(kind):
		f, err := strconv.ParseFloat(trimmed, typ.Bits())
		if err != nil {
			return out, err
		}
		out.SetFloat(f)
	default:
		return out, errUnsupported
	}
	return out, nil
}

func convertScalar(v reflect.Value, typ reflect.Type) (reflect.Value, error) {
	out := reflect.New(typ).Elem()
	src := v.Kind()

	switch dst := typ.Kind(); {
	case dst == reflect.String:
		if src != reflect.Bool && !isIntKind(src) && !isUintKind(src) && !isFloatKind(src) {
			return out, errUnsupported
		}
		out.SetString(fmt.Sprint(v.Interface()))

	case dst == reflect.Bool:
		if src != reflect.Bool {
			return out, errUnsupported
		}
		out.SetBool(v.Bool())

	case isIntKind(dst):
		var n int64
		switch {
		case isIntKind(src):
			n = v.Int()
		case isUintKind(src):
			if v.Uint() > math.MaxInt64 {
				return out, errOutOfRange
			}
			n = int64(v.Uint())
		case isFloatKind(src):
			f := v.Float()
			if f != math.Trunc(f) {
				return out, errNotIntegral
			}
			if f < math.MinInt64 || f >= math.MaxInt64 {
				return out, errOutOfRange
			}
			n = int64(f)
		default:
			return out, errUnsupported
		}
		if out.OverflowInt(n) {
			return out, errOutOfRange
		}
		out.SetInt(n)

	case isUintKind(dst):
		var n uint64
		switch {
		case isIntKind(src):
			if v.Int() < 0 {
				return out, errOutOfRange
			}
			n = uint64(v.Int())
		case isUintKind(src):
			n = v.Uint()
		case isFloatKind(src):
			f := v.Float()
			if f != math.Trunc(f) {
				return out, errNotIntegral
			}
			if f < 0 || f >= math.MaxUint64 {
				return out, errOutOfRange
			}
			n = uint64(f)
		default:
			return out, errUnsupported
		}
		if out.OverflowUint(n) {
			return out, errOutOfRange
		}
		out.SetUint(n)

	case isFloatKind(dst):
		var f float64
		switch {
		case isIntKind(src):
			f = float64(v.Int())
		case isUintKind(src):
			f = float64(v.Uint())
		case isFloatKind(src):
			f = v.Float()
		default:
			return out, errUnsupported
		}
		if out.OverflowFloat(f) {
			return out, errOutOfRange
		}
		out.SetFloat(f)

	default:
		return out, errUnsupported
	}
	return out, nil
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
