package registry

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gocrud/beans/di"
)

var (
	providerType        = reflect.TypeOf(di.Provider(nil))
	contextProviderType = reflect.TypeOf(di.ContextProvider(nil))
	contextType         = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// adapt 把已解析的值转换为 target 类型的 reflect.Value。
// 延迟依赖可以注入到 di.Provider、di.ContextProvider、func() T、func() (T, error)
// 和 func(context.Context) (T, error) 形式的参数里。
func adapt(value any, target reflect.Type) (reflect.Value, error) {
	if d, ok := value.(*di.Deferred); ok {
		if target.Kind() == reflect.Func {
			return adaptDeferred(d, target)
		}
		value = d.Provider()
	}

	if value == nil {
		switch target.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil is not assignable to %s", di.ErrTypeMismatch, target)
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return exact(v, target), nil
	}

	if p, ok := value.(di.Provider); ok && target.Kind() == reflect.Func {
		return adaptProvider(p, target)
	}

	converted, err := di.ConvertValue(value, target)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v", di.ErrTypeMismatch, err)
	}
	return exact(reflect.ValueOf(converted), target), nil
}

// exact 返回类型恰好为 target 的值，MakeFunc 的返回值要求类型完全一致
func exact(v reflect.Value, target reflect.Type) reflect.Value {
	if v.Type() == target {
		return v
	}
	out := reflect.New(target).Elem()
	out.Set(v)
	return out
}

func adaptDeferred(d *di.Deferred, target reflect.Type) (reflect.Value, error) {
	switch {
	case target == providerType:
		return reflect.ValueOf(d.Provider()), nil
	case target == contextProviderType:
		return reflect.ValueOf(d.ContextProvider()), nil
	case target.NumIn() == 1 && target.In(0) == contextType:
		return adaptContextProvider(d.ContextProvider(), target)
	}
	return adaptProvider(d.Provider(), target)
}

// adaptContextProvider 用 MakeFunc 把 ContextProvider 包装为 func(context.Context) (T, error)
func adaptContextProvider(p di.ContextProvider, target reflect.Type) (reflect.Value, error) {
	if target.IsVariadic() || target.NumOut() != 2 || target.Out(1) != errorType {
		return reflect.Value{}, fmt.Errorf("%w: provider cannot be adapted to %s", di.ErrTypeMismatch, target)
	}
	out := target.Out(0)

	fn := reflect.MakeFunc(target, func(in []reflect.Value) []reflect.Value {
		ctx, _ := in[0].Interface().(context.Context)
		val, err := p(ctx)
		var rv reflect.Value
		if err == nil {
			rv, err = adapt(val, out)
		}
		if err != nil {
			return []reflect.Value{reflect.Zero(out), reflect.ValueOf(&err).Elem()}
		}
		return []reflect.Value{rv, reflect.Zero(errorType)}
	})
	return fn, nil
}

// adaptProvider 用 MakeFunc 把 Provider 包装为 func() T / func() (T, error)。
// func() T 形式在解析失败时 panic。
func adaptProvider(p di.Provider, target reflect.Type) (reflect.Value, error) {
	if target.NumIn() != 0 || target.IsVariadic() {
		return reflect.Value{}, fmt.Errorf("%w: provider cannot be adapted to %s", di.ErrTypeMismatch, target)
	}
	withErr := false
	switch target.NumOut() {
	case 1:
	case 2:
		if target.Out(1) != errorType {
			return reflect.Value{}, fmt.Errorf("%w: provider cannot be adapted to %s", di.ErrTypeMismatch, target)
		}
		withErr = true
	default:
		return reflect.Value{}, fmt.Errorf("%w: provider cannot be adapted to %s", di.ErrTypeMismatch, target)
	}
	out := target.Out(0)

	fn := reflect.MakeFunc(target, func([]reflect.Value) []reflect.Value {
		val, err := p()
		var rv reflect.Value
		if err == nil {
			rv, err = adapt(val, out)
		}
		if err != nil {
			if !withErr {
				panic(err)
			}
			return []reflect.Value{reflect.Zero(out), reflect.ValueOf(&err).Elem()}
		}
		if withErr {
			return []reflect.Value{rv, reflect.Zero(errorType)}
		}
		return []reflect.Value{rv}
	})
	return fn, nil
}
