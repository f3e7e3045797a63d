package registry

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Invoker 封装反射调用：恢复 panic，检查末尾的 error 返回值和 nil 实例
type Invoker func(args []reflect.Value) (any, error)

// newInvoker 为构造函数创建调用器，fn 必须返回 (T) 或 (T, error)
func newInvoker(fn reflect.Value, what string) Invoker {
	return func(args []reflect.Value) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panicked: %v", what, r)
			}
		}()

		results := fn.Call(args)
		if len(results) == 0 {
			return nil, fmt.Errorf("%s returned no values", what)
		}

		// 检查 error
		if len(results) > 1 {
			last := results[len(results)-1]
			if last.Type().Implements(errorType) && !last.IsNil() {
				return nil, fmt.Errorf("%s failed: %w", what, last.Interface().(error))
			}
		}

		// 检查 nil
		first := results[0]
		switch first.Kind() {
		case reflect.Ptr, reflect.Interface:
			if first.IsNil() {
				return nil, fmt.Errorf("%s returned nil instance", what)
			}
		}

		return first.Interface(), nil
	}
}

// callSetter 调用 setter，setter 可以没有返回值或只返回 error
func callSetter(method reflect.Value, arg reflect.Value, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setter %s panicked: %v", name, r)
		}
	}()

	results := method.Call([]reflect.Value{arg})
	if len(results) > 0 {
		last := results[len(results)-1]
		if last.Type().Implements(errorType) && !last.IsNil() {
			return last.Interface().(error)
		}
	}
	return nil
}
