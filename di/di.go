package di

import (
	"context"
	"fmt"
	"reflect"
)

// TypeOf 获取类型 T 的 reflect.Type（泛型辅助函数）
//
// 示例：
//
//	desc := &di.BeanDescription{Type: di.TypeOf[*UserService]()}
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Get 按类型 T 从容器获取 Bean
func Get[T any](ctx context.Context, c *Container) (T, error) {
	var zero T
	val, err := c.GetBean(ctx, TypeOf[T]())
	if err != nil {
		return zero, err
	}
	return cast[T](val)
}

// GetByID 按 id 获取 Bean 并断言为 T
func GetByID[T any](ctx context.Context, c *Container, id string) (T, error) {
	var zero T
	val, err := c.GetBeanByID(ctx, id, TypeOf[T]())
	if err != nil {
		return zero, err
	}
	return cast[T](val)
}

// MustGet 与 Get 相同，失败时 panic
func MustGet[T any](ctx context.Context, c *Container) T {
	val, err := Get[T](ctx, c)
	if err != nil {
		panic(err)
	}
	return val
}

// Call 调用 Provider 并把结果断言为 T
func Call[T any](p Provider) (T, error) {
	var zero T
	if p == nil {
		return zero, fmt.Errorf("di: nil provider")
	}
	val, err := p()
	if err != nil {
		return zero, err
	}
	return cast[T](val)
}

// CallContext 在 ctx 中调用 ContextProvider 并把结果断言为 T
func CallContext[T any](ctx context.Context, p ContextProvider) (T, error) {
	var zero T
	if p == nil {
		return zero, fmt.Errorf("di: nil provider")
	}
	val, err := p(ctx)
	if err != nil {
		return zero, err
	}
	return cast[T](val)
}

func cast[T any](val any) (T, error) {
	var zero T
	if val == nil {
		return zero, nil
	}
	if v, ok := val.(T); ok {
		return v, nil
	}
	return zero, fmt.Errorf("di: resolved value is %T, expected %v", val, TypeOf[T]())
}
