package di

import "context"

// Provider 零参数获取函数，在注入时的 ctx 中解析。
// thread Bean 因此绑定到注入时的执行上下文，需要按调用方上下文解析时使用 ContextProvider。
type Provider func() (any, error)

// ContextProvider 在调用方传入的 ctx 中解析，thread Bean 取自该 ctx 的作用域。
type ContextProvider func(ctx context.Context) (any, error)

// Deferred 是 ProviderDependency 解析出的值。TypeRegistry 按注入目标把它转换为
// Provider、ContextProvider 或 func() T 等形式。
type Deferred struct {
	ctx     context.Context
	resolve func(ctx context.Context) (any, error)
}

// Provider 返回在注入时 ctx 中解析的 Provider。
// 结果仍是 Deferred 时（嵌套的 Provider）转换为 Provider。
func (d *Deferred) Provider() Provider {
	return func() (any, error) {
		val, err := d.resolve(d.ctx)
		if inner, ok := val.(*Deferred); ok && err == nil {
			return inner.Provider(), nil
		}
		return val, err
	}
}

// ContextProvider 返回按调用方 ctx 解析的 ContextProvider
func (d *Deferred) ContextProvider() ContextProvider {
	return func(ctx context.Context) (any, error) {
		if ctx == nil {
			ctx = context.Background()
		}
		val, err := d.resolve(ctx)
		if inner, ok := val.(*Deferred); ok && err == nil {
			return inner.ContextProvider(), nil
		}
		return val, err
	}
}
