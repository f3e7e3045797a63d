package di

import (
	"context"
	"reflect"
)

// Container 是对外的入口，全部委托给 BeanFactory。
type Container struct {
	factory *BeanFactory
}

// NewContainer 创建容器
func NewContainer(factory *BeanFactory) *Container {
	return &Container{factory: factory}
}

// Factory 返回底层的 BeanFactory
func (c *Container) Factory() *BeanFactory {
	return c.factory
}

// GetBean 按类型获取唯一匹配的 Bean。
// thread 生命周期的 Bean 需要 ctx 携带执行上下文（见 WithThreadScope）。
func (c *Container) GetBean(ctx context.Context, typ reflect.Type) (any, error) {
	return c.factory.GetBean(ctx, typ)
}

// GetBeanByID 按 id 获取 Bean，声明类型必须可赋值给 typ。
func (c *Container) GetBeanByID(ctx context.Context, id string, typ reflect.Type) (any, error) {
	return c.factory.GetBeanByID(ctx, id, typ)
}
