package di

import "reflect"

// Dependency 描述一个构造参数、字段或 setter 值的来源。
// 它是封闭的和类型：只有本包定义的几种实现。
type Dependency interface {
	// FieldName 返回目标参数/字段/setter 名称，位置参数返回空字符串
	FieldName() string

	isDependency()
}

// ValueDependency 字面量，解析时转换为 Type。
type ValueDependency struct {
	Name  string
	Value any
	Type  reflect.Type
}

// IDReference 按 id 引用另一个 Bean。
type IDReference struct {
	Name string
	ID   string
}

// TypeReference 按类型在匿名描述中查找唯一匹配的 Bean。
type TypeReference struct {
	Name string
	Type reflect.Type
}

// InnerDescription 内联的匿名描述。
// 缓存键是该节点本身，因此单例内联 Bean 只在同一节点上共享。
type InnerDescription struct {
	Name        string
	Description *BeanDescription
}

// ProviderDependency 延迟解析：注入的是一个 Provider，调用时才解析 Inner。
type ProviderDependency struct {
	Name  string
	Inner Dependency
}


func (d *ValueDependency) FieldName() string    { return d.Name }
func (d *IDReference) FieldName() string        { return d.Name }
func (d *TypeReference) FieldName() string      { return d.Name }
func (d *InnerDescription) FieldName() string   { return d.Name }
func (d *ProviderDependency) FieldName() string { return d.Name }

func (*ValueDependency) isDependency()    {}
func (*IDReference) isDependency()        {}
func (*TypeReference) isDependency()      {}
func (*InnerDescription) isDependency()   {}
func (*ProviderDependency) isDependency() {}

// Value 创建字面量依赖
func Value(v any, typ reflect.Type) *ValueDependency {
	return &ValueDependency{Value: v, Type: typ}
}

// Ref 创建按 id 的引用
func Ref(id string) *IDReference {
	return &IDReference{ID: id}
}

// ByType 创建按类型的引用
func ByType(typ reflect.Type) *TypeReference {
	return &TypeReference{Type: typ}
}

// Inline 创建内联描述依赖
func Inline(desc *BeanDescription) *InnerDescription {
	return &InnerDescription{Description: desc}
}

// Lazy 用 Provider 包装一个依赖
func Lazy(dep Dependency) *ProviderDependency {
	return &ProviderDependency{Inner: dep}
}

// Named 返回设置了名称的依赖副本，原依赖不变。
func Named(name string, dep Dependency) Dependency {
	switch d := dep.(type) {
	case *ValueDependency:
		c := *d
		c.Name = name
		return &c
	case *IDReference:
		c := *d
		c.Name = name
		return &c
	case *TypeReference:
		c := *d
		c.Name = name
		return &c
	case *InnerDescription:
		c := *d
		c.Name = name
		return &c
	case *ProviderDependency:
		c := *d
		c.Name = name
		return &c
	}
	return dep
}
