package di

import "reflect"

// Argument 已解析的构造参数。Name 非空时按名称绑定，否则按位置。
type Argument struct {
	Name  string
	Value any
}

// TypeRegistry 是核心依赖的实例化能力，核心只决定何时、用什么参数调用它。
//
// 实现通过 ErrSignatureMismatch、ErrUnknownMember、ErrTypeMismatch 报告失败类别
// （用 %w 包装即可）。包 registry 提供基于反射的实现。
type TypeRegistry interface {
	// Construct 用参数创建 typ 的实例
	Construct(typ reflect.Type, args []Argument) (any, error)

	// SetField 直接为实例的字段赋值（不经过 setter）
	SetField(instance any, name string, value any) error

	// InvokeSetter 以 value 为唯一参数调用名为 name 的 setter
	InvokeSetter(instance any, name string, value any) error
}
