package di

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// TypeRegistry 实现用这些哨兵错误告知失败类别，核心据此转换为具体错误类型。
var (
	// ErrSignatureMismatch 参数与构造函数签名不匹配，核心会尝试下一个构造方式
	ErrSignatureMismatch = errors.New("di: arguments do not match constructor signature")

	// ErrUnknownMember 字段或 setter 不存在（或不可访问）
	ErrUnknownMember = errors.New("di: unknown member")

	// ErrTypeMismatch 值不能赋给目标字段或参数
	ErrTypeMismatch = errors.New("di: type mismatch")
)

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// UnknownBeanIDError 引用的 id 未注册。
type UnknownBeanIDError struct{ ID string }

func (e *UnknownBeanIDError) Error() string {
	return "di: unknown bean id " + strconv.Quote(e.ID)
}

// NoMatchingBeanError 没有可赋值给请求类型的 Bean。
type NoMatchingBeanError struct{ Type reflect.Type }

func (e *NoMatchingBeanError) Error() string {
	return "di: no bean assignable to " + typeName(e.Type)
}

// AmbiguousBeanError 多个 Bean 可赋值给请求类型。
type AmbiguousBeanError struct {
	Type       reflect.Type
	Candidates []string
}

func (e *AmbiguousBeanError) Error() string {
	return fmt.Sprintf("di: %d beans assignable to %s: %s",
		len(e.Candidates), typeName(e.Type), strings.Join(e.Candidates, ", "))
}

// BeanTypeMismatchError id 对应的声明类型不能赋值给请求类型。
type BeanTypeMismatchError struct {
	ID        string
	Declared  reflect.Type
	Requested reflect.Type
}

func (e *BeanTypeMismatchError) Error() string {
	return fmt.Sprintf("di: bean %q is declared as %s, not assignable to %s",
		e.ID, typeName(e.Declared), typeName(e.Requested))
}

// NoMatchingConstructorError 所有候选构造方式都与参数不匹配。
type NoMatchingConstructorError struct {
	Type       reflect.Type
	Candidates int
}

func (e *NoMatchingConstructorError) Error() string {
	return fmt.Sprintf("di: none of %d constructor(s) of %s match the resolved arguments",
		e.Candidates, typeName(e.Type))
}

// InstantiationError 类型无法实例化或构造函数失败。
type InstantiationError struct {
	Type reflect.Type
	Err  error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("di: cannot instantiate %s: %v", typeName(e.Type), e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

// UnknownFieldError 字段不存在或不可设置。
type UnknownFieldError struct {
	Type  reflect.Type
	Field string
	Err   error
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("di: unknown field %q on %s", e.Field, typeName(e.Type))
}

func (e *UnknownFieldError) Unwrap() error { return e.Err }

// FieldTypeMismatchError 值不能赋给字段。
type FieldTypeMismatchError struct {
	Type  reflect.Type
	Field string
	Err   error
}

func (e *FieldTypeMismatchError) Error() string {
	return fmt.Sprintf("di: field %q on %s: %v", e.Field, typeName(e.Type), e.Err)
}

func (e *FieldTypeMismatchError) Unwrap() error { return e.Err }

// UnknownSetterError setter 不存在。
type UnknownSetterError struct {
	Type   reflect.Type
	Setter string
	Err    error
}

func (e *UnknownSetterError) Error() string {
	return fmt.Sprintf("di: unknown setter %q on %s", e.Setter, typeName(e.Type))
}

func (e *UnknownSetterError) Unwrap() error { return e.Err }

// SetterInvocationError setter 调用失败（参数类型不符、返回错误或 panic）。
type SetterInvocationError struct {
	Type   reflect.Type
	Setter string
	Err    error
}

func (e *SetterInvocationError) Error() string {
	return fmt.Sprintf("di: setter %q on %s failed: %v", e.Setter, typeName(e.Type), e.Err)
}

func (e *SetterInvocationError) Unwrap() error { return e.Err }

// ConversionError 字面量无法转换为目标类型。
type ConversionError struct {
	Value any
	Type  reflect.Type
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("di: cannot convert %#v to %s: %v", e.Value, typeName(e.Type), e.Err)
	}
	return fmt.Sprintf("di: cannot convert %#v to %s", e.Value, typeName(e.Type))
}

func (e *ConversionError) Unwrap() error { return e.Err }

// CyclicDependencyError 在没有 Provider 隔断的情况下出现循环依赖。
// Path 从最外层开始，最后一个元素与环的起点相同。
type CyclicDependencyError struct{ Path []string }

func (e *CyclicDependencyError) Error() string {
	return "di: dependency cycle: " + strings.Join(e.Path, " -> ")
}

// MissingThreadScopeError 请求 thread 生命周期的 Bean，但 context 中没有执行上下文。
type MissingThreadScopeError struct{ Bean string }

func (e *MissingThreadScopeError) Error() string {
	return fmt.Sprintf("di: thread bean %s requested without a thread scope; use di.WithThreadScope", e.Bean)
}
