// Package registry 提供基于反射的 di.TypeRegistry 实现：
// 按名称登记类型和构造函数，按参数匹配构造函数，给字段赋值并调用 setter。
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gocrud/beans/di"
)

// ErrAbstractType 接口等抽象类型没有登记构造函数，无法实例化
var ErrAbstractType = errors.New("registry: abstract type")

// constructor 一个登记的构造函数
type constructor struct {
	fnType reflect.Type
	params []string // 参数名，可为空（只能按位置绑定）
	invoke Invoker
}

// typeInfo 一个登记的类型
type typeInfo struct {
	typ   reflect.Type
	names []string
	ctors []*constructor
	err   error // 选项应用过程中的错误
}

// Option 登记类型时的选项
type Option func(*typeInfo)

// WithName 为类型增加一个名称，描述文档中用它引用类型
func WithName(name string) Option {
	return func(t *typeInfo) {
		if name == "" {
			t.err = fmt.Errorf("registry: empty type name for %s", t.typ)
			return
		}
		t.names = append(t.names, name)
	}
}

// WithConstructor 登记一个构造函数。fn 必须返回可赋值给类型的值，
// 可以带一个末尾的 error。params 给出参数名，用于按名称绑定。
func WithConstructor(fn any, params ...string) Option {
	return func(t *typeInfo) {
		ctor, err := newConstructor(t.typ, fn, params)
		if err != nil {
			t.err = err
			return
		}
		t.ctors = append(t.ctors, ctor)
	}
}

func newConstructor(typ reflect.Type, fn any, params []string) (*constructor, error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, fmt.Errorf("registry: constructor for %s must be a function, got %T", typ, fn)
	}

	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("registry: constructor %s for %s is variadic", ft, typ)
	}
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("registry: constructor %s for %s: second result must be error", ft, typ)
		}
	default:
		return nil, fmt.Errorf("registry: constructor %s for %s must return (T) or (T, error)", ft, typ)
	}
	if !ft.Out(0).AssignableTo(typ) {
		return nil, fmt.Errorf("registry: constructor %s returns %s, not assignable to %s", ft, ft.Out(0), typ)
	}
	if len(params) > 0 && len(params) != ft.NumIn() {
		return nil, fmt.Errorf("registry: constructor %s for %s has %d parameters, %d names given",
			ft, typ, ft.NumIn(), len(params))
	}

	return &constructor{
		fnType: ft,
		params: params,
		invoke: newInvoker(fv, "constructor "+ft.String()),
	}, nil
}

// Registry 是 di.TypeRegistry 的反射实现，可以并发使用。
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	types  map[reflect.Type]*typeInfo
}

var _ di.TypeRegistry = (*Registry)(nil)

// builtins 文档中可以直接使用的标量类型名
var builtins = map[string]reflect.Type{
	"string":   reflect.TypeOf(""),
	"char":     reflect.TypeOf(rune(0)),
	"rune":     reflect.TypeOf(rune(0)),
	"bool":     reflect.TypeOf(false),
	"boolean":  reflect.TypeOf(false),
	"int":      reflect.TypeOf(0),
	"int8":     reflect.TypeOf(int8(0)),
	"int16":    reflect.TypeOf(int16(0)),
	"short":    reflect.TypeOf(int16(0)),
	"int32":    reflect.TypeOf(int32(0)),
	"int64":    reflect.TypeOf(int64(0)),
	"long":     reflect.TypeOf(int64(0)),
	"uint":     reflect.TypeOf(uint(0)),
	"uint8":    reflect.TypeOf(uint8(0)),
	"byte":     reflect.TypeOf(uint8(0)),
	"uint16":   reflect.TypeOf(uint16(0)),
	"uint32":   reflect.TypeOf(uint32(0)),
	"uint64":   reflect.TypeOf(uint64(0)),
	"float32":  reflect.TypeOf(float32(0)),
	"float":    reflect.TypeOf(float32(0)),
	"float64":  reflect.TypeOf(float64(0)),
	"double":   reflect.TypeOf(float64(0)),
	"duration": reflect.TypeOf(time.Duration(0)),
}

// New 创建空的 Registry
func New() *Registry {
	return &Registry{
		byName: make(map[string]reflect.Type),
		types:  make(map[reflect.Type]*typeInfo),
	}
}

// Register 登记类型。未指定名称时使用 typ.String()。
// 同一类型可以多次登记，名称和构造函数会累加。
func (r *Registry) Register(typ reflect.Type, opts ...Option) error {
	if typ == nil {
		return fmt.Errorf("registry: nil type")
	}

	pending := &typeInfo{typ: typ}
	for _, opt := range opts {
		opt(pending)
		if pending.err != nil {
			return pending.err
		}
	}
	if len(pending.names) == 0 {
		pending.names = []string{typ.String()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range pending.names {
		if _, ok := builtins[name]; ok {
			return fmt.Errorf("registry: name %q is reserved", name)
		}
		if existing, ok := r.byName[name]; ok && existing != typ {
			return fmt.Errorf("registry: name %q already used by %s", name, existing)
		}
	}

	info, ok := r.types[typ]
	if !ok {
		info = &typeInfo{typ: typ}
		r.types[typ] = info
	}
	for _, name := range pending.names {
		if _, ok := r.byName[name]; !ok {
			info.names = append(info.names, name)
		}
		r.byName[name] = typ
	}
	info.ctors = append(info.ctors, pending.ctors...)
	return nil
}

// Register 登记类型 T（泛型辅助函数）
func Register[T any](r *Registry, opts ...Option) error {
	return r.Register(di.TypeOf[T](), opts...)
}

// MustRegister 与 Register 相同，失败时 panic
func (r *Registry) MustRegister(typ reflect.Type, opts ...Option) *Registry {
	if err := r.Register(typ, opts...); err != nil {
		panic(err)
	}
	return r
}

// Lookup 按名称查找类型，包括内置标量类型名。
// 支持 "*name" 和 "[]name" 形式。
func (r *Registry) Lookup(name string) (reflect.Type, bool) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, false
	case strings.HasPrefix(name, "[]"):
		elem, ok := r.Lookup(name[2:])
		if !ok {
			return nil, false
		}
		return reflect.SliceOf(elem), true
	}

	if t, ok := builtins[name]; ok {
		return t, true
	}

	r.mu.RLock()
	t, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return t, true
	}

	if strings.HasPrefix(name, "*") {
		elem, ok := r.Lookup(name[1:])
		if !ok {
			return nil, false
		}
		return reflect.PointerTo(elem), true
	}
	return nil, false
}

// Names 返回所有登记的名称（不含内置类型），按字母排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) info(typ reflect.Type) *typeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[typ]
}

// Construct 创建 typ 的实例。
// 登记了构造函数时按顺序选择第一个参数匹配的；否则直接创建结构体，
// 具名参数赋值给同名字段。没有可用方式时返回包装了 di.ErrSignatureMismatch 的错误。
func (r *Registry) Construct(typ reflect.Type, args []di.Argument) (any, error) {
	if typ == nil {
		return nil, fmt.Errorf("%w: nil type", di.ErrSignatureMismatch)
	}

	if info := r.info(typ); info != nil && len(info.ctors) > 0 {
		for _, ctor := range info.ctors {
			in, ok := ctor.bind(args)
			if !ok {
				continue
			}
			return ctor.invoke(in)
		}
		return nil, fmt.Errorf("%w: no constructor of %s accepts %s",
			di.ErrSignatureMismatch, typ, describeArgs(args))
	}

	return constructLiteral(typ, args)
}

// bind 把参数绑定到构造函数的形参，类型不匹配时返回 false
func (c *constructor) bind(args []di.Argument) ([]reflect.Value, bool) {
	n := c.fnType.NumIn()
	if len(args) != n {
		return nil, false
	}

	order := make([]int, n)
	if named(args) && len(c.params) > 0 {
		index := make(map[string]int, n)
		for i, p := range c.params {
			index[p] = i
		}
		used := make([]bool, n)
		for i, arg := range args {
			pos, ok := index[arg.Name]
			if !ok || used[pos] {
				return nil, false
			}
			used[pos] = true
			order[i] = pos
		}
	} else {
		for i := range order {
			order[i] = i
		}
	}

	in := make([]reflect.Value, n)
	for i, arg := range args {
		pos := order[i]
		v, err := adapt(arg.Value, c.fnType.In(pos))
		if err != nil {
			return nil, false
		}
		in[pos] = v
	}
	return in, true
}

func named(args []di.Argument) bool {
	if len(args) == 0 {
		return false
	}
	for _, arg := range args {
		if arg.Name == "" {
			return false
		}
	}
	return true
}

// constructLiteral 没有构造函数时直接创建结构体（或指向结构体的指针）
func constructLiteral(typ reflect.Type, args []di.Argument) (any, error) {
	structType := typ
	if typ.Kind() == reflect.Ptr {
		structType = typ.Elem()
	}

	if structType.Kind() != reflect.Struct {
		switch typ.Kind() {
		case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return nil, fmt.Errorf("%w: %s has no registered constructor", ErrAbstractType, typ)
		}
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: %s has no registered constructor", di.ErrSignatureMismatch, typ)
		}
		switch typ.Kind() {
		case reflect.Ptr:
			return reflect.New(typ.Elem()).Interface(), nil
		case reflect.Map:
			return reflect.MakeMap(typ).Interface(), nil
		case reflect.Slice:
			return reflect.MakeSlice(typ, 0, 0).Interface(), nil
		}
		return reflect.Zero(typ).Interface(), nil
	}

	ptr := reflect.New(structType)
	for _, arg := range args {
		if arg.Name == "" {
			return nil, fmt.Errorf("%w: %s has no registered constructor for positional arguments",
				di.ErrSignatureMismatch, typ)
		}
		field, ok := findField(ptr.Elem(), arg.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", di.ErrSignatureMismatch, typ, arg.Name)
		}
		v, err := adapt(arg.Value, field.Type())
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", di.ErrSignatureMismatch, arg.Name, err)
		}
		field.Set(v)
	}

	if typ.Kind() == reflect.Ptr {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

// SetField 直接给字段赋值，instance 必须是指向结构体的指针。
// 字段名先按原样查找，再按首字母大写查找。
func (r *Registry) SetField(instance any, name string, value any) error {
	v := reflect.ValueOf(instance)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: fields can only be set on a struct pointer, got %T", di.ErrUnknownMember, instance)
	}

	field, ok := findField(v.Elem(), name)
	if !ok {
		return fmt.Errorf("%w: %T has no exported field %q", di.ErrUnknownMember, instance, name)
	}

	fv, err := adapt(value, field.Type())
	if err != nil {
		return err
	}
	field.Set(fv)
	return nil
}

// InvokeSetter 调用名为 name 的单参数方法。
// 依次尝试 name、"Set"+Name、Name。
func (r *Registry) InvokeSetter(instance any, name string, value any) error {
	v := reflect.ValueOf(instance)
	if !v.IsValid() {
		return fmt.Errorf("%w: nil instance", di.ErrUnknownMember)
	}

	method, ok := findSetter(v, name)
	if !ok {
		return fmt.Errorf("%w: %T has no setter %q", di.ErrUnknownMember, instance, name)
	}

	arg, err := adapt(value, method.Type().In(0))
	if err != nil {
		return err
	}
	return callSetter(method, arg, name)
}

func findField(v reflect.Value, name string) (reflect.Value, bool) {
	for _, candidate := range []string{name, capitalize(name)} {
		sf, ok := v.Type().FieldByName(candidate)
		if !ok || !sf.IsExported() {
			continue
		}
		// 经过 nil 嵌入指针的字段不可达
		field, err := v.FieldByIndexErr(sf.Index)
		if err == nil && field.CanSet() {
			return field, true
		}
	}
	return reflect.Value{}, false
}

func findSetter(v reflect.Value, name string) (reflect.Value, bool) {
	upper := capitalize(name)
	for _, candidate := range []string{name, "Set" + upper, upper} {
		m := v.MethodByName(candidate)
		if !m.IsValid() {
			continue
		}
		mt := m.Type()
		if mt.NumIn() != 1 || mt.IsVariadic() {
			continue
		}
		if mt.NumOut() > 1 || (mt.NumOut() == 1 && mt.Out(0) != errorType) {
			continue
		}
		return m, true
	}
	return reflect.Value{}, false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func describeArgs(args []di.Argument) string {
	if len(args) == 0 {
		return "no arguments"
	}
	parts := make([]string, len(args))
	for i, arg := range args {
		name := arg.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		parts[i] = fmt.Sprintf("%s:%T", name, arg.Value)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
