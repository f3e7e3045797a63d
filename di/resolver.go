package di

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/gocrud/beans/logging"
)

// frame 是一次解析调用中正在构建的 Bean 链上的一个节点。
// 链不可变，Provider 可以安全地持有它；构建完成的节点被标记为 done，
// 之后不再参与循环检测。
type frame struct {
	desc   *BeanDescription
	label  string
	parent *frame
	call   *call
	done   atomic.Bool
}

// path 返回链上仍在构建的 Bean，从最外层开始
func (f *frame) path() []string {
	var rev []string
	for x := f; x != nil; x = x.parent {
		if !x.done.Load() {
			rev = append(rev, x.label)
		}
	}
	path := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// deferred 为 Provider 调用创建链的延续：保留原链用于循环检测，
// 但以新的 call 参与等待图，因为调用可能发生在另一个 goroutine。
func (f *frame) deferred() *frame {
	fr := &frame{parent: f, call: &call{}}
	if f != nil {
		fr.call.parent = f.call
	}
	fr.done.Store(true)
	return fr
}

// cycle 如果 desc 仍在构建链上则返回循环错误。
func (f *frame) cycle(desc *BeanDescription, label string) *CyclicDependencyError {
	for fr := f; fr != nil; fr = fr.parent {
		if fr.done.Load() || fr.desc != desc {
			continue
		}

		var rev []string
		for x := f; x != nil; x = x.parent {
			if !x.done.Load() {
				rev = append(rev, x.label)
			}
			if x == fr {
				break
			}
		}
		path := make([]string, 0, len(rev)+1)
		for i := len(rev) - 1; i >= 0; i-- {
			path = append(path, rev[i])
		}
		return &CyclicDependencyError{Path: append(path, label)}
	}
	return nil
}

func (k beanKey) label(desc *BeanDescription) string {
	switch {
	case k.id != "":
		return k.id
	case k.node != nil:
		return "<inline " + desc.label() + ">"
	default:
		return "<" + desc.label() + ">"
	}
}

// resolve 把依赖解析为值。
func (f *BeanFactory) resolve(ctx context.Context, parent *frame, dep Dependency) (any, error) {
	switch d := dep.(type) {
	case *ValueDependency:
		return convertValue(d.Value, d.Type)

	case *IDReference:
		desc, ok := f.byID[d.ID]
		if !ok {
			return nil, &UnknownBeanIDError{ID: d.ID}
		}
		return f.obtain(ctx, parent, beanKey{id: d.ID}, desc)

	case *TypeReference:
		desc, err := f.matchAnonymous(d.Type)
		if err != nil {
			return nil, err
		}
		return f.obtain(ctx, parent, beanKey{desc: desc}, desc)

	case *InnerDescription:
		return f.obtain(ctx, parent, beanKey{node: d}, d.Description)

	case *ProviderDependency:
		inner := d.Inner
		return &Deferred{ctx: ctx, resolve: func(callCtx context.Context) (any, error) {
			return f.resolve(callCtx, parent.deferred(), inner)
		}}, nil
	}
	return nil, fmt.Errorf("di: unsupported dependency %T", dep)
}

// obtain 按生命周期获取或创建 Bean。
// 循环检测必须在获取槽位锁之前完成，否则同一调用链会在自己持有的锁上死锁。
func (f *BeanFactory) obtain(ctx context.Context, parent *frame, key beanKey, desc *BeanDescription) (any, error) {
	label := key.label(desc)
	if err := parent.cycle(desc, label); err != nil {
		return nil, err
	}

	fr := &frame{desc: desc, label: label, parent: parent}
	if parent != nil {
		fr.call = parent.call
	} else {
		fr.call = &call{}
	}
	defer fr.done.Store(true)

	create := func() (any, error) {
		return f.construct(ctx, fr, desc)
	}

	switch desc.Lifecycle {
	case Prototype:
		return create()

	case Singleton:
		return f.cached(f.singletons.entry(key), parent, fr, create)

	case Thread:
		scope, ok := threadScopeFrom(ctx)
		if !ok {
			return nil, &MissingThreadScopeError{Bean: label}
		}
		return f.cached(scope.entries.entry(threadKey{factory: f, key: key}), parent, fr, create)
	}

	return nil, &InstantiationError{Type: desc.Type, Err: fmt.Errorf("unknown lifecycle %v", desc.Lifecycle)}
}

// cached 从槽位获取实例。跨 goroutine 的等待环在这里报告，路径补上本次解析链。
func (f *BeanFactory) cached(e *instanceEntry, parent, fr *frame, create func() (any, error)) (any, error) {
	val, err := e.get(fr.call, fr.label, create)
	if wc, ok := err.(*waitCycle); ok {
		return nil, &CyclicDependencyError{Path: append(parent.path(), wc.path...)}
	}
	return val, err
}

// construct 构造实例：先构造函数，再字段，最后 setter，组内保持声明顺序。
func (f *BeanFactory) construct(ctx context.Context, fr *frame, desc *BeanDescription) (any, error) {
	instance, err := f.instantiate(ctx, fr, desc)
	if err != nil {
		return nil, err
	}

	for _, dep := range desc.Fields {
		name := dep.FieldName()
		if name == "" {
			return nil, &UnknownFieldError{Type: desc.Type, Err: errors.New("field dependency has no name")}
		}
		val, err := f.resolve(ctx, fr, dep)
		if err != nil {
			return nil, err
		}
		if err := f.types.SetField(instance, name, val); err != nil {
			if errors.Is(err, ErrUnknownMember) {
				return nil, &UnknownFieldError{Type: desc.Type, Field: name, Err: err}
			}
			return nil, &FieldTypeMismatchError{Type: desc.Type, Field: name, Err: err}
		}
	}

	for _, dep := range desc.Setters {
		name := dep.FieldName()
		if name == "" {
			return nil, &UnknownSetterError{Type: desc.Type, Err: errors.New("setter dependency has no name")}
		}
		val, err := f.resolve(ctx, fr, dep)
		if err != nil {
			return nil, err
		}
		if err := f.types.InvokeSetter(instance, name, val); err != nil {
			if errors.Is(err, ErrUnknownMember) {
				return nil, &UnknownSetterError{Type: desc.Type, Setter: name, Err: err}
			}
			return nil, &SetterInvocationError{Type: desc.Type, Setter: name, Err: err}
		}
	}

	f.logger.Debug("bean constructed",
		logging.Field{Key: "bean", Value: fr.label},
		logging.Field{Key: "lifecycle", Value: desc.Lifecycle.String()})

	return instance, nil
}

// instantiate 选择第一个签名匹配的构造方式并创建原始实例。
func (f *BeanFactory) instantiate(ctx context.Context, fr *frame, desc *BeanDescription) (any, error) {
	ctors := desc.Constructors
	if len(ctors) == 0 {
		ctors = []Constructor{nil}
	}

	for _, ctor := range ctors {
		args := make([]Argument, 0, len(ctor))
		for _, dep := range ctor {
			val, err := f.resolve(ctx, fr, dep)
			if err != nil {
				return nil, err
			}
			args = append(args, Argument{Name: dep.FieldName(), Value: val})
		}

		instance, err := f.types.Construct(desc.Type, args)
		if err == nil {
			if isNil(instance) {
				return nil, &InstantiationError{Type: desc.Type, Err: errors.New("construction produced a nil instance")}
			}
			return instance, nil
		}
		if errors.Is(err, ErrSignatureMismatch) {
			continue
		}
		return nil, &InstantiationError{Type: desc.Type, Err: err}
	}

	return nil, &NoMatchingConstructorError{Type: desc.Type, Candidates: len(ctors)}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
