package di

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/gocrud/beans/logging"
)

// BeanFactory 持有注册的描述和生命周期缓存，负责解析与构建。
// 注册在创建后不可变；缓存在运行期间变化，可以被多个 goroutine 并发使用。
type BeanFactory struct {
	byID      map[string]*BeanDescription
	ids       []string // 排序后的 id，保证错误信息和遍历顺序确定
	anonymous []*BeanDescription

	types  TypeRegistry
	logger logging.Logger

	// singleton 缓存：beanKey -> *instanceEntry
	singletons entryMap
}

// NewBeanFactory 用注册集合和实例化能力创建 BeanFactory。
// 集合会被复制，之后对 set 的修改不影响 BeanFactory。
func NewBeanFactory(set *RegistrationSet, types TypeRegistry, opts ...Option) (*BeanFactory, error) {
	if types == nil {
		return nil, fmt.Errorf("di: type registry is required")
	}
	if set == nil {
		set = NewRegistrationSet()
	}

	f := &BeanFactory{
		byID:   make(map[string]*BeanDescription, len(set.ByID)),
		types:  types,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}

	checked := make(map[*BeanDescription]bool)
	for id, desc := range set.ByID {
		if err := checkDescription(desc, checked); err != nil {
			return nil, fmt.Errorf("di: bean %q: %w", id, err)
		}
		f.byID[id] = desc
		f.ids = append(f.ids, id)
	}
	sort.Strings(f.ids)

	for i, desc := range set.Anonymous {
		if err := checkDescription(desc, checked); err != nil {
			return nil, fmt.Errorf("di: anonymous bean #%d: %w", i, err)
		}
		f.anonymous = append(f.anonymous, desc)
	}

	f.logger.Debug("bean factory created",
		logging.Field{Key: "ids", Value: len(f.ids)},
		logging.Field{Key: "anonymous", Value: len(f.anonymous)})

	return f, nil
}

// checkDescription 检查描述的结构（类型、生命周期、依赖非空），不做解析。
func checkDescription(desc *BeanDescription, checked map[*BeanDescription]bool) error {
	if desc == nil {
		return fmt.Errorf("nil description")
	}
	if checked[desc] {
		return nil
	}
	checked[desc] = true

	if desc.Type == nil {
		return fmt.Errorf("description has no type")
	}
	if !desc.Lifecycle.valid() {
		return fmt.Errorf("%s: invalid lifecycle %v", desc.Type, desc.Lifecycle)
	}

	for _, dep := range descriptionDeps(desc) {
		if err := checkDependency(dep, checked); err != nil {
			return fmt.Errorf("%s: %w", desc.Type, err)
		}
	}
	return nil
}

func checkDependency(dep Dependency, checked map[*BeanDescription]bool) error {
	switch d := dep.(type) {
	case nil:
		return fmt.Errorf("nil dependency")
	case *ValueDependency:
		if d == nil {
			return fmt.Errorf("nil value dependency")
		}
	case *IDReference:
		if d == nil || d.ID == "" {
			return fmt.Errorf("reference without id")
		}
	case *TypeReference:
		if d == nil || d.Type == nil {
			return fmt.Errorf("type reference without type")
		}
	case *InnerDescription:
		if d == nil {
			return fmt.Errorf("nil inner description")
		}
		return checkDescription(d.Description, checked)
	case *ProviderDependency:
		if d == nil {
			return fmt.Errorf("nil provider dependency")
		}
		return checkDependency(d.Inner, checked)
	}
	return nil
}

// GetBean 按类型获取 Bean：id 注册和匿名的描述中必须恰好有一个可赋值给 typ。
func (f *BeanFactory) GetBean(ctx context.Context, typ reflect.Type) (any, error) {
	key, desc, err := f.matchAny(typ)
	if err != nil {
		return nil, err
	}
	return f.obtain(ctx, nil, key, desc)
}

// GetBeanByID 按 id 获取 Bean，并检查声明类型可赋值给 typ（typ 为 nil 时不检查）。
func (f *BeanFactory) GetBeanByID(ctx context.Context, id string, typ reflect.Type) (any, error) {
	desc, ok := f.byID[id]
	if !ok {
		return nil, &UnknownBeanIDError{ID: id}
	}
	if typ != nil && !desc.Type.AssignableTo(typ) {
		return nil, &BeanTypeMismatchError{ID: id, Declared: desc.Type, Requested: typ}
	}
	return f.obtain(ctx, nil, beanKey{id: id}, desc)
}

// matchAnonymous 在匿名描述中查找唯一可赋值给 typ 的描述
func (f *BeanFactory) matchAnonymous(typ reflect.Type) (*BeanDescription, error) {
	if typ == nil {
		return nil, &NoMatchingBeanError{}
	}

	var (
		found      *BeanDescription
		candidates []string
	)
	for _, desc := range f.anonymous {
		if desc.Type.AssignableTo(typ) {
			found = desc
			candidates = append(candidates, "<"+desc.label()+">")
		}
	}

	switch len(candidates) {
	case 0:
		return nil, &NoMatchingBeanError{Type: typ}
	case 1:
		return found, nil
	}
	return nil, &AmbiguousBeanError{Type: typ, Candidates: candidates}
}

// matchAny 在 id 注册和匿名描述中查找唯一可赋值给 typ 的描述
func (f *BeanFactory) matchAny(typ reflect.Type) (beanKey, *BeanDescription, error) {
	if typ == nil {
		return beanKey{}, nil, &NoMatchingBeanError{}
	}

	var (
		key        beanKey
		found      *BeanDescription
		candidates []string
	)
	for _, id := range f.ids {
		desc := f.byID[id]
		if desc.Type.AssignableTo(typ) {
			key, found = beanKey{id: id}, desc
			candidates = append(candidates, id)
		}
	}
	for _, desc := range f.anonymous {
		if desc.Type.AssignableTo(typ) {
			key, found = beanKey{desc: desc}, desc
			candidates = append(candidates, "<"+desc.label()+">")
		}
	}

	switch len(candidates) {
	case 0:
		return beanKey{}, nil, &NoMatchingBeanError{Type: typ}
	case 1:
		return key, found, nil
	}
	return beanKey{}, nil, &AmbiguousBeanError{Type: typ, Candidates: candidates}
}

// BeanInfo 注册信息的只读视图
type BeanInfo struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	Lifecycle string `json:"lifecycle"`
	Anonymous bool   `json:"anonymous"`
	// Built 仅对 singleton 有意义：实例是否已缓存
	Built bool `json:"built"`
}

// Beans 列出所有注册：先按 id 排序的具名 Bean，再按声明顺序的匿名 Bean。
func (f *BeanFactory) Beans() []BeanInfo {
	infos := make([]BeanInfo, 0, len(f.ids)+len(f.anonymous))
	for _, id := range f.ids {
		infos = append(infos, f.info(beanKey{id: id}, f.byID[id]))
	}
	for _, desc := range f.anonymous {
		infos = append(infos, f.info(beanKey{desc: desc}, desc))
	}
	return infos
}

// Bean 返回 id 对应的注册信息
func (f *BeanFactory) Bean(id string) (BeanInfo, bool) {
	desc, ok := f.byID[id]
	if !ok {
		return BeanInfo{}, false
	}
	return f.info(beanKey{id: id}, desc), true
}

func (f *BeanFactory) info(key beanKey, desc *BeanDescription) BeanInfo {
	info := BeanInfo{
		ID:        key.id,
		Type:      desc.label(),
		Lifecycle: desc.Lifecycle.String(),
		Anonymous: key.id == "",
	}
	if desc.Lifecycle == Singleton {
		if e, ok := f.singletons.lookup(key); ok {
			info.Built = e.isBuilt()
		}
	}
	return info
}
