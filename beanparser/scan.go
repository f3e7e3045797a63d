package beanparser

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

const tagName = "di"

var (
	providerType        = reflect.TypeOf(di.Provider(nil))
	contextProviderType = reflect.TypeOf(di.ContextProvider(nil))
	contextType         = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Scan 读取结构体标签生成注册，samples 是类型样本，例如 (*Person)(nil)。
//
// 空白字段 `_ struct{} di:"id=person,lifecycle=prototype"` 声明 Bean 元数据，
// 没有 id 的 Bean 是匿名的。带 di 标签的导出字段会被注入：
//
//	Repo  Repository            `di:"ref=repo"`     // 按 id 引用，也可以写成 di:"repo"
//	Name  string                `di:"value=alice"`  // 字面量，按字段类型转换
//	Clock Clock                 `di:""`             // 按字段类型引用匿名 Bean
//	Next  func() (*Node, error) `di:",provider"`    // 延迟解析
//	Any   di.Provider           `di:"type=node,provider"`
//	Req   func(context.Context) (*Session, error) `di:",provider"` // 按调用方 ctx 解析
func (p *Parser) Scan(samples ...any) (*di.RegistrationSet, error) {
	types := make([]reflect.Type, 0, len(samples))
	for _, s := range samples {
		if s == nil {
			return nil, fmt.Errorf("beanparser: nil sample")
		}
		types = append(types, reflect.TypeOf(s))
	}
	return p.ScanTypes(types...)
}

// ScanTypes 与 Scan 相同，直接接收类型
func (p *Parser) ScanTypes(types ...reflect.Type) (*di.RegistrationSet, error) {
	set := di.NewRegistrationSet()
	for _, typ := range types {
		id, desc, err := p.scanType(typ)
		if err != nil {
			return nil, err
		}
		if id == "" {
			err = set.AddAnonymous(desc)
		} else {
			err = set.Add(id, desc)
		}
		if err != nil {
			return nil, fmt.Errorf("beanparser: %s: %w", typ, err)
		}
	}

	p.logger.Debug("types scanned",
		logging.Field{Key: "ids", Value: len(set.ByID)},
		logging.Field{Key: "anonymous", Value: len(set.Anonymous)})

	return set, nil
}

func (p *Parser) scanType(typ reflect.Type) (string, *di.BeanDescription, error) {
	st := typ
	if st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return "", nil, fmt.Errorf("beanparser: %s is not a struct or struct pointer", typ)
	}

	var id string
	desc := &di.BeanDescription{Type: typ}

	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup(tagName)
		if !ok {
			continue
		}
		loc := typ.String() + "." + field.Name

		// 元数据字段
		if field.Name == "_" {
			meta, err := parseMeta(tag, loc)
			if err != nil {
				return "", nil, err
			}
			id = meta.id
			if desc.Lifecycle, err = di.ParseLifecycle(meta.lifecycle); err != nil {
				return "", nil, fmt.Errorf("beanparser: %s: %w", loc, err)
			}
			continue
		}

		if !field.IsExported() {
			return "", nil, fmt.Errorf("%w: %s: unexported field cannot be injected", ErrInvalidArgument, loc)
		}

		dep, err := p.fieldDependency(field, tag, loc)
		if err != nil {
			return "", nil, err
		}
		desc.Fields = append(desc.Fields, dep)
	}

	return id, desc, nil
}

type beanMeta struct {
	id        string
	lifecycle string
}

func parseMeta(tag, loc string) (beanMeta, error) {
	var meta beanMeta
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "id":
			meta.id = value
		case "lifecycle":
			meta.lifecycle = value
		default:
			return meta, fmt.Errorf("%w: %s: unknown bean option %q", ErrInvalidArgument, loc, key)
		}
	}
	return meta, nil
}

// fieldTag 解析后的字段标签
type fieldTag struct {
	ref      string
	value    *string
	typeName string
	provider bool
}

// parseFieldTag 解析 "name,option..."；第一段不含 = 时视为引用的 id，
// 空串或 "type" 表示按类型引用。
func parseFieldTag(tag, loc string) (fieldTag, error) {
	var ft fieldTag
	for i, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		key, value, hasValue := strings.Cut(part, "=")

		switch {
		case part == "" || part == "type":
		case part == "provider":
			ft.provider = true
		case key == "ref" && hasValue:
			ft.ref = value
		case key == "value" && hasValue:
			v := value
			ft.value = &v
		case key == "type" && hasValue:
			ft.typeName = value
		case i == 0 && !hasValue:
			ft.ref = part
		default:
			return ft, fmt.Errorf("%w: %s: unknown option %q", ErrInvalidArgument, loc, part)
		}
	}
	if ft.ref != "" && ft.value != nil {
		return ft, fmt.Errorf("%w: %s: ref and value are exclusive", ErrInvalidArgument, loc)
	}
	return ft, nil
}

func (p *Parser) fieldDependency(field reflect.StructField, tag, loc string) (di.Dependency, error) {
	ft, err := parseFieldTag(tag, loc)
	if err != nil {
		return nil, err
	}

	// 被引用的类型：provider 字段取 func() T 的 T
	target := field.Type
	if ft.provider {
		target = providedType(field.Type)
	}
	if ft.typeName != "" {
		if target, err = p.lookup(ft.typeName, loc); err != nil {
			return nil, err
		}
	}

	var dep di.Dependency
	switch {
	case ft.ref != "":
		dep = &di.IDReference{Name: field.Name, ID: ft.ref}

	case ft.value != nil:
		if ft.provider {
			return nil, fmt.Errorf("%w: %s: a literal value cannot be provided lazily", ErrInvalidArgument, loc)
		}
		converted, err := di.ConvertValue(*ft.value, field.Type)
		if err != nil {
			return nil, fmt.Errorf("beanparser: %s: %w", loc, err)
		}
		dep = &di.ValueDependency{Name: field.Name, Value: converted, Type: field.Type}

	default:
		if target == nil {
			return nil, fmt.Errorf("%w: %s: provider field needs type=<name>", ErrInvalidArgument, loc)
		}
		dep = &di.TypeReference{Name: field.Name, Type: target}
	}

	if ft.provider {
		dep = &di.ProviderDependency{Name: field.Name, Inner: dep}
	}
	return dep, nil
}

// providedType 返回 func() T、func() (T, error) 或 func(context.Context) (T, error) 的 T；
// di.Provider、di.ContextProvider 和其他类型返回 nil
func providedType(t reflect.Type) reflect.Type {
	if t == providerType || t == contextProviderType || t.Kind() != reflect.Func {
		return nil
	}
	switch {
	case t.NumIn() == 0 && (t.NumOut() == 1 || t.NumOut() == 2):
		return t.Out(0)
	case t.NumIn() == 1 && t.In(0) == contextType && t.NumOut() == 2:
		return t.Out(0)
	}
	return nil
}
