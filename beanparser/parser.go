// Package beanparser 把声明式文档（YAML/JSON）和结构体标签转换为 di.RegistrationSet。
package beanparser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownType 文档或标签引用了未登记的类型名
	ErrUnknownType = errors.New("beanparser: unknown type")
	// ErrInvalidArgument 参数声明不合法
	ErrInvalidArgument = errors.New("beanparser: invalid argument")
)

// TypeResolver 按名称查找类型，registry.Registry 满足此接口
type TypeResolver interface {
	Lookup(name string) (reflect.Type, bool)
}

// Parser 声明式文档和结构体标签的解析器
type Parser struct {
	types  TypeResolver
	logger logging.Logger
}

// Option 解析器选项
type Option func(*Parser)

// WithLogger 设置日志
func WithLogger(logger logging.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger.WithCategory("beanparser")
		}
	}
}

// NewParser 创建解析器
func NewParser(types TypeResolver, opts ...Option) *Parser {
	p := &Parser{
		types:  types,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseBytes 解析 YAML 或 JSON 文档（JSON 是 YAML 的子集）
func (p *Parser) ParseBytes(data []byte) (*di.RegistrationSet, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// 空文档
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("beanparser: decoding document: %w", err)
	}
	return p.Parse(&doc)
}

// ParseFile 解析文件
func (p *Parser) ParseFile(path string) (*di.RegistrationSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("beanparser: %w", err)
	}
	set, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	return set, nil
}

// ParseConfiguration 从配置中读取文档，section 为文档所在的节（为空表示根）
func (p *Parser) ParseConfiguration(cfg config.Configuration, section string) (*di.RegistrationSet, error) {
	doc, err := config.Load[Document](cfg, section)
	if err != nil {
		return nil, fmt.Errorf("beanparser: %w", err)
	}
	return p.Parse(&doc)
}

// Parse 把文档转换为注册集合
func (p *Parser) Parse(doc *Document) (*di.RegistrationSet, error) {
	set := di.NewRegistrationSet()
	if doc == nil {
		return set, nil
	}

	for i := range doc.Beans {
		bean := &doc.Beans[i]
		loc := fmt.Sprintf("beans[%d]", i)
		if bean.ID != "" {
			loc = fmt.Sprintf("beans[%d](%s)", i, bean.ID)
		}

		desc, err := p.description(bean, loc)
		if err != nil {
			return nil, err
		}

		if bean.ID == "" {
			err = set.AddAnonymous(desc)
		} else {
			err = set.Add(bean.ID, desc)
		}
		if err != nil {
			return nil, fmt.Errorf("beanparser: %s: %w", loc, err)
		}
	}

	p.logger.Debug("document parsed",
		logging.Field{Key: "ids", Value: len(set.ByID)},
		logging.Field{Key: "anonymous", Value: len(set.Anonymous)})

	return set, nil
}

func (p *Parser) description(bean *Bean, loc string) (*di.BeanDescription, error) {
	if bean.Type == "" {
		return nil, fmt.Errorf("beanparser: %s: bean has no type", loc)
	}
	typ, err := p.lookup(bean.Type, loc)
	if err != nil {
		return nil, err
	}

	lifecycle, err := di.ParseLifecycle(bean.Lifecycle)
	if err != nil {
		return nil, fmt.Errorf("beanparser: %s: %w", loc, err)
	}

	desc := &di.BeanDescription{Lifecycle: lifecycle, Type: typ}

	if len(bean.ConstructorArgs) > 0 && len(bean.Constructors) > 0 {
		return nil, fmt.Errorf("%w: %s: constructorArgs and constructors are exclusive", ErrInvalidArgument, loc)
	}
	if len(bean.ConstructorArgs) > 0 {
		ctor, err := p.arguments(bean.ConstructorArgs, loc+".constructorArgs")
		if err != nil {
			return nil, err
		}
		desc.Constructors = []di.Constructor{ctor}
	}
	for j, args := range bean.Constructors {
		ctor, err := p.arguments(args, fmt.Sprintf("%s.constructors[%d]", loc, j))
		if err != nil {
			return nil, err
		}
		desc.Constructors = append(desc.Constructors, ctor)
	}

	if desc.Fields, err = p.named(bean.Fields, loc+".fields"); err != nil {
		return nil, err
	}
	if desc.Setters, err = p.named(bean.SetterArgs, loc+".setterArgs"); err != nil {
		return nil, err
	}
	return desc, nil
}

// named 解析字段或 setter 参数，它们都必须有名称
func (p *Parser) named(args []Argument, loc string) ([]di.Dependency, error) {
	for i := range args {
		if args[i].Name == "" {
			return nil, fmt.Errorf("%w: %s[%d]: name is required", ErrInvalidArgument, loc, i)
		}
	}
	return p.arguments(args, loc)
}

func (p *Parser) arguments(args []Argument, loc string) ([]di.Dependency, error) {
	deps := make([]di.Dependency, 0, len(args))
	for i := range args {
		dep, err := p.argument(&args[i], fmt.Sprintf("%s[%d]", loc, i))
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func (p *Parser) argument(arg *Argument, loc string) (di.Dependency, error) {
	sources := 0
	for _, set := range []bool{arg.Value != nil, arg.Ref != "", arg.Bean != nil} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return nil, fmt.Errorf("%w: %s: value, ref and bean are exclusive", ErrInvalidArgument, loc)
	}

	var dep di.Dependency
	switch {
	case arg.Bean != nil:
		desc, err := p.description(arg.Bean, loc+".bean")
		if err != nil {
			return nil, err
		}
		dep = &di.InnerDescription{Name: arg.Name, Description: desc}

	case arg.Ref != "":
		dep = &di.IDReference{Name: arg.Name, ID: arg.Ref}

	case arg.Value != nil:
		v := &di.ValueDependency{Name: arg.Name, Value: arg.Value}
		if arg.Type != "" {
			typ, err := p.lookup(arg.Type, loc)
			if err != nil {
				return nil, err
			}
			// 提前转换，文档错误在解析时报告
			var converted any
			if isChar(arg.Type) {
				converted, err = di.ConvertChar(arg.Value)
			} else {
				converted, err = di.ConvertValue(arg.Value, typ)
			}
			if err != nil {
				return nil, fmt.Errorf("beanparser: %s: %w", loc, err)
			}
			v.Value, v.Type = converted, typ
		}
		dep = v

	case isScalar(arg.Type):
		// value 缺失或为 null：标量不能按类型引用
		return nil, fmt.Errorf("%w: %s: %s requires a non-null value", ErrInvalidArgument, loc, arg.Type)

	case arg.Type != "":
		typ, err := p.lookup(arg.Type, loc)
		if err != nil {
			return nil, err
		}
		dep = &di.TypeReference{Name: arg.Name, Type: typ}

	default:
		return nil, fmt.Errorf("%w: %s: one of value, ref, bean or type is required", ErrInvalidArgument, loc)
	}

	if arg.Provider {
		dep = &di.ProviderDependency{Name: arg.Name, Inner: dep}
	}
	return dep, nil
}

func (p *Parser) lookup(name, loc string) (reflect.Type, error) {
	if p.types != nil {
		if typ, ok := p.types.Lookup(name); ok {
			return typ, nil
		}
	}
	return nil, fmt.Errorf("%w %q at %s", ErrUnknownType, name, loc)
}

// scalarNames 内置标量类型名，它们只能通过 value 给出
var scalarNames = map[string]bool{
	"string": true, "bool": true, "boolean": true, "char": true, "rune": true,
	"int": true, "int8": true, "int16": true, "short": true, "int32": true, "int64": true, "long": true,
	"uint": true, "uint8": true, "byte": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float": true, "float64": true, "double": true, "duration": true,
}

func isScalar(name string) bool {
	return scalarNames[name]
}

func isChar(name string) bool {
	return name == "char" || name == "rune"
}
