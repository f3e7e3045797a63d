// Package beans 把配置源、文档解析、BeanFactory 和容器串成一步。
//
//	types := registry.New()
//	registry.Register[*UserService](types, registry.WithName("UserService"))
//	container, err := beans.LoadFile("beans.yaml", types)
package beans

import (
	"fmt"

	"github.com/gocrud/beans/beanparser"
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/logging"
)

// Types 同时提供类型名查找和实例化能力，registry.Registry 满足此接口
type Types interface {
	di.TypeRegistry
	beanparser.TypeResolver
}

type options struct {
	section      string
	logger       logging.Logger
	samples      []any
	skipValidate bool
}

// Option 加载选项
type Option func(*options)

// WithSection 文档所在的配置节，默认为根
func WithSection(section string) Option {
	return func(o *options) {
		o.section = section
	}
}

// WithLogger 设置解析器和 BeanFactory 使用的日志
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithScan 额外扫描结构体标签，与文档中的注册合并
func WithScan(samples ...any) Option {
	return func(o *options) {
		o.samples = append(o.samples, samples...)
	}
}

// SkipValidation 不在加载时检查依赖图
func SkipValidation() Option {
	return func(o *options) {
		o.skipValidate = true
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: logging.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Load 从配置中读取文档并创建容器
func Load(cfg config.Configuration, types Types, opts ...Option) (*di.Container, error) {
	o := newOptions(opts)
	set, err := o.parser(types).ParseConfiguration(cfg, o.section)
	if err != nil {
		return nil, err
	}
	return build(set, types, o)
}

// LoadFile 从 YAML 或 JSON 文件创建容器
func LoadFile(path string, types Types, opts ...Option) (*di.Container, error) {
	cfg, err := config.NewConfigurationBuilder().AddFile(path).Build()
	if err != nil {
		return nil, err
	}
	return Load(cfg, types, opts...)
}

// LoadBytes 从内存中的文档创建容器
func LoadBytes(data []byte, types Types, opts ...Option) (*di.Container, error) {
	o := newOptions(opts)
	set, err := o.parser(types).ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return build(set, types, o)
}

func (o *options) parser(types Types) *beanparser.Parser {
	return beanparser.NewParser(types, beanparser.WithLogger(o.logger))
}

func build(set *di.RegistrationSet, types Types, o *options) (*di.Container, error) {
	if len(o.samples) > 0 {
		scanned, err := o.parser(types).Scan(o.samples...)
		if err != nil {
			return nil, err
		}
		if err := set.Merge(scanned); err != nil {
			return nil, fmt.Errorf("beans: merging scanned beans: %w", err)
		}
	}

	factory, err := di.NewBeanFactory(set, types, di.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	if !o.skipValidate {
		if err := factory.Validate(); err != nil {
			return nil, err
		}
	}

	o.logger.Info("bean container ready", logging.Field{Key: "beans", Value: len(factory.Beans())})
	return di.NewContainer(factory), nil
}
