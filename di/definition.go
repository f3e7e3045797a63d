package di

import (
	"fmt"
	"reflect"
	"strings"
)

// Lifecycle 定义了 Bean 实例的生命周期。
type Lifecycle int

const (
	// Singleton 每个 BeanFactory 只创建一个实例，所有调用方共享。
	Singleton Lifecycle = iota
	// Thread 每个执行上下文（见 WithThreadScope）创建一个实例。
	Thread
	// Prototype 每次请求都创建新实例，不缓存。
	Prototype
)

// String 返回生命周期的名称
func (l Lifecycle) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Thread:
		return "thread"
	case Prototype:
		return "prototype"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

func (l Lifecycle) valid() bool {
	return l >= Singleton && l <= Prototype
}

// ParseLifecycle 解析生命周期名称（不区分大小写），空字符串视为 singleton。
func ParseLifecycle(s string) (Lifecycle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "singleton":
		return Singleton, nil
	case "thread":
		return Thread, nil
	case "prototype":
		return Prototype, nil
	}
	return 0, fmt.Errorf("di: unknown lifecycle %q", s)
}

// Constructor 一个候选构造方式，按顺序列出参数来源。
type Constructor []Dependency

// BeanDescription 描述如何构建某个类型的实例。
// 注册到 BeanFactory 之后不可再修改。
type BeanDescription struct {
	Lifecycle Lifecycle
	Type      reflect.Type

	// Constructors 候选构造方式，按声明顺序选择第一个签名匹配的。
	// 为空时等价于一个无参数的构造方式。
	Constructors []Constructor

	// Fields 构造后直接赋值的字段，Dependency 的 FieldName 为字段名
	Fields []Dependency

	// Setters 字段赋值后调用的 setter，Dependency 的 FieldName 为 setter 名
	Setters []Dependency
}

// label 用于错误信息和日志
func (d *BeanDescription) label() string {
	if d.Type == nil {
		return "<nil>"
	}
	return d.Type.String()
}

// RegistrationSet 由解析器产出、交给 BeanFactory 的注册集合。
type RegistrationSet struct {
	ByID      map[string]*BeanDescription
	Anonymous []*BeanDescription
}

// NewRegistrationSet 创建一个空的注册集合
func NewRegistrationSet() *RegistrationSet {
	return &RegistrationSet{
		ByID: make(map[string]*BeanDescription),
	}
}

// Add 以 id 注册描述
func (s *RegistrationSet) Add(id string, desc *BeanDescription) error {
	if id == "" {
		return fmt.Errorf("di: empty bean id")
	}
	if desc == nil {
		return fmt.Errorf("di: nil description for bean %q", id)
	}
	if s.ByID == nil {
		s.ByID = make(map[string]*BeanDescription)
	}
	if _, exists := s.ByID[id]; exists {
		return fmt.Errorf("di: bean %q already registered", id)
	}
	s.ByID[id] = desc
	return nil
}

// AddAnonymous 注册匿名描述，只能按类型查找。同一描述重复添加会被忽略。
func (s *RegistrationSet) AddAnonymous(desc *BeanDescription) error {
	if desc == nil {
		return fmt.Errorf("di: nil anonymous description")
	}
	for _, existing := range s.Anonymous {
		if existing == desc {
			return nil
		}
	}
	s.Anonymous = append(s.Anonymous, desc)
	return nil
}

// Merge 把 other 中的注册合并进来，id 冲突时报错。
func (s *RegistrationSet) Merge(other *RegistrationSet) error {
	if other == nil {
		return nil
	}
	for id, desc := range other.ByID {
		if err := s.Add(id, desc); err != nil {
			return err
		}
	}
	for _, desc := range other.Anonymous {
		if err := s.AddAnonymous(desc); err != nil {
			return err
		}
	}
	return nil
}
