package beanparser

// Document 声明式 Bean 文档的根，YAML 和 JSON 使用相同的结构
type Document struct {
	Beans []Bean `yaml:"beans" json:"beans"`
}

// Bean 一个 Bean 的声明。ID 为空时是匿名 Bean，只能按类型引用。
type Bean struct {
	ID        string `yaml:"id,omitempty" json:"id,omitempty"`
	Type      string `yaml:"type" json:"type"`
	Lifecycle string `yaml:"lifecycle,omitempty" json:"lifecycle,omitempty"`

	// ConstructorArgs 唯一的构造方式；Constructors 给出多个候选，两者只能用一个
	ConstructorArgs []Argument   `yaml:"constructorArgs,omitempty" json:"constructorArgs,omitempty"`
	Constructors    [][]Argument `yaml:"constructors,omitempty" json:"constructors,omitempty"`

	Fields     []Argument `yaml:"fields,omitempty" json:"fields,omitempty"`
	SetterArgs []Argument `yaml:"setterArgs,omitempty" json:"setterArgs,omitempty"`
}

// Argument 一个参数、字段或 setter 值的来源。
// Value、Ref、Bean 最多设置一个；都没有时 Type 表示按类型引用。
type Argument struct {
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Value    any    `yaml:"value,omitempty" json:"value,omitempty"`
	Ref      string `yaml:"ref,omitempty" json:"ref,omitempty"`
	Bean     *Bean  `yaml:"bean,omitempty" json:"bean,omitempty"`
	Provider bool   `yaml:"provider,omitempty" json:"provider,omitempty"`
}
