package beanparser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Helper struct {
	Label string
}

type SimpleBean struct {
	Attribute string
	Count     int
	Helper    *Helper
	Lazy      func() (*Helper, error)
	Initial   rune
	number    int
}

func NewSimpleBean(attribute string) *SimpleBean {
	return &SimpleBean{Attribute: attribute}
}

func (b *SimpleBean) SetNumber(n int) { b.number = n }

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, registry.Register[*SimpleBean](r,
		registry.WithName("SimpleBean"),
		registry.WithConstructor(NewSimpleBean, "attribute"),
	))
	require.NoError(t, registry.Register[*Helper](r, registry.WithName("Helper")))
	return r
}

func container(t *testing.T, r *registry.Registry, set *di.RegistrationSet) *di.Container {
	t.Helper()
	f, err := di.NewBeanFactory(set, r)
	require.NoError(t, err)
	require.NoError(t, f.Validate())
	return di.NewContainer(f)
}

const document = `
beans:
  - id: singleton
    type: SimpleBean
    constructorArgs:
      - {name: attribute, type: string, value: TestString}
    fields:
      - {name: Count, type: int, value: "3"}
      - name: Helper
        bean: {type: Helper, fields: [{name: Label, value: inner}]}
    setterArgs:
      - {name: number, type: int, value: 5150}
  - id: prototype
    type: SimpleBean
    lifecycle: prototype
    constructorArgs:
      - {value: proto}
    fields:
      - {name: Helper, type: Helper}
      - {name: Lazy, ref: singletonHelper, provider: true}
  - id: singletonHelper
    type: Helper
  - type: Helper
    fields:
      - {name: Label, value: anonymous}
`

func TestParseBytes_YAML(t *testing.T) {
	r := newRegistry(t)
	set, err := NewParser(r).ParseBytes([]byte(document))
	require.NoError(t, err)
	assert.Len(t, set.ByID, 3)
	assert.Len(t, set.Anonymous, 1)

	c := container(t, r, set)
	ctx := context.Background()

	s, err := di.GetByID[*SimpleBean](ctx, c, "singleton")
	require.NoError(t, err)
	assert.Equal(t, "TestString", s.Attribute)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 5150, s.number)
	assert.Equal(t, "inner", s.Helper.Label)

	again, err := di.GetByID[*SimpleBean](ctx, c, "singleton")
	require.NoError(t, err)
	assert.Same(t, s, again)

	p1, err := di.GetByID[*SimpleBean](ctx, c, "prototype")
	require.NoError(t, err)
	p2, err := di.GetByID[*SimpleBean](ctx, c, "prototype")
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)
	assert.Equal(t, "proto", p1.Attribute)
	assert.Equal(t, "anonymous", p1.Helper.Label)
	assert.Same(t, p1.Helper, p2.Helper)

	h, err := p1.Lazy()
	require.NoError(t, err)
	sh, err := di.GetByID[*Helper](ctx, c, "singletonHelper")
	require.NoError(t, err)
	assert.Same(t, sh, h)
}

func TestParseBytes_JSON(t *testing.T) {
	r := newRegistry(t)
	_, err := NewParser(r).ParseBytes([]byte(
		`{"beans": [{"id": "a", "type": "SimpleBean", "constructors": [[{"value": 1, "type": "Helper"}]]}]}`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "beans[0](a).constructors[0][0]")

	set, err := NewParser(r).ParseBytes([]byte(
		`{"beans": [{"id": "a", "type": "SimpleBean", "lifecycle": "thread", ` +
			`"constructors": [[{"value": 1}, {"value": 2}], [{"name": "attribute", "value": "json"}]]}]}`))
	require.NoError(t, err)
	require.Len(t, set.ByID["a"].Constructors, 2)
	assert.Equal(t, di.Thread, set.ByID["a"].Lifecycle)

	f, err := di.NewBeanFactory(set, r)
	require.NoError(t, err)
	c := di.NewContainer(f)

	// 第一个构造方式有两个参数，没有匹配的构造函数，回退到第二个
	ctx := di.WithThreadScope(context.Background())
	a, err := di.GetByID[*SimpleBean](ctx, c, "a")
	require.NoError(t, err)
	assert.Equal(t, "json", a.Attribute)
}

func TestParseBytes_Char(t *testing.T) {
	r := newRegistry(t)
	set, err := NewParser(r).ParseBytes([]byte(
		`beans: [{id: c, type: SimpleBean, constructorArgs: [{value: x}], fields: [{name: Initial, type: char, value: "é"}]}]`))
	require.NoError(t, err)

	c, err := di.GetByID[*SimpleBean](context.Background(), container(t, r, set), "c")
	require.NoError(t, err)
	assert.Equal(t, 'é', c.Initial)

	_, err = NewParser(r).ParseBytes([]byte(`beans: [{type: Helper, fields: [{name: Label, value: null}]}]`))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseFileAndConfiguration(t *testing.T) {
	r := newRegistry(t)
	path := filepath.Join(t.TempDir(), "beans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(document), 0o644))

	set, err := NewParser(r).ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, set.ByID, 3)

	cfg, err := config.NewConfigurationBuilder().AddYamlFile(path).Build()
	require.NoError(t, err)
	set, err = NewParser(r).ParseConfiguration(cfg, "")
	require.NoError(t, err)

	c := container(t, r, set)
	s, err := di.GetByID[*SimpleBean](context.Background(), c, "singleton")
	require.NoError(t, err)
	assert.Equal(t, 5150, s.number)

	nested, err := config.NewConfigurationBuilder().
		AddInMemory(map[string]any{"app": map[string]any{"beans": []any{
			map[string]any{"id": "h", "type": "Helper", "fields": []any{
				map[string]any{"name": "Label", "value": "from-config"},
			}},
		}}}).
		Build()
	require.NoError(t, err)
	set, err = NewParser(r).ParseConfiguration(nested, "app")
	require.NoError(t, err)
	h, err := di.GetByID[*Helper](context.Background(), container(t, r, set), "h")
	require.NoError(t, err)
	assert.Equal(t, "from-config", h.Label)

	_, err = NewParser(r).ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown type", "beans: [{type: Nope}]", "unknown type"},
		{"missing type", "beans: [{id: x}]", "bean has no type"},
		{"bad lifecycle", "beans: [{type: Helper, lifecycle: request}]", "unknown lifecycle"},
		{"exclusive sources", "beans: [{type: Helper, fields: [{name: Label, value: a, ref: b}]}]", "exclusive"},
		{"no source", "beans: [{type: Helper, fields: [{name: Label}]}]", "is required"},
		{"unnamed field", "beans: [{type: Helper, fields: [{value: a}]}]", "name is required"},
		{"bad value", "beans: [{type: Helper, setterArgs: [{name: n, type: int, value: abc}]}]", "cannot convert"},
		{"unknown key", "beans: [{type: Helper, colour: red}]", "decoding document"},
		{"duplicate id", "beans: [{id: a, type: Helper}, {id: a, type: Helper}]", "already registered"},
		{"null scalar", "beans: [{type: Helper, fields: [{name: Label, type: string, value: null}]}]", "requires a non-null value"},
		{"scalar without value", "beans: [{type: Helper, fields: [{name: Label, type: int}]}]", "requires a non-null value"},
		{"long char", "beans: [{type: Helper, fields: [{name: Label, type: char, value: ab}]}]", "not a single character"},
		{"both constructor forms", "beans: [{type: SimpleBean, constructorArgs: [{value: a}], constructors: [[{value: b}]]}]", "exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(r).ParseBytes([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := NewParser(r).ParseBytes([]byte("beans: [{type: Nope}]"))
	assert.ErrorIs(t, err, ErrUnknownType)

	set, err := NewParser(r).ParseBytes(nil)
	require.NoError(t, err)
	assert.Empty(t, set.ByID)
}
