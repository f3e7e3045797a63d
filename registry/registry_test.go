package registry

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/gocrud/beans/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Greeter interface {
	Greet() string
}

type englishGreeter struct {
	Name string
}

func (g *englishGreeter) Greet() string { return "hello " + g.Name }

type Pool struct {
	Host    string
	Port    int
	Timeout time.Duration
	count   int
	Next    func() (Greeter, error)
}

func NewPool(host string, port int) *Pool {
	return &Pool{Host: host, Port: port}
}

func NewPoolWithTimeout(host string, port int, timeout time.Duration) (*Pool, error) {
	if timeout < 0 {
		return nil, errors.New("negative timeout")
	}
	return &Pool{Host: host, Port: port, Timeout: timeout}, nil
}

func (p *Pool) SetCount(n int) { p.count = n }

func (p *Pool) Limit(n int) error {
	if n < 0 {
		return errors.New("negative limit")
	}
	p.count = n
	return nil
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	require.NoError(t, Register[*Pool](r,
		WithName("pool"),
		WithConstructor(NewPool, "host", "port"),
		WithConstructor(NewPoolWithTimeout, "host", "port", "timeout"),
	))
	require.NoError(t, Register[*englishGreeter](r, WithName("greeter")))
	return r
}

func TestRegistry_Lookup(t *testing.T) {
	r := newRegistry(t)

	typ, ok := r.Lookup("pool")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(&Pool{}), typ)

	typ, ok = r.Lookup("long")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(int64(0)), typ)

	typ, ok = r.Lookup("[]string")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf([]string{}), typ)

	typ, ok = r.Lookup("*greeter")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf((**englishGreeter)(nil)).Elem(), typ)

	typ, ok = r.Lookup("char")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf('x'), typ)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"greeter", "pool"}, r.Names())
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := New()

	err := r.Register(reflect.TypeOf(&Pool{}), WithName("int"))
	assert.ErrorContains(t, err, "reserved")

	err = r.Register(reflect.TypeOf(&Pool{}), WithConstructor("not a func"))
	assert.ErrorContains(t, err, "must be a function")

	err = r.Register(reflect.TypeOf(&Pool{}), WithConstructor(func() string { return "" }))
	assert.ErrorContains(t, err, "not assignable")

	err = r.Register(reflect.TypeOf(&Pool{}), WithConstructor(NewPool, "host"))
	assert.ErrorContains(t, err, "names given")

	require.NoError(t, r.Register(reflect.TypeOf(&Pool{}), WithName("x")))
	err = r.Register(reflect.TypeOf(&englishGreeter{}), WithName("x"))
	assert.ErrorContains(t, err, "already used")
}

func TestRegistry_ConstructPositional(t *testing.T) {
	r := newRegistry(t)

	v, err := r.Construct(reflect.TypeOf(&Pool{}), []di.Argument{
		{Value: "db.local"}, {Value: 5432},
	})
	require.NoError(t, err)
	assert.Equal(t, &Pool{Host: "db.local", Port: 5432}, v)
}

func TestRegistry_ConstructNamedAndConverted(t *testing.T) {
	r := newRegistry(t)

	// 参数顺序与形参不同，字符串会按形参类型转换
	v, err := r.Construct(reflect.TypeOf(&Pool{}), []di.Argument{
		{Name: "timeout", Value: "3s"},
		{Name: "port", Value: "6379"},
		{Name: "host", Value: "cache"},
	})
	require.NoError(t, err)
	pool := v.(*Pool)
	assert.Equal(t, "cache", pool.Host)
	assert.Equal(t, 6379, pool.Port)
	assert.Equal(t, 3*time.Second, pool.Timeout)
}

func TestRegistry_ConstructMismatch(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Construct(reflect.TypeOf(&Pool{}), []di.Argument{{Value: "only-host"}})
	assert.ErrorIs(t, err, di.ErrSignatureMismatch)

	_, err = r.Construct(reflect.TypeOf(&Pool{}), []di.Argument{
		{Name: "host", Value: "h"}, {Name: "bogus", Value: 1},
	})
	assert.ErrorIs(t, err, di.ErrSignatureMismatch)

	_, err = r.Construct(reflect.TypeOf(&Pool{}), []di.Argument{
		{Value: "h"}, {Value: "not-a-number"},
	})
	assert.ErrorIs(t, err, di.ErrSignatureMismatch)
}

func TestRegistry_ConstructorError(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Construct(reflect.TypeOf(&Pool{}), []di.Argument{
		{Value: "h"}, {Value: 1}, {Value: -time.Second},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, di.ErrSignatureMismatch)
	assert.ErrorContains(t, err, "negative timeout")
}

func TestRegistry_ConstructorPanic(t *testing.T) {
	r := New()
	require.NoError(t, Register[*Pool](r, WithConstructor(func() *Pool { panic("boom") })))

	_, err := r.Construct(reflect.TypeOf(&Pool{}), nil)
	assert.ErrorContains(t, err, "panicked: boom")
}

func TestRegistry_ConstructLiteral(t *testing.T) {
	r := newRegistry(t)

	v, err := r.Construct(reflect.TypeOf(&englishGreeter{}), []di.Argument{{Name: "name", Value: "bob"}})
	require.NoError(t, err)
	assert.Equal(t, "hello bob", v.(Greeter).Greet())

	// 未登记的结构体值类型也可以直接创建
	v, err = r.Construct(reflect.TypeOf(englishGreeter{}), nil)
	require.NoError(t, err)
	assert.Equal(t, englishGreeter{}, v)

	_, err = r.Construct(reflect.TypeOf(&englishGreeter{}), []di.Argument{{Value: "bob"}})
	assert.ErrorIs(t, err, di.ErrSignatureMismatch)

	_, err = r.Construct(reflect.TypeOf(&englishGreeter{}), []di.Argument{{Name: "age", Value: 3}})
	assert.ErrorIs(t, err, di.ErrSignatureMismatch)
}

func TestRegistry_SetField(t *testing.T) {
	r := newRegistry(t)
	pool := &Pool{}

	require.NoError(t, r.SetField(pool, "host", "h"))
	require.NoError(t, r.SetField(pool, "Port", int64(80)))
	assert.Equal(t, "h", pool.Host)
	assert.Equal(t, 80, pool.Port)

	err := r.SetField(pool, "count", 1)
	assert.ErrorIs(t, err, di.ErrUnknownMember)

	err = r.SetField(pool, "missing", 1)
	assert.ErrorIs(t, err, di.ErrUnknownMember)

	err = r.SetField(pool, "Port", "eighty")
	assert.ErrorIs(t, err, di.ErrTypeMismatch)

	err = r.SetField(Pool{}, "Port", 1)
	assert.ErrorIs(t, err, di.ErrUnknownMember)
}

func TestRegistry_InvokeSetter(t *testing.T) {
	r := newRegistry(t)
	pool := &Pool{}

	require.NoError(t, r.InvokeSetter(pool, "count", 5150))
	assert.Equal(t, 5150, pool.count)

	require.NoError(t, r.InvokeSetter(pool, "limit", "7"))
	assert.Equal(t, 7, pool.count)

	err := r.InvokeSetter(pool, "limit", -1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, di.ErrUnknownMember)
	assert.ErrorContains(t, err, "negative limit")

	err = r.InvokeSetter(pool, "nothing", 1)
	assert.ErrorIs(t, err, di.ErrUnknownMember)

	err = r.InvokeSetter(pool, "count", struct{}{})
	assert.ErrorIs(t, err, di.ErrTypeMismatch)
}

func TestRegistry_ProviderAdaptation(t *testing.T) {
	r := newRegistry(t)
	pool := &Pool{}

	calls := 0
	var p di.Provider = func() (any, error) {
		calls++
		return &englishGreeter{Name: "lazy"}, nil
	}
	require.NoError(t, r.SetField(pool, "Next", p))
	assert.Equal(t, 0, calls)

	g, err := pool.Next()
	require.NoError(t, err)
	assert.Equal(t, "hello lazy", g.Greet())
	assert.Equal(t, 1, calls)

	var failing di.Provider = func() (any, error) { return nil, errors.New("unavailable") }
	require.NoError(t, r.SetField(pool, "Next", failing))
	_, err = pool.Next()
	assert.ErrorContains(t, err, "unavailable")
}

func TestAdaptProvider_PanicsWithoutErrorResult(t *testing.T) {
	var p di.Provider = func() (any, error) { return nil, errors.New("gone") }
	fn, err := adaptProvider(p, reflect.TypeOf(func() int { return 0 }))
	require.NoError(t, err)

	f := fn.Interface().(func() int)
	assert.PanicsWithError(t, "gone", func() { f() })

	_, err = adaptProvider(p, reflect.TypeOf(func(int) int { return 0 }))
	assert.ErrorIs(t, err, di.ErrTypeMismatch)
}

func TestRegistry_ConstructAbstract(t *testing.T) {
	r := newRegistry(t)

	for _, typ := range []reflect.Type{
		reflect.TypeOf((*Greeter)(nil)).Elem(),
		reflect.TypeOf(func() {}),
		reflect.TypeOf(make(chan int)),
	} {
		_, err := r.Construct(typ, nil)
		assert.ErrorIs(t, err, ErrAbstractType, typ.String())
		assert.NotErrorIs(t, err, di.ErrSignatureMismatch)
	}

	v, err := r.Construct(reflect.TypeOf((*int)(nil)), nil)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 0, *v.(*int))

	v, err = r.Construct(reflect.TypeOf(map[string]int{}), nil)
	require.NoError(t, err)
	assert.NotNil(t, v)

	_, err = r.Construct(reflect.TypeOf(0), []di.Argument{{Value: 1}})
	assert.ErrorIs(t, err, di.ErrSignatureMismatch)
}

func TestAdaptContextProvider(t *testing.T) {
	type key struct{}
	var p di.ContextProvider = func(ctx context.Context) (any, error) {
		name, _ := ctx.Value(key{}).(string)
		if name == "" {
			return nil, errors.New("anonymous")
		}
		return &englishGreeter{Name: name}, nil
	}

	fn, err := adaptContextProvider(p, reflect.TypeOf(func(context.Context) (Greeter, error) { return nil, nil }))
	require.NoError(t, err)
	get := fn.Interface().(func(context.Context) (Greeter, error))

	g, err := get(context.WithValue(context.Background(), key{}, "ctx"))
	require.NoError(t, err)
	assert.Equal(t, "hello ctx", g.Greet())

	_, err = get(context.Background())
	assert.ErrorContains(t, err, "anonymous")

	_, err = adaptContextProvider(p, reflect.TypeOf(func(context.Context) Greeter { return nil }))
	assert.ErrorIs(t, err, di.ErrTypeMismatch)
}

func BenchmarkConstruct(b *testing.B) {
	r := New()
	_ = Register[*Pool](r, WithConstructor(NewPool, "host", "port"))
	typ := reflect.TypeOf(&Pool{})
	args := []di.Argument{{Name: "host", Value: "h"}, {Name: "port", Value: 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Construct(typ, args)
	}
}
