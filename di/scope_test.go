package di_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/beans/di"
	"github.com/gocrud/beans/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleton_ConcurrentCycle(t *testing.T) {
	// 两个构造函数都进入后才返回，保证 a 和 b 分别由不同的解析持有
	var arrived atomic.Int32
	both := make(chan struct{})
	r := registry.New()
	require.NoError(t, registry.Register[*Service](r, registry.WithConstructor(func() *Service {
		if arrived.Add(1) == 2 {
			close(both)
		}
		select {
		case <-both:
		case <-time.After(time.Second):
		}
		return &Service{}
	})))

	set := di.NewRegistrationSet()
	require.NoError(t, set.Add("a", &di.BeanDescription{
		Type:   serviceType,
		Fields: []di.Dependency{di.Named("Other", di.Ref("b"))},
	}))
	require.NoError(t, set.Add("b", &di.BeanDescription{
		Type:   serviceType,
		Fields: []di.Dependency{di.Named("Other", di.Ref("a"))},
	}))
	c := newContainer(t, set, r)

	errs := make(chan error, 2)
	for _, id := range []string{"a", "b"} {
		go func(id string) {
			_, err := c.GetBeanByID(context.Background(), id, nil)
			errs <- err
		}(id)
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			var cyclic *di.CyclicDependencyError
			require.ErrorAs(t, err, &cyclic)
			require.GreaterOrEqual(t, len(cyclic.Path), 3)
			assert.Equal(t, cyclic.Path[0], cyclic.Path[len(cyclic.Path)-1])
		case <-time.After(5 * time.Second):
			t.Fatal("resolution of a singleton cycle did not return")
		}
	}

	for _, id := range []string{"a", "b"} {
		info, ok := c.Factory().Bean(id)
		require.True(t, ok)
		assert.False(t, info.Built)
	}
}

func TestThreadScope_ConcurrentSameContext(t *testing.T) {
	var n counter
	set := di.NewRegistrationSet()
	require.NoError(t, set.Add("svc", &di.BeanDescription{Lifecycle: di.Thread, Type: serviceType}))
	c := newContainer(t, set, newTypes(t, &n))
	ctx := di.WithThreadScope(context.Background())

	const workers = 32
	results := make([]*Service, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := di.GetByID[*Service](ctx, c, "svc")
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, n.count())
	for _, s := range results {
		assert.Same(t, results[0], s)
	}
}

type limits struct {
	max  int
	mode string
}

func (l *limits) SetMax(n int) error {
	if n < 0 {
		return errors.New("negative max")
	}
	l.max = n
	return nil
}

func (l *limits) SetMode(mode string) {
	if mode != "strict" {
		panic("unsupported mode " + mode)
	}
	l.mode = mode
}

func TestSetterInvocationError(t *testing.T) {
	r := registry.New()
	require.NoError(t, registry.Register[*limits](r))
	limitsType := di.TypeOf[*limits]()

	cases := []struct {
		name    string
		setter  di.Dependency
		message string
	}{
		{"returns error", di.Named("max", di.Value(-1, nil)), "negative max"},
		{"panics", di.Named("mode", di.Value("loose", nil)), "unsupported mode loose"},
		{"argument mismatch", di.Named("max", di.Value(struct{}{}, nil)), "max"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := di.NewRegistrationSet()
			require.NoError(t, set.Add("limits", &di.BeanDescription{
				Type:    limitsType,
				Setters: []di.Dependency{tc.setter},
			}))
			c := newContainer(t, set, r)

			_, err := c.GetBeanByID(context.Background(), "limits", nil)
			var invocation *di.SetterInvocationError
			require.ErrorAs(t, err, &invocation)
			assert.Equal(t, limitsType, invocation.Type)
			assert.ErrorContains(t, err, tc.message)

			info, ok := c.Factory().Bean("limits")
			require.True(t, ok)
			assert.False(t, info.Built)
		})
	}

	set := di.NewRegistrationSet()
	require.NoError(t, set.Add("limits", &di.BeanDescription{
		Type: limitsType,
		Setters: []di.Dependency{
			di.Named("max", di.Value(10, nil)),
			di.Named("mode", di.Value("strict", nil)),
		},
	}))
	l, err := di.GetByID[*limits](context.Background(), newContainer(t, set, r), "limits")
	require.NoError(t, err)
	assert.Equal(t, 10, l.max)
	assert.Equal(t, "strict", l.mode)
}

func TestAbstractType_InstantiationError(t *testing.T) {
	var n counter
	set := di.NewRegistrationSet()
	require.NoError(t, set.Add("repo", &di.BeanDescription{Type: repoIface}))
	require.NoError(t, set.Add("fn", &di.BeanDescription{Type: di.TypeOf[func() int]()}))
	require.NoError(t, set.Add("counter", &di.BeanDescription{Type: di.TypeOf[*int]()}))
	c := newContainer(t, set, newTypes(t, &n))
	ctx := context.Background()

	for _, id := range []string{"repo", "fn"} {
		_, err := c.GetBeanByID(ctx, id, nil)
		var inst *di.InstantiationError
		require.ErrorAs(t, err, &inst, id)
		assert.ErrorIs(t, err, registry.ErrAbstractType)

		info, ok := c.Factory().Bean(id)
		require.True(t, ok)
		assert.False(t, info.Built)
	}

	// 具体的非结构体类型仍然可以直接创建，且不是 nil
	p, err := di.GetByID[*int](ctx, c, "counter")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 0, *p)
}

type nilFactory struct{ di.TypeRegistry }

func (nilFactory) Construct(reflect.Type, []di.Argument) (any, error) {
	var s *Service
	return s, nil
}

func TestInstantiation_RejectsNil(t *testing.T) {
	var n counter
	set := di.NewRegistrationSet()
	require.NoError(t, set.Add("svc", &di.BeanDescription{Type: serviceType}))
	c := newContainer(t, set, nilFactory{newTypes(t, &n)})

	_, err := c.GetBeanByID(context.Background(), "svc", nil)
	var inst *di.InstantiationError
	require.ErrorAs(t, err, &inst)
	assert.ErrorContains(t, err, "nil instance")

	info, ok := c.Factory().Bean("svc")
	require.True(t, ok)
	assert.False(t, info.Built)
}
